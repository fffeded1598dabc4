package domain

import "time"

// ActivityKind tags the kind of a normalised Activity. The set is closed for
// the GitHub source but the tag itself is an extensible string so other
// sources registered in the source registry can introduce their own kinds.
type ActivityKind string

const (
	KindPRAuthored    ActivityKind = "pr_authored"
	KindPRReviewed    ActivityKind = "pr_reviewed"
	KindPRCommented   ActivityKind = "pr_commented"
	KindCommit        ActivityKind = "commit"
	KindIssueAuthored ActivityKind = "issue_authored"
	KindIssueCommented ActivityKind = "issue_commented"
)

// Intent is the optional LLM-assigned intent tag for an Activity.
type Intent string

const (
	IntentBugfix   Intent = "bugfix"
	IntentFeature  Intent = "feature"
	IntentRefactor Intent = "refactor"
	IntentDocs     Intent = "docs"
	IntentChore    Intent = "chore"
	IntentTest     Intent = "test"
	IntentConfig   Intent = "config"
	IntentPerf     Intent = "perf"
	IntentSecurity Intent = "security"
	IntentOther    Intent = "other"
)

// Activity is one normalised, kind-tagged record of user action on a given
// day, derived from a raw PullRequest, Commit, or Issue document.
type Activity struct {
	Timestamp     time.Time `json:"ts"`
	Kind          ActivityKind `json:"kind"`
	Repo          string    `json:"repo"`
	ExternalID    int       `json:"external_id"` // pr/issue number, 0 for commits
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Summary       string    `json:"summary"`
	SHA           string    `json:"sha,omitempty"`
	Files         []string  `json:"files,omitempty"`
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
	Labels        []string  `json:"labels,omitempty"`
	EvidenceURLs  []string  `json:"evidence_urls,omitempty"`
	Body          string    `json:"body,omitempty"`
	ReviewBodies  []string  `json:"review_bodies,omitempty"`
	CommentBodies []string  `json:"comment_bodies,omitempty"`
	Intent        *Intent   `json:"intent,omitempty"`
	ChangeSummary *string   `json:"change_summary,omitempty"`
}
