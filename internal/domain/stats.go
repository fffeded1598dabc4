package domain

// CommitRef is the small reference record embedded in DailyStats for commits.
type CommitRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Repo  string `json:"repo"`
	SHA   string `json:"sha"`
}

// ItemRef is the small reference record embedded in DailyStats for PRs and
// issues (no SHA).
type ItemRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Repo  string `json:"repo"`
}

// GitHubStats is the required per-day GitHub activity block.
type GitHubStats struct {
	AuthoredCount      int `json:"authored_count"`
	ReviewedCount      int `json:"reviewed_count"`
	CommentedCount     int `json:"commented_count"`
	CommitCount        int `json:"commit_count"`
	AuthoredIssueCount int `json:"authored_issue_count"`
	CommentedIssueCount int `json:"commented_issue_count"`

	TotalAdditions int `json:"total_additions"`
	TotalDeletions int `json:"total_deletions"`

	ReposTouched []string `json:"repos_touched"`

	AuthoredPRs []ItemRef   `json:"authored_prs"`
	ReviewedPRs []ItemRef   `json:"reviewed_prs"`
	Commits     []CommitRef `json:"commits"`
	AuthoredIssues []ItemRef `json:"authored_issues"`
}

// SourceStats is a placeholder block for a non-GitHub source registered via
// the source registry. It is intentionally empty today; registries for other
// sources can populate it without changing DailyStats' shape.
type SourceStats struct{}

// DailyStats is the per-date statistics object written alongside
// activities.jsonl.
type DailyStats struct {
	Date   string      `json:"date"`
	GitHub GitHubStats `json:"github"`
	Other  map[string]SourceStats `json:"other,omitempty"`
}
