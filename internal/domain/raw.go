// Package domain holds the core entities shared across the fetch, normalize,
// and summarize stages: the raw GitHub-shaped documents, the normalised
// Activity stream, and the per-day statistics rollup.
package domain

import "time"

// FileChange describes one file touched by a PR or commit.
type FileChange struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int     `json:"deletions"`
	Status    string `json:"status"` // added|modified|removed|renamed
	Patch     string `json:"patch,omitempty"`
}

// Comment is a PR/issue comment.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
}

// ReviewState enumerates the review states the host reports.
type ReviewState string

const (
	ReviewApproved        ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented       ReviewState = "COMMENTED"
)

// Review is a PR review.
type Review struct {
	Author      string      `json:"author"`
	State       ReviewState `json:"state"`
	Body        string      `json:"body"`
	SubmittedAt time.Time   `json:"submitted_at"`
	URL         string      `json:"url"`
}

// PullRequest is the raw pull-request document populated by the Fetcher.
type PullRequest struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	HTMLURL   string    `json:"html_url"`
	APIURL    string    `json:"api_url"`
	Repo      string    `json:"repo"` // "owner/name"
	State     string    `json:"state"`
	Merged    bool      `json:"merged"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Labels    []string  `json:"labels"`
	Body      string    `json:"body"`
	Files     []FileChange `json:"files"`
	Comments  []Comment    `json:"comments"`
	Reviews   []Review     `json:"reviews"`
}

// Commit is the raw commit document populated by the Fetcher.
type Commit struct {
	SHA          string       `json:"sha"`
	HTMLURL      string       `json:"html_url"`
	APIURL       string       `json:"api_url"`
	Message      string       `json:"message"`
	Author       string       `json:"author"`
	Repo         string       `json:"repo"`
	CommittedAt  time.Time    `json:"committed_at"`
	Files        []FileChange `json:"files"`
}

// Issue is the raw issue document populated by the Fetcher.
type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	HTMLURL   string    `json:"html_url"`
	APIURL    string    `json:"api_url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Repo      string    `json:"repo"`
	Labels    []string  `json:"labels"`
	Author    string    `json:"author"`
	Comments  []Comment `json:"comments"`
}
