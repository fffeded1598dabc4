package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
)

const searchResultCap = 1000

// SearchResult is the generic envelope returned by both search endpoints.
type SearchResult struct {
	TotalCount        int  `json:"total_count"`
	IncompleteResults bool `json:"incomplete_results"`
}

type wireUser struct {
	Login string `json:"login"`
}

type wireLabel struct {
	Name string `json:"name"`
}

// wireIssue covers both the search-issues item shape and the plain
// get-issue/get-pull-request response shape; PullRequest is non-nil only
// when the issue search surfaced a pull request.
type wireIssue struct {
	ID             int64       `json:"id"`
	Number         int         `json:"number"`
	Title          string      `json:"title"`
	Body           string      `json:"body"`
	State          string      `json:"state"`
	HTMLURL        string      `json:"html_url"`
	URL            string      `json:"url"`
	RepositoryURL  string      `json:"repository_url"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ClosedAt       *time.Time  `json:"closed_at"`
	User           wireUser    `json:"user"`
	Labels         []wireLabel `json:"labels"`
	PullRequestRef *struct {
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request"`
}

func (w wireIssue) repo() string {
	return repoFromURL(w.RepositoryURL)
}

func (w wireIssue) labelNames() []string {
	out := make([]string, 0, len(w.Labels))
	for _, l := range w.Labels {
		out = append(out, l.Name)
	}
	return out
}

func repoFromURL(u string) string {
	parts := strings.Split(strings.TrimSuffix(u, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

type wireSearchIssuesResponse struct {
	SearchResult
	Items []wireIssue `json:"items"`
}

// SearchIssues runs a search-issues query and returns the single requested
// page (page, perPage) as Issues. Items that carry a pull_request stub are
// dropped; SearchPullRequests returns those.
func (c *Client) SearchIssues(ctx context.Context, query string, page, perPage int) ([]domain.Issue, SearchResult, error) {
	path := fmt.Sprintf("/search/issues?q=%s&page=%d&per_page=%d", urlQueryEscape(query), page, perPage)
	resp, err := c.do(ctx, "GET", path, true)
	if err != nil {
		return nil, SearchResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var wr wireSearchIssuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, SearchResult{}, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "decode search issues response")
	}
	c.warnTruncation(wr.TotalCount, query)

	out := make([]domain.Issue, 0, len(wr.Items))
	for _, it := range wr.Items {
		if it.PullRequestRef != nil {
			continue // pull requests surface via SearchPullRequests/GetPR, not as Issues
		}
		out = append(out, domain.Issue{
			ID:        it.ID,
			Number:    it.Number,
			HTMLURL:   it.HTMLURL,
			APIURL:    it.URL,
			Title:     it.Title,
			Body:      it.Body,
			State:     it.State,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
			ClosedAt:  it.ClosedAt,
			Repo:      it.repo(),
			Labels:    it.labelNames(),
			Author:    it.User.Login,
		})
	}
	return out, wr.SearchResult, nil
}

// SearchPullRequests runs the same search-issues endpoint but keeps only the
// items that carry a pull_request stub, returning bare PullRequest shells
// the caller enriches with GetPR/GetPRFiles/GetPRComments/GetPRReviews.
func (c *Client) SearchPullRequests(ctx context.Context, query string, page, perPage int) ([]domain.PullRequest, SearchResult, error) {
	path := fmt.Sprintf("/search/issues?q=%s&page=%d&per_page=%d", urlQueryEscape(query), page, perPage)
	resp, err := c.do(ctx, "GET", path, true)
	if err != nil {
		return nil, SearchResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var wr wireSearchIssuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, SearchResult{}, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "decode search pull requests response")
	}
	c.warnTruncation(wr.TotalCount, query)

	out := make([]domain.PullRequest, 0, len(wr.Items))
	for _, it := range wr.Items {
		if it.PullRequestRef == nil {
			continue
		}
		out = append(out, domain.PullRequest{
			ID:        it.ID,
			Number:    it.Number,
			HTMLURL:   it.HTMLURL,
			APIURL:    it.URL,
			Repo:      it.repo(),
			State:     it.State,
			Merged:    it.PullRequestRef.MergedAt != nil,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
			MergedAt:  it.PullRequestRef.MergedAt,
			Author:    it.User.Login,
			Title:     it.Title,
			Labels:    it.labelNames(),
			Body:      it.Body,
		})
	}
	return out, wr.SearchResult, nil
}

type wireCommit struct {
	SHA        string `json:"sha"`
	HTMLURL    string `json:"html_url"`
	URL        string `json:"url"`
	Commit     struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author     *wireUser `json:"author"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

type wireSearchCommitsResponse struct {
	SearchResult
	Items []wireCommit `json:"items"`
}

// SearchCommits runs a search-commits query. The preview Accept header is
// attached by do() whenever isSearch is set, matching both search endpoints.
func (c *Client) SearchCommits(ctx context.Context, query string, page, perPage int) ([]domain.Commit, SearchResult, error) {
	path := fmt.Sprintf("/search/commits?q=%s&page=%d&per_page=%d", urlQueryEscape(query), page, perPage)
	resp, err := c.do(ctx, "GET", path, true)
	if err != nil {
		return nil, SearchResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var wr wireSearchCommitsResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, SearchResult{}, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "decode search commits response")
	}
	c.warnTruncation(wr.TotalCount, query)

	out := make([]domain.Commit, 0, len(wr.Items))
	for _, it := range wr.Items {
		author := it.Commit.Author.Name
		if it.Author != nil && it.Author.Login != "" {
			author = it.Author.Login
		}
		out = append(out, domain.Commit{
			SHA:         it.SHA,
			HTMLURL:     it.HTMLURL,
			APIURL:      it.URL,
			Message:     it.Commit.Message,
			Author:      author,
			Repo:        it.Repository.FullName,
			CommittedAt: it.Commit.Author.Date,
		})
	}
	return out, wr.SearchResult, nil
}

func (c *Client) warnTruncation(total int, query string) {
	if total > searchResultCap {
		c.log.Warn().Int("total_count", total).Str("query", query).Msg("search result set truncated at 1000 items by host API")
	}
}

// GetPR fetches a single pull request by repo ("owner/name") and number.
func (c *Client) GetPR(ctx context.Context, repo string, number int) (domain.PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/pulls/%d", repo, number)
	resp, err := c.do(ctx, "GET", path, false)
	if err != nil {
		return domain.PullRequest{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var w wireIssue
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return domain.PullRequest{}, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "decode pull request %s#%d", repo, number)
	}
	pr := domain.PullRequest{
		ID:        w.ID,
		Number:    w.Number,
		HTMLURL:   w.HTMLURL,
		APIURL:    w.URL,
		Repo:      repo,
		State:     w.State,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		Author:    w.User.Login,
		Title:     w.Title,
		Labels:    w.labelNames(),
		Body:      w.Body,
	}
	if w.PullRequestRef != nil {
		pr.Merged = w.PullRequestRef.MergedAt != nil
		pr.MergedAt = w.PullRequestRef.MergedAt
	}
	return pr, nil
}

type wireFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status"`
	Patch     string `json:"patch"`
}

// GetPRFiles fetches the changed-files list for a pull request, paginating
// through the full result set 100 items at a time.
func (c *Client) GetPRFiles(ctx context.Context, repo string, number int) ([]domain.FileChange, error) {
	var out []domain.FileChange
	err := c.paginate(ctx, fmt.Sprintf("/repos/%s/pulls/%d/files", repo, number), func(body []byte) (int, error) {
		var page []wireFile
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, f := range page {
			out = append(out, domain.FileChange{
				Filename:  f.Filename,
				Additions: f.Additions,
				Deletions: f.Deletions,
				Status:    f.Status,
				Patch:     f.Patch,
			})
		}
		return len(page), nil
	})
	return out, err
}

type wireComment struct {
	User      wireUser  `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	HTMLURL   string    `json:"html_url"`
}

// GetPRComments fetches issue-style comments on a pull request.
func (c *Client) GetPRComments(ctx context.Context, repo string, number int) ([]domain.Comment, error) {
	return c.getComments(ctx, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number))
}

// GetIssueComments fetches comments on an issue.
func (c *Client) GetIssueComments(ctx context.Context, repo string, number int) ([]domain.Comment, error) {
	return c.getComments(ctx, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number))
}

func (c *Client) getComments(ctx context.Context, path string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := c.paginate(ctx, path, func(body []byte) (int, error) {
		var page []wireComment
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, cm := range page {
			out = append(out, domain.Comment{
				Author:    cm.User.Login,
				Body:      cm.Body,
				CreatedAt: cm.CreatedAt,
				URL:       cm.HTMLURL,
			})
		}
		return len(page), nil
	})
	return out, err
}

type wireReview struct {
	User        wireUser  `json:"user"`
	State       string    `json:"state"`
	Body        string    `json:"body"`
	SubmittedAt time.Time `json:"submitted_at"`
	HTMLURL     string    `json:"html_url"`
}

// GetPRReviews fetches the reviews submitted against a pull request.
func (c *Client) GetPRReviews(ctx context.Context, repo string, number int) ([]domain.Review, error) {
	var out []domain.Review
	err := c.paginate(ctx, fmt.Sprintf("/repos/%s/pulls/%d/reviews", repo, number), func(body []byte) (int, error) {
		var page []wireReview
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		for _, rv := range page {
			out = append(out, domain.Review{
				Author:      rv.User.Login,
				State:       domain.ReviewState(rv.State),
				Body:        rv.Body,
				SubmittedAt: rv.SubmittedAt,
				URL:         rv.HTMLURL,
			})
		}
		return len(page), nil
	})
	return out, err
}

// GetCommit fetches a single commit by repo and SHA, including its files.
func (c *Client) GetCommit(ctx context.Context, repo, sha string) (domain.Commit, error) {
	path := fmt.Sprintf("/repos/%s/commits/%s", repo, sha)
	resp, err := c.do(ctx, "GET", path, false)
	if err != nil {
		return domain.Commit{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var w struct {
		wireCommit
		Files []wireFile `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return domain.Commit{}, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "decode commit %s@%s", repo, sha)
	}
	files := make([]domain.FileChange, 0, len(w.Files))
	for _, f := range w.Files {
		files = append(files, domain.FileChange{
			Filename:  f.Filename,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Status:    f.Status,
			Patch:     f.Patch,
		})
	}
	authorName := w.wireCommit.Commit.Author.Name
	if w.Author != nil && w.Author.Login != "" {
		authorName = w.Author.Login
	}
	return domain.Commit{
		SHA:         w.SHA,
		HTMLURL:     w.HTMLURL,
		APIURL:      w.URL,
		Message:     w.wireCommit.Commit.Message,
		Author:      authorName,
		Repo:        repo,
		CommittedAt: w.wireCommit.Commit.Author.Date,
		Files:       files,
	}, nil
}

// GetIssue fetches a single issue by repo and number.
func (c *Client) GetIssue(ctx context.Context, repo string, number int) (domain.Issue, error) {
	path := fmt.Sprintf("/repos/%s/issues/%d", repo, number)
	resp, err := c.do(ctx, "GET", path, false)
	if err != nil {
		return domain.Issue{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var w wireIssue
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return domain.Issue{}, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "decode issue %s#%d", repo, number)
	}
	return domain.Issue{
		ID:        w.ID,
		Number:    w.Number,
		HTMLURL:   w.HTMLURL,
		APIURL:    w.URL,
		Title:     w.Title,
		Body:      w.Body,
		State:     w.State,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		ClosedAt:  w.ClosedAt,
		Repo:      repo,
		Labels:    w.labelNames(),
		Author:    w.User.Login,
	}, nil
}

// paginate walks a REST list endpoint 100 items at a time, calling decode
// for each page's raw JSON array; decode returns the number of items it
// found so paginate knows when to stop.
func (c *Client) paginate(ctx context.Context, basePath string, decode func(body []byte) (int, error)) error {
	sep := "?"
	if strings.Contains(basePath, "?") {
		sep = "&"
	}
	for page := 1; ; page++ {
		path := fmt.Sprintf("%s%sper_page=100&page=%d", basePath, sep, page)
		resp, err := c.do(ctx, "GET", path, false)
		if err != nil {
			return err
		}
		body, rerr := readAll(resp)
		_ = resp.Body.Close()
		if rerr != nil {
			return perr.FetchWrapf(rerr, perr.ErrorCodeUnknown, "read paginated response from %s", path)
		}
		n, derr := decode(body)
		if derr != nil {
			return perr.FetchWrapf(derr, perr.ErrorCodeUnknown, "decode paginated response from %s", path)
		}
		if n < 100 {
			return nil
		}
	}
}

func urlQueryEscape(q string) string {
	return strings.ReplaceAll(strings.ReplaceAll(q, " ", "+"), "#", "%23")
}

func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
