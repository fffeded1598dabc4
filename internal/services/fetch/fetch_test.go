package fetch

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"workrecap/internal/adapters/host"
	"workrecap/internal/domain"
	"workrecap/internal/services/layout"
	"workrecap/internal/state"
)

const (
	testUser = "alice"
	testRepo = "acme/widgets"
)

func emptySearchResponse(w http.ResponseWriter) {
	_, _ = w.Write([]byte(`{"total_count":0,"incomplete_results":false,"items":[]}`))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		q, _ := url.QueryUnescape(r.URL.Query().Get("q"))
		switch {
		case strings.Contains(q, "type:pr author:"+testUser):
			_, _ = w.Write([]byte(fmt.Sprintf(`{"total_count":1,"incomplete_results":false,"items":[
				{"id":1,"number":1,"title":"add widget","body":"","state":"open",
				 "html_url":"https://github.com/%[1]s/pull/1","url":"https://api.github.com/repos/%[1]s/pulls/1",
				 "repository_url":"https://api.github.com/repos/%[1]s",
				 "created_at":"2025-01-15T10:00:00Z","updated_at":"2025-01-15T10:00:00Z",
				 "user":{"login":"%[2]s"},"labels":[],"pull_request":{"merged_at":null}}
			]}`, testRepo, testUser)))
		case strings.Contains(q, "type:issue author:"+testUser):
			_, _ = w.Write([]byte(fmt.Sprintf(`{"total_count":1,"incomplete_results":false,"items":[
				{"id":5,"number":5,"title":"widget breaks on startup","body":"","state":"open",
				 "html_url":"https://github.com/%[1]s/issues/5","url":"https://api.github.com/repos/%[1]s/issues/5",
				 "repository_url":"https://api.github.com/repos/%[1]s",
				 "created_at":"2025-01-15T09:00:00Z","updated_at":"2025-01-15T09:00:00Z",
				 "user":{"login":"%[2]s"},"labels":[]}
			]}`, testRepo, testUser)))
		default:
			emptySearchResponse(w)
		}
	})

	mux.HandleFunc("/search/commits", func(w http.ResponseWriter, r *http.Request) {
		q, _ := url.QueryUnescape(r.URL.Query().Get("q"))
		if strings.Contains(q, "author:"+testUser) {
			_, _ = w.Write([]byte(fmt.Sprintf(`{"total_count":1,"incomplete_results":false,"items":[
				{"sha":"abc123","html_url":"https://github.com/%[1]s/commit/abc123","url":"https://api.github.com/repos/%[1]s/commits/abc123",
				 "commit":{"message":"fix startup crash","author":{"name":"%[2]s","date":"2025-01-15T11:00:00Z"}},
				 "author":{"login":"%[2]s"},"repository":{"full_name":"%[1]s"}}
			]}`, testRepo, testUser)))
			return
		}
		emptySearchResponse(w)
	})

	mux.HandleFunc("/repos/"+testRepo+"/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"number":1,"title":"add widget","body":"adds a widget",
			"state":"open","html_url":"https://github.com/acme/widgets/pull/1","url":"https://api.github.com/repos/acme/widgets/pulls/1",
			"created_at":"2025-01-15T10:00:00Z","updated_at":"2025-01-15T10:00:00Z",
			"user":{"login":"alice"},"labels":[],"pull_request":{"merged_at":null}}`))
	})
	mux.HandleFunc("/repos/"+testRepo+"/pulls/1/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"filename":"widget.go","additions":10,"deletions":2,"status":"modified","patch":"@@ -1 +1 @@"}]`))
	})
	mux.HandleFunc("/repos/"+testRepo+"/pulls/1/reviews", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/repos/"+testRepo+"/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/repos/"+testRepo+"/commits/abc123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sha":"abc123","html_url":"https://github.com/acme/widgets/commit/abc123","url":"https://api.github.com/repos/acme/widgets/commits/abc123",
			"commit":{"message":"fix startup crash","author":{"name":"alice","date":"2025-01-15T11:00:00Z"}},
			"author":{"login":"alice"},"repository":{"full_name":"acme/widgets"},
			"files":[{"filename":"main.go","additions":3,"deletions":1,"status":"modified"}]}`))
	})
	mux.HandleFunc("/repos/"+testRepo+"/issues/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":5,"number":5,"title":"widget breaks on startup","body":"crashes immediately",
			"state":"open","html_url":"https://github.com/acme/widgets/issues/5","url":"https://api.github.com/repos/acme/widgets/issues/5",
			"created_at":"2025-01-15T09:00:00Z","updated_at":"2025-01-15T09:00:00Z","user":{"login":"alice"},"labels":[]}`))
	})
	mux.HandleFunc("/repos/"+testRepo+"/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	return httptest.NewServer(mux)
}

func newTestFetcher(t *testing.T, srv *httptest.Server, dataDir string) *Fetcher {
	t.Helper()
	pool := host.NewPool(1, host.Options{BaseURL: srv.URL})
	root := layout.New(dataDir)

	checkpoint, err := state.NewCheckpoint(root.StateDir() + "/checkpoints.json")
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	dailyState, err := state.NewDailyState(root.StateDir() + "/daily_state.json")
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	failedDate, err := state.NewFailedDate(root.StateDir() + "/failed_dates.json")
	if err != nil {
		t.Fatalf("NewFailedDate: %v", err)
	}
	progress := state.NewFetchProgress(root.FetchProgressDir())

	return New(pool, root, checkpoint, dailyState, failedDate, progress, Options{UserLogin: testUser, MaxWorkers: 2, RetryCap: 3})
}

func TestFetcher_Fetch_WritesRawFilesAndAdvancesState(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	dir := t.TempDir()
	f := newTestFetcher(t, srv, dir)

	date := "2025-01-15"
	if err := f.Fetch(t.Context(), date, AllTypes()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var prs []domain.PullRequest
	if err := layout.ReadJSON(f.root.RawFile(date, "prs"), &prs); err != nil {
		t.Fatalf("read prs.json: %v", err)
	}
	if len(prs) != 1 || prs[0].Number != 1 {
		t.Fatalf("prs = %+v, want one PR numbered 1", prs)
	}
	if len(prs[0].Files) != 1 {
		t.Fatalf("pr files = %+v, want one enriched file", prs[0].Files)
	}

	var commits []domain.Commit
	if err := layout.ReadJSON(f.root.RawFile(date, "commits"), &commits); err != nil {
		t.Fatalf("read commits.json: %v", err)
	}
	if len(commits) != 1 || commits[0].SHA != "abc123" {
		t.Fatalf("commits = %+v, want one commit abc123", commits)
	}

	var issues []domain.Issue
	if err := layout.ReadJSON(f.root.RawFile(date, "issues"), &issues); err != nil {
		t.Fatalf("read issues.json: %v", err)
	}
	if len(issues) != 1 || issues[0].Number != 5 {
		t.Fatalf("issues = %+v, want one issue numbered 5", issues)
	}

	got, ok := f.checkpoint.Get(domain.CheckpointLastFetch)
	if !ok || got != date {
		t.Fatalf("checkpoint = %q, %v, want %q", got, ok, date)
	}
	if f.dailyState.FetchStale(date) {
		t.Fatalf("date %s should no longer be fetch-stale after a successful fetch", date)
	}
}

func TestFetcher_FetchRange_SkipsFreshDatesUnlessForced(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	dir := t.TempDir()
	f := newTestFetcher(t, srv, dir)

	first, err := f.FetchRange(t.Context(), "2025-01-14", "2025-01-16", AllTypes(), false)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("statuses = %+v, want 3 entries", first)
	}
	for _, s := range first {
		if s.Status != domain.StatusSuccess {
			t.Fatalf("date %s = %s, want success on first pass", s.Date, s.Status)
		}
	}

	second, err := f.FetchRange(t.Context(), "2025-01-14", "2025-01-16", AllTypes(), false)
	if err != nil {
		t.Fatalf("second FetchRange: %v", err)
	}
	for _, s := range second {
		if s.Status != domain.StatusSkipped {
			t.Fatalf("date %s = %s, want skipped on second unforced pass", s.Date, s.Status)
		}
	}

	forced, err := f.FetchRange(t.Context(), "2025-01-14", "2025-01-16", AllTypes(), true)
	if err != nil {
		t.Fatalf("forced FetchRange: %v", err)
	}
	for _, s := range forced {
		if s.Status != domain.StatusSuccess {
			t.Fatalf("forced date %s = %s, want success", s.Date, s.Status)
		}
	}
}
