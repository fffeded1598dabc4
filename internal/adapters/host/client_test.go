package host

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(Options{BaseURL: srv.URL, BackoffBase: time.Millisecond}, nil)
	c.sleep = func(time.Duration) {} // tests never want to actually sleep
	return c
}

func TestClient_SuccessReturnsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.do(t.Context(), "GET", "/ping", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestClient_ServerErrorRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.do(t.Context(), "GET", "/flaky", false)
	if err == nil {
		t.Fatal("expected error after exhausting server-error retries")
	}
	// one initial attempt + defaultServerErrCap retries
	if got, want := hits.Load(), int32(defaultServerErrCap+1); got != want {
		t.Fatalf("hits = %d, want %d", got, want)
	}
}

func TestClient_RateLimitRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.do(t.Context(), "GET", "/search/issues", true)
	if err == nil {
		t.Fatal("expected error after exhausting rate-limit retries")
	}
	if got, want := hits.Load(), int32(defaultRateLimitCap+1); got != want {
		t.Fatalf("hits = %d, want %d", got, want)
	}
}

func TestClient_NotFoundFailsImmediately(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.do(t.Context(), "GET", "/repos/x/y/pulls/1", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1 (no retry on 404)", hits.Load())
	}
}

func TestClient_RetryAfterHeaderHonoured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var slept time.Duration
	c.sleep = func(d time.Duration) { slept = d }

	resp, err := c.do(t.Context(), "GET", "/search/issues", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()
	if slept < 750*time.Millisecond || slept > 1250*time.Millisecond {
		t.Fatalf("slept = %v, want ~1s jittered", slept)
	}
}

func TestGetToken_RoundRobin(t *testing.T) {
	c := New(Options{TokensCSV: "a,b,c"}, nil)
	seen := map[string]bool{}
	for i := 0; i < 6; i++ {
		seen[c.getToken()] = true
	}
	for _, tok := range []string{"a", "b", "c"} {
		if !seen[tok] {
			t.Fatalf("token %q never selected", tok)
		}
	}
}

func TestSearchGate_EnforcesInterval(t *testing.T) {
	g := newSearchGate(50 * time.Millisecond)
	start := time.Now()
	if err := g.wait(t.Context(), time.Now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.wait(t.Context(), time.Now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("elapsed = %v, want >= 50ms between calls", elapsed)
	}
}
