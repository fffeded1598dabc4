// Package host provides a resilient client for the GitHub-compatible Search
// and REST APIs used to fetch pull requests, commits, and issues for a
// single user over a date range.
package host

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
)

const (
	baseURLDefault      = "https://api.github.com"
	defaultTimeout      = 15 * time.Second
	defaultUA           = "workrecap-host-client"
	defaultRateLimitCap = 7
	defaultServerErrCap = 3
	defaultBackoffBase  = 1 * time.Second
	maxBackoff          = 300 * time.Second
	defaultSearchGap    = 2 * time.Second
)

// Options configures the Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// TokensCSV holds one or more comma separated tokens; empty means
	// tokenless, which carries a very low quota and is not recommended.
	TokensCSV string

	// RateLimitRetryCap bounds the rate-limit retry counter; <=0 uses 7.
	RateLimitRetryCap int
	// ServerErrorRetryCap bounds the server-error retry counter; <=0 uses 3.
	ServerErrorRetryCap int
	// BackoffBase is the base duration for exponential backoff; <=0 uses 1s.
	BackoffBase time.Duration
	// SearchInterval is the minimum spacing between search-endpoint calls
	// shared across every Client in a Pool; <=0 uses 2s.
	SearchInterval time.Duration
}

// searchGate throttles the two search endpoints across every Client sharing
// it so a Pool of Clients still respects one search quota.
type searchGate struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func newSearchGate(interval time.Duration) *searchGate {
	if interval <= 0 {
		interval = defaultSearchGap
	}
	return &searchGate{interval: interval}
}

// wait blocks the caller until the interval since the previous search call
// has elapsed, then records this call's timestamp.
func (g *searchGate) wait(ctx context.Context, now func() time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.last.IsZero() {
		if d := g.interval - now().Sub(g.last); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	g.last = now()
	return nil
}

// Client is a token-rotating REST/Search client with rate-limit-aware retry.
type Client struct {
	http   *http.Client
	opts   Options
	tokens []string
	cur    atomic.Int32
	log    logger.Logger
	now    func() time.Time
	sleep  func(time.Duration)
	gate   *searchGate
}

// New creates a Client with sane defaults. gate may be nil, in which case
// the Client gets its own private search gate (fine standalone, but a Pool
// should share one gate across all its Clients).
func New(o Options, gate *searchGate) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RateLimitRetryCap <= 0 {
		o.RateLimitRetryCap = defaultRateLimitCap
	}
	if o.ServerErrorRetryCap <= 0 {
		o.ServerErrorRetryCap = defaultServerErrCap
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = defaultBackoffBase
	}
	if o.SearchInterval <= 0 {
		o.SearchInterval = defaultSearchGap
	}
	var toks []string
	if s := strings.TrimSpace(o.TokensCSV); s != "" {
		for _, t := range strings.Split(s, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				toks = append(toks, t)
			}
		}
	}
	if gate == nil {
		gate = newSearchGate(o.SearchInterval)
	}
	return &Client{
		http:   &http.Client{Timeout: o.Timeout},
		opts:   o,
		tokens: toks,
		log:    *logger.Named("host"),
		now:    time.Now,
		sleep:  time.Sleep,
		gate:   gate,
	}
}

// getToken returns the next token in round-robin rotation.
func (c *Client) getToken() string {
	if len(c.tokens) == 0 {
		return ""
	}
	n := int(c.cur.Add(1))
	return c.tokens[n%len(c.tokens)]
}

// jitter multiplies d by a uniform random factor in [0.75, 1.25].
func jitter(d time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

// backoff computes the exponential wait for attempt n (0-based), capped at
// 300s, with ±25% jitter applied.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return jitter(d)
}

// requestState tracks the two independent retry counters for one logical
// request: rate-limit caps at 7, server-error caps at 3.
type requestState struct {
	rateLimitAttempts int
	serverErrAttempts int
}

// do issues one authenticated request against path, retrying according to
// the dual-counter rate-limit/server-error policy. isSearch marks calls to
// the two search endpoints so the shared throttle gate applies.
func (c *Client) do(ctx context.Context, method, path string, isSearch bool) (*http.Response, error) {
	url := c.opts.BaseURL + path
	st := requestState{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if isSearch {
			if err := c.gate.wait(ctx, c.now); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, perr.FetchWrapf(err, perr.ErrorCodeInvalidArgument, "build request for %s", path)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/vnd.github+json")
		if isSearch {
			req.Header.Set("Accept", "application/vnd.github.cloak-preview+json")
		}
		if tok := c.getToken(); tok != "" {
			req.Header.Set("Authorization", "token "+tok)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if st.serverErrAttempts >= c.opts.ServerErrorRetryCap {
				return nil, perr.FetchWrapf(err, perr.ErrorCodeUnavailable, "transport error for %s after %d attempts", path, st.serverErrAttempts+1)
			}
			wait := backoff(c.opts.BackoffBase, st.serverErrAttempts)
			c.log.Warn().Err(err).Dur("retry_in", wait).Int("attempt", st.serverErrAttempts+1).Msg("host transport error, retrying")
			st.serverErrAttempts++
			c.sleep(wait)
			continue
		}

		rem, reset, retryAfter := parseRateHeaders(resp.Header)
		c.logResponse(method, path, resp.StatusCode, rem, reset, retryAfter)
		c.warnQuota(ctx, rem, reset)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusNotModified:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode == http.StatusForbidden && rateLimitedForbidden(resp)):
			_ = drainAndClose(resp.Body)
			if st.rateLimitAttempts >= c.opts.RateLimitRetryCap {
				return nil, perr.FetchErrorf(perr.ErrorCodeTooManyRequests, "rate limited on %s after %d attempts", path, st.rateLimitAttempts+1)
			}
			wait := computeWait(retryAfter, reset, c.opts.BackoffBase, st.rateLimitAttempts, c.now())
			c.log.Warn().Dur("sleep", wait).Int("attempt", st.rateLimitAttempts+1).Msg("host rate limited, backing off")
			st.rateLimitAttempts++
			c.sleep(wait)
			continue

		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.FetchErrorf(codeForStatus(resp.StatusCode), "host %s %s: status %d: %s", method, path, resp.StatusCode, string(body))

		case resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if st.serverErrAttempts >= c.opts.ServerErrorRetryCap {
				return nil, perr.FetchErrorf(perr.ErrorCodeUnavailable, "server error %d on %s after %d attempts", resp.StatusCode, path, st.serverErrAttempts+1)
			}
			wait := backoff(c.opts.BackoffBase, st.serverErrAttempts)
			c.log.Warn().Int("status", resp.StatusCode).Dur("retry_in", wait).Int("attempt", st.serverErrAttempts+1).Msg("host server error, retrying")
			st.serverErrAttempts++
			c.sleep(wait)
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, perr.FetchErrorf(perr.ErrorCodeUnknown, "host %s %s: unexpected status %d: %s", method, path, resp.StatusCode, string(body))
		}
	}
}

func (c *Client) logResponse(method, path string, status, rem int, reset time.Time, retryAfter int) {
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Int("rate_remaining", rem).
		Time("rate_reset", reset).
		Int("retry_after_s", retryAfter).
		Msg("host http response")
}

// warnQuota implements the search-throttle adaptive awareness: block until
// reset when remaining < 10, log a warning when remaining < 100.
func (c *Client) warnQuota(ctx context.Context, remaining int, reset time.Time) {
	if remaining <= 0 {
		return
	}
	switch {
	case remaining < 10 && !reset.IsZero():
		wait := reset.Sub(c.now())
		if wait > 0 {
			c.log.Warn().Int("remaining", remaining).Dur("wait", wait).Msg("host quota nearly exhausted, blocking until reset")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
		}
	case remaining < 100:
		c.log.Warn().Int("remaining", remaining).Msg("host quota running low")
	}
}

func rateLimitedForbidden(resp *http.Response) bool {
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}

func codeForStatus(status int) perr.ErrorCode {
	switch status {
	case http.StatusNotFound:
		return perr.ErrorCodeNotFound
	case http.StatusForbidden:
		return perr.ErrorCodeForbidden
	case http.StatusUnprocessableEntity:
		return perr.ErrorCodeValidation
	default:
		return perr.ErrorCodeUnknown
	}
}
