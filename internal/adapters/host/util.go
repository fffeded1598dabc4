package host

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

func parseRateHeaders(h http.Header) (remaining int, reset time.Time, retryAfter int) {
	remaining = atoi(h.Get("X-RateLimit-Remaining"))
	if rs := h.Get("X-RateLimit-Reset"); rs != "" {
		if sec := atoi(rs); sec > 0 {
			reset = time.Unix(int64(sec), 0).UTC()
		}
	}
	retryAfter = atoi(h.Get("Retry-After"))
	return
}

// computeWait implements the three-tier wait strategy: an explicit
// Retry-After header wins, then X-RateLimit-Reset, then exponential backoff
// from the rate-limit attempt count. Every branch is jittered by ±25%.
func computeWait(retryAfter int, reset time.Time, base time.Duration, attempt int, now time.Time) time.Duration {
	if retryAfter > 0 {
		return jitter(time.Duration(retryAfter) * time.Second)
	}
	if !reset.IsZero() {
		if d := reset.Sub(now); d > 0 {
			return jitter(d)
		}
	}
	return backoff(base, attempt)
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
