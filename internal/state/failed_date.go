package state

import (
	"strings"
	"sync"
	"time"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
)

// FailedDate tracks why a date failed a given pipeline phase, classifying
// each failure as permanent or retryable so range runs know which dates can
// self-heal on a re-run and which are hopeless without operator action.
type FailedDate struct {
	mu   sync.Mutex
	path string
	data map[string]domain.FailedDateEntry
	now  func() time.Time
}

// NewFailedDate loads (or lazily creates) the failed-date file at path.
func NewFailedDate(path string) (*FailedDate, error) {
	f := &FailedDate{path: path, data: map[string]domain.FailedDateEntry{}, now: time.Now}
	if err := readOrEmpty(path, &f.data); err != nil {
		return nil, err
	}
	if f.data == nil {
		f.data = map[string]domain.FailedDateEntry{}
	}
	return f, nil
}

// classify maps an error to permanent/retryable per spec: 404, non-rate-limit
// 403, and 422 are permanent; everything else (timeouts, 429, 5xx, network
// errors) is retryable.
func classify(err error) domain.FailureClass {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeNotFound, perr.ErrorCodeValidation:
		return domain.FailurePermanent
	case perr.ErrorCodeForbidden:
		if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
			return domain.FailureRetryable
		}
		return domain.FailurePermanent
	default:
		return domain.FailureRetryable
	}
}

// RecordFailure classifies err, increments the attempt count, and persists
// the entry for date/phase.
func (f *FailedDate) RecordFailure(date, phase string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data[date]
	if !ok {
		e = domain.FailedDateEntry{FirstFailureAt: f.now()}
	}
	e.Phase = phase
	e.LastError = err.Error()
	e.AttemptCount++
	e.ClassifiedAs = classify(err)
	f.data[date] = e
	return writeAtomic(f.path, f.data)
}

// RecordSuccess clears any failure entry for date.
func (f *FailedDate) RecordSuccess(date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[date]; !ok {
		return nil
	}
	delete(f.data, date)
	return writeAtomic(f.path, f.data)
}

// RetryableDates returns the subset of candidates that either have no
// recorded failure, or are classified retryable with attempts below maxRetries.
func (f *FailedDate) RetryableDates(candidates []string, maxRetries int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(candidates))
	for _, date := range candidates {
		e, ok := f.data[date]
		if !ok {
			out = append(out, date)
			continue
		}
		if e.ClassifiedAs == domain.FailureRetryable && e.AttemptCount < maxRetries {
			out = append(out, date)
		}
	}
	return out
}

// ExhaustedDates returns dates that hit the retry cap or were classified
// permanent.
func (f *FailedDate) ExhaustedDates(maxRetries int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for date, e := range f.data {
		if e.ClassifiedAs == domain.FailurePermanent || e.AttemptCount >= maxRetries {
			out = append(out, date)
		}
	}
	return out
}

// Snapshot returns a read-only copy of every tracked failure.
func (f *FailedDate) Snapshot() map[string]domain.FailedDateEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.FailedDateEntry, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}
