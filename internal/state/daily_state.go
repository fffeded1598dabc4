package state

import (
	"sync"
	"time"

	"workrecap/internal/domain"
)

// DailyState tracks the last successful timestamp of each stage for every
// date and derives the cascade-staleness predicates the range runners use to
// decide whether a date needs (re)work.
type DailyState struct {
	mu   sync.Mutex
	path string
	data map[string]domain.DailyStateEntry
}

// NewDailyState loads (or lazily creates) the daily-state file at path.
func NewDailyState(path string) (*DailyState, error) {
	d := &DailyState{path: path, data: map[string]domain.DailyStateEntry{}}
	if err := readOrEmpty(path, &d.data); err != nil {
		return nil, err
	}
	if d.data == nil {
		d.data = map[string]domain.DailyStateEntry{}
	}
	return d, nil
}

// Get returns the entry for date, and whether one exists.
func (d *DailyState) Get(date string) (domain.DailyStateEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.data[date]
	return e, ok
}

// Set records the instant a stage completed successfully for date.
func (d *DailyState) Set(date string, stage domain.CheckpointKey, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.data[date]
	switch stage {
	case domain.CheckpointLastFetch:
		e.FetchedAt = &at
	case domain.CheckpointLastNormalize:
		e.NormalizedAt = &at
	case domain.CheckpointLastSummarize:
		e.SummarizedAt = &at
	}
	d.data[date] = e
	return writeAtomic(d.path, d.data)
}

// FetchStale reports whether date needs (re)fetching. True when no fetch
// timestamp exists, or its date component is on or before the target date —
// a same-day fetch is considered stale because evening activity may post
// later that same calendar day.
func (d *DailyState) FetchStale(date string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.data[date]
	if !ok || e.FetchedAt == nil {
		return true
	}
	return e.FetchedAt.Format("2006-01-02") <= date
}

// NormalizeStale reports whether date needs re-normalising: true when the
// fetch timestamp is newer than the normalise timestamp (cascade rule).
func (d *DailyState) NormalizeStale(date string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.data[date]
	if !ok || e.FetchedAt == nil {
		return true
	}
	if e.NormalizedAt == nil {
		return true
	}
	return e.FetchedAt.After(*e.NormalizedAt)
}

// SummarizeStale reports whether date needs re-summarising: true when the
// normalise timestamp is newer than the summarise timestamp (cascade rule).
func (d *DailyState) SummarizeStale(date string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.data[date]
	if !ok || e.NormalizedAt == nil {
		return true
	}
	if e.SummarizedAt == nil {
		return true
	}
	return e.NormalizedAt.After(*e.SummarizedAt)
}

// StaleDates filters candidates down to those needing work for stage.
func (d *DailyState) StaleDates(candidates []string, stage domain.CheckpointKey) []string {
	out := make([]string, 0, len(candidates))
	for _, date := range candidates {
		var stale bool
		switch stage {
		case domain.CheckpointLastFetch:
			stale = d.FetchStale(date)
		case domain.CheckpointLastNormalize:
			stale = d.NormalizeStale(date)
		case domain.CheckpointLastSummarize:
			stale = d.SummarizeStale(date)
		}
		if stale {
			out = append(out, date)
		}
	}
	return out
}

// Snapshot returns a read-only copy of every tracked date's state.
func (d *DailyState) Snapshot() map[string]domain.DailyStateEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]domain.DailyStateEntry, len(d.data))
	for k, v := range d.data {
		out[k] = v
	}
	return out
}
