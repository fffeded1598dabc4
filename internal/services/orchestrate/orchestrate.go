// Package orchestrate composes the fetch, normalize, and summarize services
// into the two entry points the CLI and HTTP status surface drive: a single
// day's full pipeline, and a date-range run with optional cascading
// weekly/monthly/yearly summaries.
package orchestrate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
	"workrecap/internal/services/fetch"
	"workrecap/internal/services/normalize"
	"workrecap/internal/services/summarize"
)

const (
	stepFetch     = "fetch"
	stepNormalize = "normalize"
	stepSummarize = "summarize"
)

// RangeOptions configures a range run.
type RangeOptions struct {
	Force      bool
	Types      fetch.Types
	MaxWorkers int
	Batch      bool
	Enrich     bool
	Weekly     bool
	Monthly    bool
	Yearly     bool
}

// Orchestrator wires the three stage services together.
type Orchestrator struct {
	fetcher    *fetch.Fetcher
	normaliser *normalize.Normaliser
	summariser *summarize.Summariser
	log        *logger.Logger
}

// New builds an Orchestrator over already-constructed stage services.
func New(fetcher *fetch.Fetcher, normaliser *normalize.Normaliser, summariser *summarize.Summariser) *Orchestrator {
	return &Orchestrator{fetcher: fetcher, normaliser: normaliser, summariser: summariser, log: logger.Named("orchestrate")}
}

// RunDaily executes Fetcher -> Normaliser -> Summariser.Daily in order for
// one date. Any stage error is rewrapped as a *perr.StepFailedError naming
// the step that failed; outputs already written by prior stages are left in
// place.
func (o *Orchestrator) RunDaily(ctx context.Context, date string, types fetch.Types) error {
	if err := o.fetcher.Fetch(ctx, date, types); err != nil {
		return perr.NewStepFailed(stepFetch, err)
	}
	if err := o.normaliser.Normalize(ctx, date, true); err != nil {
		return perr.NewStepFailed(stepNormalize, err)
	}
	if err := o.summariser.Daily(ctx, date, false); err != nil {
		return perr.NewStepFailed(stepSummarize, err)
	}
	return nil
}

// RunRange executes the three services' own range methods in sequence
// (fetch the whole range, then normalize the whole range, then summarize
// the whole range), each service handling its own skip/force/retry
// discipline. When weekly/monthly/yearly flags are set, the corresponding
// Summariser cascade methods run afterward, provided the daily pipeline
// reported no failures — cascading over ISO weeks/months/years touched by
// the range. --yearly implies weekly and monthly first.
func (o *Orchestrator) RunRange(ctx context.Context, since, until string, opts RangeOptions) ([]domain.DateStatus, error) {
	dates, err := datesBetween(since, until)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With().Str("run_id", runID).Logger()
	log.Info().Str("since", since).Str("until", until).Int("days", len(dates)).Msg("range run starting")

	fetchStatuses, err := o.fetcher.FetchRange(ctx, since, until, opts.Types, opts.Force)
	if err != nil {
		return nil, perr.NewStepFailed(stepFetch, err)
	}
	normalizeStatuses, err := o.normaliser.NormalizeRange(ctx, dates, opts.Enrich, opts.Force)
	if err != nil {
		return nil, perr.NewStepFailed(stepNormalize, err)
	}
	statuses, err := o.summariser.DailyRange(ctx, dates, opts.Force, opts.Batch)
	if err != nil {
		return nil, perr.NewStepFailed(stepSummarize, err)
	}

	if anyFailed(fetchStatuses) || anyFailed(normalizeStatuses) || anyFailed(statuses) {
		log.Warn().Msg("daily pipeline reported failures, skipping weekly/monthly/yearly cascade")
		return statuses, nil
	}

	if opts.Yearly {
		opts.Weekly = true
		opts.Monthly = true
	}
	if opts.Weekly {
		if err := o.cascadeWeekly(ctx, dates, opts.Force); err != nil {
			return statuses, perr.NewStepFailed(stepSummarize, err)
		}
	}
	if opts.Monthly {
		if err := o.cascadeMonthly(ctx, dates, opts.Force); err != nil {
			return statuses, perr.NewStepFailed(stepSummarize, err)
		}
	}
	if opts.Yearly {
		if err := o.cascadeYearly(ctx, dates, opts.Force); err != nil {
			return statuses, perr.NewStepFailed(stepSummarize, err)
		}
	}
	return statuses, nil
}

func anyFailed(statuses []domain.DateStatus) bool {
	for _, s := range statuses {
		if s.Status == domain.StatusFailed {
			return true
		}
	}
	return false
}

type isoWeekRef struct{ year, week int }
type yearMonthRef struct{ year, month int }

func (o *Orchestrator) cascadeWeekly(ctx context.Context, dates []string, force bool) error {
	seen := map[isoWeekRef]bool{}
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		y, w := t.ISOWeek()
		ref := isoWeekRef{y, w}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if err := o.summariser.Weekly(ctx, y, w, force); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) cascadeMonthly(ctx context.Context, dates []string, force bool) error {
	seen := map[yearMonthRef]bool{}
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		ref := yearMonthRef{t.Year(), int(t.Month())}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if err := o.summariser.Monthly(ctx, ref.year, ref.month, force); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) cascadeYearly(ctx context.Context, dates []string, force bool) error {
	seen := map[int]bool{}
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if seen[t.Year()] {
			continue
		}
		seen[t.Year()] = true
		if err := o.summariser.Yearly(ctx, t.Year(), force); err != nil {
			return err
		}
	}
	return nil
}

func datesBetween(since, until string) ([]string, error) {
	start, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, perr.InvalidArgf("invalid since date %q", since)
	}
	end, err := time.Parse("2006-01-02", until)
	if err != nil {
		return nil, perr.InvalidArgf("invalid until date %q", until)
	}
	var out []string
	if end.Before(start) {
		return out, nil
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	return out, nil
}
