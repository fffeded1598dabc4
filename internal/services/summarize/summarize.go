// Package summarize renders Markdown recaps at four hierarchical levels —
// daily, weekly, monthly, yearly — from the Normaliser's activity stream and
// from each other, plus an ad-hoc question-answering query mode, all driven
// through the LLM Router with cache-friendly prompt splitting.
package summarize

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"workrecap/internal/adapters/llm"
	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
	"workrecap/internal/services/layout"
	"workrecap/internal/state"
)

// now is a seam for tests (see testkit.Swap).
var now = time.Now

// Router is the subset of adapters/llm.Router the Summariser needs.
type Router interface {
	Chat(ctx context.Context, task domain.Task, systemPrompt, userContent string, opts llm.ChatOptions) (string, error)
	SubmitBatch(ctx context.Context, task domain.Task, requests []domain.BatchChatRequest) (string, error)
	WaitForBatch(ctx context.Context, task domain.Task, batchID string, size int) ([]domain.BatchChatResult, error)
}

// Options configures a Summariser.
type Options struct {
	MaxWorkers int
	RetryCap   int
	MonthsBack int // default window for Query's monthly-context lookback
	MaxTokens  int
}

// Summariser renders and caches Markdown recaps.
type Summariser struct {
	root       layout.Root
	router     Router
	dailyState *state.DailyState
	failedDate *state.FailedDate
	batchJob   *state.BatchJob
	opts       Options
	log        *logger.Logger
}

// New builds a Summariser.
func New(root layout.Root, router Router, dailyState *state.DailyState, failedDate *state.FailedDate, batchJob *state.BatchJob, opts Options) *Summariser {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.RetryCap < 1 {
		opts.RetryCap = 3
	}
	if opts.MonthsBack < 1 {
		opts.MonthsBack = 3
	}
	return &Summariser{
		root: root, router: router, dailyState: dailyState, failedDate: failedDate, batchJob: batchJob,
		opts: opts, log: logger.Named("summarize"),
	}
}

// Daily renders the daily recap for date. force bypasses the
// already-summarized check (daily has no cascade input, so "staleness" is
// simply "has this date already been summarized since its last normalize").
func (s *Summariser) Daily(ctx context.Context, date string, force bool) error {
	if !force && !s.dailyState.SummarizeStale(date) {
		return nil
	}
	activities, err := layout.ReadJSONLines[domain.Activity](s.root.ActivitiesFile(date))
	if err != nil && perr.CodeOf(err) != perr.ErrorCodeNotFound {
		return perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "read activities for %s", date)
	}
	var stats domain.DailyStats
	if err := layout.ReadJSON(s.root.StatsFile(date), &stats); err != nil && perr.CodeOf(err) != perr.ErrorCodeNotFound {
		return perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "read stats for %s", date)
	}

	system, userTmpl := splitTemplate(dailyTemplate)
	user := strings.NewReplacer(
		"{{DATE}}", date,
		"{{ACTIVITIES}}", renderActivitiesBlock(activities),
		"{{STATS}}", renderStatsLine(stats),
	).Replace(userTmpl)

	md, err := s.router.Chat(ctx, domain.TaskDaily, system, user, llm.ChatOptions{CacheSystemPrompt: true, MaxTokens: s.opts.MaxTokens})
	if err != nil {
		return perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "render daily summary for %s", date)
	}
	if err := layout.WriteMarkdown(s.root.DailySummaryFile(date), md); err != nil {
		return err
	}
	return s.dailyState.Set(date, domain.CheckpointLastSummarize, now())
}

// DailyRange renders the daily recap for every date in dates, either through
// a bounded worker pool or, when batch is true, as a single provider batch.
func (s *Summariser) DailyRange(ctx context.Context, dates []string, force, batch bool) ([]domain.DateStatus, error) {
	candidates := dates
	if !force {
		stale := s.dailyState.StaleDates(dates, domain.CheckpointLastSummarize)
		failed := s.failedDate.Snapshot()
		var retryable []string
		for _, d := range s.failedDate.RetryableDates(dates, s.opts.RetryCap) {
			if _, ok := failed[d]; ok {
				retryable = append(retryable, d)
			}
		}
		candidates = unionDates(stale, retryable)
	}
	candidateSet := make(map[string]bool, len(candidates))
	for _, d := range candidates {
		candidateSet[d] = true
	}

	if batch {
		return s.dailyRangeBatch(ctx, dates, candidateSet)
	}
	return s.dailyRangePool(ctx, dates, candidateSet)
}

func (s *Summariser) dailyRangePool(ctx context.Context, dates []string, candidateSet map[string]bool) ([]domain.DateStatus, error) {
	statuses := make([]domain.DateStatus, len(dates))
	sem := make(chan struct{}, s.opts.MaxWorkers)
	done := make(chan struct{}, len(dates))

	for i, date := range dates {
		if !candidateSet[date] {
			statuses[i] = domain.DateStatus{Date: date, Status: domain.StatusSkipped}
			done <- struct{}{}
			continue
		}
		i, date := i, date
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			if err := s.Daily(ctx, date, true); err != nil {
				_ = s.failedDate.RecordFailure(date, "summarize", err)
				statuses[i] = domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: err.Error()}
				return
			}
			_ = s.failedDate.RecordSuccess(date)
			statuses[i] = domain.DateStatus{Date: date, Status: domain.StatusSuccess}
		}()
	}
	for range dates {
		<-done
	}
	return statuses, nil
}

func (s *Summariser) dailyRangeBatch(ctx context.Context, dates []string, candidateSet map[string]bool) ([]domain.DateStatus, error) {
	statuses := make([]domain.DateStatus, len(dates))
	statusByDate := map[string]*domain.DateStatus{}
	var requests []domain.BatchChatRequest
	system, userTmpl := splitTemplate(dailyTemplate)

	for i, date := range dates {
		if !candidateSet[date] {
			statuses[i] = domain.DateStatus{Date: date, Status: domain.StatusSkipped}
			continue
		}
		statuses[i] = domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: "not processed"}
		statusByDate[date] = &statuses[i]

		activities, err := layout.ReadJSONLines[domain.Activity](s.root.ActivitiesFile(date))
		if err != nil && perr.CodeOf(err) != perr.ErrorCodeNotFound {
			statuses[i].Error = err.Error()
			continue
		}
		var stats domain.DailyStats
		_ = layout.ReadJSON(s.root.StatsFile(date), &stats)

		user := strings.NewReplacer(
			"{{DATE}}", date,
			"{{ACTIVITIES}}", renderActivitiesBlock(activities),
			"{{STATS}}", renderStatsLine(stats),
		).Replace(userTmpl)

		requests = append(requests, domain.BatchChatRequest{
			CustomID: "daily-" + date, SystemPrompt: system, UserContent: user,
			CacheSystemPrompt: true, MaxTokens: s.opts.MaxTokens,
		})
	}

	if len(requests) == 0 {
		return statuses, nil
	}

	batchID, err := s.router.SubmitBatch(ctx, domain.TaskDaily, requests)
	if err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "submit daily batch")
	}
	if s.batchJob != nil {
		_ = s.batchJob.Save(batchID, domain.BatchJobEntry{
			Provider: "", Task: string(domain.TaskDaily), SubmittedAt: now(),
			Status: domain.BatchInProgress, CustomIDPrefix: "daily-", Size: len(requests),
		})
	}

	results, err := s.router.WaitForBatch(ctx, domain.TaskDaily, batchID, len(requests))
	if err != nil {
		if s.batchJob != nil {
			_ = s.batchJob.UpdateStatus(batchID, domain.BatchFailed)
		}
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "await daily batch %s", batchID)
	}
	if s.batchJob != nil {
		_ = s.batchJob.UpdateStatus(batchID, domain.BatchCompleted)
	}

	for _, res := range results {
		date := strings.TrimPrefix(res.CustomID, "daily-")
		st, ok := statusByDate[date]
		if !ok {
			continue
		}
		if res.Err != nil {
			st.Status, st.Error = domain.StatusFailed, res.Err.Error()
			_ = s.failedDate.RecordFailure(date, "summarize", res.Err)
			continue
		}
		if err := layout.WriteMarkdown(s.root.DailySummaryFile(date), res.Content); err != nil {
			st.Status, st.Error = domain.StatusFailed, err.Error()
			_ = s.failedDate.RecordFailure(date, "summarize", err)
			continue
		}
		_ = s.dailyState.Set(date, domain.CheckpointLastSummarize, now())
		_ = s.failedDate.RecordSuccess(date)
		st.Status, st.Error = domain.StatusSuccess, ""
	}
	return statuses, nil
}

// Weekly renders the weekly recap covering the ISO (isoYear, isoWeek).
func (s *Summariser) Weekly(ctx context.Context, isoYear, isoWeek int, force bool) error {
	dates := weekDates(isoYear, isoWeek)
	target := s.root.WeeklySummaryFile(isoYear, isoWeek)
	contributing := dailySummaryPaths(s.root, dates)
	if !force && !cascadeStale(contributing, target) {
		return nil
	}
	content, ok := concatMarkdown(contributing)
	if !ok {
		return perr.SummarizeErrorf(perr.ErrorCodeNotFound, "no daily summaries available for week %d-W%02d", isoYear, isoWeek)
	}

	system, userTmpl := splitTemplate(weeklyTemplate)
	user := strings.NewReplacer(
		"{{WEEK}}", fmt.Sprintf("%04d-W%02d", isoYear, isoWeek),
		"{{CONTENT}}", content,
	).Replace(userTmpl)

	md, err := s.router.Chat(ctx, domain.TaskWeekly, system, user, llm.ChatOptions{CacheSystemPrompt: true, MaxTokens: s.opts.MaxTokens})
	if err != nil {
		return perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "render weekly summary for %d-W%02d", isoYear, isoWeek)
	}
	return layout.WriteMarkdown(target, md)
}

// Monthly renders the monthly recap, collecting every ISO week overlapping
// (year, month).
func (s *Summariser) Monthly(ctx context.Context, year, month int, force bool) error {
	weeks := monthWeeks(year, month)
	target := s.root.MonthlySummaryFile(year, month)

	var contributing []string
	for _, w := range weeks {
		contributing = append(contributing, s.root.WeeklySummaryFile(w.year, w.week))
	}
	if !force && !cascadeStale(contributing, target) {
		return nil
	}
	content, ok := concatMarkdown(contributing)
	if !ok {
		return perr.SummarizeErrorf(perr.ErrorCodeNotFound, "no weekly summaries available for %04d-%02d", year, month)
	}

	system, userTmpl := splitTemplate(monthlyTemplate)
	user := strings.NewReplacer(
		"{{MONTH}}", fmt.Sprintf("%04d-%02d", year, month),
		"{{CONTENT}}", content,
	).Replace(userTmpl)

	md, err := s.router.Chat(ctx, domain.TaskMonthly, system, user, llm.ChatOptions{CacheSystemPrompt: true, MaxTokens: s.opts.MaxTokens})
	if err != nil {
		return perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "render monthly summary for %04d-%02d", year, month)
	}
	return layout.WriteMarkdown(target, md)
}

// Yearly renders the yearly recap from the twelve monthly summaries.
func (s *Summariser) Yearly(ctx context.Context, year int, force bool) error {
	target := s.root.YearlySummaryFile(year)
	var contributing []string
	for m := 1; m <= 12; m++ {
		contributing = append(contributing, s.root.MonthlySummaryFile(year, m))
	}
	if !force && !cascadeStale(contributing, target) {
		return nil
	}
	content, ok := concatMarkdown(contributing)
	if !ok {
		return perr.SummarizeErrorf(perr.ErrorCodeNotFound, "no monthly summaries available for %04d", year)
	}

	system, userTmpl := splitTemplate(yearlyTemplate)
	user := strings.NewReplacer(
		"{{YEAR}}", strconv.Itoa(year),
		"{{CONTENT}}", content,
	).Replace(userTmpl)

	md, err := s.router.Chat(ctx, domain.TaskYearly, system, user, llm.ChatOptions{CacheSystemPrompt: true, MaxTokens: s.opts.MaxTokens})
	if err != nil {
		return perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "render yearly summary for %04d", year)
	}
	return layout.WriteMarkdown(target, md)
}

// Query answers question using the most recent monthsBack monthly summaries
// as context, falling back to weeklies then dailies when no monthlies exist.
// monthsBack <= 0 uses the Summariser's configured default.
func (s *Summariser) Query(ctx context.Context, question string, monthsBack int) (string, error) {
	if monthsBack <= 0 {
		monthsBack = s.opts.MonthsBack
	}
	content, err := s.queryContext(monthsBack)
	if err != nil {
		return "", err
	}

	system, userTmpl := splitTemplate(queryTemplate)
	user := strings.NewReplacer("{{CONTENT}}", content, "{{QUESTION}}", question).Replace(userTmpl)

	answer, err := s.router.Chat(ctx, domain.TaskQuery, system, user, llm.ChatOptions{MaxTokens: s.opts.MaxTokens})
	if err != nil {
		return "", perr.SummarizeWrapf(err, perr.ErrorCodeUnknown, "answer query")
	}
	return answer, nil
}

// queryContext walks backward from today collecting monthly summaries first,
// falling back to weekly then daily when no monthlies exist at all.
func (s *Summariser) queryContext(monthsBack int) (string, error) {
	today := now()

	var monthly []string
	y, m := today.Year(), int(today.Month())
	for i := 0; i < monthsBack; i++ {
		monthly = append(monthly, s.root.MonthlySummaryFile(y, m))
		m--
		if m == 0 {
			m, y = 12, y-1
		}
	}
	if content, ok := concatMarkdown(monthly); ok {
		return content, nil
	}

	var weekly []string
	isoYear, isoWeek := today.ISOWeek()
	for i := 0; i < monthsBack*4; i++ {
		weekly = append(weekly, s.root.WeeklySummaryFile(isoYear, isoWeek))
		isoWeek--
		if isoWeek == 0 {
			isoYear--
			isoWeek = isoWeeksInYear(isoYear)
		}
	}
	if content, ok := concatMarkdown(weekly); ok {
		return content, nil
	}

	var daily []string
	for i := 0; i < monthsBack*30; i++ {
		d := today.AddDate(0, 0, -i).Format("2006-01-02")
		daily = append(daily, s.root.DailySummaryFile(d))
	}
	if content, ok := concatMarkdown(daily); ok {
		return content, nil
	}

	return "", perr.SummarizeErrorf(perr.ErrorCodeNotFound, "no summary context available for query")
}

func unionDates(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, d := range a {
		set[d] = true
	}
	for _, d := range b {
		set[d] = true
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
