// Package fetch populates the raw per-day JSON files (pull requests,
// commits, issues) for one GitHub user by searching the host API and
// enriching every candidate item, chunking multi-year ranges into
// resumable, cacheable monthly slices.
package fetch

import (
	"context"
	"sort"
	"time"

	"workrecap/internal/adapters/host"
	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
	"workrecap/internal/services/layout"
	"workrecap/internal/state"
)

// Types selects which of the three axes a call touches. A nil/zero Types
// means "enable everything"; an explicit Types is authoritative over the
// individual flags below.
type Types struct {
	PRs      bool
	Commits  bool
	Issues   bool
	explicit bool
}

// NewTypes builds an explicit Types selection from a set of axis names
// ("prs", "commits", "issues"); unknown names are ignored.
func NewTypes(names ...string) Types {
	t := Types{explicit: true}
	for _, n := range names {
		switch n {
		case "prs":
			t.PRs = true
		case "commits":
			t.Commits = true
		case "issues":
			t.Issues = true
		}
	}
	return t
}

// AllTypes enables every axis.
func AllTypes() Types { return Types{PRs: true, Commits: true, Issues: true, explicit: true} }

func (t Types) orDefault() Types {
	if !t.explicit {
		return AllTypes()
	}
	return t
}

// Options configures a Fetcher.
type Options struct {
	UserLogin  string
	MaxWorkers int
	RetryCap   int
}

// Fetcher turns a date range into raw per-day JSON files via chunked search
// and per-item enrichment.
type Fetcher struct {
	pool     *host.Pool
	root     layout.Root
	opts     Options
	checkpoint *state.Checkpoint
	dailyState *state.DailyState
	failedDate *state.FailedDate
	progress   *state.FetchProgress
	log        *logger.Logger
}

// New builds a Fetcher.
func New(pool *host.Pool, root layout.Root, checkpoint *state.Checkpoint, dailyState *state.DailyState, failedDate *state.FailedDate, progress *state.FetchProgress, opts Options) *Fetcher {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.RetryCap < 1 {
		opts.RetryCap = 3
	}
	return &Fetcher{
		pool:       pool,
		root:       root,
		opts:       opts,
		checkpoint: checkpoint,
		dailyState: dailyState,
		failedDate: failedDate,
		progress:   progress,
		log:        logger.Named("fetch"),
	}
}

// rawBucket is the searched-and-deduped result set for one date or chunk,
// keyed the way the range path buckets by day.
type rawBucket struct {
	PRs      map[string]domain.PullRequest // by api-url
	Commits  []domain.Commit
	Issues   map[string]domain.Issue // by api-url
}

func newRawBucket() rawBucket {
	return rawBucket{PRs: map[string]domain.PullRequest{}, Issues: map[string]domain.Issue{}}
}

// searchAxes runs the enabled search axes over [since, until] and returns
// the deduped, unenriched candidates.
func (f *Fetcher) searchAxes(ctx context.Context, c *host.Client, types Types, since, until string) (rawBucket, error) {
	types = types.orDefault()
	bucket := newRawBucket()
	user := f.opts.UserLogin

	if types.PRs {
		queries := []string{prAuthorQuery(user, since, until), prCommenterQuery(user, since, until)}
		if reviewed, _, err := c.SearchPullRequests(ctx, prReviewedByQuery(user, since, until), 1, 100); err == nil {
			for _, pr := range reviewed {
				bucket.PRs[pr.APIURL] = pr
			}
		} else if perr.CodeOf(err) == perr.ErrorCodeValidation {
			f.log.Warn().Str("axis", "pr_reviewed_by").Msg("host rejected reviewed-by search qualifier (422); dropping axis, review activity will be inferred from enriched PRs found via other axes")
		} else {
			return bucket, err
		}
		for _, q := range queries {
			prs, _, err := c.SearchPullRequests(ctx, q, 1, 100)
			if err != nil {
				return bucket, err
			}
			for _, pr := range prs {
				bucket.PRs[pr.APIURL] = pr
			}
		}
	}

	if types.Commits {
		commits, _, err := c.SearchCommits(ctx, commitQuery(user, since, until), 1, 100)
		if err != nil {
			return bucket, err
		}
		bucket.Commits = commits
	}

	if types.Issues {
		for _, q := range []string{issueAuthorQuery(user, since, until), issueCommenterQuery(user, since, until)} {
			issues, _, err := c.SearchIssues(ctx, q, 1, 100)
			if err != nil {
				return bucket, err
			}
			for _, is := range issues {
				bucket.Issues[is.APIURL] = is
			}
		}
	}
	return bucket, nil
}

// enrichPR fetches the full detail for one PR candidate: files, issue
// comments, and reviews.
func (f *Fetcher) enrichPR(ctx context.Context, c *host.Client, pr domain.PullRequest) (domain.PullRequest, error) {
	detail, err := c.GetPR(ctx, pr.Repo, pr.Number)
	if err != nil {
		return pr, err
	}
	files, err := c.GetPRFiles(ctx, pr.Repo, pr.Number)
	if err != nil {
		return pr, err
	}
	comments, err := c.GetPRComments(ctx, pr.Repo, pr.Number)
	if err != nil {
		return pr, err
	}
	reviews, err := c.GetPRReviews(ctx, pr.Repo, pr.Number)
	if err != nil {
		return pr, err
	}
	detail.Files = files
	detail.Comments = filterNoiseComments(comments)
	detail.Reviews = filterNoiseReviews(reviews)
	return detail, nil
}

func (f *Fetcher) enrichCommit(ctx context.Context, c *host.Client, commit domain.Commit) (domain.Commit, error) {
	return c.GetCommit(ctx, commit.Repo, commit.SHA)
}

func (f *Fetcher) enrichIssue(ctx context.Context, c *host.Client, issue domain.Issue) (domain.Issue, error) {
	detail, err := c.GetIssue(ctx, issue.Repo, issue.Number)
	if err != nil {
		return issue, err
	}
	comments, err := c.GetIssueComments(ctx, issue.Repo, issue.Number)
	if err != nil {
		return issue, err
	}
	detail.Comments = filterNoiseComments(comments)
	return detail, nil
}

func filterNoiseComments(in []domain.Comment) []domain.Comment {
	out := make([]domain.Comment, 0, len(in))
	for _, c := range in {
		if isBotLogin(c.Author) || isNoiseComment(c.Body) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func filterNoiseReviews(in []domain.Review) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		if isBotLogin(r.Author) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// dayFiles is one date's enriched, write-ready output.
type dayFiles struct {
	PRs     []domain.PullRequest
	Commits []domain.Commit
	Issues  []domain.Issue
}

// enrichBucketForDate enriches every candidate in bucket, logging and
// skipping items whose enrichment call fails.
func (f *Fetcher) enrichBucketForDate(ctx context.Context, c *host.Client, bucket rawBucket) dayFiles {
	var out dayFiles
	for _, pr := range bucket.PRs {
		enriched, err := f.enrichPR(ctx, c, pr)
		if err != nil {
			f.log.Warn().Err(err).Str("repo", pr.Repo).Int("number", pr.Number).Msg("skipping pull request: enrichment failed")
			continue
		}
		out.PRs = append(out.PRs, enriched)
	}
	for _, commit := range bucket.Commits {
		enriched, err := f.enrichCommit(ctx, c, commit)
		if err != nil {
			f.log.Warn().Err(err).Str("repo", commit.Repo).Str("sha", commit.SHA).Msg("skipping commit: enrichment failed")
			continue
		}
		out.Commits = append(out.Commits, enriched)
	}
	for _, issue := range bucket.Issues {
		enriched, err := f.enrichIssue(ctx, c, issue)
		if err != nil {
			f.log.Warn().Err(err).Str("repo", issue.Repo).Int("number", issue.Number).Msg("skipping issue: enrichment failed")
			continue
		}
		out.Issues = append(out.Issues, enriched)
	}
	sort.Slice(out.PRs, func(i, j int) bool { return out.PRs[i].Number < out.PRs[j].Number })
	sort.Slice(out.Commits, func(i, j int) bool { return out.Commits[i].SHA < out.Commits[j].SHA })
	sort.Slice(out.Issues, func(i, j int) bool { return out.Issues[i].Number < out.Issues[j].Number })
	return out
}

func (f *Fetcher) writeDay(date string, df dayFiles) error {
	if err := layout.WriteJSON(f.root.RawFile(date, "prs"), df.PRs); err != nil {
		return err
	}
	if err := layout.WriteJSON(f.root.RawFile(date, "commits"), df.Commits); err != nil {
		return err
	}
	if err := layout.WriteJSON(f.root.RawFile(date, "issues"), df.Issues); err != nil {
		return err
	}
	return nil
}

// Fetch runs fetch(date, types?): search, enrich, filter noise, write the
// three raw files, and advance the checkpoint/daily-state on success.
func (f *Fetcher) Fetch(ctx context.Context, date string, types Types) error {
	c, release, err := f.pool.Acquire(ctx)
	if err != nil {
		return perr.FetchWrapf(err, perr.ErrorCodeUnavailable, "acquire host client for %s", date)
	}
	defer release()

	bucket, err := f.searchAxes(ctx, c, types, date, date)
	if err != nil {
		return perr.FetchWrapf(err, perr.ErrorCodeUnknown, "search axes for %s", date)
	}
	df := f.enrichBucketForDate(ctx, c, bucket)
	if err := f.writeDay(date, df); err != nil {
		return err
	}
	now := time.Now()
	if err := f.dailyState.Set(date, domain.CheckpointLastFetch, now); err != nil {
		return err
	}
	if _, err := f.checkpoint.Update(domain.CheckpointLastFetch, date); err != nil {
		return err
	}
	return nil
}

// FetchRange runs fetch_range(since, until, types?, force): monthly-chunked
// search with fetch-progress caching, day-bucketing, staleness filtering,
// and per-date enrichment, returning a status list.
func (f *Fetcher) FetchRange(ctx context.Context, since, until string, types Types, force bool) ([]domain.DateStatus, error) {
	chunks, err := monthlyChunks(since, until)
	if err != nil {
		return nil, perr.FetchWrapf(err, perr.ErrorCodeInvalidArgument, "partition range %s..%s", since, until)
	}

	perDate := map[string]rawBucket{}
	for _, chunk := range chunks {
		for _, kind := range []string{"prs", "commits", "issues"} {
			key := chunk.Since + ".." + chunk.Until + "/" + kind
			var cached rawBucket
			hit, err := f.progress.Load(key, &cached)
			if err != nil {
				return nil, err
			}
			var bucket rawBucket
			if hit {
				bucket = cached
			} else {
				c, release, err := f.pool.Acquire(ctx)
				if err != nil {
					return nil, perr.FetchWrapf(err, perr.ErrorCodeUnavailable, "acquire host client for chunk %s", key)
				}
				chunkTypes := NewTypes(kind)
				bucket, err = f.searchAxes(ctx, c, chunkTypes, chunk.Since, chunk.Until)
				release()
				if err != nil {
					return nil, perr.FetchWrapf(err, perr.ErrorCodeUnknown, "search chunk %s", key)
				}
				if err := f.progress.Save(key, bucket); err != nil {
					return nil, err
				}
			}
			bucketByDay(bucket, perDate)
		}
	}

	dates, err := datesBetween(since, until)
	if err != nil {
		return nil, perr.FetchWrapf(err, perr.ErrorCodeInvalidArgument, "enumerate dates %s..%s", since, until)
	}

	candidates := dates
	if !force {
		stale := f.dailyState.StaleDates(dates, domain.CheckpointLastFetch)
		failed := f.failedDate.Snapshot()
		var retryable []string
		for _, d := range f.failedDate.RetryableDates(dates, f.opts.RetryCap) {
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

	statuses := make([]domain.DateStatus, 0, len(dates))
	results := f.runDatesInPool(ctx, dates, candidateSet, perDate)
	statuses = append(statuses, results...)

	for _, chunk := range chunks {
		for _, kind := range []string{"prs", "commits", "issues"} {
			_ = f.progress.Clear(chunk.Since + ".." + chunk.Until + "/" + kind)
		}
	}
	return statuses, nil
}

// runDatesInPool fans out enrichment+write work for every date that needs
// it across opts.MaxWorkers goroutines, preserving input order in the
// returned status list.
func (f *Fetcher) runDatesInPool(ctx context.Context, dates []string, candidateSet map[string]bool, perDate map[string]rawBucket) []domain.DateStatus {
	statuses := make([]domain.DateStatus, len(dates))
	sem := make(chan struct{}, f.opts.MaxWorkers)
	done := make(chan struct{}, len(dates))

	for i, date := range dates {
		i, date := i, date
		if !candidateSet[date] {
			statuses[i] = domain.DateStatus{Date: date, Status: domain.StatusSkipped}
			done <- struct{}{}
			continue
		}
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- struct{}{} }()
			statuses[i] = f.fetchOneDateFromBucket(ctx, date, perDate[date])
		}()
	}
	for range dates {
		<-done
	}
	return statuses
}

func (f *Fetcher) fetchOneDateFromBucket(ctx context.Context, date string, bucket rawBucket) domain.DateStatus {
	c, release, err := f.pool.Acquire(ctx)
	if err != nil {
		_ = f.failedDate.RecordFailure(date, "fetch", err)
		return domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: err.Error()}
	}
	defer release()

	df := f.enrichBucketForDate(ctx, c, bucket)
	if err := f.writeDay(date, df); err != nil {
		_ = f.failedDate.RecordFailure(date, "fetch", err)
		return domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: err.Error()}
	}
	now := time.Now()
	if err := f.dailyState.Set(date, domain.CheckpointLastFetch, now); err != nil {
		_ = f.failedDate.RecordFailure(date, "fetch", err)
		return domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: err.Error()}
	}
	if _, err := f.checkpoint.Update(domain.CheckpointLastFetch, date); err != nil {
		_ = f.failedDate.RecordFailure(date, "fetch", err)
		return domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: err.Error()}
	}
	_ = f.failedDate.RecordSuccess(date)
	return domain.DateStatus{Date: date, Status: domain.StatusSuccess}
}

// bucketByDay splits a chunk-wide rawBucket into per-day buckets, merging
// into dst, using updated_at for PRs/issues and committer date for commits.
func bucketByDay(src rawBucket, dst map[string]rawBucket) {
	for url, pr := range src.PRs {
		date := pr.UpdatedAt.Format("2006-01-02")
		day := dst[date]
		if day.PRs == nil {
			day = newRawBucket()
		}
		day.PRs[url] = pr
		dst[date] = day
	}
	for _, commit := range src.Commits {
		date := commit.CommittedAt.Format("2006-01-02")
		day := dst[date]
		if day.PRs == nil {
			day = newRawBucket()
		}
		day.Commits = append(day.Commits, commit)
		dst[date] = day
	}
	for url, issue := range src.Issues {
		date := issue.UpdatedAt.Format("2006-01-02")
		day := dst[date]
		if day.PRs == nil {
			day = newRawBucket()
		}
		day.Issues[url] = issue
		dst[date] = day
	}
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
