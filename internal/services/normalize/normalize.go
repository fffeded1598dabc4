// Package normalize transforms a date's raw pull-request/commit/issue files
// into an ordered Activity stream plus a per-day statistics rollup, with an
// optional LLM enrichment pass that tags each activity with an intent and a
// free-text change summary.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"workrecap/internal/adapters/llm"
	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
	"workrecap/internal/services/layout"
	"workrecap/internal/state"
)

// Chatter is the subset of the LLM Router's contract the Normaliser needs.
type Chatter interface {
	Chat(ctx context.Context, task domain.Task, systemPrompt, userContent string, opts llm.ChatOptions) (string, error)
}

// Options configures a Normaliser.
type Options struct {
	// IncludeSelfComments controls whether a user's own comments on their
	// own PR/issue count toward pr_commented/issue_commented. The zero value
	// is false; the CLI sets it from INCLUDE_SELF_COMMENTS, defaulting to
	// true (the richer-data behaviour).
	IncludeSelfComments bool
	EnableEnrichment    bool
	RetryCap            int
}

// Normaliser turns raw per-day files into activities.jsonl + stats.json.
type Normaliser struct {
	userLogin  string
	root       layout.Root
	dailyState *state.DailyState
	failedDate *state.FailedDate
	llm        Chatter
	opts       Options
	log        *logger.Logger
}

// New builds a Normaliser. llm may be nil when enrichment is disabled.
func New(userLogin string, root layout.Root, dailyState *state.DailyState, failedDate *state.FailedDate, llm Chatter, opts Options) *Normaliser {
	if opts.RetryCap < 1 {
		opts.RetryCap = 3
	}
	return &Normaliser{
		userLogin:  userLogin,
		root:       root,
		dailyState: dailyState,
		failedDate: failedDate,
		llm:        llm,
		opts:       opts,
		log:        logger.Named("normalize"),
	}
}

func (n *Normaliser) readRaw(date string) ([]domain.PullRequest, []domain.Commit, []domain.Issue, error) {
	var prs []domain.PullRequest
	if err := layout.ReadJSON(n.root.RawFile(date, "prs"), &prs); err != nil && perr.CodeOf(err) != perr.ErrorCodeNotFound {
		return nil, nil, nil, err
	}
	var commits []domain.Commit
	if err := layout.ReadJSON(n.root.RawFile(date, "commits"), &commits); err != nil && perr.CodeOf(err) != perr.ErrorCodeNotFound {
		return nil, nil, nil, err
	}
	var issues []domain.Issue
	if err := layout.ReadJSON(n.root.RawFile(date, "issues"), &issues); err != nil && perr.CodeOf(err) != perr.ErrorCodeNotFound {
		return nil, nil, nil, err
	}
	return prs, commits, issues, nil
}

// Normalize runs normalize(date, enrich?): builds the activity stream and
// stats block for date and writes them, optionally merging LLM enrichment.
func (n *Normaliser) Normalize(ctx context.Context, date string, enrich bool) error {
	prs, commits, issues, err := n.readRaw(date)
	if err != nil {
		return perr.NormalizeWrapf(err, perr.ErrorCodeUnknown, "read raw files for %s", date)
	}

	activities := buildActivities(n.userLogin, date, prs, commits, issues, n.opts.IncludeSelfComments)

	if enrich && n.opts.EnableEnrichment && n.llm != nil && len(activities) > 0 {
		if err := n.enrich(ctx, activities); err != nil {
			n.log.Warn().Err(err).Str("date", date).Msg("enrichment failed for date, continuing without intent/change_summary")
		}
	}

	stats := buildStats(date, activities)

	if err := layout.WriteJSONLines(n.root.ActivitiesFile(date), activities); err != nil {
		return perr.NormalizeWrapf(err, perr.ErrorCodeUnknown, "write activities for %s", date)
	}
	if err := layout.WriteJSON(n.root.StatsFile(date), stats); err != nil {
		return perr.NormalizeWrapf(err, perr.ErrorCodeUnknown, "write stats for %s", date)
	}
	if err := n.dailyState.Set(date, domain.CheckpointLastNormalize, time.Now()); err != nil {
		return err
	}
	return nil
}

// NormalizeRange runs normalize_range: applies the same skip/force/retry
// discipline as the Fetcher, driven by normalize-staleness.
func (n *Normaliser) NormalizeRange(ctx context.Context, dates []string, enrich, force bool) ([]domain.DateStatus, error) {
	candidates := dates
	if !force {
		stale := n.dailyState.StaleDates(dates, domain.CheckpointLastNormalize)
		failed := n.failedDate.Snapshot()
		var retryable []string
		for _, d := range n.failedDate.RetryableDates(dates, n.opts.RetryCap) {
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
	for _, date := range dates {
		if !candidateSet[date] {
			statuses = append(statuses, domain.DateStatus{Date: date, Status: domain.StatusSkipped})
			continue
		}
		if err := n.Normalize(ctx, date, enrich && !false); err != nil {
			_ = n.failedDate.RecordFailure(date, "normalize", err)
			statuses = append(statuses, domain.DateStatus{Date: date, Status: domain.StatusFailed, Error: err.Error()})
			continue
		}
		_ = n.failedDate.RecordSuccess(date)
		statuses = append(statuses, domain.DateStatus{Date: date, Status: domain.StatusSuccess})
	}
	return statuses, nil
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

// buildActivities applies the activity generation rules over one date's raw
// entities and returns the stable-sorted stream.
func buildActivities(user, date string, prs []domain.PullRequest, commits []domain.Commit, issues []domain.Issue, includeSelfComments bool) []domain.Activity {
	var out []domain.Activity

	for _, pr := range prs {
		out = append(out, activitiesForPR(user, date, pr, includeSelfComments)...)
	}
	for _, commit := range commits {
		if commit.CommittedAt.Format("2006-01-02") != date {
			continue
		}
		out = append(out, activityForCommit(commit))
	}
	for _, issue := range issues {
		out = append(out, activitiesForIssue(user, date, issue, includeSelfComments)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func activitiesForPR(user, date string, pr domain.PullRequest, includeSelfComments bool) []domain.Activity {
	var out []domain.Activity
	authored := pr.Author == user && pr.CreatedAt.Format("2006-01-02") == date
	if authored {
		out = append(out, domain.Activity{
			Timestamp: pr.CreatedAt,
			Kind:      domain.KindPRAuthored,
			Repo:      pr.Repo,
			ExternalID: pr.Number,
			Title:     pr.Title,
			URL:       pr.HTMLURL,
			Summary:   summaryForPR(pr, domain.KindPRAuthored),
			Files:     fileNames(pr.Files),
			Additions: sumAdditions(pr.Files),
			Deletions: sumDeletions(pr.Files),
			Labels:    pr.Labels,
			Body:      pr.Body,
		})
	} else {
		var reviewURLs []string
		var earliest time.Time
		for _, rv := range pr.Reviews {
			if rv.Author != user || rv.SubmittedAt.Format("2006-01-02") != date {
				continue
			}
			reviewURLs = append(reviewURLs, rv.URL)
			if earliest.IsZero() || rv.SubmittedAt.Before(earliest) {
				earliest = rv.SubmittedAt
			}
		}
		if len(reviewURLs) > 0 {
			var bodies []string
			for _, rv := range pr.Reviews {
				if rv.Author == user && rv.SubmittedAt.Format("2006-01-02") == date && rv.Body != "" {
					bodies = append(bodies, rv.Body)
				}
			}
			out = append(out, domain.Activity{
				Timestamp:    earliest,
				Kind:         domain.KindPRReviewed,
				Repo:         pr.Repo,
				ExternalID:   pr.Number,
				Title:        pr.Title,
				URL:          pr.HTMLURL,
				Summary:      summaryForPR(pr, domain.KindPRReviewed),
				EvidenceURLs: reviewURLs,
				ReviewBodies: bodies,
			})
		}
	}

	if includeSelfComments || !authored {
		var commentURLs []string
		var earliest time.Time
		for _, c := range pr.Comments {
			if c.Author != user || c.CreatedAt.Format("2006-01-02") != date {
				continue
			}
			commentURLs = append(commentURLs, c.URL)
			if earliest.IsZero() || c.CreatedAt.Before(earliest) {
				earliest = c.CreatedAt
			}
		}
		if len(commentURLs) > 0 {
			var bodies []string
			for _, c := range pr.Comments {
				if c.Author == user && c.CreatedAt.Format("2006-01-02") == date {
					bodies = append(bodies, c.Body)
				}
			}
			out = append(out, domain.Activity{
				Timestamp:     earliest,
				Kind:          domain.KindPRCommented,
				Repo:          pr.Repo,
				ExternalID:    pr.Number,
				Title:         pr.Title,
				URL:           pr.HTMLURL,
				Summary:       summaryForPR(pr, domain.KindPRCommented),
				EvidenceURLs:  commentURLs,
				CommentBodies: bodies,
			})
		}
	}
	return out
}

func activityForCommit(commit domain.Commit) domain.Activity {
	title := firstLine(commit.Message)
	return domain.Activity{
		Timestamp: commit.CommittedAt,
		Kind:      domain.KindCommit,
		Repo:      commit.Repo,
		Title:     title,
		URL:       commit.HTMLURL,
		SHA:       commit.SHA,
		Files:     fileNames(commit.Files),
		Additions: sumAdditions(commit.Files),
		Deletions: sumDeletions(commit.Files),
		Summary:   fmt.Sprintf("commit: %s (%s) +%d/-%d", title, commit.Repo, sumAdditions(commit.Files), sumDeletions(commit.Files)),
	}
}

func activitiesForIssue(user, date string, issue domain.Issue, includeSelfComments bool) []domain.Activity {
	var out []domain.Activity
	authored := issue.Author == user && issue.CreatedAt.Format("2006-01-02") == date
	if authored {
		out = append(out, domain.Activity{
			Timestamp:  issue.CreatedAt,
			Kind:       domain.KindIssueAuthored,
			Repo:       issue.Repo,
			ExternalID: issue.Number,
			Title:      issue.Title,
			URL:        issue.HTMLURL,
			Summary:    fmt.Sprintf("issue_authored: %s (%s)", issue.Title, issue.Repo),
			Labels:     issue.Labels,
			Body:       issue.Body,
		})
	}

	if includeSelfComments || !authored {
		var commentURLs []string
		var earliest time.Time
		for _, c := range issue.Comments {
			if c.Author != user || c.CreatedAt.Format("2006-01-02") != date {
				continue
			}
			commentURLs = append(commentURLs, c.URL)
			if earliest.IsZero() || c.CreatedAt.Before(earliest) {
				earliest = c.CreatedAt
			}
		}
		if len(commentURLs) > 0 {
			var bodies []string
			for _, c := range issue.Comments {
				if c.Author == user && c.CreatedAt.Format("2006-01-02") == date {
					bodies = append(bodies, c.Body)
				}
			}
			out = append(out, domain.Activity{
				Timestamp:     earliest,
				Kind:          domain.KindIssueCommented,
				Repo:          issue.Repo,
				ExternalID:    issue.Number,
				Title:         issue.Title,
				URL:           issue.HTMLURL,
				Summary:       fmt.Sprintf("issue_commented: %s (%s)", issue.Title, issue.Repo),
				EvidenceURLs:  commentURLs,
				CommentBodies: bodies,
			})
		}
	}
	return out
}

func firstLine(message string) string {
	line := message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		line = message[:idx]
	}
	const maxLen = 120
	r := []rune(line)
	if len(r) > maxLen {
		return string(r[:maxLen]) + "…"
	}
	return line
}

func fileNames(files []domain.FileChange) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Filename)
	}
	return out
}

func sumAdditions(files []domain.FileChange) int {
	total := 0
	for _, f := range files {
		total += f.Additions
	}
	return total
}

func sumDeletions(files []domain.FileChange) int {
	total := 0
	for _, f := range files {
		total += f.Deletions
	}
	return total
}

// summaryForPR renders the machine-generated one-liner. When the PR body is
// empty, it falls back to a path-based hint over the touched files.
func summaryForPR(pr domain.PullRequest, kind domain.ActivityKind) string {
	adds, dels := sumAdditions(pr.Files), sumDeletions(pr.Files)
	if strings.TrimSpace(pr.Body) != "" {
		return fmt.Sprintf("%s: %s (%s) +%d/-%d", kind, pr.Title, pr.Repo, adds, dels)
	}
	dirs := topLevelDirs(pr.Files)
	hint := "no files changed"
	if len(dirs) > 0 {
		const maxDirs = 3
		shown := dirs
		suffix := ""
		if len(dirs) > maxDirs {
			shown = dirs[:maxDirs]
			suffix = " and others"
		}
		hint = strings.Join(shown, ", ") + suffix
	}
	return fmt.Sprintf("%s: %s — %d files changed (%s) +%d/-%d", hint, pr.Title, len(pr.Files), pr.Repo, adds, dels)
}

// topLevelDirs returns the distinct top-level directories touched by files,
// in first-seen order.
func topLevelDirs(files []domain.FileChange) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range files {
		dir := path.Dir(f.Filename)
		top := strings.SplitN(dir, "/", 2)[0]
		if top == "." || top == "" {
			top = "(root)"
		}
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	return out
}

// buildStats aggregates the per-day statistics rollup from the activity
// stream.
func buildStats(date string, activities []domain.Activity) domain.DailyStats {
	stats := domain.DailyStats{Date: date}
	repoSet := map[string]bool{}

	for _, a := range activities {
		repoSet[a.Repo] = true
		switch a.Kind {
		case domain.KindPRAuthored:
			stats.GitHub.AuthoredCount++
			stats.GitHub.TotalAdditions += a.Additions
			stats.GitHub.TotalDeletions += a.Deletions
			stats.GitHub.AuthoredPRs = append(stats.GitHub.AuthoredPRs, domain.ItemRef{URL: a.URL, Title: a.Title, Repo: a.Repo})
		case domain.KindPRReviewed:
			stats.GitHub.ReviewedCount++
			stats.GitHub.ReviewedPRs = append(stats.GitHub.ReviewedPRs, domain.ItemRef{URL: a.URL, Title: a.Title, Repo: a.Repo})
		case domain.KindPRCommented:
			stats.GitHub.CommentedCount++
		case domain.KindCommit:
			stats.GitHub.CommitCount++
			stats.GitHub.TotalAdditions += a.Additions
			stats.GitHub.TotalDeletions += a.Deletions
			stats.GitHub.Commits = append(stats.GitHub.Commits, domain.CommitRef{URL: a.URL, Title: a.Title, Repo: a.Repo, SHA: a.SHA})
		case domain.KindIssueAuthored:
			stats.GitHub.AuthoredIssueCount++
			stats.GitHub.AuthoredIssues = append(stats.GitHub.AuthoredIssues, domain.ItemRef{URL: a.URL, Title: a.Title, Repo: a.Repo})
		case domain.KindIssueCommented:
			stats.GitHub.CommentedIssueCount++
		}
	}

	repos := make([]string, 0, len(repoSet))
	for r := range repoSet {
		repos = append(repos, r)
	}
	sort.Strings(repos)
	stats.GitHub.ReposTouched = repos
	return stats
}

// enrichEnvelope is one entry the LLM enrichment pass returns.
type enrichEnvelope struct {
	Index         int            `json:"index"`
	ChangeSummary string         `json:"change_summary"`
	Intent        domain.Intent  `json:"intent"`
}

const enrichSystemPrompt = `Classify each activity's development intent from
{bugfix, feature, refactor, docs, chore, test, config, perf, security, other}
and write a one-sentence change_summary. Return a JSON array of
{index, change_summary, intent} objects, one per input activity, in the same
order they were given.`

// enrich calls the LLM Router's enrich task and merges the results back by
// index. A malformed response degrades gracefully: activities keep their
// zero-value Intent/ChangeSummary.
func (n *Normaliser) enrich(ctx context.Context, activities []domain.Activity) error {
	userContent, err := renderEnrichmentInput(activities)
	if err != nil {
		return err
	}
	raw, err := n.llm.Chat(ctx, domain.TaskEnrich, enrichSystemPrompt, userContent, llm.ChatOptions{JSONMode: true, CacheSystemPrompt: true})
	if err != nil {
		return err
	}
	var entries []enrichEnvelope
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return perr.NormalizeWrapf(err, perr.ErrorCodeJSON, "parse enrichment response")
	}
	mergeEnrichment(activities, entries)
	return nil
}

func mergeEnrichment(activities []domain.Activity, entries []enrichEnvelope) {
	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(activities) {
			continue
		}
		summary := e.ChangeSummary
		activities[e.Index].ChangeSummary = &summary
		intent := e.Intent
		activities[e.Index].Intent = &intent
	}
}

type enrichmentItem struct {
	Index    int      `json:"index"`
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	Repo     string   `json:"repo"`
	Body     string   `json:"body,omitempty"`
	Files    []string `json:"files,omitempty"`
	Reviews  []string `json:"review_bodies,omitempty"`
	Comments []string `json:"comment_bodies,omitempty"`
}

func renderEnrichmentInput(activities []domain.Activity) (string, error) {
	items := make([]enrichmentItem, 0, len(activities))
	for i, a := range activities {
		items = append(items, enrichmentItem{
			Index:    i,
			Kind:     string(a.Kind),
			Title:    a.Title,
			Repo:     a.Repo,
			Body:     truncate(a.Body, 1000),
			Files:    a.Files,
			Reviews:  truncateAll(a.ReviewBodies, 500),
			Comments: truncateAll(a.CommentBodies, 500),
		})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", perr.NormalizeWrapf(err, perr.ErrorCodeUnknown, "encode enrichment request")
	}
	return string(b), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncateAll(in []string, n int) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = truncate(s, n)
	}
	return out
}
