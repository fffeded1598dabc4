package summarize

import (
	"fmt"
	"strings"
	"time"

	"workrecap/internal/domain"
	"workrecap/internal/services/layout"
)

const (
	maxBodyChars    = 1000
	maxSnippetChars = 500
	maxSnippetItems = 3
	maxFilesShown   = 8
)

// renderActivitiesBlock formats one date's activity stream as the daily
// template's user content: one header line per activity, plus indented
// detail lines for intent, change summary, touched files, body, and the
// first three review and comment snippets in stored order.
func renderActivitiesBlock(activities []domain.Activity) string {
	if len(activities) == 0 {
		return "(no activity)"
	}
	var b strings.Builder
	for _, a := range activities {
		fmt.Fprintf(&b, "- [%s] %s (%s) +%d/-%d\n", a.Kind, a.Title, a.Repo, a.Additions, a.Deletions)
		if a.Intent != nil {
			fmt.Fprintf(&b, "  Intent: %s\n", *a.Intent)
		}
		if a.ChangeSummary != nil {
			fmt.Fprintf(&b, "  Change Summary: %s\n", *a.ChangeSummary)
		}
		if len(a.Files) > 0 {
			shown := a.Files
			overflow := 0
			if len(shown) > maxFilesShown {
				overflow = len(shown) - maxFilesShown
				shown = shown[:maxFilesShown]
			}
			line := "  Files: " + strings.Join(shown, ", ")
			if overflow > 0 {
				line += fmt.Sprintf(" (+%d more)", overflow)
			}
			b.WriteString(line + "\n")
		}
		if body := truncateRunes(a.Body, maxBodyChars); body != "" {
			fmt.Fprintf(&b, "  Body: %s\n", body)
		}
		for _, r := range firstN(a.ReviewBodies, maxSnippetItems) {
			fmt.Fprintf(&b, "  Review: %s\n", truncateRunes(r, maxSnippetChars))
		}
		for _, c := range firstN(a.CommentBodies, maxSnippetItems) {
			fmt.Fprintf(&b, "  Comment: %s\n", truncateRunes(c, maxSnippetChars))
		}
	}
	return b.String()
}

func renderStatsLine(stats domain.DailyStats) string {
	g := stats.GitHub
	return fmt.Sprintf("%d PRs authored, %d reviewed, %d commits, +%d/-%d across %d repos",
		g.AuthoredCount, g.ReviewedCount, g.CommitCount, g.TotalAdditions, g.TotalDeletions, len(g.ReposTouched))
}

func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

// dailySummaryPaths returns the daily-summary file path for each date.
func dailySummaryPaths(root layout.Root, dates []string) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = root.DailySummaryFile(d)
	}
	return out
}

// concatMarkdown reads every path that exists and joins their contents with
// a horizontal-rule separator. ok is false when nothing existed to read.
func concatMarkdown(paths []string) (string, bool) {
	var parts []string
	for _, p := range paths {
		content, err := layout.ReadMarkdown(p)
		if err != nil {
			continue
		}
		parts = append(parts, strings.TrimSpace(content))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n---\n\n"), true
}

// cascadeStale reports whether target is missing or older than the newest
// existing file among contributing.
func cascadeStale(contributing []string, target string) bool {
	targetMod, ok := layout.ModTime(target)
	if !ok {
		return true
	}
	for _, p := range contributing {
		mod, ok := layout.ModTime(p)
		if !ok {
			continue
		}
		if mod.After(targetMod) {
			return true
		}
	}
	return false
}

// weekDates returns the seven calendar dates (Monday..Sunday, "YYYY-MM-DD")
// of ISO (isoYear, isoWeek).
func weekDates(isoYear, isoWeek int) []string {
	jan4 := time.Date(isoYear, 1, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	weekStart := monday.AddDate(0, 0, (isoWeek-1)*7)

	out := make([]string, 7)
	for i := 0; i < 7; i++ {
		out[i] = weekStart.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

type isoWeekRef struct{ year, week int }

// monthWeeks returns the distinct ISO (year, week) pairs that overlap any
// day of (year, month), in chronological order.
func monthWeeks(year, month int) []isoWeekRef {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	seen := map[isoWeekRef]bool{}
	var out []isoWeekRef
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		y, w := d.ISOWeek()
		ref := isoWeekRef{y, w}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// isoWeeksInYear returns the number of ISO weeks in year (52 or 53).
func isoWeeksInYear(year int) int {
	dec28 := time.Date(year, 12, 28, 0, 0, 0, 0, time.UTC)
	_, week := dec28.ISOWeek()
	return week
}
