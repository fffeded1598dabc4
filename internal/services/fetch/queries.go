package fetch

import (
	"fmt"
	"time"
)

// dateRange renders a GitHub search date-qualifier range. since==until is a
// valid single-day range.
func dateRange(since, until string) string {
	if since == until {
		return since
	}
	return since + ".." + until
}

func prAuthorQuery(user, since, until string) string {
	return fmt.Sprintf("type:pr author:%s updated:%s", user, dateRange(since, until))
}

func prReviewedByQuery(user, since, until string) string {
	return fmt.Sprintf("type:pr reviewed-by:%s updated:%s", user, dateRange(since, until))
}

func prCommenterQuery(user, since, until string) string {
	return fmt.Sprintf("type:pr commenter:%s updated:%s", user, dateRange(since, until))
}

func commitQuery(user, since, until string) string {
	return fmt.Sprintf("author:%s committer-date:%s", user, dateRange(since, until))
}

func issueAuthorQuery(user, since, until string) string {
	return fmt.Sprintf("type:issue author:%s updated:%s", user, dateRange(since, until))
}

func issueCommenterQuery(user, since, until string) string {
	return fmt.Sprintf("type:issue commenter:%s updated:%s", user, dateRange(since, until))
}

// monthChunk is one [Since, Until] inclusive month-bounded slice of a range.
type monthChunk struct {
	Since string
	Until string
}

// monthlyChunks partitions [since, until] (inclusive, "YYYY-MM-DD") into
// calendar-month-bounded chunks.
func monthlyChunks(since, until string) ([]monthChunk, error) {
	start, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, fmt.Errorf("parse since %q: %w", since, err)
	}
	end, err := time.Parse("2006-01-02", until)
	if err != nil {
		return nil, fmt.Errorf("parse until %q: %w", until, err)
	}
	var chunks []monthChunk
	if end.Before(start) {
		return chunks, nil
	}
	cursor := start
	for !cursor.After(end) {
		monthEnd := time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
		chunkEnd := monthEnd
		if end.Before(chunkEnd) {
			chunkEnd = end
		}
		chunks = append(chunks, monthChunk{
			Since: cursor.Format("2006-01-02"),
			Until: chunkEnd.Format("2006-01-02"),
		})
		cursor = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks, nil
}

// datesBetween enumerates every "YYYY-MM-DD" date in [since, until] inclusive.
func datesBetween(since, until string) ([]string, error) {
	start, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, fmt.Errorf("parse since %q: %w", since, err)
	}
	end, err := time.Parse("2006-01-02", until)
	if err != nil {
		return nil, fmt.Errorf("parse until %q: %w", until, err)
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	return out, nil
}
