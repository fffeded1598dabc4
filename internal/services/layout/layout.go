// Package layout names and writes the canonical on-disk file layout shared
// by the fetch, normalize, and summarize stage services: raw per-day JSON,
// normalised activity streams, and hierarchical Markdown summaries, all
// rooted under one data directory.
package layout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	perr "workrecap/internal/platform/errors"
)

// Root is the data directory containing raw/, normalized/, summaries/, and
// state/ subtrees.
type Root struct {
	Dir string
}

// New returns a Root rooted at dir.
func New(dir string) Root { return Root{Dir: dir} }

func (r Root) ymd(date string) (string, string, string) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		// Callers validate dates upstream; fall back to string slicing so a
		// malformed date still produces a deterministic (if wrong) path
		// instead of panicking deep in the write path.
		if len(date) >= 10 {
			return date[0:4], date[5:7], date[8:10]
		}
		return date, date, date
	}
	return t.Format("2006"), t.Format("01"), t.Format("02")
}

// RawDir returns data/raw/{YYYY}/{MM}/{DD}.
func (r Root) RawDir(date string) string {
	y, m, d := r.ymd(date)
	return filepath.Join(r.Dir, "raw", y, m, d)
}

// RawFile returns the path for one of "prs", "commits", "issues".
func (r Root) RawFile(date, kind string) string {
	return filepath.Join(r.RawDir(date), kind+".json")
}

// NormalizedDir returns data/normalized/{YYYY}/{MM}/{DD}.
func (r Root) NormalizedDir(date string) string {
	y, m, d := r.ymd(date)
	return filepath.Join(r.Dir, "normalized", y, m, d)
}

// ActivitiesFile returns the activities.jsonl path for date.
func (r Root) ActivitiesFile(date string) string {
	return filepath.Join(r.NormalizedDir(date), "activities.jsonl")
}

// StatsFile returns the stats.json path for date.
func (r Root) StatsFile(date string) string {
	return filepath.Join(r.NormalizedDir(date), "stats.json")
}

// DailySummaryFile returns data/summaries/{YYYY}/daily/{MM}-{DD}.md.
func (r Root) DailySummaryFile(date string) string {
	y, m, d := r.ymd(date)
	return filepath.Join(r.Dir, "summaries", y, "daily", m+"-"+d+".md")
}

// WeeklySummaryFile returns data/summaries/{YYYY}/weekly/W{NN}.md.
func (r Root) WeeklySummaryFile(year int, week int) string {
	return filepath.Join(r.Dir, "summaries", fmt.Sprintf("%04d", year), "weekly", fmt.Sprintf("W%02d.md", week))
}

// MonthlySummaryFile returns data/summaries/{YYYY}/monthly/{MM}.md.
func (r Root) MonthlySummaryFile(year, month int) string {
	return filepath.Join(r.Dir, "summaries", fmt.Sprintf("%04d", year), "monthly", fmt.Sprintf("%02d.md", month))
}

// YearlySummaryFile returns data/summaries/{YYYY}/yearly.md.
func (r Root) YearlySummaryFile(year int) string {
	return filepath.Join(r.Dir, "summaries", fmt.Sprintf("%04d", year), "yearly.md")
}

// StateDir returns data/state.
func (r Root) StateDir() string {
	return filepath.Join(r.Dir, "state")
}

// FetchProgressDir returns data/state/fetch_progress.
func (r Root) FetchProgressDir() string {
	return filepath.Join(r.StateDir(), "fetch_progress")
}

// WriteJSON atomically writes v as indented JSON to path, creating parent
// directories as needed.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.StorageErrorf(err, "create directory for %s", path)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return perr.StorageErrorf(err, "create temp file %s", tmp)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return perr.StorageErrorf(err, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return perr.StorageErrorf(err, "close temp file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.StorageErrorf(err, "rename temp file into place at %s", path)
	}
	return nil
}

// ReadJSON decodes path into v. Returns an *perr.Error with ErrorCodeNotFound
// when the file does not exist.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return perr.Newf(perr.ErrorCodeNotFound, "%s does not exist", path)
	}
	if err != nil {
		return perr.StorageErrorf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return perr.StorageErrorf(err, "decode %s", path)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ModTime returns path's modification time and whether it exists.
func ModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// WriteJSONLines atomically writes one JSON-encoded line per element of rows.
func WriteJSONLines[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.StorageErrorf(err, "create directory for %s", path)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return perr.StorageErrorf(err, "create temp file %s", tmp)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return perr.StorageErrorf(err, "encode line in %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return perr.StorageErrorf(err, "flush %s", tmp)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return perr.StorageErrorf(err, "close temp file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.StorageErrorf(err, "rename temp file into place at %s", path)
	}
	return nil
}

// ReadJSONLines decodes path's newline-delimited JSON records into a slice.
func ReadJSONLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, perr.Newf(perr.ErrorCodeNotFound, "%s does not exist", path)
	}
	if err != nil {
		return nil, perr.StorageErrorf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var out []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, perr.StorageErrorf(err, "decode line in %s", path)
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, perr.StorageErrorf(err, "scan %s", path)
	}
	return out, nil
}

// WriteMarkdown atomically writes content to path.
func WriteMarkdown(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.StorageErrorf(err, "create directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return perr.StorageErrorf(err, "write temp file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.StorageErrorf(err, "rename temp file into place at %s", path)
	}
	return nil
}

// ReadMarkdown reads path's content as a string.
func ReadMarkdown(path string) (string, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", perr.Newf(perr.ErrorCodeNotFound, "%s does not exist", path)
	}
	if err != nil {
		return "", perr.StorageErrorf(err, "read %s", path)
	}
	return string(b), nil
}
