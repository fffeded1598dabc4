package state

import (
	"path/filepath"
	"testing"
	"time"

	"workrecap/internal/domain"
)

func TestDailyState_FetchStaleDefaultsTrue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.json")
	d, err := NewDailyState(path)
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	if !d.FetchStale("2025-06-01") {
		t.Fatal("expected an unseen date to be fetch-stale")
	}
}

func TestDailyState_FetchStaleSameDayIsStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.json")
	d, err := NewDailyState(path)
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	sameDay, _ := time.Parse("2006-01-02", "2025-06-01")
	sameDay = sameDay.Add(9 * time.Hour)
	if err := d.Set("2025-06-01", domain.CheckpointLastFetch, sameDay); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !d.FetchStale("2025-06-01") {
		t.Fatal("expected a same-day fetch to remain stale (evening activity may post later)")
	}

	future, _ := time.Parse("2006-01-02", "2025-06-02")
	if err := d.Set("2025-06-01", domain.CheckpointLastFetch, future); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if d.FetchStale("2025-06-01") {
		t.Fatal("expected a next-day fetch timestamp to clear staleness")
	}
}

func TestDailyState_NormalizeStaleCascadesFromFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.json")
	d, err := NewDailyState(path)
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	if !d.NormalizeStale("2025-06-01") {
		t.Fatal("expected normalize-stale true before any fetch")
	}

	t0 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if err := d.Set("2025-06-01", domain.CheckpointLastFetch, t0); err != nil {
		t.Fatalf("Set fetch: %v", err)
	}
	if !d.NormalizeStale("2025-06-01") {
		t.Fatal("expected normalize-stale true when fetched but never normalized")
	}

	t1 := t0.Add(time.Hour)
	if err := d.Set("2025-06-01", domain.CheckpointLastNormalize, t1); err != nil {
		t.Fatalf("Set normalize: %v", err)
	}
	if d.NormalizeStale("2025-06-01") {
		t.Fatal("expected normalize-stale false once normalized after the fetch")
	}

	t2 := t1.Add(time.Hour)
	if err := d.Set("2025-06-01", domain.CheckpointLastFetch, t2); err != nil {
		t.Fatalf("Set re-fetch: %v", err)
	}
	if !d.NormalizeStale("2025-06-01") {
		t.Fatal("expected a later re-fetch to mark normalize stale again")
	}
}

func TestDailyState_SummarizeStaleCascadesFromNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.json")
	d, err := NewDailyState(path)
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	if !d.SummarizeStale("2025-06-01") {
		t.Fatal("expected summarize-stale true before any normalize")
	}

	t0 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if err := d.Set("2025-06-01", domain.CheckpointLastNormalize, t0); err != nil {
		t.Fatalf("Set normalize: %v", err)
	}
	if err := d.Set("2025-06-01", domain.CheckpointLastSummarize, t0.Add(time.Hour)); err != nil {
		t.Fatalf("Set summarize: %v", err)
	}
	if d.SummarizeStale("2025-06-01") {
		t.Fatal("expected summarize-stale false once summarized after normalize")
	}
}

func TestDailyState_StaleDatesFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.json")
	d, err := NewDailyState(path)
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	if err := d.Set("2025-06-01", domain.CheckpointLastFetch, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	candidates := []string{"2025-06-01", "2025-06-02"}
	stale := d.StaleDates(candidates, domain.CheckpointLastFetch)
	if len(stale) != 1 || stale[0] != "2025-06-02" {
		t.Fatalf("StaleDates = %v, want only 2025-06-02", stale)
	}
}
