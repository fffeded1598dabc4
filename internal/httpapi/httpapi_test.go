package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"workrecap/internal/domain"
	"workrecap/internal/platform/config"
	httpplat "workrecap/internal/platform/net/http"
	"workrecap/internal/services/layout"
	"workrecap/internal/state"
)

func newTestStores(t *testing.T) Stores {
	t.Helper()
	root := layout.New(t.TempDir())

	checkpoint, err := state.NewCheckpoint(root.StateDir() + "/checkpoints.json")
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	dailyState, err := state.NewDailyState(root.StateDir() + "/daily_state.json")
	if err != nil {
		t.Fatalf("NewDailyState: %v", err)
	}
	failedDate, err := state.NewFailedDate(root.StateDir() + "/failed_dates.json")
	if err != nil {
		t.Fatalf("NewFailedDate: %v", err)
	}
	batchJob, err := state.NewBatchJob(root.StateDir() + "/batch_jobs.json")
	if err != nil {
		t.Fatalf("NewBatchJob: %v", err)
	}
	return Stores{Checkpoint: checkpoint, DailyState: dailyState, FailedDate: failedDate, BatchJob: batchJob}
}

func newTestMux(t *testing.T) *chi.Mux {
	t.Helper()
	m := chi.NewRouter()
	Mount(httpplat.AdaptChi(m), newTestStores(t))
	return m
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) httpplat.Envelope {
	t.Helper()
	var env httpplat.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestStatusCheckpoint_ReturnsEmptySnapshotWhenNoneSet(t *testing.T) {
	m := newTestMux(t)
	req := httptest.NewRequest(http.MethodGet, "/status/checkpoint", nil)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data = %#v, want an empty object", env.Data)
	}
	if len(data) != 0 {
		t.Fatalf("Data = %#v, want empty", data)
	}
}

func TestStatusFailed_ReflectsRecordedFailures(t *testing.T) {
	stores := newTestStores(t)
	if err := stores.FailedDate.RecordFailure("2025-01-15", "fetch", errBoom{}); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	m := chi.NewRouter()
	Mount(httpplat.AdaptChi(m), stores)

	req := httptest.NewRequest(http.MethodGet, "/status/failed", nil)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, req)

	env := decodeEnvelope(t, rr)
	data, ok := env.Data.(map[string]any)
	if !ok || len(data) != 1 {
		t.Fatalf("Data = %#v, want one failed-date entry", env.Data)
	}
	if _, ok := data["2025-01-15"]; !ok {
		t.Fatalf("Data = %#v, want key 2025-01-15", data)
	}
}

func TestStatusBatches_ReflectsSavedJobs(t *testing.T) {
	stores := newTestStores(t)
	entry := domain.BatchJobEntry{
		Provider: "anthropic", Task: string(domain.TaskDaily),
		SubmittedAt: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
		Status:      domain.BatchInProgress, CustomIDPrefix: "daily-", Size: 3,
	}
	if err := stores.BatchJob.Save("batch-1", entry); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m := chi.NewRouter()
	Mount(httpplat.AdaptChi(m), stores)

	req := httptest.NewRequest(http.MethodGet, "/status/batches", nil)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, req)

	env := decodeEnvelope(t, rr)
	data, ok := env.Data.(map[string]any)
	if !ok || len(data) != 1 {
		t.Fatalf("Data = %#v, want one batch entry", env.Data)
	}
}

func TestNewServer_RoutesThroughStatusHandlers(t *testing.T) {
	srv := NewServer(config.New(), newTestStores(t))

	req := httptest.NewRequest(http.MethodGet, "/status/checkpoint", nil)
	rr := httptest.NewRecorder()
	srv.Router().Mux().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.RequestID == "" {
		t.Fatal("expected a request ID propagated from the middleware chain")
	}
}

func TestNewServer_RecoversPanicAsJSON500(t *testing.T) {
	stores := newTestStores(t)
	srv := NewServer(config.New(), stores)
	httpplat.GetJSON(srv.Router(), "/status/boom", func(*http.Request) (any, error) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/status/boom", nil)
	rr := httptest.NewRecorder()
	srv.Router().Mux().ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
