// Package httpapi exposes a thin, read-only status surface over the
// pipeline's on-disk state stores: current checkpoints, per-date staleness,
// failed dates awaiting retry, and in-flight provider batch jobs. It never
// triggers a pipeline run itself — RunDaily/RunRange stay CLI-only.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"workrecap/internal/platform/config"
	httpplat "workrecap/internal/platform/net/http"
	platmw "workrecap/internal/platform/net/middleware"
	"workrecap/internal/state"
)

// Stores bundles the read-only state accessors the status routes serve.
type Stores struct {
	Checkpoint *state.Checkpoint
	DailyState *state.DailyState
	FailedDate *state.FailedDate
	BatchJob   *state.BatchJob
}

// NewServer builds an httpplat.Server with the status routes mounted behind
// the platform's request-ID/recover/CORS/access-log middleware stack. A
// panic in any handler is converted to a JSON 500 by platmw.RecoverJSON
// rather than crashing the listener. /debug/pprof is mounted when
// ENABLE_PROFILER is set, for inspecting a long-running serve process.
func NewServer(cfg config.Conf, stores Stores) *httpplat.Server {
	return httpplat.NewServer(cfg, func(m *chi.Mux) {
		m.Use(platmw.RealIP())
		m.Use(platmw.RequestID())
		m.Use(platmw.RecoverJSON)
		m.Use(platmw.Timeout(30 * time.Second))
		m.Use(platmw.CORS(platmw.CORSOptions{AllowedMethods: []string{http.MethodGet}}))
		m.Use(platmw.AccessLogZerolog(platmw.AccessLogOptions{}))

		router := httpplat.AdaptChi(m)
		httpplat.MountProfiler(router, "/debug", cfg.MayBool("ENABLE_PROFILER", false))
		Mount(router, stores)
	})
}

// Mount registers the status routes on an already-built router, so callers
// that assemble their own chi.Mux (tests, or a larger service composing
// multiple route groups) can reuse the handlers directly.
func Mount(r httpplat.Router, stores Stores) {
	r.Route("/status", func(sub httpplat.Router) {
		httpplat.GetJSON(sub, "/checkpoint", checkpointHandler(stores.Checkpoint))
		httpplat.GetJSON(sub, "/daily", dailyStateHandler(stores.DailyState))
		httpplat.GetJSON(sub, "/failed", failedDateHandler(stores.FailedDate))
		httpplat.GetJSON(sub, "/batches", batchJobHandler(stores.BatchJob))
	})
}

func checkpointHandler(store *state.Checkpoint) func(*http.Request) (any, error) {
	return func(*http.Request) (any, error) {
		return store.Snapshot(), nil
	}
}

func dailyStateHandler(store *state.DailyState) func(*http.Request) (any, error) {
	return func(*http.Request) (any, error) {
		return store.Snapshot(), nil
	}
}

func failedDateHandler(store *state.FailedDate) func(*http.Request) (any, error) {
	return func(*http.Request) (any, error) {
		return store.Snapshot(), nil
	}
}

func batchJobHandler(store *state.BatchJob) func(*http.Request) (any, error) {
	return func(*http.Request) (any, error) {
		return store.Snapshot(), nil
	}
}
