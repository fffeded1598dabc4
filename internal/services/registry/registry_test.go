package registry

import (
	"context"
	"testing"

	"workrecap/internal/adapters/host"
	"workrecap/internal/adapters/llm"
	"workrecap/internal/domain"
	"workrecap/internal/services/fetch"
	"workrecap/internal/services/layout"
	"workrecap/internal/services/normalize"
	"workrecap/internal/state"
)

type noopLLM struct{}

func (noopLLM) Chat(context.Context, domain.Task, string, string, llm.ChatOptions) (string, error) {
	return "", nil
}

func newTestDeps(t *testing.T) (FetcherDeps, NormalizerDeps) {
	t.Helper()
	dir := t.TempDir()
	root := layout.New(dir)
	pool := host.NewPool(1, host.Options{BaseURL: "http://example.invalid"})

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
	progress := state.NewFetchProgress(root.FetchProgressDir())

	fd := FetcherDeps{
		Pool: pool, Root: root, Checkpoint: checkpoint, DailyState: dailyState,
		FailedDate: failedDate, Progress: progress,
		Options: fetch.Options{UserLogin: "alice", MaxWorkers: 1, RetryCap: 3},
	}
	nd := NormalizerDeps{
		UserLogin: "alice", Root: root, DailyState: dailyState, FailedDate: failedDate,
		LLM: noopLLM{}, Options: normalize.Options{IncludeSelfComments: true},
	}
	return fd, nd
}

func TestNew_RegistersGithubByDefault(t *testing.T) {
	r := New()
	sources := r.AvailableSources()
	if len(sources) != 1 || sources[0] != "github" {
		t.Fatalf("AvailableSources() = %v, want [github]", sources)
	}
}

func TestRegistry_FetcherAndNormalizerBuildForGithub(t *testing.T) {
	r := New()
	fd, nd := newTestDeps(t)

	f, err := r.Fetcher("github", fd)
	if err != nil {
		t.Fatalf("Fetcher: %v", err)
	}
	if f == nil {
		t.Fatal("Fetcher returned nil")
	}

	n, err := r.Normalizer("github", nd)
	if err != nil {
		t.Fatalf("Normalizer: %v", err)
	}
	if n == nil {
		t.Fatal("Normalizer returned nil")
	}
}

func TestRegistry_UnknownSourceReturnsNotFound(t *testing.T) {
	r := New()
	fd, nd := newTestDeps(t)

	if _, err := r.Fetcher("gitlab", fd); err == nil {
		t.Fatal("expected an error for an unregistered source")
	}
	if _, err := r.Normalizer("gitlab", nd); err == nil {
		t.Fatal("expected an error for an unregistered source")
	}
}

func TestRegistry_RegisterAddsAdditionalSource(t *testing.T) {
	r := New()
	r.Register("placeholder",
		func(FetcherDeps) *fetch.Fetcher { return nil },
		func(NormalizerDeps) *normalize.Normaliser { return nil },
	)
	sources := r.AvailableSources()
	if len(sources) != 2 || sources[0] != "github" || sources[1] != "placeholder" {
		t.Fatalf("AvailableSources() = %v, want [github placeholder]", sources)
	}
}
