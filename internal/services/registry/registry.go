// Package registry maps a data-source name to the Fetcher/Normaliser
// constructors that implement it. Only "github" is registered by default;
// this gives DailyStats' other-source placeholders a concrete extension
// point without adding scope of its own.
package registry

import (
	"sort"

	"workrecap/internal/adapters/host"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/services/fetch"
	"workrecap/internal/services/layout"
	"workrecap/internal/services/normalize"
	"workrecap/internal/state"
)

// FetcherDeps carries the shared wiring every source's Fetcher is built
// from.
type FetcherDeps struct {
	Pool       *host.Pool
	Root       layout.Root
	Checkpoint *state.Checkpoint
	DailyState *state.DailyState
	FailedDate *state.FailedDate
	Progress   *state.FetchProgress
	Options    fetch.Options
}

// NormalizerDeps carries the shared wiring every source's Normaliser is
// built from.
type NormalizerDeps struct {
	UserLogin  string
	Root       layout.Root
	DailyState *state.DailyState
	FailedDate *state.FailedDate
	LLM        normalize.Chatter
	Options    normalize.Options
}

// FetcherFactory builds a source's Fetcher.
type FetcherFactory func(FetcherDeps) *fetch.Fetcher

// NormalizerFactory builds a source's Normaliser.
type NormalizerFactory func(NormalizerDeps) *normalize.Normaliser

type sourceEntry struct {
	fetcher    FetcherFactory
	normalizer NormalizerFactory
}

// Registry holds the fetcher/normaliser factories for every registered
// source name.
type Registry struct {
	sources map[string]sourceEntry
}

// New returns a Registry with "github" already registered against the
// Fetcher/Normaliser constructors.
func New() *Registry {
	r := &Registry{sources: map[string]sourceEntry{}}
	r.Register("github",
		func(d FetcherDeps) *fetch.Fetcher {
			return fetch.New(d.Pool, d.Root, d.Checkpoint, d.DailyState, d.FailedDate, d.Progress, d.Options)
		},
		func(d NormalizerDeps) *normalize.Normaliser {
			return normalize.New(d.UserLogin, d.Root, d.DailyState, d.FailedDate, d.LLM, d.Options)
		},
	)
	return r
}

// Register adds a source's fetcher and normaliser factories under name,
// replacing any prior registration for that name.
func (r *Registry) Register(name string, fetcherFactory FetcherFactory, normalizerFactory NormalizerFactory) {
	r.sources[name] = sourceEntry{fetcher: fetcherFactory, normalizer: normalizerFactory}
}

// Fetcher builds the named source's Fetcher.
func (r *Registry) Fetcher(name string, deps FetcherDeps) (*fetch.Fetcher, error) {
	entry, ok := r.sources[name]
	if !ok {
		return nil, perr.NotFoundf("unknown data source %q", name)
	}
	return entry.fetcher(deps), nil
}

// Normalizer builds the named source's Normaliser.
func (r *Registry) Normalizer(name string, deps NormalizerDeps) (*normalize.Normaliser, error) {
	entry, ok := r.sources[name]
	if !ok {
		return nil, perr.NotFoundf("unknown data source %q", name)
	}
	return entry.normalizer(deps), nil
}

// AvailableSources returns every registered source name, sorted.
func (r *Registry) AvailableSources() []string {
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
