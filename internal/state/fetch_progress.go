package state

import (
	"path/filepath"
	"regexp"
	"sync"
)

// FetchProgress caches the buffered search-result bucket for one
// "{since}..{until}/{kind}" chunk key, one file per key under dir, so a
// restarted range fetch skips chunks whose search phase already completed.
type FetchProgress struct {
	mu  sync.Mutex
	dir string
}

// NewFetchProgress returns a cache rooted at dir.
func NewFetchProgress(dir string) *FetchProgress {
	return &FetchProgress{dir: dir}
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// slug turns a chunk key like "2025-01-01..2025-01-31/prs" into a safe
// filename.
func slug(key string) string {
	return slugPattern.ReplaceAllString(key, "_") + ".json"
}

func (p *FetchProgress) path(key string) string {
	return filepath.Join(p.dir, slug(key))
}

// Save persists the bucket for key, overwriting any prior value.
func (p *FetchProgress) Save(key string, bucket any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return writeAtomic(p.path(key), bucket)
}

// Load decodes the cached bucket for key into out. Returns false when no
// cache entry exists yet.
func (p *FetchProgress) Load(key string, out any) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path := p.path(key)
	if !fileExists(path) {
		return false, nil
	}
	if err := readOrEmpty(path, out); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the cache entry for key. FetchRange calls it for every chunk
// once the range's per-date enrichment pass has run, whatever the per-date
// outcomes.
func (p *FetchProgress) Clear(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return removeIfExists(p.path(key))
}
