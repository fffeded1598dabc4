package state

import (
	"sync"

	"workrecap/internal/domain"
)

// BatchJob tracks provider-side async batch submissions so a crashed process
// can rediscover in-flight batches on restart instead of resubmitting them.
type BatchJob struct {
	mu   sync.Mutex
	path string
	data map[string]domain.BatchJobEntry
}

// NewBatchJob loads (or lazily creates) the batch-job file at path.
func NewBatchJob(path string) (*BatchJob, error) {
	b := &BatchJob{path: path, data: map[string]domain.BatchJobEntry{}}
	if err := readOrEmpty(path, &b.data); err != nil {
		return nil, err
	}
	if b.data == nil {
		b.data = map[string]domain.BatchJobEntry{}
	}
	return b, nil
}

// Save records or replaces the entry for id.
func (b *BatchJob) Save(id string, entry domain.BatchJobEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[id] = entry
	return writeAtomic(b.path, b.data)
}

// UpdateStatus transitions id's status, a no-op if id is unknown.
func (b *BatchJob) UpdateStatus(id string, status domain.BatchJobStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.data[id]
	if !ok {
		return nil
	}
	e.Status = status
	b.data[id] = e
	return writeAtomic(b.path, b.data)
}

// Get returns the entry for id, and whether it exists.
func (b *BatchJob) Get(id string) (domain.BatchJobEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.data[id]
	return e, ok
}

// ActiveJobs returns the ids of every entry not yet in a terminal state, so a
// restart knows which provider batches still need polling.
func (b *BatchJob) ActiveJobs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for id, e := range b.data {
		if !e.Terminal() {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns a read-only copy of every tracked batch job.
func (b *BatchJob) Snapshot() map[string]domain.BatchJobEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]domain.BatchJobEntry, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out
}
