package state

import (
	"sync"

	"workrecap/internal/domain"
)

// Checkpoint tracks the last successful date for each pipeline stage. Update
// obeys a monotonicity guard: a smaller (lexicographically earlier ISO) date
// never overwrites a larger one, so an out-of-order worker finishing an
// earlier date after a later one cannot rewind progress.
type Checkpoint struct {
	mu   sync.Mutex
	path string
	data map[domain.CheckpointKey]string
}

// NewCheckpoint loads (or lazily creates) the checkpoint file at path.
func NewCheckpoint(path string) (*Checkpoint, error) {
	c := &Checkpoint{path: path, data: map[domain.CheckpointKey]string{}}
	if err := readOrEmpty(path, &c.data); err != nil {
		return nil, err
	}
	if c.data == nil {
		c.data = map[domain.CheckpointKey]string{}
	}
	return c, nil
}

// Update sets key to date if date is strictly greater than the current
// value (or no value exists yet). Returns whether the write happened.
func (c *Checkpoint) Update(key domain.CheckpointKey, date string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.data[key]; ok && date <= cur {
		return false, nil
	}
	c.data[key] = date
	if err := writeAtomic(c.path, c.data); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the current date for key, and whether one is set.
func (c *Checkpoint) Get(key domain.CheckpointKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// Snapshot returns a read-only copy of every tracked checkpoint, for the
// status surface and CLI.
func (c *Checkpoint) Snapshot() map[domain.CheckpointKey]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domain.CheckpointKey]string, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}
