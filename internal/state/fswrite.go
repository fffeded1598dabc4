// Package state implements the small set of JSON-file-backed stores that let
// long, multi-year backfills survive crashes: the checkpoint, the per-date
// cascade-staleness tracker, the failed-date classifier, the fetch-progress
// cache, and the batch-job registry.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	perr "workrecap/internal/platform/errors"
)

// writeAtomic serialises v as indented JSON to path via a temp file plus
// rename, so a concurrent reader never observes a half-written file.
func writeAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.StorageErrorf(err, "create state dir for %s", path)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return perr.StorageErrorf(err, "create temp state file %s", tmp)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return perr.StorageErrorf(err, "encode state file %s", path)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return perr.StorageErrorf(err, "close temp state file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.StorageErrorf(err, "rename temp state file into place at %s", path)
	}
	return nil
}

// fileExists reports whether path exists, without following the error
// semantics a caller would need to distinguish "not found" from other I/O
// failures — callers that need the cache to degrade gracefully on a miss
// only care about existence.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeIfExists deletes path, treating a missing file as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return perr.StorageErrorf(err, "remove state file %s", path)
	}
	return nil
}

// readOrEmpty decodes path into v, leaving v at its zero value when the file
// does not yet exist (a fresh store on first run).
func readOrEmpty(path string, v any) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return perr.StorageErrorf(err, "open state file %s", path)
	}
	defer func() { _ = f.Close() }()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return perr.StorageErrorf(err, "decode state file %s", path)
	}
	return nil
}
