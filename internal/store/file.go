// Package store provides durable backends for the usage ledger: a JSON
// whole-file snapshot (the default) and a database-backed store for
// deployments that outgrow a single file.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flickerlabs/flicker-relay/internal/ledger"
)

// FileStore persists the ledger as a single JSON snapshot file.
//
// The file is rewritten in full on every save via a temp-file rename, so a
// crash mid-write never leaves a half-written snapshot behind.
type FileStore struct {
	path string
}

// NewFileStore constructs a FileStore at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file is a fresh ledger, not an error.
func (s *FileStore) Load(_ context.Context) (map[string]ledger.Record, error) {
	data, errRead := os.ReadFile(s.path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return make(map[string]ledger.Record), nil
		}
		return nil, fmt.Errorf("file store: read %s: %w", s.path, errRead)
	}

	records := make(map[string]ledger.Record)
	if errUnmarshal := json.Unmarshal(data, &records); errUnmarshal != nil {
		return nil, fmt.Errorf("file store: parse %s: %w", s.path, errUnmarshal)
	}
	return records, nil
}

// Save writes the full snapshot atomically.
func (s *FileStore) Save(_ context.Context, records map[string]ledger.Record) error {
	data, errMarshal := json.MarshalIndent(records, "", "  ")
	if errMarshal != nil {
		return fmt.Errorf("file store: marshal: %w", errMarshal)
	}

	dir := filepath.Dir(s.path)
	tmp, errTemp := os.CreateTemp(dir, ".usage-*.json")
	if errTemp != nil {
		return fmt.Errorf("file store: temp file: %w", errTemp)
	}
	tmpPath := tmp.Name()

	if _, errWrite := tmp.Write(data); errWrite != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("file store: write: %w", errWrite)
	}
	if errClose := tmp.Close(); errClose != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("file store: close: %w", errClose)
	}
	if errRename := os.Rename(tmpPath, s.path); errRename != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("file store: rename: %w", errRename)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
