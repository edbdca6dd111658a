package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is the default client-side backend: a single JSON document on
// disk, loaded once and rewritten atomically on every mutation. Reads copy
// values out under a read lock so concurrent readers never observe a
// partially written entry.
type FileStore struct {
	path string

	mu   sync.RWMutex
	data map[string]json.RawMessage
}

const storeFileName = "storage.json"

// NewFileStore opens (or creates) the store under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{
		path: filepath.Join(dir, storeFileName),
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(fs.path)
	switch {
	case os.IsNotExist(err):
		// fresh install
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	default:
		if err := json.Unmarshal(raw, &fs.data); err != nil {
			// Corrupted store is treated as empty rather than fatal.
			fs.data = make(map[string]json.RawMessage)
		}
	}

	return fs, nil
}

// Get returns the value for key and whether it exists.
func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	raw, ok := fs.data[key]
	if !ok {
		return nil, false, nil
	}
	var value []byte
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode stored value for %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key and persists the whole document.
func (fs *FileStore) Set(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}
	fs.data[key] = raw
	return fs.persistLocked()
}

// Delete removes key and persists the whole document.
func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.data[key]; !ok {
		return nil
	}
	delete(fs.data, key)
	return fs.persistLocked()
}

// Close is a no-op for the file backend.
func (fs *FileStore) Close() error { return nil }

// persistLocked writes the document via a temp file and rename so a crash
// mid-write never leaves a truncated store behind.
func (fs *FileStore) persistLocked() error {
	raw, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
