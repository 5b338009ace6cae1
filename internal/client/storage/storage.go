// Package storage holds the client's persistence: the device-local key/value
// file, the remote mood store client and the shell's form prompts.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// AnonymousIDKey is the device-local key holding the synthesized identity.
const AnonymousIDKey = "moodmap.anonymous_id"

// LocalStorage is a small JSON key/value file standing in for the device's
// local storage. Every write is flushed to disk.
type LocalStorage struct {
	path   string
	mu     sync.Mutex
	values map[string]json.RawMessage
	loaded bool
}

// NewLocalStorage returns storage backed by the file at path. Nothing is read
// until Load or the first access.
func NewLocalStorage(path string) *LocalStorage {
	return &LocalStorage{path: path}
}

// Load reads the file. A missing file is an empty storage.
func (ls *LocalStorage) Load() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.load()
}

func (ls *LocalStorage) load() error {
	data, err := os.ReadFile(ls.path)
	if errors.Is(err, os.ErrNotExist) {
		ls.values = map[string]json.RawMessage{}
		ls.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read device storage: %w", err)
	}
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode device storage: %w", err)
	}
	ls.values = values
	ls.loaded = true
	return nil
}

func (ls *LocalStorage) save() error {
	if dir := filepath.Dir(ls.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(ls.values, "", "  ")
	if err != nil {
		return err
	}
	tmp := ls.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write device storage: %w", err)
	}
	return os.Rename(tmp, ls.path)
}

// Int returns the integer stored under key. ok is false when the key is absent.
func (ls *LocalStorage) Int(key string) (v int64, ok bool, err error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.loaded {
		if err := ls.load(); err != nil {
			return 0, false, err
		}
	}
	raw, ok := ls.values[key]
	if !ok {
		return 0, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("key %q is not an integer: %w", key, err)
	}
	return v, true, nil
}

// SetInt stores v under key and flushes the file.
func (ls *LocalStorage) SetInt(key string, v int64) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.loaded {
		if err := ls.load(); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ls.values[key] = raw
	return ls.save()
}
