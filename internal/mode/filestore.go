// SPDX-License-Identifier: MIT

package mode

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"
)

// FileStore persists key-value state as a JSON file, written atomically so a
// crash mid-write never leaves a torn state file behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path. The file is created lazily on
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path) // #nosec G304
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	values := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parse state file: %w", err)
		}
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	buf, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// renameio handles temp file creation, fsync and atomic rename.
	if err := renameio.WriteFile(s.path, buf, 0o644); err != nil {
		return fmt.Errorf("atomically replace state file: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}
