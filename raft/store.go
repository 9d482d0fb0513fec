package raft

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const appliedIndexKey = "applied_index"

// MetaStore keeps small pieces of journal bookkeeping, one file per key
type MetaStore struct {
	mu sync.RWMutex
	// Path to the storage directory
	path string
	// Map to store values when not using persistence
	inMemory map[string][]byte
}

// NewMetaStore creates a new store. An empty path keeps everything in memory.
func NewMetaStore(path string) (*MetaStore, error) {
	// Create the directory if it doesn't exist
	if path != "" {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	return &MetaStore{
		path:     path,
		inMemory: make(map[string][]byte),
	}, nil
}

// Set stores a key-value pair
func (s *MetaStore) Set(key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		s.inMemory[key] = val
		return nil
	}

	// Write to a temp file first so a crash never leaves half a value
	path := filepath.Join(s.path, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, val, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Get retrieves a value by key
func (s *MetaStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		val, ok := s.inMemory[key]
		if !ok {
			return nil, os.ErrNotExist
		}
		return val, nil
	}

	return os.ReadFile(filepath.Join(s.path, key))
}

// AppliedIndex returns the last journal index whose command reached the files
func (s *MetaStore) AppliedIndex() (uint64, error) {
	data, err := s.Get(appliedIndexKey)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}

// SetAppliedIndex records the last applied journal index
func (s *MetaStore) SetAppliedIndex(index uint64) error {
	return s.Set(appliedIndexKey, []byte(strconv.FormatUint(index, 10)))
}
