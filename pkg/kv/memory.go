// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package kv

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
// This is intended for development and testing only.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value   []byte
	version uint64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

// Get returns the value and current version for key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, 0, ErrKeyNotFound
	}

	// Return a copy to prevent external modification
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, entry.version, nil
}

// Put writes value under key with compare-and-swap semantics.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, version uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if version == 0 {
		if ok {
			return 0, ErrVersionConflict
		}
	} else {
		if !ok || entry.version != version {
			return 0, ErrVersionConflict
		}
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.entries[key] = &memoryEntry{
		value:   stored,
		version: version + 1,
	}
	return version + 1, nil
}

// Close releases the store. It is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Count returns the number of keys in the store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all keys from the store.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*memoryEntry)
}
