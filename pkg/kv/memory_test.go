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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, _, err := store.Get(ctx, "alice")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	version, err := store.Put(ctx, "alice", []byte("v1"), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	value, gotVersion, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
	assert.Equal(t, version, gotVersion)
}

func TestMemoryStore_CreateExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "alice", []byte("v1"), 0)
	require.NoError(t, err)

	// Create-only put against an existing key must fail.
	_, err = store.Put(ctx, "alice", []byte("v2"), 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_VersionedPut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	v1, err := store.Put(ctx, "alice", []byte("v1"), 0)
	require.NoError(t, err)

	v2, err := store.Put(ctx, "alice", []byte("v2"), v1)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	// A writer holding the stale version loses the race.
	_, err = store.Put(ctx, "alice", []byte("v3"), v1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	value, version, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
	assert.Equal(t, v2, version)
}

func TestMemoryStore_PutMissingKeyWithVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "alice", []byte("v1"), 7)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "alice", []byte("v1"), 0)
	require.NoError(t, err)

	value, _, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	value[0] = 'X'

	again, _, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again)
}

func TestMemoryStore_ConcurrentCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "alice", []byte("v1"), 0)
	require.NoError(t, err)

	// Many goroutines race read-modify-write; conflicts retry. Every
	// update must survive.
	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				value, version, err := store.Get(ctx, "alice")
				if err != nil {
					return
				}
				next := append(value, 'x')
				if _, err := store.Put(ctx, "alice", next, version); err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	value, version, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, value, len("v1")+writers)
	assert.Equal(t, uint64(1+writers), version)
}

func TestMemoryStore_CountAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "alice", []byte("a"), 0)
	require.NoError(t, err)
	_, err = store.Put(ctx, "bob", []byte("b"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())

	store.Clear()
	assert.Equal(t, 0, store.Count())

	require.NoError(t, store.Close())
}
