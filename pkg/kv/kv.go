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

// Package kv provides the versioned key-value storage boundary used to
// persist user records. Values are opaque byte slices (JSON at the call
// sites); every key carries a monotonically increasing version that Put
// compares against to detect concurrent writers.
package kv

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrVersionConflict is returned when a Put loses a compare-and-swap
	// race: the key's current version no longer matches the version the
	// caller read. Callers should re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
)

// Store is a versioned key-value store. Implementations must make Put
// atomic with respect to the version check so that read-modify-write
// sequences built on Get/Put never lose updates.
type Store interface {
	// Get returns the value and current version for key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, uint64, error)

	// Put writes value under key if the key's current version equals
	// version, and returns the new version. A version of zero means the
	// key must not yet exist (create-only). Returns ErrVersionConflict
	// when the check fails.
	Put(ctx context.Context, key string, value []byte, version uint64) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}
