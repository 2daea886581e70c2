// Package cachestore defines the artifact cache capability used by the
// pipeline to skip recomputation: Has checks existence, Get fetches a
// cached artifact, Put stores one.
//
// Presence is existence-only. A stale or corrupt cached artifact is the
// caller's risk; stores never validate content beyond transporting bytes.
package cachestore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a cache key does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("cachestore: key not found")

// CacheStore is an abstraction over the storage backing cached artifacts.
type CacheStore interface {
	// Has reports whether the key exists.
	Has(ctx context.Context, key string) (bool, error)

	// Get returns the artifact bytes for the key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores the artifact bytes under the key, replacing any
	// previous value. Writes are atomic: readers never observe a
	// partially written artifact.
	Put(ctx context.Context, key string, data []byte) error
}
