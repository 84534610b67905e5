// Package storage defines the backing-store contract consumed by the
// storage engine and supplies two concrete implementations: an ordered
// in-memory store and a bbolt-backed on-disk store.
package storage

import (
	"context"

	"github.com/cuemby/durastore/pkg/types"
)

// Store is the backing-store contract consumed by a single object's
// storage engine. Implementations own one namespace (one bbolt bucket, one
// in-memory map) for the lifetime of the engine that holds them.
type Store interface {
	// Get returns the entry for key and whether it was present.
	Get(ctx context.Context, key string) (types.StoredEntry, bool, error)

	// GetMany returns entries for the keys that are present; absent keys
	// are simply missing from the result map.
	GetMany(ctx context.Context, keys []string) (map[string]types.StoredEntry, error)

	// Put writes a single key.
	Put(ctx context.Context, key string, entry types.StoredEntry) error

	// PutMany writes a batch of keys.
	PutMany(ctx context.Context, entries map[string]types.StoredEntry) error

	// Delete removes key and reports whether it was present beforehand.
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteMany removes a batch of keys and reports how many were
	// present beforehand.
	DeleteMany(ctx context.Context, keys []string) (int, error)

	// List enumerates keys in lexicographic order (or reverse) honoring
	// opts.Start/StartAfter/End/Prefix/Limit.
	List(ctx context.Context, opts types.ListOptions) ([]types.KeyEntry, error)

	// Close releases any resources held by the store.
	Close() error
}

// Factory opens a Store namespace for a given object key. Namespaces are
// isolated from one another: two calls with different object keys never
// observe each other's writes.
type Factory interface {
	Open(objectKey string) (Store, error)
	Close() error
}
