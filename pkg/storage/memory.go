package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/durastore/pkg/types"
)

// MemoryStore is an ordered in-memory backing store: a map for point
// lookups plus an on-demand sorted key list for range scans, the way a
// small memtable works before it ever reaches a sorted-string segment.
// It is the default backend and the one exercised by engine unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]types.StoredEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]types.StoredEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (types.StoredEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return types.StoredEntry{}, false, nil
	}
	return e.Clone(), true, nil
}

func (s *MemoryStore) GetMany(_ context.Context, keys []string) (map[string]types.StoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.StoredEntry, len(keys))
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			out[k] = e.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, entry types.StoredEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry.Clone()
	return nil
}

func (s *MemoryStore) PutMany(_ context.Context, entries map[string]types.StoredEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range entries {
		s.entries[k] = e.Clone()
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.entries[key]
	delete(s.entries, key)
	return existed, nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, keys []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			count++
			delete(s.entries, k)
		}
	}
	return count, nil
}

func (s *MemoryStore) List(_ context.Context, opts types.ListOptions) ([]types.KeyEntry, error) {
	if opts.Limit <= 0 {
		return nil, types.ErrInvalidListOptions
	}
	if opts.Start != "" && opts.StartAfter != "" {
		return nil, types.ErrInvalidListOptions
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	var filtered []string
	for _, k := range keys {
		if opts.Prefix != "" && !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if opts.Start != "" && k < opts.Start {
			continue
		}
		if opts.StartAfter != "" && k <= opts.StartAfter {
			continue
		}
		if opts.End != "" && k >= opts.End {
			continue
		}
		filtered = append(filtered, k)
	}

	if opts.Reverse {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	if len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.KeyEntry, 0, len(filtered))
	for _, k := range filtered {
		out = append(out, types.KeyEntry{Name: k, Metadata: s.entries[k].Metadata})
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// MemoryFactory opens an isolated MemoryStore per object key.
type MemoryFactory struct {
	mu    sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryFactory returns a Factory that backs each object with its own
// MemoryStore, all held in process memory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{stores: make(map[string]*MemoryStore)}
}

func (f *MemoryFactory) Open(objectKey string) (Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[objectKey]
	if !ok {
		s = NewMemoryStore()
		f.stores[objectKey] = s
	}
	return s, nil
}

func (f *MemoryFactory) Close() error {
	return nil
}
