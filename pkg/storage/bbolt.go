package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/durastore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// BoltFactory opens one bbolt database file and hands out one bucket per
// object key, mirroring the teacher's bucket-per-concern layout but keyed
// by object instead of by entity type.
type BoltFactory struct {
	db *bolt.DB
	mu sync.Mutex
}

// OpenBoltFactory opens (creating if absent) the bbolt database at path.
func OpenBoltFactory(path string) (*BoltFactory, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt database: %w", err)
	}
	return &BoltFactory{db: db}, nil
}

func bucketName(objectKey string) []byte {
	return []byte("object:" + objectKey)
}

// Open returns a Store backed by the bucket for objectKey, creating it if
// this is the first time the object has been addressed.
func (f *BoltFactory) Open(objectKey string) (Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := bucketName(objectKey)
	err := f.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket for object %q: %w", objectKey, err)
	}
	return &boltStore{db: f.db, bucket: name}, nil
}

// Close closes the underlying database.
func (f *BoltFactory) Close() error {
	return f.db.Close()
}

// boltStore is a Store scoped to a single bbolt bucket.
type boltStore struct {
	db     *bolt.DB
	bucket []byte
}

// boltRecord is the on-disk shape of a StoredEntry.
type boltRecord struct {
	Value    []byte `json:"value"`
	Metadata any    `json:"metadata,omitempty"`
}

func (s *boltStore) Get(_ context.Context, key string) (types.StoredEntry, bool, error) {
	var entry types.StoredEntry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		var rec boltRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("%w: %v", types.ErrDeserializationFailure, err)
		}
		entry = types.StoredEntry{Value: rec.Value, Metadata: rec.Metadata}
		return nil
	})
	return entry, found, err
}

func (s *boltStore) GetMany(_ context.Context, keys []string) (map[string]types.StoredEntry, error) {
	out := make(map[string]types.StoredEntry, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, k := range keys {
			data := b.Get([]byte(k))
			if data == nil {
				continue
			}
			var rec boltRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("%w: %v", types.ErrDeserializationFailure, err)
			}
			out[k] = types.StoredEntry{Value: rec.Value, Metadata: rec.Metadata}
		}
		return nil
	})
	return out, err
}

func (s *boltStore) Put(_ context.Context, key string, entry types.StoredEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		data, err := json.Marshal(boltRecord{Value: entry.Value, Metadata: entry.Metadata})
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *boltStore) PutMany(_ context.Context, entries map[string]types.StoredEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for k, e := range entries {
			data, err := json.Marshal(boltRecord{Value: e.Value, Metadata: e.Metadata})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) Delete(_ context.Context, key string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		existed = b.Get([]byte(key)) != nil
		return b.Delete([]byte(key))
	})
	return existed, err
}

func (s *boltStore) DeleteMany(_ context.Context, keys []string) (int, error) {
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, k := range keys {
			if b.Get([]byte(k)) != nil {
				count++
			}
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	return count, err
}

func (s *boltStore) List(_ context.Context, opts types.ListOptions) ([]types.KeyEntry, error) {
	if opts.Limit <= 0 {
		return nil, types.ErrInvalidListOptions
	}
	if opts.Start != "" && opts.StartAfter != "" {
		return nil, types.ErrInvalidListOptions
	}

	var out []types.KeyEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		c := b.Cursor()

		var keys []string
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}

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

		sort.Strings(filtered)
		if opts.Reverse {
			for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
				filtered[i], filtered[j] = filtered[j], filtered[i]
			}
		}
		if len(filtered) > opts.Limit {
			filtered = filtered[:opts.Limit]
		}

		for _, k := range filtered {
			data := b.Get([]byte(k))
			var rec boltRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("%w: %v", types.ErrDeserializationFailure, err)
			}
			out = append(out, types.KeyEntry{Name: k, Metadata: rec.Metadata})
		}
		return nil
	})
	return out, err
}

// Close is a no-op: the bucket shares the factory's database handle, which
// the factory itself closes.
func (s *boltStore) Close() error {
	return nil
}
