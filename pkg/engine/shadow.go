package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/cuemby/durastore/pkg/types"
)

// AlarmState is the tri-state an object's alarm can be in within a shadow
// layer: untouched by this layer, explicitly set to a new time, or
// explicitly cleared.
type AlarmState int

const (
	AlarmUnchanged AlarmState = iota
	AlarmSet
	AlarmCleared
)

// Backing is whatever a ShadowStore reads through when it has no local
// copy of a key: either the bottom-level storage.Store, or another
// ShadowStore (a transaction layered on the engine's top-level shadow).
type Backing interface {
	Has(ctx context.Context, key string) (bool, error)
	HasMany(ctx context.Context, keys []string) (map[string]bool, error)
	Get(ctx context.Context, key string) (types.StoredEntry, bool, error)
	GetMany(ctx context.Context, keys []string) (map[string]types.StoredEntry, error)
	List(ctx context.Context, opts types.ListOptions) ([]types.KeyEntry, error)
	GetAlarm(ctx context.Context) (int64, bool, error)
}

type shadowCopy struct {
	entry     types.StoredEntry
	tombstone bool
}

// ShadowStore is a write-coalescing overlay over a Backing. It is the sole
// place pending puts and deletes live before a flush makes them durable.
type ShadowStore struct {
	backing Backing

	copies map[string]*shadowCopy

	// readSet records keys observed by get/list, when non-nil. Only
	// transaction shadows track a read set; the engine's top-level
	// shadow leaves this nil.
	readSet map[string]struct{}

	alarm     AlarmState
	alarmTime int64
}

// NewShadowStore returns a shadow layered on backing. withReadSet enables
// read-set tracking, used for transaction shadows under OCC validation.
func NewShadowStore(backing Backing, withReadSet bool) *ShadowStore {
	s := &ShadowStore{
		backing: backing,
		copies:  make(map[string]*shadowCopy),
	}
	if withReadSet {
		s.readSet = make(map[string]struct{})
	}
	return s
}

func (s *ShadowStore) recordRead(key string) {
	if s.readSet != nil {
		s.readSet[key] = struct{}{}
	}
}

// ReadSet returns the keys observed since construction, or nil if this
// shadow does not track reads.
func (s *ShadowStore) ReadSet() map[string]struct{} {
	return s.readSet
}

func (s *ShadowStore) Has(ctx context.Context, key string) (bool, error) {
	if c, ok := s.copies[key]; ok {
		return !c.tombstone, nil
	}
	return s.backing.Has(ctx, key)
}

func (s *ShadowStore) HasMany(ctx context.Context, keys []string) (map[string]bool, error) {
	out := make(map[string]bool, len(keys))
	var remaining []string
	for _, k := range keys {
		if c, ok := s.copies[k]; ok {
			out[k] = !c.tombstone
			continue
		}
		remaining = append(remaining, k)
	}
	if len(remaining) == 0 {
		return out, nil
	}
	backed, err := s.backing.HasMany(ctx, remaining)
	if err != nil {
		return nil, err
	}
	for k, v := range backed {
		out[k] = v
	}
	return out, nil
}

// Get returns the entry for key, consulting pending writes first.
func (s *ShadowStore) Get(ctx context.Context, key string) (types.StoredEntry, bool, error) {
	s.recordRead(key)
	if c, ok := s.copies[key]; ok {
		if c.tombstone {
			return types.StoredEntry{}, false, nil
		}
		return c.entry.Clone(), true, nil
	}
	return s.backing.Get(ctx, key)
}

// GetMany returns entries for keys, consulting pending writes first and
// batching the remainder through the backing layer.
func (s *ShadowStore) GetMany(ctx context.Context, keys []string) (map[string]types.StoredEntry, error) {
	out := make(map[string]types.StoredEntry, len(keys))
	var remaining []string
	for _, k := range keys {
		s.recordRead(k)
		if c, ok := s.copies[k]; ok {
			if !c.tombstone {
				out[k] = c.entry.Clone()
			}
			continue
		}
		remaining = append(remaining, k)
	}
	if len(s.copies) == 0 {
		// No pending writes at all: delegate entirely, still honoring
		// the read-set recording already done above.
		return s.backing.GetMany(ctx, keys)
	}
	if len(remaining) == 0 {
		return out, nil
	}
	backed, err := s.backing.GetMany(ctx, remaining)
	if err != nil {
		return nil, err
	}
	for k, v := range backed {
		out[k] = v
	}
	return out, nil
}

// Put stages a write in the shadow. Synchronous, no I/O.
func (s *ShadowStore) Put(key string, entry types.StoredEntry) {
	s.copies[key] = &shadowCopy{entry: entry.Clone()}
}

// Delete stages a tombstone for key and reports whether the key was
// present beforehand (via the backing layer for anything not already
// shadowed).
func (s *ShadowStore) Delete(ctx context.Context, key string) (bool, error) {
	existed, err := s.Has(ctx, key)
	if err != nil {
		return false, err
	}
	s.copies[key] = &shadowCopy{tombstone: true}
	return existed, nil
}

// DeleteMany stages tombstones for keys and reports how many were present
// beforehand.
func (s *ShadowStore) DeleteMany(ctx context.Context, keys []string) (int, error) {
	existed, err := s.HasMany(ctx, keys)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, k := range keys {
		if existed[k] {
			count++
		}
		s.copies[k] = &shadowCopy{tombstone: true}
	}
	return count, nil
}

// List merges the backing layer's view with this shadow's pending writes,
// per spec.md §4.2: compute shadow-matching keys and how many are
// tombstones, widen the backing request by that many, filter and splice,
// then re-sort and truncate to the caller's limit.
func (s *ShadowStore) List(ctx context.Context, opts types.ListOptions) ([]types.KeyEntry, error) {
	if opts.Limit <= 0 {
		return nil, types.ErrInvalidListOptions
	}
	if opts.Start != "" && opts.StartAfter != "" {
		return nil, types.ErrInvalidListOptions
	}

	matches := func(k string) bool {
		if opts.Prefix != "" && !strings.HasPrefix(k, opts.Prefix) {
			return false
		}
		if opts.Start != "" && k < opts.Start {
			return false
		}
		if opts.StartAfter != "" && k <= opts.StartAfter {
			return false
		}
		if opts.End != "" && k >= opts.End {
			return false
		}
		return true
	}

	var liveShadow []types.KeyEntry
	tombstoned := make(map[string]struct{})
	shadowed := make(map[string]struct{})
	deletedMatching := 0
	for k, c := range s.copies {
		if !matches(k) {
			continue
		}
		shadowed[k] = struct{}{}
		if c.tombstone {
			tombstoned[k] = struct{}{}
			deletedMatching++
			continue
		}
		liveShadow = append(liveShadow, types.KeyEntry{Name: k, Metadata: c.entry.Metadata})
	}

	widened := opts
	widened.Limit = opts.Limit + deletedMatching

	backed, err := s.backing.List(ctx, widened)
	if err != nil {
		return nil, err
	}

	var merged []types.KeyEntry
	for _, e := range backed {
		if _, dead := tombstoned[e.Name]; dead {
			continue
		}
		if _, owned := shadowed[e.Name]; owned {
			// Superseded by the shadow's live copy, appended below;
			// skip the backing copy to avoid duplicates.
			continue
		}
		merged = append(merged, e)
	}
	merged = append(merged, liveShadow...)

	sort.Slice(merged, func(i, j int) bool {
		if opts.Reverse {
			return merged[i].Name > merged[j].Name
		}
		return merged[i].Name < merged[j].Name
	})

	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}

	for _, e := range merged {
		s.recordRead(e.Name)
	}

	return merged, nil
}

// GetAlarm returns the shadow's view of the alarm: an explicit Set/Cleared
// value if this layer changed it, otherwise it forwards to the backing
// layer.
func (s *ShadowStore) GetAlarm(ctx context.Context) (int64, bool, error) {
	switch s.alarm {
	case AlarmSet:
		return s.alarmTime, true, nil
	case AlarmCleared:
		return 0, false, nil
	default:
		return s.backing.GetAlarm(ctx)
	}
}

// SetAlarm stages a new alarm time in the shadow.
func (s *ShadowStore) SetAlarm(t int64) {
	s.alarm = AlarmSet
	s.alarmTime = t
}

// DeleteAlarm stages a cleared alarm in the shadow.
func (s *ShadowStore) DeleteAlarm() {
	s.alarm = AlarmCleared
	s.alarmTime = 0
}

// Copies exposes the pending write set for the flush pipeline. The
// returned map must not be mutated by the caller.
func (s *ShadowStore) Copies() map[string]*shadowCopy {
	return s.copies
}

// Clear drops all pending writes and resets the alarm state. The engine's
// flush and transaction merge do not call it: flush removes each flushed
// entry individually, keeping any entry replaced while the flush ran.
func (s *ShadowStore) Clear() {
	s.copies = make(map[string]*shadowCopy)
	s.alarm = AlarmUnchanged
	s.alarmTime = 0
}
