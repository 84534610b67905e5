package engine

import (
	"context"

	"github.com/cuemby/durastore/pkg/storage"
	"github.com/cuemby/durastore/pkg/types"
)

// storeBacking adapts a storage.Store into the Backing interface the
// shadow layer reads through, translating the reserved alarm key into the
// tri-state alarm query shape the shadow expects.
type storeBacking struct {
	store storage.Store
}

func (b storeBacking) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.store.Get(ctx, key)
	return ok, err
}

func (b storeBacking) HasMany(ctx context.Context, keys []string) (map[string]bool, error) {
	entries, err := b.store.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		_, ok := entries[k]
		out[k] = ok
	}
	return out, nil
}

func (b storeBacking) Get(ctx context.Context, key string) (types.StoredEntry, bool, error) {
	return b.store.Get(ctx, key)
}

func (b storeBacking) GetMany(ctx context.Context, keys []string) (map[string]types.StoredEntry, error) {
	return b.store.GetMany(ctx, keys)
}

func (b storeBacking) List(ctx context.Context, opts types.ListOptions) ([]types.KeyEntry, error) {
	return b.store.List(ctx, opts)
}

func (b storeBacking) GetAlarm(ctx context.Context) (int64, bool, error) {
	entry, ok, err := b.store.Get(ctx, types.AlarmKey)
	if err != nil || !ok {
		return 0, false, err
	}
	t, ok := types.AsAlarmScheduledTime(entry.Metadata)
	return t, ok, nil
}
