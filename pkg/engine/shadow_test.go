package engine

import (
	"context"
	"testing"

	"github.com/cuemby/durastore/pkg/storage"
	"github.com/cuemby/durastore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBacking(t *testing.T) (Backing, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	return storeBacking{store: store}, store
}

func TestShadowStoreGetPrefersPendingWrite(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	require.NoError(t, store.Put(ctx, "k", types.StoredEntry{Value: []byte("old")}))

	s := NewShadowStore(backing, false)
	s.Put("k", types.StoredEntry{Value: []byte("new")})

	entry, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), entry.Value)
}

func TestShadowStoreGetHonorsTombstone(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	require.NoError(t, store.Put(ctx, "k", types.StoredEntry{Value: []byte("old")}))

	s := NewShadowStore(backing, false)
	_, err := s.Delete(ctx, "k")
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShadowStoreDeleteReportsPriorExistence(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	require.NoError(t, store.Put(ctx, "k", types.StoredEntry{Value: []byte("old")}))

	s := NewShadowStore(backing, false)
	existed, err := s.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestShadowStoreListMergesPendingAndBacking(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	require.NoError(t, store.Put(ctx, "a", types.StoredEntry{Value: []byte("a")}))
	require.NoError(t, store.Put(ctx, "c", types.StoredEntry{Value: []byte("c")}))

	s := NewShadowStore(backing, false)
	s.Put("b", types.StoredEntry{Value: []byte("b")})
	_, err := s.Delete(ctx, "c")
	require.NoError(t, err)

	entries, err := s.List(ctx, types.ListOptions{Limit: 10})
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestShadowStoreListRespectsLimitAfterMerge(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Put(ctx, k, types.StoredEntry{Value: []byte(k)}))
	}

	s := NewShadowStore(backing, false)
	_, err := s.Delete(ctx, "a")
	require.NoError(t, err)

	entries, err := s.List(ctx, types.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Name)
	assert.Equal(t, "c", entries[1].Name)
}

func TestShadowStoreReadSetTracksGetAndList(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	require.NoError(t, store.Put(ctx, "a", types.StoredEntry{Value: []byte("a")}))

	s := NewShadowStore(backing, true)
	_, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	_, err = s.List(ctx, types.ListOptions{Limit: 10})
	require.NoError(t, err)

	rs := s.ReadSet()
	assert.Contains(t, rs, "a")
}

func TestShadowStoreAlarmTriState(t *testing.T) {
	backing, _ := newTestBacking(t)
	s := NewShadowStore(backing, false)

	_, ok, err := s.GetAlarm(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	s.SetAlarm(100)
	t1, ok, err := s.GetAlarm(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), t1)

	s.DeleteAlarm()
	_, ok, err = s.GetAlarm(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShadowStoreLayeredOnAnotherShadow(t *testing.T) {
	ctx := context.Background()
	backing, store := newTestBacking(t)
	require.NoError(t, store.Put(ctx, "k", types.StoredEntry{Value: []byte("base")}))

	top := NewShadowStore(backing, false)
	top.Put("k", types.StoredEntry{Value: []byte("top")})

	txn := NewShadowStore(top, true)
	entry, ok, err := txn.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("top"), entry.Value)
}
