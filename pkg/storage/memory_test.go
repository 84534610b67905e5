package storage

import (
	"context"
	"testing"

	"github.com/cuemby/durastore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "a", types.StoredEntry{Value: []byte("1")}))
	entry, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), entry.Value)
}

func TestMemoryStoreGetManyOnlyReturnsPresent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "a", types.StoredEntry{Value: []byte("1")}))

	out, err := s.GetMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Contains(t, out, "a")
}

func TestMemoryStoreDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "a", types.StoredEntry{Value: []byte("1")}))

	existed, err := s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryStoreListOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, k, types.StoredEntry{Value: []byte(k)}))
	}

	entries, err := s.List(ctx, types.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})

	entries, err = s.List(ctx, types.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.List(ctx, types.ListOptions{Limit: 10, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, "c", entries[0].Name)
}

func TestMemoryStoreListPrefixAndStartAfter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"user/1", "user/2", "order/1"} {
		require.NoError(t, s.Put(ctx, k, types.StoredEntry{Value: []byte(k)}))
	}

	entries, err := s.List(ctx, types.ListOptions{Limit: 10, Prefix: "user/"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.List(ctx, types.ListOptions{Limit: 10, StartAfter: "user/1"})
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "user/1", e.Name)
	}
}

func TestMemoryStoreListRejectsInvalidOptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.List(ctx, types.ListOptions{Limit: 0})
	assert.ErrorIs(t, err, types.ErrInvalidListOptions)

	_, err = s.List(ctx, types.ListOptions{Limit: 1, Start: "a", StartAfter: "b"})
	assert.ErrorIs(t, err, types.ErrInvalidListOptions)
}

func TestMemoryFactoryIsolatesObjects(t *testing.T) {
	f := NewMemoryFactory()
	ctx := context.Background()

	a, err := f.Open("obj-a")
	require.NoError(t, err)
	b, err := f.Open("obj-b")
	require.NoError(t, err)

	require.NoError(t, a.Put(ctx, "k", types.StoredEntry{Value: []byte("a-value")}))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFactoryReopenReturnsSameStore(t *testing.T) {
	f := NewMemoryFactory()
	ctx := context.Background()

	a, err := f.Open("obj-a")
	require.NoError(t, err)
	require.NoError(t, a.Put(ctx, "k", types.StoredEntry{Value: []byte("v")}))

	again, err := f.Open("obj-a")
	require.NoError(t, err)
	entry, ok, err := again.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), entry.Value)
}
