package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	_, err := store.Get(ctx, "s1", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "s1", "k", "v"))
	got, err := store.Get(ctx, "s1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = store.Get(ctx, "s2", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "s1", "k"))
	_, err = store.Get(ctx, "s1", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Destroy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	require.NoError(t, store.Set(ctx, "s1", "a", "1"))
	require.NoError(t, store.Set(ctx, "s1", "b", "2"))
	require.NoError(t, store.Destroy(ctx, "s1"))

	_, err := store.Get(ctx, "s1", "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "s1", "k", "v"))

	now = now.Add(50 * time.Second)
	require.NoError(t, store.Touch(ctx, "s1"))

	now = now.Add(50 * time.Second)
	got, err := store.Get(ctx, "s1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "s1", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_TouchUnknownSession(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	assert.NoError(t, store.Touch(context.Background(), "missing"))
	assert.Equal(t, 0, store.Len())
}
