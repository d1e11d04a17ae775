package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyguard/internal/core"
	"moneyguard/internal/storage"
)

func TestSaveHydrateClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	s := New(store, nil)
	assert.False(t, s.IsAuthenticated())

	rec := AuthRecord{User: core.User{Username: "ann", Email: "ann@example.com"}, Token: "tok"}
	require.NoError(t, s.Save(ctx, rec))
	assert.Equal(t, "tok", s.Token())

	// a fresh process sees the persisted record
	restored := New(store, nil)
	require.NoError(t, restored.Hydrate(ctx))
	assert.True(t, restored.IsAuthenticated())
	user, ok := restored.User()
	require.True(t, ok)
	assert.Equal(t, "ann@example.com", user.Email)

	require.NoError(t, restored.Clear(ctx))
	assert.Empty(t, restored.Token())
	_, ok, err := store.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHydrateDiscardsCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, StorageKey, "{not json"))

	s := New(store, nil)
	require.NoError(t, s.Hydrate(ctx))
	assert.False(t, s.IsAuthenticated())

	_, ok, _ := store.Get(ctx, StorageKey)
	assert.False(t, ok)
}
