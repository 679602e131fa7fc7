package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsync/internal/domain/auth"
)

func samplePersisted() *auth.PersistedState {
	return &auth.PersistedState{
		State:   auth.State{User: testUser, IsAuthenticated: true},
		Cookies: []auth.Cookie{{Name: "refresh_token", Value: "r-1", HttpOnly: true}},
		SavedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, store.Save(ctx, samplePersisted()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsAuthenticated)
	assert.Equal(t, "u-1", got.User.ID)
	require.Len(t, got.Cookies, 1)
	assert.Equal(t, "r-1", got.Cookies[0].Value)

	require.NoError(t, store.Clear(ctx))
	cleared, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cleared)

	require.NoError(t, store.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)
	exerciseStore(t, store)

	require.NoError(t, store.Save(context.Background(), samplePersisted()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(stateFileMode), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "accessToken")
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), stateFileMode))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileStoreHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	assert.ErrorIs(t, store.Save(ctx, samplePersisted()), context.Canceled)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedisStore(client, "ticketsync:session", 0))
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "ticketsync:session", time.Hour)
	require.NoError(t, store.Save(context.Background(), samplePersisted()))
	assert.Equal(t, time.Hour, mr.TTL("ticketsync:session"))

	mr.FastForward(2 * time.Hour)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
