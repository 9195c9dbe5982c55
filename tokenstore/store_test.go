package tokenstore

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
)

// futureExpiry is millisecond-aligned so every backend round-trips it exactly.
func futureExpiry() time.Time {
	return time.Now().Add(time.Hour).Truncate(time.Millisecond)
}

// runStoreContract exercises the Store contract against a fresh instance per
// subtest. Every implementation must pass it unchanged.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("load absent returns nil", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.Load(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("save and load", func(t *testing.T) {
		s := newStore(t)
		want := Record{Token: "tok-1", TokenType: "player", ExpiresAt: futureExpiry()}
		require.NoError(t, s.Save(ctx, "g-1", want))

		got, err := s.Load(ctx, "g-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Token, got.Token)
		assert.Equal(t, want.TokenType, got.TokenType)
		assert.True(t, got.ExpiresAt.Equal(want.ExpiresAt), "want %v, got %v", want.ExpiresAt, got.ExpiresAt)
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, "g-1", Record{Token: "old", TokenType: "player", ExpiresAt: futureExpiry()}))
		require.NoError(t, s.Save(ctx, "g-1", Record{Token: "new", TokenType: "player", ExpiresAt: futureExpiry()}))

		got, err := s.Load(ctx, "g-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "new", got.Token)
	})

	t.Run("record without expiry", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))

		got, err := s.Load(ctx, "g-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.ExpiresAt.IsZero())
	})

	t.Run("records are per game", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))
		require.NoError(t, s.Save(ctx, "g-2", Record{Token: "tok-2", TokenType: "player"}))

		got, err := s.Load(ctx, "g-1")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", got.Token)
		got, err = s.Load(ctx, "g-2")
		require.NoError(t, err)
		assert.Equal(t, "tok-2", got.Token)
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))
		require.NoError(t, s.Clear(ctx, "g-1"))

		rec, err := s.Load(ctx, "g-1")
		require.NoError(t, err)
		assert.Nil(t, rec)

		// Clearing what is not there is not an error.
		assert.NoError(t, s.Clear(ctx, "g-1"))
	})

	t.Run("shared token", func(t *testing.T) {
		s := newStore(t)
		shared, err := s.LoadShared(ctx)
		require.NoError(t, err)
		assert.Empty(t, shared)

		require.NoError(t, s.SaveShared(ctx, "shared-1"))
		require.NoError(t, s.SaveShared(ctx, "shared-2"))
		shared, err = s.LoadShared(ctx)
		require.NoError(t, err)
		assert.Equal(t, "shared-2", shared)
	})

	t.Run("clear all", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))
		require.NoError(t, s.Save(ctx, "g-2", Record{Token: "tok-2", TokenType: "player"}))
		require.NoError(t, s.SaveShared(ctx, "shared-1"))

		require.NoError(t, s.ClearAll(ctx))

		rec, err := s.Load(ctx, "g-1")
		require.NoError(t, err)
		assert.Nil(t, rec)
		rec, err = s.Load(ctx, "g-2")
		require.NoError(t, err)
		assert.Nil(t, rec)
		shared, err := s.LoadShared(ctx)
		require.NoError(t, err)
		assert.Empty(t, shared)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(_ *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisStore(client, "")
	})
}

func TestFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	expiresAt := futureExpiry()

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player", ExpiresAt: expiresAt}))
	require.NoError(t, s.SaveShared(ctx, "shared-1"))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	rec, err := reopened.Load(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok-1", rec.Token)
	assert.True(t, rec.ExpiresAt.Equal(expiresAt))
	shared, err := reopened.LoadShared(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared-1", shared)
}

func TestFileStore_Permissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_ClearAllRemovesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))

	require.NoError(t, s.ClearAll(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// ClearAll on a store with no file is a no-op.
	assert.NoError(t, s.ClearAll(ctx))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")
	expiresAt := futureExpiry()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player", ExpiresAt: expiresAt}))
	require.NoError(t, s.SaveShared(ctx, "shared-1"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	rec, err := reopened.Load(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok-1", rec.Token)
	assert.True(t, rec.ExpiresAt.Equal(expiresAt), "want %v, got %v", expiresAt, rec.ExpiresAt)
	shared, err := reopened.LoadShared(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared-1", shared)
}

func newMiniredisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client, "")
}

func TestRedisStore_RecordTTL(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniredisStore(t)

	require.NoError(t, s.Save(ctx, "g-1", Record{
		Token:     "tok-1",
		TokenType: "player",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	rec, err := s.Load(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	// Once the expiry passes, Redis drops the key on its own.
	mr.FastForward(2 * time.Minute)
	rec, err = s.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStore_SaveExpiredClears(t *testing.T) {
	ctx := context.Background()
	_, s := newMiniredisStore(t)

	require.NoError(t, s.Save(ctx, "g-1", Record{Token: "live", TokenType: "player"}))
	require.NoError(t, s.Save(ctx, "g-1", Record{
		Token:     "dead",
		TokenType: "player",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	rec, err := s.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStore_ClearAllKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr, s := newMiniredisStore(t)

	require.NoError(t, s.Save(ctx, "g-1", Record{Token: "tok-1", TokenType: "player"}))
	require.NoError(t, s.SaveShared(ctx, "shared-1"))
	require.NoError(t, mr.Set("unrelated", "keep-me"))

	require.NoError(t, s.ClearAll(ctx))

	rec, err := s.Load(ctx, "g-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	shared, err := s.LoadShared(ctx)
	require.NoError(t, err)
	assert.Empty(t, shared)
	got, err := mr.Get("unrelated")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", got)
}
