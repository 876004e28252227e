package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the behaviour every Backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	key := "kitchen-lens-test-" + t.Name()
	t.Cleanup(func() { _ = b.Delete(ctx, key) })

	_, err := b.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, key, []byte(`{"a":1}`)))
	got, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	require.NoError(t, b.Set(ctx, key, []byte(`{"a":2}`)))
	got, err = b.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)

	require.NoError(t, b.Delete(ctx, key))
	_, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	require.NoError(t, b.Delete(ctx, key))

	assert.NoError(t, b.Ping(ctx))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestMemoryBackend_CopiesValues(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	value := []byte("abc")
	require.NoError(t, b.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestSQLiteBackend(t *testing.T) {
	store, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer store.Close()

	exerciseBackend(t, store)
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "kitchen-lens.db")

	store, err := NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "slot", []byte("saved")))
	require.NoError(t, store.Close())

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, []byte("saved"), got)
}

func TestRedisBackend(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	b, err := NewRedisBackend(context.Background(), redisURL)
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{Kind: KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(ctx, Options{Kind: KindSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	b.Close()

	_, err = Open(ctx, Options{Kind: "etcd"})
	assert.ErrorContains(t, err, "unknown store backend")
}
