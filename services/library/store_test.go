package library

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, fsys afero.Fs) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "library.db"), fsys)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestItemIDIsMD5OfCacheID(t *testing.T) {
	sum := md5.Sum([]byte("10"))
	id := ItemID("10")
	assert.Equal(t, hex.EncodeToString(sum[:]), strings.ReplaceAll(id.String(), "-", ""))
	assert.Equal(t, id, ItemID("10"))
	assert.NotEqual(t, id, ItemID("11"))
}

func TestSortName(t *testing.T) {
	assert.Equal(t, "amelie - trailer", SortName("  Amélie -  Trailer "))
	assert.Equal(t, "leon", SortName("Léon"))
}

func TestStoreCreateGetList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, afero.NewMemMapFs())

	b := NewItem("b", "Zoo Trailer", "/cache/b.mp4")
	a := NewItem("a", "Alpha Trailer", "/cache/a.mp4")
	require.NoError(t, store.Create(ctx, b))
	require.NoError(t, store.Create(ctx, a))

	got, err := store.Get(ctx, ItemID("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", got.CacheID)
	assert.Equal(t, "alpha trailer", got.SortName)
	assert.Equal(t, "/cache/a.mp4", got.Path)
	assert.False(t, got.CreatedAt.IsZero())

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].CacheID)
	assert.Equal(t, "b", items[1].CacheID)
}

func TestStoreCreateIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, afero.NewMemMapFs())

	require.NoError(t, store.Create(ctx, NewItem("x", "First", "/cache/x.mp4")))
	require.NoError(t, store.Create(ctx, NewItem("x", "Second", "/cache/x.mp4")))

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Second", items[0].Name)
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t, afero.NewMemMapFs())

	_, err := store.Get(context.Background(), ItemID("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(context.Background(), ItemID("nope"), true), ErrNotFound)
}

func TestStoreDeleteRemovesFile(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	store := openTestStore(t, fsys)

	require.NoError(t, afero.WriteFile(fsys, "/cache/10.mp4", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/cache/11.mp4", []byte("x"), 0o644))
	require.NoError(t, store.Create(ctx, NewItem("10", "Ten", "/cache/10.mp4")))
	require.NoError(t, store.Create(ctx, NewItem("11", "Eleven", "/cache/11.mp4")))

	require.NoError(t, store.Delete(ctx, ItemID("10"), true))
	require.NoError(t, store.Delete(ctx, ItemID("11"), false))

	exists, err := afero.Exists(fsys, "/cache/10.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fsys, "/cache/11.mp4")
	require.NoError(t, err)
	assert.True(t, exists)

	items, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreDeleteToleratesMissingFile(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, afero.NewMemMapFs())

	require.NoError(t, store.Create(ctx, NewItem("gone", "Gone", "/cache/gone.mp4")))
	assert.NoError(t, store.Delete(ctx, ItemID("gone"), true))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	first, err := Open(context.Background(), path, afero.NewMemMapFs())
	require.NoError(t, err)
	require.NoError(t, first.Create(context.Background(), NewItem("k", "Kept", "/k.mp4")))
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path, afero.NewMemMapFs())
	require.NoError(t, err)
	defer second.Close()
	items, err := second.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
