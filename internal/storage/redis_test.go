package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgstorage "github.com/storyweave/gamemaster/pkg/storage"
)

const testStory = `[[World Background]]
A quiet mountain village.

[[Character Profile]]
Ren, a young herbalist.
`

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)

	dataDir := t.TempDir()
	storiesDir := filepath.Join(dataDir, "stories")
	require.NoError(t, os.MkdirAll(storiesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storiesDir, "demo.txt"), []byte(testStory), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewRedisStore(mr.Addr(), dataDir, logger)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStoreSaves(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.WriteSave(ctx, "slot1", []byte(`{"energy":10000}`)))

		exists, err := store.SaveExists(ctx, "slot1")
		require.NoError(t, err)
		assert.True(t, exists)

		data, err := store.ReadSave(ctx, "slot1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"energy":10000}`), data)
	})

	t.Run("overwrite replaces data", func(t *testing.T) {
		require.NoError(t, store.WriteSave(ctx, "slot1", []byte(`{"energy":9000}`)))
		data, err := store.ReadSave(ctx, "slot1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"energy":9000}`), data)
	})

	t.Run("missing save", func(t *testing.T) {
		_, err := store.ReadSave(ctx, "nowhere")
		assert.ErrorIs(t, err, pkgstorage.ErrSaveNotFound)

		exists, err := store.SaveExists(ctx, "nowhere")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, store.WriteSave(ctx, "alpha", []byte("{}")))
		require.NoError(t, store.WriteSave(ctx, "beta", []byte("{}")))

		names, err := store.ListSaves(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta", "slot1"}, names)

		require.NoError(t, store.DeleteSave(ctx, "alpha"))
		names, err = store.ListSaves(ctx)
		require.NoError(t, err)
		assert.NotContains(t, names, "alpha")
	})
}

func TestRedisStoreStories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("list", func(t *testing.T) {
		names, err := store.ListStories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"demo"}, names)
	})

	t.Run("load", func(t *testing.T) {
		tpl, err := store.LoadStory(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, "demo", tpl.Name)
		assert.Equal(t, "A quiet mountain village.", tpl.Background)
		assert.Equal(t, "Ren, a young herbalist.", tpl.Profile)
	})

	t.Run("missing story", func(t *testing.T) {
		_, err := store.LoadStory(ctx, "nowhere")
		assert.ErrorIs(t, err, pkgstorage.ErrStoryNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
