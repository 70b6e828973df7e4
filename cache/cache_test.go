package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func createTestCache(t *testing.T) *Cache {
	c, err := Open(t.Context(), filepath.Join(t.TempDir(), "cache.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRecordAndLookup(t *testing.T) {
	c := createTestCache(t)

	path := filepath.Join(t.TempDir(), "rec.root")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	_, err := c.Lookup(t.Context(), 42, "rec.root")
	require.ErrorIs(t, err, ErrMiss)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, c.Record(t.Context(), Entry{
		RunID:        42,
		Name:         "rec.root",
		Path:         path,
		SHA256:       "abc",
		Size:         7,
		DownloadedAt: at,
	}))

	e, err := c.Lookup(t.Context(), 42, "rec.root")
	require.NoError(t, err)
	require.Equal(t, path, e.Path)
	require.Equal(t, "abc", e.SHA256)
	require.Equal(t, int64(7), e.Size)
	require.True(t, at.Equal(e.DownloadedAt))

	t.Run("other run misses", func(t *testing.T) {
		_, err := c.Lookup(t.Context(), 43, "rec.root")
		require.ErrorIs(t, err, ErrMiss)
	})

	t.Run("record replaces", func(t *testing.T) {
		require.NoError(t, c.Record(t.Context(), Entry{RunID: 42, Name: "rec.root", Path: path, SHA256: "def", Size: 7}))

		e, err := c.Lookup(t.Context(), 42, "rec.root")
		require.NoError(t, err)
		require.Equal(t, "def", e.SHA256)
	})

	t.Run("removed file misses", func(t *testing.T) {
		require.NoError(t, os.Remove(path))

		_, err := c.Lookup(t.Context(), 42, "rec.root")
		require.ErrorIs(t, err, ErrMiss)
	})
}
