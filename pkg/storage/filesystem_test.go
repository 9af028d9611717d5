package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndList(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("10000002/2.png", []byte("b"))
	require.NoError(t, err)
	_, err = store.Save("10000002/1.png", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("10000001/1.png", []byte("c"))
	require.NoError(t, err)

	dirs, err := store.ListDirs(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"10000001", "10000002"}, dirs)

	files, err := store.ListFiles("10000002")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.png", "2.png"}, files)

	exists, err := store.Exists("10000001/1.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists("10000001/9.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorageListMissingDir(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	dirs, err := store.ListDirs("missing")
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestLocalStorageTempCommit(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	tmp, err := store.TempPath("model.yml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, []byte("model"), 0o644))

	files, err := store.ListFiles(".")
	require.NoError(t, err)
	assert.Empty(t, files, "temp files stay hidden until committed")

	require.NoError(t, store.Commit(tmp, "model.yml"))
	data, err := os.ReadFile(filepath.Join(base, "model.yml"))
	require.NoError(t, err)
	assert.Equal(t, "model", string(data))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("new.csv", []byte("new"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(base, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)

	exists, err := store.Exists("new.csv")
	require.NoError(t, err)
	assert.True(t, exists)
}
