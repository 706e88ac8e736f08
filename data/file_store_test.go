package data

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func storedSnapshot() *Snapshot {
	snap := NewSnapshot(testState(), "explore", false)
	snap.SessionID = "5b1e6f0e-2f7a-4a8e-9d5c-0c3b1f0e9a11"
	snap.Sequence = 7
	return snap
}

func TestSnapshotFileDeterministic(t *testing.T) {
	a, err := EncodeSnapshotFile(storedSnapshot())
	require.NoError(t, err)
	b, err := EncodeSnapshotFile(storedSnapshot())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Latest(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)

	snap := storedSnapshot()
	require.NoError(t, store.Put(context.Background(), snap))

	got, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, snap, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, SnapshotFileName(snap), entries[0].Name())
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
	}

	names, err := store.List()
	require.NoError(t, err)
	require.Equal(t, []string{SnapshotFileName(snap)}, names)
}

func TestFileStoreRejectsCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	snap := storedSnapshot()
	require.NoError(t, store.Put(context.Background(), snap))
	path := filepath.Join(dir, SnapshotFileName(snap))

	t.Run("digest", func(t *testing.T) {
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		b[len(snapshotMagic)] ^= 0xff
		require.NoError(t, os.WriteFile(path, b, 0o600))

		_, err = ReadSnapshotFile(path)
		require.ErrorIs(t, err, ErrCorruptSnapshot)
		require.Contains(t, err.Error(), "digest mismatch")
	})

	t.Run("header", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))
		_, err := ReadSnapshotFile(path)
		require.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("truncated payload", func(t *testing.T) {
		full, err := EncodeSnapshotFile(snap)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, full[:len(full)-10], 0o600))
		_, err = ReadSnapshotFile(path)
		require.ErrorIs(t, err, ErrCorruptSnapshot)
	})
}

func TestFileStoreCanceled(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, store.Put(ctx, storedSnapshot()), context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
