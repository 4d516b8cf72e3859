package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fnuworsu/gqldb/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPersistent(t *testing.T, walDir, snapDir string) *PersistentStore {
	t.Helper()
	ps, err := NewPersistentStore(walDir, snapDir, nil)
	require.NoError(t, err)
	return ps
}

func TestPersistence_Restart(t *testing.T) {
	walDir, snapDir := t.TempDir(), t.TempDir()

	ps1 := openPersistent(t, walDir, snapDir)
	alice, err := ps1.Put("alice", value.ObjectOf("name", "Alice", "salary", 1000))
	require.NoError(t, err)
	_, err = ps1.Put("bob", value.ObjectOf("name", "Bob"))
	require.NoError(t, err)
	require.NoError(t, ps1.SetConflicts("bob", []string{"1-x"}))
	require.NoError(t, ps1.Close())

	ps2 := openPersistent(t, walDir, snapDir)
	defer ps2.Close()

	n, err := ps2.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ps2.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, alice.Rev, got.Rev)
	assert.Equal(t, []string{"name", "salary"}, got.Body.Keys())

	bob, err := ps2.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-x"}, bob.Conflicts)

	// New writes continue the sequence
	next, err := ps2.Put("carol", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next.Seq)
}

func TestPersistence_Delete(t *testing.T) {
	walDir, snapDir := t.TempDir(), t.TempDir()

	ps1 := openPersistent(t, walDir, snapDir)
	_, err := ps1.Put("a", value.ObjectOf("n", 1))
	require.NoError(t, err)
	_, err = ps1.Delete("a")
	require.NoError(t, err)
	require.NoError(t, ps1.Close())

	ps2 := openPersistent(t, walDir, snapDir)
	defer ps2.Close()

	_, err = ps2.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)

	changes := collect(t, ps2, ChangesOptions{})
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Deleted)
}

func TestSnapshot_Recovery(t *testing.T) {
	walDir, snapDir := t.TempDir(), t.TempDir()

	ps1 := openPersistent(t, walDir, snapDir)
	for i := 1; i <= 5; i++ {
		_, err := ps1.Put("", value.ObjectOf("i", i))
		require.NoError(t, err)
	}
	require.NoError(t, ps1.Snapshot())
	for i := 6; i <= 10; i++ {
		_, err := ps1.Put("", value.ObjectOf("i", i))
		require.NoError(t, err)
	}
	require.NoError(t, ps1.Close())

	ps2 := openPersistent(t, walDir, snapDir)
	defer ps2.Close()

	n, err := ps2.Count()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, uint64(10), ps2.LastSeq())

	changes := collect(t, ps2, ChangesOptions{IncludeDocs: true})
	require.Len(t, changes, 10)
	for i, c := range changes {
		assert.Equal(t, float64(i+1), c.Doc.Value("i"))
	}
}

func TestSnapshot_TruncatesWAL(t *testing.T) {
	walDir, snapDir := t.TempDir(), t.TempDir()

	ps := openPersistent(t, walDir, snapDir)
	defer ps.Close()

	for i := 0; i < 50; i++ {
		_, err := ps.Put("", value.ObjectOf("i", i))
		require.NoError(t, err)
	}

	walPath := filepath.Join(walDir, "wal.log")
	before, err := os.Stat(walPath)
	require.NoError(t, err)

	require.NoError(t, ps.Snapshot())

	after, err := os.Stat(walPath)
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size())
	assert.Equal(t, int64(0), after.Size())
}

func TestRecovery_EmptyState(t *testing.T) {
	ps := openPersistent(t, t.TempDir(), t.TempDir())
	defer ps.Close()

	n, err := ps.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
