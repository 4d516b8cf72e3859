package storage

import (
	"path/filepath"
	"testing"

	"github.com/fnuworsu/gqldb/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.Put("a", value.ObjectOf("zeta", 1, "alpha", []any{"x", 2}, "nested", map[string]any{"k": true}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), doc.Seq)

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, doc.Rev, got.Rev)
	assert.Equal(t, []string{"zeta", "alpha", "nested"}, got.Body.Keys())
	assert.Equal(t, []any{"x", 2.0}, got.Body.Value("alpha"))
	assert.Equal(t, true, got.Body.Value("nested").(*value.Object).Value("k"))
}

func TestSQLiteStore_UpdateDeleteConflicts(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Put("a", value.ObjectOf("n", 1))
	require.NoError(t, err)
	_, err = s.Put("b", value.ObjectOf("n", 2))
	require.NoError(t, err)

	_, err = s.Put("a", value.ObjectOf("_rev", "9-nope", "n", 3))
	assert.ErrorIs(t, err, ErrConflict)

	second, err := s.Put("a", value.ObjectOf("_rev", first.Rev, "n", 3))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Generation())

	require.NoError(t, s.SetConflicts("b", []string{"1-other"}))
	_, err = s.Delete("b")
	require.NoError(t, err)
	_, err = s.Delete("b")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	changes := collect(t, s, ChangesOptions{IncludeDocs: true})
	require.Len(t, changes, 2)
	assert.Equal(t, "a", changes[0].ID)
	assert.Equal(t, 3.0, changes[0].Doc.Value("n"))
	assert.Equal(t, "b", changes[1].ID)
	assert.True(t, changes[1].Deleted)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s1.Put("a", value.ObjectOf("name", "Alice"))
	require.NoError(t, err)
	require.NoError(t, s1.SetConflicts("a", []string{"1-x"}))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	changes := collect(t, s2, ChangesOptions{IncludeDocs: true, Conflicts: true})
	require.Len(t, changes, 1)
	assert.Equal(t, "Alice", changes[0].Doc.Value("name"))
	assert.Equal(t, []any{"1-x"}, changes[0].Doc.Value("_conflicts"))
}
