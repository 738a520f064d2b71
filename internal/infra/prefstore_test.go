package infra

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrefStore(t *testing.T) *SQLitePrefStore {
	t.Helper()
	s, err := NewPrefStoreAtPath(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestPrefStore_GetMissingKey verifies unknown keys report absence, not error
func TestPrefStore_GetMissingKey(t *testing.T) {
	s := newTestPrefStore(t)

	_, ok, err := s.Get("rules")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPrefStore_SetReplacesWholeBlob verifies full-replace semantics
func TestPrefStore_SetReplacesWholeBlob(t *testing.T) {
	s := newTestPrefStore(t)

	require.NoError(t, s.Set("rules", []byte(`[1,2,3]`)))
	require.NoError(t, s.Set("rules", []byte(`[4]`)))

	data, ok, err := s.Get("rules")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[4]`), data)
}

// TestPrefStore_KeysAreIndependent verifies the two aggregates do not clash
func TestPrefStore_KeysAreIndependent(t *testing.T) {
	s := newTestPrefStore(t)

	require.NoError(t, s.Set("rules", []byte(`[]`)))
	require.NoError(t, s.Set("dockConfig", []byte(`{}`)))

	rules, ok, err := s.Get("rules")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), rules)

	cfg, ok, err := s.Get("dockConfig")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{}`), cfg)
}

// TestPrefStore_PersistsAcrossReopen verifies durability
func TestPrefStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := NewPrefStoreAtPath(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("rules", []byte(`["a"]`)))
	require.NoError(t, s.Close())

	reopened, err := NewPrefStoreAtPath(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, ok, err := reopened.Get("rules")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`["a"]`), data)
}
