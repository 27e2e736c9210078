// SPDX-License-Identifier: MIT

package mode

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreContract(t *testing.T, store Store) {
	t.Helper()

	_, found, err := store.Get("absent")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set("k", "v"))
	v, found, err := store.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", v)

	require.NoError(t, store.Set("k", "v2"))
	v, _, err = store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, store.Remove("k"))
	_, found, err = store.Get("k")
	require.NoError(t, err)
	assert.False(t, found)

	// Removing an absent key is not an error.
	require.NoError(t, store.Remove("k"))
}

func TestMemStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemStore())
}

func TestFileStore_Contract(t *testing.T) {
	runStoreContract(t, NewFileStore(filepath.Join(t.TempDir(), "state.json")))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, NewFileStore(path).Set(ExitFlagKey, "true"))

	v, found, err := NewFileStore(path).Get(ExitFlagKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "true", v)
}

func TestBadgerStore_Contract(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ExitFlagKey, "true"))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, found, err := reopened.Get(ExitFlagKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "true", v)
}
