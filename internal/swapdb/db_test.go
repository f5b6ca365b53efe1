package swapdb_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/xmrswap/internal/swapdb"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := swapdb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("swap-1", []byte("snapshot-1")))

	got, err := store.Get("swap-1")
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-1"), got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store, err := swapdb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("missing")
	require.ErrorIs(t, err, swapdb.ErrNotFound)
}

func TestPutOverwritesPreviousSnapshot(t *testing.T) {
	store, err := swapdb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("swap-1", []byte("v1")))
	require.NoError(t, store.Put("swap-1", []byte("v2")))

	got, err := store.Get("swap-1")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestListReturnsAllSwapIDs(t *testing.T) {
	store, err := swapdb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("swap-a", []byte("a")))
	require.NoError(t, store.Put("swap-b", []byte("b")))

	ids, err := store.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"swap-a", "swap-b"}, ids)
}

func TestDeleteRemovesSnapshot(t *testing.T) {
	store, err := swapdb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("swap-1", []byte("v1")))
	require.NoError(t, store.Delete("swap-1"))

	_, err = store.Get("swap-1")
	require.ErrorIs(t, err, swapdb.ErrNotFound)
}

func TestReopenPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	store, err := swapdb.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("swap-1", []byte("snapshot-1")))
	require.NoError(t, store.Close())

	reopened, err := swapdb.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("swap-1")
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-1"), got)
}
