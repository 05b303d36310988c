package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	ok, err := db.Has([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)

	batch := NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Put([]byte("a"), []byte("3"))
	require.Equal(t, 2, batch.Len())
	require.NoError(t, db.Write(batch))

	value, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), value)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
	require.Equal(t, 2, db.Len())
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("value")
	require.NoError(t, db.Put([]byte("k"), buf))
	buf[0] = 'X'
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	require.NoError(t, err)
	exerciseDatabase(t, db)
	db.Close()

	reopened, err := NewLevelDB(path)
	require.NoError(t, err)
	defer reopened.Close()
	value, err := reopened.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}

func TestBatchCopiesInput(t *testing.T) {
	batch := NewBatch()
	key := []byte("k")
	val := []byte("v")
	batch.Put(key, val)
	key[0], val[0] = 'x', 'y'

	db := NewMemDB()
	require.NoError(t, db.Write(batch))
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	batch.Reset()
	require.Equal(t, 0, batch.Len())
}

func TestBoltDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.bolt")
	db, err := NewBoltDB(path)
	require.NoError(t, err)
	exerciseDatabase(t, db)
	db.Close()

	reopened, err := Open("bolt", path)
	require.NoError(t, err)
	defer reopened.Close()
	value, err := reopened.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), value)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocks", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
}
