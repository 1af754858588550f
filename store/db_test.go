// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T, db Database) {
	require := require.New(t)

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(err, ErrNotFound)

	require.NoError(db.Put([]byte("swap/b"), []byte{2}))
	require.NoError(db.Put([]byte("swap/a"), []byte{1}))
	require.NoError(db.Put([]byte("meta/x"), []byte{9}))

	v, err := db.Get([]byte("swap/a"))
	require.NoError(err)
	require.Equal([]byte{1}, v)

	has, err := db.Has([]byte("swap/b"))
	require.NoError(err)
	require.True(has)

	var keys []string
	require.NoError(db.Iterate([]byte("swap/"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	require.Equal([]string{"swap/a", "swap/b"}, keys)

	errStop := errors.New("stop")
	err = db.Iterate([]byte("swap/"), func(_, _ []byte) error { return errStop })
	require.ErrorIs(err, errStop)

	require.NoError(db.Delete([]byte("swap/a")))
	require.NoError(db.Delete([]byte("swap/a")))
	has, err = db.Has([]byte("swap/a"))
	require.NoError(err)
	require.False(has)
}

func TestMemLevelDB(t *testing.T) {
	db, err := NewMemLevelDB()
	require.NoError(t, err)
	defer db.Close()

	testDatabase(t, db)
}

func TestLevelDBReopen(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	require.NoError(err)
	testDatabase(t, db)
	require.NoError(db.Close())

	db, err = NewLevelDB(path)
	require.NoError(err)
	defer db.Close()

	v, err := db.Get([]byte("swap/b"))
	require.NoError(err)
	require.Equal([]byte{2}, v)
}
