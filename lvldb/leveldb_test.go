// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lvldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakedb/kv"
)

func TestLevelDB(t *testing.T) {
	var (
		key        = []byte("123")
		value      = []byte("456")
		inValidKey = []byte("abc")
	)

	disk, err := New(filepath.Join(t.TempDir(), "stakes"), Options{CacheSize: 16, OpenFilesCacheCapacity: 16, Sync: true})
	require.NoError(t, err)
	defer disk.Close()

	mem, err := NewMem()
	require.NoError(t, err)
	defer mem.Close()

	for _, ldb := range []*LevelDB{disk, mem} {
		assert.NoError(t, ldb.Put(key, value))

		ret1, err := ldb.Get(key)
		assert.NoError(t, err)

		ret2, err := ldb.Has(key)
		assert.NoError(t, err)

		ret3, err := ldb.Has(inValidKey)
		assert.NoError(t, err)

		assert.NoError(t, ldb.Delete(key))

		_, ret4 := ldb.Get(key)

		tests := []struct {
			ret      any
			expected any
		}{
			{ret1, value},
			{ret2, true},
			{ret3, false},
			{ldb.IsNotFound(ret4), true},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, tt.ret)
		}
	}
}

func TestLevelDBBulk(t *testing.T) {
	ldb, err := NewMem()
	require.NoError(t, err)
	defer ldb.Close()

	bulk := ldb.Bulk()
	assert.NoError(t, bulk.Put([]byte("k1"), []byte("v1")))
	assert.NoError(t, bulk.Put([]byte("k2"), []byte("v2")))

	// nothing visible before write
	has, err := ldb.Has([]byte("k1"))
	assert.NoError(t, err)
	assert.False(t, has)

	assert.NoError(t, bulk.Write())

	v, err := ldb.Get([]byte("k2"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	bulk = ldb.Bulk()
	assert.NoError(t, bulk.Delete([]byte("k1")))
	assert.NoError(t, bulk.Write())

	has, err = ldb.Has([]byte("k1"))
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestLevelDBBulkAutoFlush(t *testing.T) {
	ldb, err := NewMem()
	require.NoError(t, err)
	defer ldb.Close()
	ldb.batchSize = 1

	bulk := ldb.Bulk()
	bulk.EnableAutoFlush()
	assert.NoError(t, bulk.Put([]byte("k1"), []byte("v1")))

	// written out as soon as the batch reaches the batch size
	has, err := ldb.Has([]byte("k1"))
	assert.NoError(t, err)
	assert.True(t, has)
	assert.NoError(t, bulk.Write())
}

func TestLevelDBSnapshot(t *testing.T) {
	ldb, err := NewMem()
	require.NoError(t, err)
	defer ldb.Close()

	assert.NoError(t, ldb.Put([]byte("k"), []byte("old")))

	snap := ldb.Snapshot()
	defer snap.Release()

	assert.NoError(t, ldb.Put([]byte("k"), []byte("new")))
	assert.NoError(t, ldb.Put([]byte("k2"), []byte("v")))

	v, err := snap.Get([]byte("k"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("old"), v)

	_, err = snap.Get([]byte("k2"))
	assert.True(t, snap.IsNotFound(err))
}

func TestLevelDBIterate(t *testing.T) {
	ldb, err := NewMem()
	require.NoError(t, err)
	defer ldb.Close()

	for _, k := range []string{"a1", "b1", "b2", "c1"} {
		assert.NoError(t, ldb.Put([]byte(k), []byte(k)))
	}

	store := kv.Bucket("b").NewStore(ldb)
	iter := store.Iterate(kv.Range{})
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	assert.NoError(t, iter.Error())
	assert.Equal(t, []string{"1", "2"}, keys)
}
