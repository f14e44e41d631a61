// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakedb/kv"
	"github.com/vechain/stakedb/lvldb"
)

const testAllowance = 150

var (
	scriptA = []byte{0x51}
	scriptB = []byte{0x52}
)

func testParams() *Params {
	p := DefaultParams()
	p.FreeTxAllowance = func(btcutil.Amount, uint8) uint32 { return testAllowance }
	return p
}

func newTestDB(t *testing.T) *lvldb.LevelDB {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T, opts Options) (*Store, *lvldb.LevelDB) {
	db := newTestDB(t)
	s, err := Open(db, testParams(), opts)
	require.NoError(t, err)
	return s, db
}

func hash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	h[31] = b
	return h
}

func newTestEntry(id byte, amount btcutil.Amount, periodIdx uint8, completeBlock uint32, script []byte) Entry {
	return NewEntry(hash(id), amount, 0, periodIdx, completeBlock, 1, script, true)
}

func newTestTx(script []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, script))
	return tx
}

// addEntries adds and flushes the entries in a single cache.
func addEntries(t *testing.T, s *Store, entries ...Entry) {
	require.NoError(t, s.Update(func(c *Cache) error {
		for _, e := range entries {
			if err := c.AddNewStakeEntry(e); err != nil {
				return err
			}
		}
		return nil
	}))
}

// dump returns every kv pair of the store.
func dump(t *testing.T, db kv.Store) map[string]string {
	iter := db.Iterate(kv.Range{})
	defer iter.Release()

	out := make(map[string]string)
	for iter.Next() {
		out[string(iter.Key())] = string(iter.Value())
	}
	require.NoError(t, iter.Error())
	return out
}

var errFaulty = errors.New("disk full")

// faultyStore fails every bulk op once failAfter ops succeeded.
type faultyStore struct {
	kv.Store
	failAfter int
	ops       int
}

func (f *faultyStore) fail() bool {
	if f.failAfter < 0 {
		return false
	}
	f.ops++
	return f.ops > f.failAfter
}

func (f *faultyStore) Bulk() kv.Bulk {
	return &faultyBulk{Bulk: f.Store.Bulk(), store: f}
}

type faultyBulk struct {
	kv.Bulk
	store *faultyStore
}

func (b *faultyBulk) Put(key, val []byte) error {
	if b.store.fail() {
		return errFaulty
	}
	return b.Bulk.Put(key, val)
}

func (b *faultyBulk) Delete(key []byte) error {
	if b.store.fail() {
		return errFaulty
	}
	return b.Bulk.Delete(key)
}
