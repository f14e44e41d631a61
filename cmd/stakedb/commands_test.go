// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakedb/lvldb"
	"github.com/vechain/stakedb/metrics"
	"github.com/vechain/stakedb/stakes"
)

func TestMain(m *testing.M) {
	// stakes meters bind to the backend on first use
	metrics.InitializePrometheusMetrics()
	os.Exit(m.Run())
}

var ownerScript = []byte{0x76, 0xa9, 0x14, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x88, 0xac}

// newDataDir creates a database holding one active and one completed stake,
// and one free transaction of the owner at height 20.
func newDataDir(t *testing.T) (string, chainhash.Hash) {
	dir := filepath.Join(t.TempDir(), "stakes")
	db, err := lvldb.New(dir, lvldb.Options{})
	require.NoError(t, err)
	defer db.Close()

	params := stakes.DefaultParams()
	params.FreeTxAllowance = func(amount btcutil.Amount, _ uint8) uint32 {
		return uint32(amount / btcutil.SatoshiPerBitcoin * 1000)
	}
	s, err := stakes.Open(db, params, stakes.Options{})
	require.NoError(t, err)

	active := chainhash.Hash{1}
	completed := chainhash.Hash{2}
	require.NoError(t, s.Update(func(c *stakes.Cache) error {
		if err := c.AddNewStakeEntry(stakes.NewEntry(active, 5*btcutil.SatoshiPerBitcoin, 1000, 0, 5000, 0, ownerScript, true)); err != nil {
			return err
		}
		if err := c.AddNewStakeEntry(stakes.NewEntry(completed, btcutil.SatoshiPerBitcoin, 100, 1, 13000, 1, ownerScript, true)); err != nil {
			return err
		}
		if err := c.DeactivateStake(completed, true); err != nil {
			return err
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
		tx.AddTxOut(wire.NewTxOut(1000, ownerScript))
		if err := c.RegisterFreeTransaction(ownerScript, tx, 20); err != nil {
			return err
		}
		return c.SetBestBlock(chainhash.Hash{9})
	}))
	require.NoError(t, s.Close())
	return dir, active
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"stakedb", "--verbosity", "0"}, args...))
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	dir, _ := newDataDir(t)
	out, err := run(t, "--datadir", dir, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 1 active stakes")
}

func TestStatsCommand(t *testing.T) {
	dir, _ := newDataDir(t)
	out, err := run(t, "--datadir", dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "4320")
	assert.Contains(t, out, "5 BTC")
	assert.Contains(t, out, "rewards issued")
}

func TestShowCommand(t *testing.T) {
	dir, active := newDataDir(t)
	out, err := run(t, "--datadir", dir, "show", active.String())
	require.NoError(t, err)
	assert.Contains(t, out, "deposit block: 681")
	assert.Contains(t, out, "OP_DUP OP_HASH160")

	_, err = run(t, "--datadir", dir, "show", chainhash.Hash{7}.String())
	assert.Error(t, err)

	_, err = run(t, "--datadir", dir, "show", "xyz")
	assert.Error(t, err)
}

func TestScriptCommand(t *testing.T) {
	dir, active := newDataDir(t)
	params := writeFile(t, "free_tx_bytes_per_coin: 100\n")

	out, err := run(t, "--datadir", dir, "--params", params, "script", hex.EncodeToString(ownerScript))
	require.NoError(t, err)
	assert.Contains(t, out, active.String())
	assert.Contains(t, out, "free tx: limit 5000")
	assert.Contains(t, out, "window started at 20")
	assert.Contains(t, out, "free tx limit for a new window: 500")

	_, err = run(t, "--datadir", dir, "script", "zz")
	assert.Error(t, err)
}

func TestPurgeFreeTxCommand(t *testing.T) {
	dir, _ := newDataDir(t)

	out, err := run(t, "--datadir", dir, "purge-freetx", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 scripts and 0 blocks")

	out, err = run(t, "--datadir", dir, "purge-freetx", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 scripts and 1 blocks")

	// persisted by the command
	out, err = run(t, "--datadir", dir, "script", hex.EncodeToString(ownerScript))
	require.NoError(t, err)
	assert.Contains(t, out, "free tx: none")

	_, err = run(t, "--datadir", dir, "purge-freetx", "-1")
	assert.Error(t, err)
}

func TestMetricsFlag(t *testing.T) {
	dir, _ := newDataDir(t)
	out, err := run(t, "--datadir", dir, "--metrics", "purge-freetx", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "stakedb_active_stakes")
	assert.Contains(t, out, "stakedb_flushes_count")
}
