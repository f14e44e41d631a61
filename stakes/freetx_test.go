// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFreeTransactionWithoutStake(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	c, err := s.NewCache(false)
	require.NoError(t, err)
	defer c.Drop()

	assert.ErrorIs(t, c.RegisterFreeTransaction(scriptA, newTestTx(scriptA), 10), ErrNoActiveStake)
	_, ok := c.GetFreeTxInfoForScript(scriptA)
	assert.False(t, ok)

	// deactivated stakes do not qualify
	e1 := newTestEntry(1, 100, 0, 100, scriptA)
	require.NoError(t, c.AddNewStakeEntry(e1))
	require.NoError(t, c.DeactivateStake(e1.TxID, false))
	assert.ErrorIs(t, c.RegisterFreeTransaction(scriptA, newTestTx(scriptA), 10), ErrNoActiveStake)
}

func TestRegisterFreeTransactionWithoutAllowanceFunc(t *testing.T) {
	db := newTestDB(t)
	s, err := Open(db, DefaultParams(), Options{})
	require.NoError(t, err)
	addEntries(t, s, newTestEntry(1, 100, 0, 100, scriptA))

	c, err := s.NewCache(false)
	require.NoError(t, err)
	defer c.Drop()
	assert.ErrorIs(t, c.RegisterFreeTransaction(scriptA, newTestTx(scriptA), 10), ErrNoAllowanceFunc)
}

func TestRegisterFreeTransaction(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	addEntries(t, s, newTestEntry(1, 100, 0, 100, scriptA))

	tx := newTestTx(scriptA)
	size := uint32(tx.SerializeSize())
	fits := testAllowance / size
	require.NotZero(t, fits)

	c, err := s.NewCache(false)
	require.NoError(t, err)
	defer c.Drop()

	limit, err := c.CalculateFreeTxLimitForScript(scriptA)
	require.NoError(t, err)
	assert.Equal(t, uint32(testAllowance), limit)

	for range fits {
		require.NoError(t, c.RegisterFreeTransaction(scriptA, tx, 10))
	}
	assert.ErrorIs(t, c.RegisterFreeTransaction(scriptA, tx, 11), ErrFreeTxLimitExceeded)

	info, ok := c.GetFreeTxInfoForScript(scriptA)
	require.True(t, ok)
	assert.Equal(t, FreeTxInfo{Limit: testAllowance, Used: fits * size, ResetHeight: 10}, info)
	assert.Equal(t, fits*size, c.FreeTxSizeForBlock(10))
	assert.Zero(t, c.FreeTxSizeForBlock(11))

	// a new window renews the allowance
	window := s.Params().FreeTxWindow
	require.NoError(t, c.RegisterFreeTransaction(scriptA, tx, 10+window))
	info, _ = c.GetFreeTxInfoForScript(scriptA)
	assert.Equal(t, FreeTxInfo{Limit: testAllowance, Used: size, ResetHeight: 10 + window}, info)

	// so does rewinding below the anchor
	require.NoError(t, c.RegisterFreeTransaction(scriptA, tx, 9))
	info, _ = c.GetFreeTxInfoForScript(scriptA)
	assert.Equal(t, uint32(9), info.ResetHeight)

	require.NoError(t, c.Flush())
	stored, ok := s.GetFreeTxInfoForScript(scriptA)
	require.True(t, ok)
	assert.Equal(t, info, stored)
	assert.Equal(t, fits*size, s.FreeTxSizeForBlock(10))
}

func TestFreeTxLimitSumsActiveStakes(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	params := s.Params()
	params.FreeTxAllowance = func(amount btcutil.Amount, periodIdx uint8) uint32 {
		return uint32(amount) * (uint32(periodIdx) + 1)
	}
	addEntries(t, s,
		newTestEntry(1, 100, 0, 100, scriptA),
		newTestEntry(2, 100, 3, 100, scriptA),
		newTestEntry(3, 999, 0, 100, scriptB),
	)

	require.NoError(t, s.Update(func(c *Cache) error {
		limit, err := c.CalculateFreeTxLimitForScript(scriptA)
		require.NoError(t, err)
		assert.Equal(t, uint32(100+400), limit)

		info, err := c.CreateFreeTxInfoForScript(scriptA, 30)
		require.NoError(t, err)
		assert.Equal(t, FreeTxInfo{Limit: 500, ResetHeight: 30}, info)
		return nil
	}))

	info, ok := s.GetFreeTxInfoForScript(scriptA)
	require.True(t, ok)
	assert.Equal(t, uint32(500), info.Remaining())
}

func TestUnregisterFreeTransaction(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	addEntries(t, s, newTestEntry(1, 100, 0, 100, scriptA))
	tx := newTestTx(scriptA)

	require.NoError(t, s.Update(func(c *Cache) error {
		return c.RegisterFreeTransaction(scriptA, tx, 10)
	}))

	require.NoError(t, s.Update(func(c *Cache) error {
		if err := c.UnregisterFreeTransaction(scriptA, tx, 10); err != nil {
			return err
		}
		// clamped at zero
		return c.UnregisterFreeTransaction(scriptA, tx, 10)
	}))

	info, ok := s.GetFreeTxInfoForScript(scriptA)
	require.True(t, ok)
	assert.Zero(t, info.Used)
	assert.Zero(t, s.FreeTxSizeForBlock(10))
	assert.Zero(t, s.Stats().FreeTxBlocks)
}

func TestRemoveOldFreeTxInfos(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	addEntries(t, s,
		newTestEntry(1, 100, 0, 100, scriptA),
		newTestEntry(2, 100, 0, 100, scriptB),
	)
	tx := newTestTx(scriptA)
	window := s.Params().FreeTxWindow

	// scriptA committed at 10, scriptB pending at 50
	require.NoError(t, s.Update(func(c *Cache) error {
		return c.RegisterFreeTransaction(scriptA, tx, 10)
	}))

	c, err := s.NewCache(false)
	require.NoError(t, err)
	defer c.Drop()
	require.NoError(t, c.RegisterFreeTransaction(scriptB, tx, 50))

	require.NoError(t, c.RemoveOldFreeTxInfos(10+window-1))
	_, ok := c.GetFreeTxInfoForScript(scriptA)
	assert.True(t, ok)

	require.NoError(t, c.RemoveOldFreeTxInfos(10+window))
	_, ok = c.GetFreeTxInfoForScript(scriptA)
	assert.False(t, ok)
	assert.Zero(t, c.FreeTxSizeForBlock(10))
	_, ok = c.GetFreeTxInfoForScript(scriptB)
	assert.True(t, ok)
	assert.NotZero(t, c.FreeTxSizeForBlock(50))

	require.NoError(t, c.RemoveOldFreeTxInfos(50+window))
	_, ok = c.GetFreeTxInfoForScript(scriptB)
	assert.False(t, ok)

	require.NoError(t, c.Flush())
	stats := s.Stats()
	assert.Zero(t, stats.FreeTxScripts)
	assert.Zero(t, stats.FreeTxBlocks)
}
