// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Diff is an immutable description of the changes buffered by a cache.
// It is produced by Cache.Diff and applied by the store on flush.
type Diff struct {
	entries     []Entry
	removed     []chainhash.Hash
	removedSet  IDSet
	active      *idDelta
	byScript    map[string]*idDelta
	completedAt map[uint32]*idDelta
	amounts     amountsDelta
	pool        poolDelta
	freeTx      *freeTxOverlay
	bestBlock   *chainhash.Hash
	size        int
}

// Entries returns the entries to be written, ordered by txid.
func (d *Diff) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	for i := range d.entries {
		out[i] = d.entries[i].clone()
	}
	return out
}

// Removed returns the ids of the entries to be deleted, in byte order.
func (d *Diff) Removed() []chainhash.Hash {
	return append([]chainhash.Hash(nil), d.removed...)
}

// Activated returns the ids entering the active set.
func (d *Diff) Activated() []chainhash.Hash { return d.active.added.Sorted() }

// Deactivated returns the ids leaving the active set.
func (d *Diff) Deactivated() []chainhash.Hash { return d.active.removed.Sorted() }

// AmountsDelta returns the change of the per period amounts.
func (d *Diff) AmountsDelta() []btcutil.Amount {
	return append([]btcutil.Amount(nil), d.amounts...)
}

// PoolDelta returns the change of the staking pool totals as a pool.
// ActiveStakes is signed and returned separately.
func (d *Diff) PoolDelta() (StakingPool, int64) {
	return StakingPool{
		TotalStaked:        d.pool.staked,
		RewardsIssued:      d.pool.rewards,
		PenaltiesCollected: d.pool.penalties,
	}, d.pool.stakes
}

// BestBlock returns the best block set by the cache, if any.
func (d *Diff) BestBlock() (chainhash.Hash, bool) {
	if d.bestBlock == nil {
		return chainhash.Hash{}, false
	}
	return *d.bestBlock, true
}

// Size returns the estimated size of the diff.
func (d *Diff) Size() int { return d.size }

// IsEmpty returns whether applying the diff changes nothing.
func (d *Diff) IsEmpty() bool {
	if len(d.entries) > 0 || len(d.removed) > 0 || d.bestBlock != nil {
		return false
	}
	if !d.active.empty() || !d.amounts.isZero() || !d.pool.isZero() || !d.freeTx.empty() {
		return false
	}
	for _, delta := range d.byScript {
		if !delta.empty() {
			return false
		}
	}
	for _, delta := range d.completedAt {
		if !delta.empty() {
			return false
		}
	}
	return true
}

func (d *Diff) isRemoved(id chainhash.Hash) bool {
	return d.removedSet.Contains(id)
}
