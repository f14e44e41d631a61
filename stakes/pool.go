// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import "github.com/btcsuite/btcd/btcutil"

// StakingPool holds the totals of the staking sub-ledger.
// How rewards are issued is decided by consensus, the pool only accounts for them.
type StakingPool struct {
	TotalStaked        btcutil.Amount // sum of active principals
	ActiveStakes       uint64         // number of active entries
	RewardsIssued      btcutil.Amount // rewards assigned to completed entries
	PenaltiesCollected btcutil.Amount // penalties of early withdrawals
}

// poolDelta is a pending change of the pool.
type poolDelta struct {
	staked    btcutil.Amount
	stakes    int64
	rewards   btcutil.Amount
	penalties btcutil.Amount
}

func (d *poolDelta) activate(e *Entry) {
	d.staked += e.Amount
	d.stakes++
}

func (d *poolDelta) deactivate(e *Entry) {
	d.staked -= e.Amount
	d.stakes--
}

// settle credits what e accounts for in the pool: the reward once complete,
// the early withdrawal penalty when withdrawn before completion.
func (d *poolDelta) settle(e *Entry, penaltyPercent float64) {
	switch {
	case e.Complete:
		d.rewards += e.Reward
	case !e.Active:
		d.penalties += penalty(e.Amount, penaltyPercent)
	}
}

// unsettle reverses settle.
func (d *poolDelta) unsettle(e *Entry, penaltyPercent float64) {
	switch {
	case e.Complete:
		d.rewards -= e.Reward
	case !e.Active:
		d.penalties -= penalty(e.Amount, penaltyPercent)
	}
}

func (d poolDelta) isZero() bool {
	return d == poolDelta{}
}

// apply returns the pool with the delta applied.
func (d poolDelta) apply(p StakingPool) StakingPool {
	p.TotalStaked += d.staked
	p.ActiveStakes = uint64(int64(p.ActiveStakes) + d.stakes)
	p.RewardsIssued += d.rewards
	p.PenaltiesCollected += d.penalties
	return p
}

// amountsDelta is a pending change of the per period amounts.
type amountsDelta []btcutil.Amount

func (d amountsDelta) isZero() bool {
	for _, a := range d {
		if a != 0 {
			return false
		}
	}
	return true
}

// apply returns base with the delta applied, leaving base untouched.
func (d amountsDelta) apply(base []btcutil.Amount) []btcutil.Amount {
	out := make([]btcutil.Amount, len(base))
	copy(out, base)
	for i, a := range d {
		out[i] += a
	}
	return out
}
