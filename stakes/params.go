// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
)

// FreeTxAllowanceFunc returns the free transaction allowance in bytes granted by one
// active stake of the given amount and staking period.
type FreeTxAllowanceFunc func(amount btcutil.Amount, periodIdx uint8) uint32

// Params are the consensus parameters the stakes database consumes.
type Params struct {
	// StakingPeriods is the duration in blocks of each staking period, indexed by period index.
	StakingPeriods []uint32
	// EarlyWithdrawalPenaltyPercent is the share of the principal forfeited by an early withdrawal.
	EarlyWithdrawalPenaltyPercent float64
	// FreeTxWindow is the number of blocks a free transaction allowance stays valid.
	// Bookkeeping older than the window is purged by RemoveOldFreeTxInfos.
	FreeTxWindow uint32
	// FreeTxAllowance is the allowance formula. Free transactions are refused while it is nil.
	FreeTxAllowance FreeTxAllowanceFunc
}

// DefaultParams returns the mainnet period table, penalty and window.
// The allowance formula is left unset.
func DefaultParams() *Params {
	return &Params{
		StakingPeriods:                []uint32{4320, 12960, 25920, 52560}, // 1, 3, 6 and 12 months of blocks
		EarlyWithdrawalPenaltyPercent: 3,
		FreeTxWindow:                  144,
	}
}

// NumPeriods returns the number of staking periods.
func (p *Params) NumPeriods() int {
	return len(p.StakingPeriods)
}

// PeriodDuration returns the duration of the given period.
func (p *Params) PeriodDuration(periodIdx uint8) (uint32, error) {
	if int(periodIdx) >= len(p.StakingPeriods) {
		return 0, errors.Wrapf(ErrInvalidPeriod, "period %d", periodIdx)
	}
	return p.StakingPeriods[periodIdx], nil
}

// Validate checks the parameters are usable.
func (p *Params) Validate() error {
	if len(p.StakingPeriods) == 0 {
		return errors.New("no staking periods")
	}
	if len(p.StakingPeriods) > 256 {
		return errors.New("too many staking periods")
	}
	for i, d := range p.StakingPeriods {
		if d == 0 {
			return errors.Errorf("staking period %d has zero duration", i)
		}
	}
	if p.EarlyWithdrawalPenaltyPercent < 0 || p.EarlyWithdrawalPenaltyPercent > 100 {
		return errors.Errorf("penalty percent %v out of range", p.EarlyWithdrawalPenaltyPercent)
	}
	if p.FreeTxWindow == 0 {
		return errors.New("zero free transaction window")
	}
	return nil
}

// Options configure a Store.
type Options struct {
	// MaxCacheSize is the estimated pending size at which a mutable cache flushes implicitly.
	MaxCacheSize int
	// BatchSize is the diff size above which a flush is written by an auto flushing, non-atomic bulk.
	BatchSize int
	// EntryCacheCapacity is the number of entries kept in the store's read cache.
	EntryCacheCapacity int
	// VerifyOnFlush runs a full Verify after every flush.
	VerifyOnFlush bool
}

const (
	DefaultMaxCacheSize       = 450 << 20
	DefaultBatchSize          = 45 << 20
	DefaultEntryCacheCapacity = 16384
)

func (o Options) withDefaults() Options {
	if o.MaxCacheSize <= 0 {
		o.MaxCacheSize = DefaultMaxCacheSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.EntryCacheCapacity <= 0 {
		o.EntryCacheCapacity = DefaultEntryCacheCapacity
	}
	return o
}
