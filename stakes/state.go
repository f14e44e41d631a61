// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// state is the committed in-memory state of a store: the secondary indexes of the
// entry set and the aggregates persisted next to it.
type state struct {
	active      IDSet
	byScript    map[string]IDSet
	completedAt map[uint32]IDSet
	amounts     []btcutil.Amount
	pool        StakingPool
	freeTx      map[string]FreeTxInfo
	blockFreeTx map[uint32]uint32
	bestBlock   chainhash.Hash
}

func newState(numPeriods int) *state {
	return &state{
		active:      IDSet{},
		byScript:    make(map[string]IDSet),
		completedAt: make(map[uint32]IDSet),
		amounts:     make([]btcutil.Amount, numPeriods),
		freeTx:      make(map[string]FreeTxInfo),
		blockFreeTx: make(map[uint32]uint32),
	}
}

func (s *state) clone() *state {
	c := &state{
		active:      s.active.Clone(),
		byScript:    make(map[string]IDSet, len(s.byScript)),
		completedAt: make(map[uint32]IDSet, len(s.completedAt)),
		amounts:     append([]btcutil.Amount(nil), s.amounts...),
		pool:        s.pool,
		freeTx:      make(map[string]FreeTxInfo, len(s.freeTx)),
		blockFreeTx: make(map[uint32]uint32, len(s.blockFreeTx)),
		bestBlock:   s.bestBlock,
	}
	for k, v := range s.byScript {
		c.byScript[k] = v.Clone()
	}
	for k, v := range s.completedAt {
		c.completedAt[k] = v.Clone()
	}
	for k, v := range s.freeTx {
		c.freeTx[k] = v
	}
	for k, v := range s.blockFreeTx {
		c.blockFreeTx[k] = v
	}
	return c
}

// index adds a stored entry to the indexes and the totals derived from the entry set.
func (s *state) index(e *Entry) {
	addTo(s.completedAt, e.CompleteBlock, e.TxID)
	if !e.Active {
		return
	}
	s.active.Add(e.TxID)
	addTo(s.byScript, e.scriptKey(), e.TxID)
	s.amounts[e.PeriodIdx] += e.Amount
	s.pool.TotalStaked += e.Amount
	s.pool.ActiveStakes++
}

func addTo[K comparable](m map[K]IDSet, k K, id chainhash.Hash) {
	set, ok := m[k]
	if !ok {
		set = IDSet{}
		m[k] = set
	}
	set.Add(id)
}

// applyTo applies d to every set of m, dropping sets left empty.
func applyTo[K comparable](m map[K]IDSet, deltas map[K]*idDelta) {
	for k, d := range deltas {
		set, ok := m[k]
		if !ok {
			set = IDSet{}
			m[k] = set
		}
		d.applyTo(set)
		if len(set) == 0 {
			delete(m, k)
		}
	}
}

// merged returns the set stored under k in m with the delta of k applied.
func merged[K comparable](m map[K]IDSet, deltas map[K]*idDelta, k K) IDSet {
	if d, ok := deltas[k]; ok {
		return d.merge(m[k])
	}
	return m[k].Clone()
}
