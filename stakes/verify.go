// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/vechain/stakedb/kv"
)

// scan rebuilds the indexes and the entry derived totals from the stored entries.
func (s *Store) scan(iter kv.Iterator) (*state, error) {
	defer iter.Release()

	st := newState(s.params.NumPeriods())
	for iter.Next() {
		key := iter.Key()
		if len(key) != chainhash.HashSize {
			return nil, inconsistent("entries", "malformed key %x", key)
		}
		var txid chainhash.Hash
		copy(txid[:], key)

		e, err := decodeEntry(txid, iter.Value())
		if err != nil {
			return nil, inconsistent("entries", "%v", err)
		}
		if !e.IsValid() {
			return nil, inconsistent("entries", "invalid entry %v stored", txid)
		}
		if int(e.PeriodIdx) >= s.params.NumPeriods() {
			return nil, inconsistent("entries", "entry %v has period %d", txid, e.PeriodIdx)
		}
		st.index(&e)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "scan stake entries")
	}
	return st, nil
}

// compareTotals checks the committed aggregates against totals recomputed by scan.
func (s *Store) compareTotals(scanned *state) error {
	for p := range scanned.amounts {
		if s.st.amounts[p] != scanned.amounts[p] {
			return inconsistent("amounts_by_period", "period %d: stored %v, recomputed %v",
				p, s.st.amounts[p], scanned.amounts[p])
		}
	}
	if s.st.pool.TotalStaked != scanned.pool.TotalStaked {
		return inconsistent("staking_pool", "total staked: stored %v, recomputed %v",
			s.st.pool.TotalStaked, scanned.pool.TotalStaked)
	}
	if s.st.pool.ActiveStakes != scanned.pool.ActiveStakes {
		return inconsistent("staking_pool", "active stakes: stored %d, recomputed %d",
			s.st.pool.ActiveStakes, scanned.pool.ActiveStakes)
	}
	return nil
}

// Verify recomputes every index and aggregate from the stored entries and compares them
// with the committed state. A mismatch is returned as a *ConsistencyError.
func (s *Store) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyLocked()
}

func (s *Store) verifyLocked() error {
	scanned, err := s.scan(s.entries.Iterate(kv.Range{}))
	if err != nil {
		return err
	}
	if err := s.compareTotals(scanned); err != nil {
		return err
	}
	if err := compareSets("active", s.st.active, scanned.active); err != nil {
		return err
	}
	if err := compareIndex("script", s.st.byScript, scanned.byScript); err != nil {
		return err
	}
	return compareIndex("completed_at", s.st.completedAt, scanned.completedAt)
}

func compareSets(check string, stored, recomputed IDSet) error {
	if len(stored) != len(recomputed) {
		return inconsistent(check, "%d ids stored, %d recomputed", len(stored), len(recomputed))
	}
	for id := range recomputed {
		if !stored.Contains(id) {
			return inconsistent(check, "id %v missing", id)
		}
	}
	return nil
}

func compareIndex[K comparable](check string, stored, recomputed map[K]IDSet) error {
	if len(stored) != len(recomputed) {
		return inconsistent(check, "%d keys stored, %d recomputed", len(stored), len(recomputed))
	}
	for k, set := range recomputed {
		if err := compareSets(check, stored[k], set); err != nil {
			return errors.Wrapf(err, "key %v", k)
		}
	}
	return nil
}
