// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// IDSet is a set of stake ids.
type IDSet map[chainhash.Hash]struct{}

func (s IDSet) Add(id chainhash.Hash) { s[id] = struct{}{} }

func (s IDSet) Remove(id chainhash.Hash) { delete(s, id) }

func (s IDSet) Contains(id chainhash.Hash) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted returns the ids in byte order.
func (s IDSet) Sorted() []chainhash.Hash {
	ids := make([]chainhash.Hash, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []chainhash.Hash) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

// idDelta is a pending change of an IDSet. added and removed are disjoint.
type idDelta struct {
	added   IDSet
	removed IDSet
}

func newIDDelta() *idDelta {
	return &idDelta{added: IDSet{}, removed: IDSet{}}
}

func (d *idDelta) add(id chainhash.Hash) {
	if d.removed.Contains(id) {
		d.removed.Remove(id)
		return
	}
	d.added.Add(id)
}

func (d *idDelta) remove(id chainhash.Hash) {
	if d.added.Contains(id) {
		d.added.Remove(id)
		return
	}
	d.removed.Add(id)
}

func (d *idDelta) empty() bool {
	return len(d.added) == 0 && len(d.removed) == 0
}

// contains reports membership of id in base with the delta applied.
func (d *idDelta) contains(base IDSet, id chainhash.Hash) bool {
	if d.added.Contains(id) {
		return true
	}
	if d.removed.Contains(id) {
		return false
	}
	return base.Contains(id)
}

// merge returns base with the delta applied, leaving base untouched.
func (d *idDelta) merge(base IDSet) IDSet {
	out := make(IDSet, len(base)+len(d.added))
	for id := range base {
		if !d.removed.Contains(id) {
			out.Add(id)
		}
	}
	for id := range d.added {
		out.Add(id)
	}
	return out
}

// applyTo applies the delta to set in place.
func (d *idDelta) applyTo(set IDSet) {
	for id := range d.removed {
		set.Remove(id)
	}
	for id := range d.added {
		set.Add(id)
	}
}

func (d *idDelta) clone() *idDelta {
	return &idDelta{added: d.added.Clone(), removed: d.removed.Clone()}
}
