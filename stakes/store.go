// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakes implements the stakes database: stake entries persisted in a kv store,
// the in-memory indexes and aggregates derived from them, and the transactional caches
// the chain state is applied through.
package stakes

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/vechain/stakedb/cache"
	"github.com/vechain/stakedb/kv"
)

var logger = log.New("pkg", "stakes")

// SetLogger replaces the package logger.
func SetLogger(l log.Logger) {
	logger = l
}

const (
	entryBucket = kv.Bucket("s")
	metaBucket  = kv.Bucket("m")
)

// Store is the durable authority of the stakes database.
// It answers reads from the committed state and is mutated only by flushing a Cache.
// At most one mutable cache is open at a time.
type Store struct {
	db      kv.Store
	entries kv.Store
	meta    kv.Store
	params  *Params
	opts    Options
	lru     *cache.LRU

	mu     sync.RWMutex
	st     *state
	closed bool

	writer atomic.Bool
}

// Open loads the store persisted in db. The entry set is scanned once to rebuild the
// indexes, and the persisted aggregates are checked against it. A mismatch is reported
// as a *ConsistencyError.
func Open(db kv.Store, params *Params, opts Options) (*Store, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid params")
	}
	opts = opts.withDefaults()
	lru, err := cache.NewLRU(opts.EntryCacheCapacity)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		entries: entryBucket.NewStore(db),
		meta:    metaBucket.NewStore(db),
		params:  params,
		opts:    opts,
		lru:     lru,
	}

	st, err := s.loadAggregates()
	if err != nil {
		return nil, err
	}

	iter := s.entries.Iterate(kv.Range{})
	scanned, err := s.scan(iter)
	if err != nil {
		return nil, err
	}
	st.active = scanned.active
	st.byScript = scanned.byScript
	st.completedAt = scanned.completedAt
	s.st = st

	if err := s.compareTotals(scanned); err != nil {
		logger.Error("stakes database is inconsistent", "err", err)
		return nil, err
	}

	metricActiveStakes().Set(int64(len(st.active)))
	metricTotalStaked().Set(int64(st.pool.TotalStaked))
	logger.Info("stakes database opened",
		"active", len(st.active),
		"staked", st.pool.TotalStaked,
		"best", st.bestBlock)
	return s, nil
}

func (s *Store) loadAggregates() (*state, error) {
	st := newState(s.params.NumPeriods())

	load := func(key []byte, decode func([]byte) error) error {
		data, err := s.meta.Get(key)
		if err != nil {
			if s.meta.IsNotFound(err) {
				return nil
			}
			return errors.Wrapf(err, "load %s", key)
		}
		return decode(data)
	}

	if err := load(bestBlockKey, func(data []byte) (err error) {
		st.bestBlock, err = decodeBestBlock(data)
		return
	}); err != nil {
		return nil, err
	}
	if err := load(amountsByPeriodKey, func(data []byte) (err error) {
		st.amounts, err = decodeAmounts(data, s.params.NumPeriods())
		return
	}); err != nil {
		return nil, err
	}
	if err := load(stakingPoolKey, func(data []byte) (err error) {
		st.pool, err = decodePool(data)
		return
	}); err != nil {
		return nil, err
	}
	if err := load(freeTxInfoKey, func(data []byte) (err error) {
		st.freeTx, err = decodeFreeTxInfos(data)
		return
	}); err != nil {
		return nil, err
	}
	if err := load(blockFreeTxSizeKey, func(data []byte) (err error) {
		st.blockFreeTx, err = decodeBlockFreeTx(data)
		return
	}); err != nil {
		return nil, err
	}
	return st, nil
}

// Close persists the aggregates. It fails while a mutable cache is open.
// The underlying kv store is left open.
func (s *Store) Close() error {
	if !s.writer.CompareAndSwap(false, true) {
		return ErrCacheInUse
	}
	defer s.writer.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	bulk := s.db.Bulk()
	if err := s.putAggregates(bulk, s.st, nil); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	s.closed = true
	s.lru.Purge()
	logger.Info("stakes database closed", "active", len(s.st.active), "best", s.st.bestBlock)
	return nil
}

// putAggregates writes the aggregate records of st. If diff is not nil, only the records
// it changes are written.
func (s *Store) putAggregates(p kv.Putter, st *state, diff *Diff) error {
	all := diff == nil
	put := func(key []byte, encode func() ([]byte, error)) error {
		data, err := encode()
		if err != nil {
			return errors.Wrapf(err, "encode %s", key)
		}
		fullKey := metaBucket.Key(key)
		if err := p.Put(fullKey, data); err != nil {
			return &WriteError{Op: "put", Key: fullKey, Err: err}
		}
		return nil
	}

	if all || diff.bestBlock != nil {
		if err := put(bestBlockKey, func() ([]byte, error) {
			return st.bestBlock.CloneBytes(), nil
		}); err != nil {
			return err
		}
	}
	if all || !diff.amounts.isZero() {
		if err := put(amountsByPeriodKey, func() ([]byte, error) { return encodeAmounts(st.amounts) }); err != nil {
			return err
		}
	}
	if all || !diff.pool.isZero() {
		if err := put(stakingPoolKey, func() ([]byte, error) { return encodePool(st.pool) }); err != nil {
			return err
		}
	}
	if all || len(diff.freeTx.infos) > 0 || len(diff.freeTx.infosDeleted) > 0 {
		if err := put(freeTxInfoKey, func() ([]byte, error) { return encodeFreeTxInfos(st.freeTx) }); err != nil {
			return err
		}
	}
	if all || len(diff.freeTx.blocks) > 0 || len(diff.freeTx.blocksDeleted) > 0 {
		if err := put(blockFreeTxSizeKey, func() ([]byte, error) { return encodeBlockFreeTx(st.blockFreeTx) }); err != nil {
			return err
		}
	}
	return nil
}

// NewCache opens a cache over the store.
// Only one mutable cache can be open at a time, ErrCacheInUse is returned otherwise.
// A view only cache sees the state committed when it was opened and never blocks the writer.
// The cache must be either flushed or dropped; defer c.Drop() right after opening.
func (s *Store) NewCache(viewOnly bool) (*Cache, error) {
	if viewOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.closed {
			return nil, ErrStoreClosed
		}
		return newCache(s, true, s.st.clone(), s.db.Snapshot()), nil
	}

	if !s.writer.CompareAndSwap(false, true) {
		return nil, ErrCacheInUse
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		s.writer.Store(false)
		return nil, ErrStoreClosed
	}
	return newCache(s, false, nil, nil), nil
}

// Update runs fn in a mutable cache, flushing it if fn returns nil and dropping it otherwise.
func (s *Store) Update(fn func(c *Cache) error) error {
	c, err := s.NewCache(false)
	if err != nil {
		return err
	}
	defer c.Drop()

	if err := fn(c); err != nil {
		return err
	}
	return c.Flush()
}

// View runs fn in a view only cache.
func (s *Store) View(fn func(c *Cache) error) error {
	c, err := s.NewCache(true)
	if err != nil {
		return err
	}
	defer c.Drop()

	return fn(c)
}

func (s *Store) releaseWriter() {
	s.writer.Store(false)
}

// Params returns the consensus parameters of the store.
func (s *Store) Params() *Params { return s.params }

// GetStakeEntry returns the committed entry of txid.
// The returned entry is invalid if there is none; the error reports I/O failures only.
func (s *Store) GetStakeEntry(txid chainhash.Hash) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntry(txid)
}

// getEntry must be called with mu held.
func (s *Store) getEntry(txid chainhash.Hash) (Entry, error) {
	v, err := s.lru.GetOrLoad(txid, func(any) (any, bool, error) {
		e, err := readEntry(s.entries, txid)
		if err != nil {
			return nil, false, err
		}
		return e, e.IsValid(), nil
	})
	if err != nil {
		return Entry{}, err
	}
	e := v.(Entry)
	return e.clone(), nil
}

func readEntry(g kv.Getter, txid chainhash.Hash) (Entry, error) {
	data, err := g.Get(txid[:])
	if err != nil {
		if g.IsNotFound(err) {
			return Entry{}, nil
		}
		return Entry{}, errors.Wrapf(err, "read stake entry %v", txid)
	}
	return decodeEntry(txid, data)
}

// getEntries loads the entries of ids. Must be called with mu held, so that
// the index the ids were taken from and the entries agree.
func (s *Store) getEntries(ids []chainhash.Hash) ([]Entry, error) {
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, err := s.getEntry(id)
		if err != nil {
			return nil, err
		}
		if !e.IsValid() {
			return nil, inconsistent("index", "indexed entry %v not found", id)
		}
		out = append(out, e)
	}
	return out, nil
}

// GetActiveStakeIDsForScript returns the ids of the active entries owned by script.
func (s *Store) GetActiveStakeIDsForScript(script []byte) []chainhash.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.byScript[string(script)].Sorted()
}

// GetAllActiveStakes returns every active entry, ordered by txid.
func (s *Store) GetAllActiveStakes() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntries(s.st.active.Sorted())
}

// GetStakesCompletedAtHeight returns the entries maturing at height, ordered by txid.
func (s *Store) GetStakesCompletedAtHeight(height uint32) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntries(s.st.completedAt[height].Sorted())
}

// GetFreeTxInfoForScript returns the free transaction bookkeeping of script.
func (s *Store) GetFreeTxInfoForScript(script []byte) (FreeTxInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.st.freeTx[string(script)]
	return info, ok
}

// FreeTxSizeForBlock returns the free transaction bytes consumed at height.
func (s *Store) FreeTxSizeForBlock(height uint32) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.blockFreeTx[height]
}

// AmountsByPeriod returns the active principal per staking period.
func (s *Store) AmountsByPeriod() []btcutil.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]btcutil.Amount(nil), s.st.amounts...)
}

// StakingPool returns the committed pool totals.
func (s *Store) StakingPool() StakingPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.pool
}

// BestBlock returns the block the committed state is synchronized to.
func (s *Store) BestBlock() chainhash.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.bestBlock
}

// ActiveCount returns the number of active entries.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.active)
}

// Stats summarizes the committed state.
type Stats struct {
	BestBlock       chainhash.Hash
	ActiveStakes    int
	Scripts         int
	MaturityHeights int
	AmountsByPeriod []btcutil.Amount
	Pool            StakingPool
	FreeTxScripts   int
	FreeTxBlocks    int
	CacheHitRate    float64
}

// Stats returns a summary of the committed state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		BestBlock:       s.st.bestBlock,
		ActiveStakes:    len(s.st.active),
		Scripts:         len(s.st.byScript),
		MaturityHeights: len(s.st.completedAt),
		AmountsByPeriod: append([]btcutil.Amount(nil), s.st.amounts...),
		Pool:            s.st.pool,
		FreeTxScripts:   len(s.st.freeTx),
		FreeTxBlocks:    len(s.st.blockFreeTx),
		CacheHitRate:    s.lru.Stats().Rate(),
	}
}

// apply commits d: deletions first, then entries, then the changed aggregates.
// The first failed write aborts the flush and the in-memory state is left untouched,
// though writes issued before it may have reached the kv store.
func (s *Store) apply(d *Diff) (err error) {
	start := time.Now()
	defer func() {
		metricFlushes().AddWithLabel(1, resultLabel(err))
		metricFlushDuration().Observe(time.Since(start).Milliseconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	next := &state{
		amounts:   d.amounts.apply(s.st.amounts),
		pool:      d.pool.apply(s.st.pool),
		bestBlock: s.st.bestBlock,
	}
	if d.bestBlock != nil {
		next.bestBlock = *d.bestBlock
	}
	if !d.freeTx.empty() {
		// copies are only made when the free tx maps change
		next.freeTx = make(map[string]FreeTxInfo, len(s.st.freeTx))
		for k, v := range s.st.freeTx {
			next.freeTx[k] = v
		}
		next.blockFreeTx = make(map[uint32]uint32, len(s.st.blockFreeTx))
		for k, v := range s.st.blockFreeTx {
			next.blockFreeTx[k] = v
		}
		d.freeTx.applyTo(next.freeTx, next.blockFreeTx)
	} else {
		next.freeTx = s.st.freeTx
		next.blockFreeTx = s.st.blockFreeTx
	}

	bulk := s.db.Bulk()
	if d.size > s.opts.BatchSize {
		bulk.EnableAutoFlush()
	}
	for _, id := range d.removed {
		key := entryBucket.Key(id[:])
		if err := bulk.Delete(key); err != nil {
			return s.writeFailed(&WriteError{Op: "delete", Key: key, Err: err})
		}
	}
	for i := range d.entries {
		e := &d.entries[i]
		if d.isRemoved(e.TxID) {
			continue
		}
		data, err := encodeEntry(e)
		if err != nil {
			return errors.Wrapf(err, "encode stake entry %v", e.TxID)
		}
		key := entryBucket.Key(e.TxID[:])
		if err := bulk.Put(key, data); err != nil {
			return s.writeFailed(&WriteError{Op: "put", Key: key, Err: err})
		}
	}
	if err := s.putAggregates(bulk, next, d); err != nil {
		return s.writeFailed(err)
	}
	if err := bulk.Write(); err != nil {
		return s.writeFailed(&WriteError{Op: "write", Err: err})
	}

	// all writes succeeded, merge into the committed state
	d.active.applyTo(s.st.active)
	applyTo(s.st.byScript, d.byScript)
	applyTo(s.st.completedAt, d.completedAt)
	s.st.amounts = next.amounts
	s.st.pool = next.pool
	s.st.bestBlock = next.bestBlock
	s.st.freeTx = next.freeTx
	s.st.blockFreeTx = next.blockFreeTx

	written := 0
	for _, id := range d.removed {
		s.lru.Remove(id)
	}
	for i := range d.entries {
		e := &d.entries[i]
		if d.isRemoved(e.TxID) {
			continue
		}
		s.lru.Add(e.TxID, e.clone())
		written++
	}
	metricEntriesWritten().Add(int64(written))
	metricEntriesRemoved().Add(int64(len(d.removed)))
	metricActiveStakes().Set(int64(len(s.st.active)))
	metricTotalStaked().Set(int64(s.st.pool.TotalStaked))

	if err := s.verifyFlushState(d); err != nil {
		logger.Error("post flush verification failed", "err", err)
		return err
	}
	if s.opts.VerifyOnFlush {
		if err := s.verifyLocked(); err != nil {
			logger.Error("stakes database verification failed", "err", err)
			return err
		}
	}

	logger.Debug("stakes flushed",
		"written", written,
		"removed", len(d.removed),
		"active", len(s.st.active),
		"best", s.st.bestBlock,
		"elapsed", time.Since(start))
	return nil
}

func (s *Store) writeFailed(err error) error {
	logger.Error("failed to flush stakes", "err", err)
	return err
}

// verifyFlushState checks the flush of d took effect: written entries read back
// unchanged, removed entries are gone and the pool agrees with the per period amounts.
// Must be called with mu held.
func (s *Store) verifyFlushState(d *Diff) error {
	for i := range d.entries {
		e := &d.entries[i]
		if d.isRemoved(e.TxID) {
			continue
		}
		want, err := encodeEntry(e)
		if err != nil {
			return err
		}
		got, err := s.entries.Get(e.TxID[:])
		if err != nil {
			if s.entries.IsNotFound(err) {
				return inconsistent("flush", "entry %v missing after flush", e.TxID)
			}
			return errors.Wrap(err, "verify flush")
		}
		if !bytes.Equal(got, want) {
			return inconsistent("flush", "entry %v differs after flush", e.TxID)
		}
	}
	for _, id := range d.removed {
		has, err := s.entries.Has(id[:])
		if err != nil {
			return errors.Wrap(err, "verify flush")
		}
		if has {
			return inconsistent("flush", "removed entry %v still stored", id)
		}
	}

	var total btcutil.Amount
	for _, a := range s.st.amounts {
		total += a
	}
	if total != s.st.pool.TotalStaked {
		return inconsistent("pool", "total staked %v, sum of periods %v", s.st.pool.TotalStaked, total)
	}
	if s.st.pool.ActiveStakes != uint64(len(s.st.active)) {
		return inconsistent("pool", "active stakes %d, active set %d", s.st.pool.ActiveStakes, len(s.st.active))
	}
	return nil
}
