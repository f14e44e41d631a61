// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"

	"github.com/vechain/stakedb/kv"
)

type cacheStatus int

const (
	cacheOpen cacheStatus = iota
	cacheFlushed
	cacheDropped
)

// overlay holds the changes buffered by a cache on top of the committed state.
type overlay struct {
	entries     map[chainhash.Hash]Entry
	removed     IDSet
	active      *idDelta
	byScript    map[string]*idDelta
	completedAt map[uint32]*idDelta
	amounts     amountsDelta
	pool        poolDelta
	freeTx      *freeTxOverlay
	bestBlock   *chainhash.Hash
	size        int
}

func newOverlay(numPeriods int) *overlay {
	return &overlay{
		entries:     make(map[chainhash.Hash]Entry),
		removed:     IDSet{},
		active:      newIDDelta(),
		byScript:    make(map[string]*idDelta),
		completedAt: make(map[uint32]*idDelta),
		amounts:     make(amountsDelta, numPeriods),
		freeTx:      newFreeTxOverlay(),
	}
}

func (o *overlay) scriptDelta(script string) *idDelta {
	d, ok := o.byScript[script]
	if !ok {
		d = newIDDelta()
		o.byScript[script] = d
	}
	return d
}

func (o *overlay) completedDelta(height uint32) *idDelta {
	d, ok := o.completedAt[height]
	if !ok {
		d = newIDDelta()
		o.completedAt[height] = d
	}
	return d
}

// Cache is a transactional overlay on a Store. Mutations are buffered and
// become visible to the store only when the cache is flushed.
// A view only cache reads the state committed when it was opened and rejects mutations.
// A Cache is not safe for concurrent use.
type Cache struct {
	store    *Store
	params   *Params
	viewOnly bool
	status   cacheStatus

	// view only caches read a frozen copy of the committed state
	base *state
	snap kv.Snapshot

	ov *overlay
}

func newCache(s *Store, viewOnly bool, base *state, snap kv.Snapshot) *Cache {
	return &Cache{
		store:    s,
		params:   s.params,
		viewOnly: viewOnly,
		base:     base,
		snap:     snap,
		ov:       newOverlay(s.params.NumPeriods()),
	}
}

// IsViewOnly returns whether the cache rejects mutations.
func (c *Cache) IsViewOnly() bool { return c.viewOnly }

// Size returns the estimated size of the pending changes.
func (c *Cache) Size() int { return c.ov.size }

// readBase calls fn with the committed state the cache is based on.
// fn must not call back into the store.
func (c *Cache) readBase(fn func(base *state)) {
	if c.viewOnly {
		fn(c.base)
		return
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	fn(c.store.st)
}

// checkReadable fails once the cache is flushed or dropped. Reads without an
// error return keep answering from the committed state.
func (c *Cache) checkReadable() error {
	if c.status != cacheOpen {
		return ErrCacheClosed
	}
	return nil
}

func (c *Cache) checkWritable() error {
	if c.viewOnly {
		return ErrViewOnly
	}
	if c.status != cacheOpen {
		return ErrCacheClosed
	}
	return nil
}

// GetStakeEntry returns the entry of txid, pending changes first.
// The returned entry is invalid if there is none.
func (c *Cache) GetStakeEntry(txid chainhash.Hash) (Entry, error) {
	if err := c.checkReadable(); err != nil {
		return Entry{}, err
	}
	if c.ov.removed.Contains(txid) {
		return Entry{}, nil
	}
	if e, ok := c.ov.entries[txid]; ok {
		return e.clone(), nil
	}
	if c.viewOnly {
		return readEntry(entryBucket.NewGetter(c.snap), txid)
	}
	return c.store.GetStakeEntry(txid)
}

func (c *Cache) getEntries(ids []chainhash.Hash) ([]Entry, error) {
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, err := c.GetStakeEntry(id)
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

func (c *Cache) isActive(id chainhash.Hash) (active bool) {
	c.readBase(func(base *state) {
		active = c.ov.active.contains(base.active, id)
	})
	return
}

// GetActiveStakeIDsForScript returns the ids of the active entries owned by script, in byte order.
func (c *Cache) GetActiveStakeIDsForScript(script []byte) (ids []chainhash.Hash) {
	c.readBase(func(base *state) {
		ids = merged(base.byScript, c.ov.byScript, string(script)).Sorted()
	})
	return
}

// GetAllActiveStakes returns every active entry, ordered by txid.
func (c *Cache) GetAllActiveStakes() ([]Entry, error) {
	var ids []chainhash.Hash
	c.readBase(func(base *state) {
		ids = c.ov.active.merge(base.active).Sorted()
	})
	return c.getEntries(ids)
}

// GetStakesCompletedAtHeight returns the entries maturing at height, ordered by txid.
func (c *Cache) GetStakesCompletedAtHeight(height uint32) ([]Entry, error) {
	var ids []chainhash.Hash
	c.readBase(func(base *state) {
		ids = merged(base.completedAt, c.ov.completedAt, height).Sorted()
	})
	return c.getEntries(ids)
}

// AmountsByPeriod returns the active principal per staking period.
func (c *Cache) AmountsByPeriod() (amounts []btcutil.Amount) {
	c.readBase(func(base *state) {
		amounts = c.ov.amounts.apply(base.amounts)
	})
	return
}

// StakingPool returns the pool totals including pending changes.
func (c *Cache) StakingPool() (pool StakingPool) {
	c.readBase(func(base *state) {
		pool = c.ov.pool.apply(base.pool)
	})
	return
}

// BestBlock returns the block the cache is synchronized to.
func (c *Cache) BestBlock() (hash chainhash.Hash) {
	if c.ov.bestBlock != nil {
		return *c.ov.bestBlock
	}
	c.readBase(func(base *state) {
		hash = base.bestBlock
	})
	return
}

// SetBestBlock sets the block the cache is synchronized to.
func (c *Cache) SetBestBlock(hash chainhash.Hash) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	c.ov.bestBlock = &hash
	return nil
}

// AddNewStakeEntry stages a new entry and indexes it.
// It fails with ErrStakeExists if an active entry with the same txid exists;
// an inactive one is replaced.
func (c *Cache) AddNewStakeEntry(e Entry) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	if !e.IsValid() || e.Amount <= 0 {
		return ErrInvalidEntry
	}
	if _, err := c.params.PeriodDuration(e.PeriodIdx); err != nil {
		return err
	}
	existing, err := c.GetStakeEntry(e.TxID)
	if err != nil {
		return err
	}
	if existing.IsValid() {
		if existing.Active {
			logger.Warn("stake entry already exists", "txid", e.TxID)
			return ErrStakeExists
		}
		c.unindexCompleted(&existing)
		c.ov.pool.unsettle(&existing, c.params.EarlyWithdrawalPenaltyPercent)
	}

	c.ov.removed.Remove(e.TxID)
	e = e.clone()
	c.stage(&e)
	c.ov.pool.settle(&e, c.params.EarlyWithdrawalPenaltyPercent)
	c.indexCompleted(&e)
	if e.Active {
		c.indexActive(&e)
	}
	logger.Debug("stake entry added", "txid", e.TxID, "amount", e.Amount, "period", e.PeriodIdx)
	return c.maybeFlush()
}

// RemoveStakeEntry removes the entry of txid from the store and every index.
// Removal is distinct from deactivation: the entry no longer exists afterwards,
// and the reward or penalty it accounted for is taken out of the pool.
// Adding the same txid again clears the removal.
func (c *Cache) RemoveStakeEntry(txid chainhash.Hash) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	e, err := c.GetStakeEntry(txid)
	if err != nil {
		return err
	}
	if !e.IsValid() {
		return ErrStakeNotFound
	}
	if e.Active {
		c.unindexActive(&e)
	}
	c.unindexCompleted(&e)
	c.ov.pool.unsettle(&e, c.params.EarlyWithdrawalPenaltyPercent)
	delete(c.ov.entries, txid)
	c.ov.removed.Add(txid)
	c.ov.size += chainhash.HashSize
	logger.Debug("stake entry removed", "txid", txid)
	return c.maybeFlush()
}

// DeactivateStake withdraws an active entry, marking it complete if setComplete is set.
// Deactivating an incomplete entry without completing it collects the early withdrawal penalty.
func (c *Cache) DeactivateStake(txid chainhash.Hash, setComplete bool) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	e, err := c.GetStakeEntry(txid)
	if err != nil {
		return err
	}
	if !e.IsValid() {
		return ErrStakeNotFound
	}
	if !e.Active {
		return ErrStakeInactive
	}

	c.unindexActive(&e)
	c.ov.pool.unsettle(&e, c.params.EarlyWithdrawalPenaltyPercent)
	e.Active = false
	if setComplete {
		e.Complete = true
	}
	c.ov.pool.settle(&e, c.params.EarlyWithdrawalPenaltyPercent)
	c.stage(&e)
	logger.Debug("stake deactivated", "txid", txid, "complete", e.Complete)
	return c.maybeFlush()
}

// ReactivateStake reverts a deactivation when the block that withdrew the stake is
// disconnected. The maturity height becomes height plus the period duration.
func (c *Cache) ReactivateStake(txid chainhash.Hash, height uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	e, err := c.GetStakeEntry(txid)
	if err != nil {
		return err
	}
	if !e.IsValid() {
		return ErrStakeNotFound
	}
	if e.Active {
		return ErrStakeActive
	}
	duration, err := c.params.PeriodDuration(e.PeriodIdx)
	if err != nil {
		return err
	}

	c.ov.pool.unsettle(&e, c.params.EarlyWithdrawalPenaltyPercent)
	c.unindexCompleted(&e)
	e.CompleteBlock = height + duration
	e.Active = true
	e.Complete = false
	c.stage(&e)
	c.indexCompleted(&e)
	c.indexActive(&e)
	logger.Debug("stake reactivated", "txid", txid, "completeBlock", e.CompleteBlock)
	return c.maybeFlush()
}

// UpdateStakeEntry overwrites an existing entry, re-deriving the indexes and totals it affects.
func (c *Cache) UpdateStakeEntry(e Entry) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	if !e.IsValid() || e.Amount <= 0 {
		return ErrInvalidEntry
	}
	if _, err := c.params.PeriodDuration(e.PeriodIdx); err != nil {
		return err
	}
	existing, err := c.GetStakeEntry(e.TxID)
	if err != nil {
		return err
	}
	if !existing.IsValid() {
		return ErrStakeNotFound
	}

	if existing.Active {
		c.unindexActive(&existing)
	}
	c.unindexCompleted(&existing)
	c.ov.pool.unsettle(&existing, c.params.EarlyWithdrawalPenaltyPercent)

	e = e.clone()
	c.stage(&e)
	c.ov.pool.settle(&e, c.params.EarlyWithdrawalPenaltyPercent)
	c.indexCompleted(&e)
	if e.Active {
		c.indexActive(&e)
	}
	logger.Debug("stake entry updated", "txid", e.TxID, "active", e.Active, "complete", e.Complete)
	return c.maybeFlush()
}

func (c *Cache) stage(e *Entry) {
	c.ov.entries[e.TxID] = *e
	c.ov.size += e.EstimateSize()
}

func (c *Cache) indexActive(e *Entry) {
	if c.isActive(e.TxID) {
		return
	}
	c.ov.active.add(e.TxID)
	c.ov.scriptDelta(e.scriptKey()).add(e.TxID)
	c.ov.amounts[e.PeriodIdx] += e.Amount
	c.ov.pool.activate(e)
}

func (c *Cache) unindexActive(e *Entry) {
	if !c.isActive(e.TxID) {
		return
	}
	c.ov.active.remove(e.TxID)
	c.ov.scriptDelta(e.scriptKey()).remove(e.TxID)
	c.ov.amounts[e.PeriodIdx] -= e.Amount
	c.ov.pool.deactivate(e)
}

func (c *Cache) completedContains(height uint32, id chainhash.Hash) (ok bool) {
	c.readBase(func(base *state) {
		if d, found := c.ov.completedAt[height]; found {
			ok = d.contains(base.completedAt[height], id)
			return
		}
		ok = base.completedAt[height].Contains(id)
	})
	return
}

func (c *Cache) indexCompleted(e *Entry) {
	if c.completedContains(e.CompleteBlock, e.TxID) {
		return
	}
	c.ov.completedDelta(e.CompleteBlock).add(e.TxID)
}

func (c *Cache) unindexCompleted(e *Entry) {
	if !c.completedContains(e.CompleteBlock, e.TxID) {
		return
	}
	c.ov.completedDelta(e.CompleteBlock).remove(e.TxID)
}

// GetFreeTxInfoForScript returns the free transaction bookkeeping of script.
func (c *Cache) GetFreeTxInfoForScript(script []byte) (info FreeTxInfo, ok bool) {
	c.readBase(func(base *state) {
		info, ok = c.ov.freeTx.info(base.freeTx, string(script))
	})
	return
}

// FreeTxSizeForBlock returns the free transaction bytes consumed at height.
func (c *Cache) FreeTxSizeForBlock(height uint32) (size uint32) {
	c.readBase(func(base *state) {
		size = c.ov.freeTx.blockSize(base.blockFreeTx, height)
	})
	return
}

// AddFreeTxSizeForBlock accounts size free transaction bytes to height.
func (c *Cache) AddFreeTxSizeForBlock(height, size uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	c.ov.freeTx.setBlockSize(height, addClamped(c.FreeTxSizeForBlock(height), size))
	return nil
}

// CalculateFreeTxLimitForScript sums the allowance granted by every active stake of script.
func (c *Cache) CalculateFreeTxLimitForScript(script []byte) (uint32, error) {
	if c.params.FreeTxAllowance == nil {
		return 0, ErrNoAllowanceFunc
	}
	entries, err := c.getEntries(c.GetActiveStakeIDsForScript(script))
	if err != nil {
		return 0, err
	}
	var limit uint32
	for i := range entries {
		limit = addClamped(limit, c.params.FreeTxAllowance(entries[i].Amount, entries[i].PeriodIdx))
	}
	return limit, nil
}

// CreateFreeTxInfoForScript starts a new allowance window for script at height.
func (c *Cache) CreateFreeTxInfoForScript(script []byte, height uint32) (FreeTxInfo, error) {
	if err := c.checkWritable(); err != nil {
		return FreeTxInfo{}, err
	}
	info, err := c.newFreeTxInfo(script, height)
	if err != nil {
		return FreeTxInfo{}, err
	}
	c.ov.freeTx.setInfo(string(script), info)
	return info, nil
}

func (c *Cache) newFreeTxInfo(script []byte, height uint32) (FreeTxInfo, error) {
	limit, err := c.CalculateFreeTxLimitForScript(script)
	if err != nil {
		return FreeTxInfo{}, err
	}
	return FreeTxInfo{Limit: limit, ResetHeight: height}, nil
}

// RegisterFreeTransaction charges the size of tx to the free transaction allowance of script.
// The allowance is renewed when the window it was granted for has passed.
// It fails if script has no active stake or the remaining allowance is too small.
func (c *Cache) RegisterFreeTransaction(script []byte, tx *wire.MsgTx, height uint32) (err error) {
	defer func() {
		metricFreeTx().AddWithLabel(1, resultLabel(err))
	}()
	if err := c.checkWritable(); err != nil {
		return err
	}
	if len(c.GetActiveStakeIDsForScript(script)) == 0 {
		return ErrNoActiveStake
	}

	size := uint32(tx.SerializeSize())
	info, ok := c.GetFreeTxInfoForScript(script)
	if !ok || info.expired(height, c.params.FreeTxWindow) {
		if info, err = c.newFreeTxInfo(script, height); err != nil {
			return err
		}
	}
	if info.Limit == 0 {
		return ErrNoActiveStake
	}
	if uint64(info.Used)+uint64(size) > uint64(info.Limit) {
		logger.Debug("free transaction rejected", "txid", tx.TxHash(), "size", size, "remaining", info.Remaining())
		return ErrFreeTxLimitExceeded
	}

	info.Used += size
	c.ov.freeTx.setInfo(string(script), info)
	return c.AddFreeTxSizeForBlock(height, size)
}

// UnregisterFreeTransaction reverts RegisterFreeTransaction when the block holding tx
// is disconnected. Counters are clamped at zero.
func (c *Cache) UnregisterFreeTransaction(script []byte, tx *wire.MsgTx, height uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	size := uint32(tx.SerializeSize())
	if info, ok := c.GetFreeTxInfoForScript(script); ok {
		info.Used = subClamped(info.Used, size)
		c.ov.freeTx.setInfo(string(script), info)
	}
	if left := subClamped(c.FreeTxSizeForBlock(height), size); left > 0 {
		c.ov.freeTx.setBlockSize(height, left)
	} else {
		c.ov.freeTx.deleteBlock(height)
	}
	return nil
}

// RemoveOldFreeTxInfos purges the free transaction bookkeeping that fell out of the
// window relative to height.
func (c *Cache) RemoveOldFreeTxInfos(height uint32) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	window := c.params.FreeTxWindow

	var (
		scripts []string
		heights []uint32
	)
	c.readBase(func(base *state) {
		for script := range base.freeTx {
			if _, ok := c.ov.freeTx.infos[script]; ok {
				continue
			}
			if info, ok := c.ov.freeTx.info(base.freeTx, script); ok && purgeable(info.ResetHeight, height, window) {
				scripts = append(scripts, script)
			}
		}
		for h := range base.blockFreeTx {
			if _, ok := c.ov.freeTx.blocks[h]; ok {
				continue
			}
			if _, deleted := c.ov.freeTx.blocksDeleted[h]; !deleted && purgeable(h, height, window) {
				heights = append(heights, h)
			}
		}
	})
	for script, info := range c.ov.freeTx.infos {
		if purgeable(info.ResetHeight, height, window) {
			scripts = append(scripts, script)
		}
	}
	for h := range c.ov.freeTx.blocks {
		if purgeable(h, height, window) {
			heights = append(heights, h)
		}
	}

	for _, script := range scripts {
		c.ov.freeTx.deleteInfo(script)
	}
	for _, h := range heights {
		c.ov.freeTx.deleteBlock(h)
	}
	if len(scripts) > 0 || len(heights) > 0 {
		logger.Debug("old free tx infos removed", "height", height, "scripts", len(scripts), "blocks", len(heights))
	}
	return nil
}

// Diff returns an immutable description of the pending changes.
func (c *Cache) Diff() *Diff {
	d := &Diff{
		entries:     make([]Entry, 0, len(c.ov.entries)),
		removed:     c.ov.removed.Sorted(),
		removedSet:  c.ov.removed.Clone(),
		active:      c.ov.active.clone(),
		byScript:    make(map[string]*idDelta, len(c.ov.byScript)),
		completedAt: make(map[uint32]*idDelta, len(c.ov.completedAt)),
		amounts:     append(amountsDelta(nil), c.ov.amounts...),
		pool:        c.ov.pool,
		freeTx:      c.ov.freeTx.clone(),
		size:        c.ov.size,
	}
	ids := make([]chainhash.Hash, 0, len(c.ov.entries))
	for id := range c.ov.entries {
		ids = append(ids, id)
	}
	sortIDs(ids)
	for _, id := range ids {
		e := c.ov.entries[id]
		d.entries = append(d.entries, e.clone())
	}
	for k, v := range c.ov.byScript {
		if !v.empty() {
			d.byScript[k] = v.clone()
		}
	}
	for k, v := range c.ov.completedAt {
		if !v.empty() {
			d.completedAt[k] = v.clone()
		}
	}
	if c.ov.bestBlock != nil {
		best := *c.ov.bestBlock
		d.bestBlock = &best
	}
	return d
}

// commit applies the pending changes to the store and resets the overlay.
// On failure the overlay is kept.
func (c *Cache) commit() error {
	d := c.Diff()
	if d.IsEmpty() {
		return nil
	}
	if err := c.store.apply(d); err != nil {
		return err
	}
	c.ov = newOverlay(c.params.NumPeriods())
	return nil
}

func (c *Cache) maybeFlush() error {
	if c.ov.size < c.store.opts.MaxCacheSize {
		return nil
	}
	logger.Debug("cache size limit reached, flushing", "size", c.ov.size)
	metricImplicitFlushes().Add(1)
	return errors.Wrap(c.commit(), "implicit flush")
}

// Flush commits the pending changes and releases the writer lock.
// Flushing a flushed cache does nothing. If a write fails, the first failure is returned,
// the cache stays open and must be dropped; earlier writes of the flush may have been applied.
func (c *Cache) Flush() error {
	if c.viewOnly {
		return ErrViewOnly
	}
	switch c.status {
	case cacheFlushed:
		return nil
	case cacheDropped:
		return ErrCacheClosed
	}
	if err := c.commit(); err != nil {
		return err
	}
	c.status = cacheFlushed
	c.store.releaseWriter()
	return nil
}

// Drop discards the pending changes and closes the cache. It is safe to call at any time
// and more than once.
func (c *Cache) Drop() {
	if c.status != cacheOpen {
		return
	}
	c.status = cacheDropped
	c.ov = newOverlay(c.params.NumPeriods())
	if c.viewOnly {
		c.snap.Release()
		return
	}
	c.store.releaseWriter()
}

func addClamped(a, b uint32) uint32 {
	if uint64(a)+uint64(b) > math.MaxUint32 {
		return math.MaxUint32
	}
	return a + b
}

func subClamped(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
