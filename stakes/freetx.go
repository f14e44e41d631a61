// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

// FreeTxInfo is the free transaction bookkeeping of one owner script.
type FreeTxInfo struct {
	Limit       uint32 // allowance in bytes for the current window
	Used        uint32 // bytes consumed in the current window
	ResetHeight uint32 // height the current window started at
}

// Remaining returns the unconsumed allowance.
func (i FreeTxInfo) Remaining() uint32 {
	if i.Used >= i.Limit {
		return 0
	}
	return i.Limit - i.Used
}

// expired reports whether the window anchored at ResetHeight no longer covers height.
// A height below the anchor means the chain was rewound past it.
func (i FreeTxInfo) expired(height, window uint32) bool {
	return height < i.ResetHeight || uint64(height) >= uint64(i.ResetHeight)+uint64(window)
}

// purgeable reports whether bookkeeping anchored at anchor is past the retention horizon.
func purgeable(anchor, height, window uint32) bool {
	return uint64(anchor)+uint64(window) <= uint64(height)
}

// freeTxOverlay is the pending change of the free transaction maps.
type freeTxOverlay struct {
	infos         map[string]FreeTxInfo
	infosDeleted  map[string]struct{}
	blocks        map[uint32]uint32
	blocksDeleted map[uint32]struct{}
}

func newFreeTxOverlay() *freeTxOverlay {
	return &freeTxOverlay{
		infos:         make(map[string]FreeTxInfo),
		infosDeleted:  make(map[string]struct{}),
		blocks:        make(map[uint32]uint32),
		blocksDeleted: make(map[uint32]struct{}),
	}
}

func (o *freeTxOverlay) empty() bool {
	return len(o.infos) == 0 && len(o.infosDeleted) == 0 && len(o.blocks) == 0 && len(o.blocksDeleted) == 0
}

func (o *freeTxOverlay) info(base map[string]FreeTxInfo, script string) (FreeTxInfo, bool) {
	if info, ok := o.infos[script]; ok {
		return info, true
	}
	if _, ok := o.infosDeleted[script]; ok {
		return FreeTxInfo{}, false
	}
	info, ok := base[script]
	return info, ok
}

func (o *freeTxOverlay) setInfo(script string, info FreeTxInfo) {
	delete(o.infosDeleted, script)
	o.infos[script] = info
}

func (o *freeTxOverlay) deleteInfo(script string) {
	delete(o.infos, script)
	o.infosDeleted[script] = struct{}{}
}

func (o *freeTxOverlay) blockSize(base map[uint32]uint32, height uint32) uint32 {
	if size, ok := o.blocks[height]; ok {
		return size
	}
	if _, ok := o.blocksDeleted[height]; ok {
		return 0
	}
	return base[height]
}

func (o *freeTxOverlay) setBlockSize(height, size uint32) {
	delete(o.blocksDeleted, height)
	o.blocks[height] = size
}

func (o *freeTxOverlay) deleteBlock(height uint32) {
	delete(o.blocks, height)
	o.blocksDeleted[height] = struct{}{}
}

// applyTo applies the overlay to the base maps in place.
func (o *freeTxOverlay) applyTo(infos map[string]FreeTxInfo, blocks map[uint32]uint32) {
	for script := range o.infosDeleted {
		delete(infos, script)
	}
	for script, info := range o.infos {
		infos[script] = info
	}
	for height := range o.blocksDeleted {
		delete(blocks, height)
	}
	for height, size := range o.blocks {
		blocks[height] = size
	}
}

func (o *freeTxOverlay) clone() *freeTxOverlay {
	c := newFreeTxOverlay()
	for k, v := range o.infos {
		c.infos[k] = v
	}
	for k := range o.infosDeleted {
		c.infosDeleted[k] = struct{}{}
	}
	for k, v := range o.blocks {
		c.blocks[k] = v
	}
	for k := range o.blocksDeleted {
		c.blocksDeleted[k] = struct{}{}
	}
	return c
}
