// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Aggregate records are stored as version byte || payload.
const aggregateVersion = 1

var (
	bestBlockKey       = []byte("best_block")
	amountsByPeriodKey = []byte("amounts_by_period")
	freeTxInfoKey      = []byte("free_tx_info")
	blockFreeTxSizeKey = []byte("block_free_tx_size")
	stakingPoolKey     = []byte("staking_pool")
)

type poolRecord struct {
	TotalStaked        uint64
	ActiveStakes       uint64
	RewardsIssued      uint64
	PenaltiesCollected uint64
}

type freeTxInfoRecord struct {
	Script      []byte
	Limit       uint32
	Used        uint32
	ResetHeight uint32
}

type blockFreeTxRecord struct {
	Height uint32
	Size   uint32
}

func encodeVersioned(val any, compress bool) ([]byte, error) {
	payload, err := rlp.EncodeToBytes(val)
	if err != nil {
		return nil, err
	}
	if compress {
		payload = snappy.Encode(nil, payload)
	}
	return append([]byte{aggregateVersion}, payload...), nil
}

func decodeVersioned(data []byte, val any, compress bool) error {
	if len(data) == 0 {
		return errors.New("empty record")
	}
	if data[0] != aggregateVersion {
		return errors.Errorf("unsupported record version %d", data[0])
	}
	payload := data[1:]
	if compress {
		var err error
		if payload, err = snappy.Decode(nil, payload); err != nil {
			return errors.Wrap(err, "decompress")
		}
	}
	return rlp.DecodeBytes(payload, val)
}

func encodePool(p StakingPool) ([]byte, error) {
	return encodeVersioned(&poolRecord{
		TotalStaked:        uint64(p.TotalStaked),
		ActiveStakes:       p.ActiveStakes,
		RewardsIssued:      uint64(p.RewardsIssued),
		PenaltiesCollected: uint64(p.PenaltiesCollected),
	}, false)
}

func decodePool(data []byte) (StakingPool, error) {
	var r poolRecord
	if err := decodeVersioned(data, &r, false); err != nil {
		return StakingPool{}, errors.Wrap(err, "decode staking pool")
	}
	return StakingPool{
		TotalStaked:        btcutil.Amount(r.TotalStaked),
		ActiveStakes:       r.ActiveStakes,
		RewardsIssued:      btcutil.Amount(r.RewardsIssued),
		PenaltiesCollected: btcutil.Amount(r.PenaltiesCollected),
	}, nil
}

func encodeAmounts(amounts []btcutil.Amount) ([]byte, error) {
	r := make([]uint64, len(amounts))
	for i, a := range amounts {
		r[i] = uint64(a)
	}
	return encodeVersioned(r, true)
}

func decodeAmounts(data []byte, numPeriods int) ([]btcutil.Amount, error) {
	var r []uint64
	if err := decodeVersioned(data, &r, true); err != nil {
		return nil, errors.Wrap(err, "decode amounts by period")
	}
	if len(r) != numPeriods {
		return nil, errors.Errorf("decode amounts by period: %d periods stored, %d expected", len(r), numPeriods)
	}
	amounts := make([]btcutil.Amount, numPeriods)
	for i, a := range r {
		amounts[i] = btcutil.Amount(a)
	}
	return amounts, nil
}

func encodeFreeTxInfos(infos map[string]FreeTxInfo) ([]byte, error) {
	r := make([]freeTxInfoRecord, 0, len(infos))
	for script, info := range infos {
		r = append(r, freeTxInfoRecord{
			Script:      []byte(script),
			Limit:       info.Limit,
			Used:        info.Used,
			ResetHeight: info.ResetHeight,
		})
	}
	sort.Slice(r, func(i, j int) bool {
		return bytes.Compare(r[i].Script, r[j].Script) < 0
	})
	return encodeVersioned(r, true)
}

func decodeFreeTxInfos(data []byte) (map[string]FreeTxInfo, error) {
	var r []freeTxInfoRecord
	if err := decodeVersioned(data, &r, true); err != nil {
		return nil, errors.Wrap(err, "decode free tx infos")
	}
	infos := make(map[string]FreeTxInfo, len(r))
	for _, rec := range r {
		infos[string(rec.Script)] = FreeTxInfo{
			Limit:       rec.Limit,
			Used:        rec.Used,
			ResetHeight: rec.ResetHeight,
		}
	}
	return infos, nil
}

func encodeBlockFreeTx(blocks map[uint32]uint32) ([]byte, error) {
	r := make([]blockFreeTxRecord, 0, len(blocks))
	for height, size := range blocks {
		r = append(r, blockFreeTxRecord{Height: height, Size: size})
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Height < r[j].Height })
	return encodeVersioned(r, true)
}

func decodeBlockFreeTx(data []byte) (map[uint32]uint32, error) {
	var r []blockFreeTxRecord
	if err := decodeVersioned(data, &r, true); err != nil {
		return nil, errors.Wrap(err, "decode block free tx sizes")
	}
	blocks := make(map[uint32]uint32, len(r))
	for _, rec := range r {
		blocks[rec.Height] = rec.Size
	}
	return blocks, nil
}

func decodeBestBlock(data []byte) (chainhash.Hash, error) {
	var h chainhash.Hash
	if err := h.SetBytes(data); err != nil {
		return h, errors.Wrap(err, "decode best block")
	}
	return h, nil
}
