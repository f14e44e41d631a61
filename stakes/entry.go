// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// maxScriptSize bounds the script read back from the store.
const maxScriptSize = 10000

// Entry is one stake record, keyed by the id of the transaction that created it.
// The zero Entry is invalid and stands for "not found".
type Entry struct {
	TxID          chainhash.Hash
	Amount        btcutil.Amount
	Reward        btcutil.Amount
	PeriodIdx     uint8
	CompleteBlock uint32 // maturity height
	NumOutput     uint32 // index of the staking output in the creating transaction
	Script        []byte // owner script
	Complete      bool
	Active        bool

	valid bool
}

// NewEntry creates a valid, incomplete entry.
func NewEntry(txid chainhash.Hash, amount, reward btcutil.Amount, periodIdx uint8, completeBlock, numOutput uint32, script []byte, active bool) Entry {
	return Entry{
		TxID:          txid,
		Amount:        amount,
		Reward:        reward,
		PeriodIdx:     periodIdx,
		CompleteBlock: completeBlock,
		NumOutput:     numOutput,
		Script:        script,
		Active:        active,
		valid:         true,
	}
}

// IsValid returns false for the placeholder returned on lookup misses.
func (e *Entry) IsValid() bool { return e.valid }

// RewardOrPenalty returns the reward of a complete entry, or the negated early withdrawal
// penalty of an active one. It is meant to be added to the principal, never used as an absolute.
func (e *Entry) RewardOrPenalty(penaltyPercent float64) btcutil.Amount {
	switch {
	case e.valid && e.Complete:
		return e.Reward
	case e.valid && e.Active:
		return -penalty(e.Amount, penaltyPercent)
	}
	return 0
}

func penalty(amount btcutil.Amount, penaltyPercent float64) btcutil.Amount {
	return btcutil.Amount(math.Floor(penaltyPercent * float64(amount) / 100))
}

// DepositBlock returns the height the stake was deposited at.
// It fails if the complete block comes before a full period could have elapsed.
func (e *Entry) DepositBlock(params *Params) (uint32, error) {
	d, err := params.PeriodDuration(e.PeriodIdx)
	if err != nil {
		return 0, err
	}
	if uint64(e.CompleteBlock)+1 < uint64(d) {
		return 0, errors.Errorf("complete block %d is shorter than the %d blocks of period %d", e.CompleteBlock, d, e.PeriodIdx)
	}
	return uint32(uint64(e.CompleteBlock) + 1 - uint64(d)), nil
}

// EstimateSize returns the approximate memory cost of the entry.
func (e *Entry) EstimateSize() int {
	return 2*8 + 2*4 + 1 + 3 + chainhash.HashSize + len(e.Script)
}

func (e *Entry) scriptKey() string { return string(e.Script) }

func (e *Entry) clone() Entry {
	c := *e
	c.Script = append([]byte(nil), e.Script...)
	return c
}

// Encode writes the canonical encoding of the entry. The txid is not part of it.
func (e *Entry) Encode(w io.Writer) error {
	var buf [8]byte
	write := func(b []byte) error {
		_, err := w.Write(b)
		return err
	}
	boolByte := func(b bool) []byte {
		if b {
			return []byte{1}
		}
		return []byte{0}
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(e.Amount))
	if err := write(buf[:8]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(e.Reward))
	if err := write(buf[:8]); err != nil {
		return err
	}
	if err := write([]byte{e.PeriodIdx}); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:], e.CompleteBlock)
	if err := write(buf[:4]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:], e.NumOutput)
	if err := write(buf[:4]); err != nil {
		return err
	}
	if err := write(boolByte(e.Complete)); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, e.Script); err != nil {
		return err
	}
	if err := write(boolByte(e.valid)); err != nil {
		return err
	}
	return write(boolByte(e.Active))
}

// Decode reads the canonical encoding written by Encode.
func (e *Entry) Decode(r io.Reader) error {
	var buf [8]byte
	read := func(n int) ([]byte, error) {
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
	readBool := func() (bool, error) {
		b, err := read(1)
		if err != nil {
			return false, err
		}
		return b[0] != 0, nil
	}

	b, err := read(8)
	if err != nil {
		return errors.Wrap(err, "amount")
	}
	e.Amount = btcutil.Amount(binary.LittleEndian.Uint64(b))
	if b, err = read(8); err != nil {
		return errors.Wrap(err, "reward")
	}
	e.Reward = btcutil.Amount(binary.LittleEndian.Uint64(b))
	if b, err = read(1); err != nil {
		return errors.Wrap(err, "period")
	}
	e.PeriodIdx = b[0]
	if b, err = read(4); err != nil {
		return errors.Wrap(err, "complete block")
	}
	e.CompleteBlock = binary.LittleEndian.Uint32(b)
	if b, err = read(4); err != nil {
		return errors.Wrap(err, "output index")
	}
	e.NumOutput = binary.LittleEndian.Uint32(b)
	if e.Complete, err = readBool(); err != nil {
		return errors.Wrap(err, "complete")
	}
	if e.Script, err = wire.ReadVarBytes(r, 0, maxScriptSize, "script"); err != nil {
		return err
	}
	if e.valid, err = readBool(); err != nil {
		return errors.Wrap(err, "valid")
	}
	if e.Active, err = readBool(); err != nil {
		return errors.Wrap(err, "active")
	}
	return nil
}

func encodeEntry(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(e.EstimateSize())
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(txid chainhash.Hash, data []byte) (Entry, error) {
	var e Entry
	if err := e.Decode(bytes.NewReader(data)); err != nil {
		return Entry{}, errors.Wrapf(err, "decode stake entry %v", txid)
	}
	e.TxID = txid
	return e, nil
}
