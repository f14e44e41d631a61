// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"fmt"

	"github.com/pkg/errors"
)

// Soft failures. The mutation that returns one of them has no effect.
var (
	ErrStakeExists         = errors.New("active stake entry already exists")
	ErrStakeNotFound       = errors.New("stake entry not found")
	ErrStakeInactive       = errors.New("stake entry is not active")
	ErrStakeActive         = errors.New("stake entry is already active")
	ErrInvalidEntry        = errors.New("invalid stake entry")
	ErrViewOnly            = errors.New("cache is view only")
	ErrCacheClosed         = errors.New("cache is closed")
	ErrCacheInUse          = errors.New("a mutable cache is already open")
	ErrStoreClosed         = errors.New("store is closed")
	ErrNoActiveStake       = errors.New("script has no active stake")
	ErrFreeTxLimitExceeded = errors.New("free transaction limit exceeded")
	ErrNoAllowanceFunc     = errors.New("free transaction allowance function not set")
	ErrInvalidPeriod       = errors.New("invalid staking period index")
)

// WriteError is returned when the persistent store rejects a write.
// A flush stops at the first WriteError; writes issued before it may have been applied.
type WriteError struct {
	Op  string
	Key []byte
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("stakes: %s %x: %v", e.Op, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsWriteError returns whether err is or wraps a *WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// ConsistencyError reports derived state that disagrees with a recomputation from the entry set.
// It is fatal: the owner is expected to stop and rebuild the store from the chain.
type ConsistencyError struct {
	Check  string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("stakes: consistency check %q failed: %s", e.Check, e.Detail)
}

// IsConsistencyError returns whether err is or wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

func inconsistent(check string, format string, args ...any) error {
	return &ConsistencyError{Check: check, Detail: fmt.Sprintf(format, args...)}
}
