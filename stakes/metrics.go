// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import "github.com/vechain/stakedb/metrics"

var (
	metricFlushes         = metrics.LazyLoadCounterVec("flushes_count", []string{"result"})
	metricFlushDuration   = metrics.LazyLoadHistogram("flush_duration_ms", metrics.BucketFlushMs)
	metricImplicitFlushes = metrics.LazyLoadCounter("implicit_flushes_count")
	metricEntriesWritten  = metrics.LazyLoadCounter("entries_written_count")
	metricEntriesRemoved  = metrics.LazyLoadCounter("entries_removed_count")
	metricFreeTx          = metrics.LazyLoadCounterVec("free_tx_count", []string{"result"})
	metricActiveStakes    = metrics.LazyLoadGauge("active_stakes")
	metricTotalStaked     = metrics.LazyLoadGauge("total_staked_sat")
)

func resultLabel(err error) map[string]string {
	switch {
	case err == nil:
		return map[string]string{"result": "ok"}
	case IsWriteError(err):
		return map[string]string{"result": "write_error"}
	case IsConsistencyError(err):
		return map[string]string{"result": "inconsistent"}
	default:
		return map[string]string{"result": "rejected"}
	}
}
