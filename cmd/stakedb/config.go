// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/stakedb/stakes"
)

// paramsConfig is the yaml form of the staking parameters. Omitted fields keep their defaults.
type paramsConfig struct {
	StakingPeriods                []uint32 `yaml:"staking_periods"`
	EarlyWithdrawalPenaltyPercent *float64 `yaml:"early_withdrawal_penalty_percent"`
	FreeTxWindow                  uint32   `yaml:"free_tx_window"`
	// FreeTxBytesPerCoin enables a linear allowance of that many bytes per staked coin.
	FreeTxBytesPerCoin uint32 `yaml:"free_tx_bytes_per_coin"`
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".stakedb")
	}
	return ".stakedb"
}

// loadParams returns the default parameters overridden by the yaml file at path, if any.
func loadParams(path string) (*stakes.Params, error) {
	params := stakes.DefaultParams()
	if path == "" {
		return params, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read params")
	}
	var cfg paramsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse params")
	}

	if len(cfg.StakingPeriods) > 0 {
		params.StakingPeriods = cfg.StakingPeriods
	}
	if cfg.EarlyWithdrawalPenaltyPercent != nil {
		params.EarlyWithdrawalPenaltyPercent = *cfg.EarlyWithdrawalPenaltyPercent
	}
	if cfg.FreeTxWindow > 0 {
		params.FreeTxWindow = cfg.FreeTxWindow
	}
	if perCoin := cfg.FreeTxBytesPerCoin; perCoin > 0 {
		params.FreeTxAllowance = func(amount btcutil.Amount, _ uint8) uint32 {
			return uint32(amount/btcutil.SatoshiPerBitcoin) * perCoin
		}
	}
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid params")
	}
	return params, nil
}
