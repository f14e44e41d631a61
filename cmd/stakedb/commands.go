// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakedb/lvldb"
	"github.com/vechain/stakedb/metrics"
	"github.com/vechain/stakedb/stakes"
)

// withStore opens the store in the data dir for the duration of fn.
// Read only commands leave the database as found. The store is closed
// only when fn made changes.
func withStore(ctx *cli.Context, fn func(s *stakes.Store) error) error {
	return openStore(ctx, false, fn)
}

func openStore(ctx *cli.Context, write bool, fn func(s *stakes.Store) error) error {
	params, err := loadParams(ctx.GlobalString(paramsFlag.Name))
	if err != nil {
		return err
	}
	db, err := lvldb.New(ctx.GlobalString(dataDirFlag.Name), lvldb.Options{
		CacheSize:              ctx.GlobalInt(cacheFlag.Name),
		OpenFilesCacheCapacity: 64,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := stakes.Open(db, params, stakes.Options{})
	if err != nil {
		return errors.Wrap(err, "open stakes database")
	}
	if err := fn(s); err != nil {
		return err
	}
	if write {
		return s.Close()
	}
	return nil
}

func verifyAction(ctx *cli.Context) error {
	return withStore(ctx, func(s *stakes.Store) error {
		if err := s.Verify(); err != nil {
			return err
		}
		stats := s.Stats()
		fmt.Fprintf(ctx.App.Writer, "ok: %d active stakes, %v staked, best block %v\n",
			stats.ActiveStakes, stats.Pool.TotalStaked, stats.BestBlock)
		return nil
	})
}

func statsAction(ctx *cli.Context) error {
	return withStore(ctx, func(s *stakes.Store) error {
		stats := s.Stats()
		params := s.Params()

		table := tablewriter.NewWriter(ctx.App.Writer)
		table.SetHeader([]string{"Period", "Blocks", "Staked"})
		for i, amount := range stats.AmountsByPeriod {
			table.Append([]string{strconv.Itoa(i), strconv.FormatUint(uint64(params.StakingPeriods[i]), 10), amount.String()})
		}
		table.Render()

		table = tablewriter.NewWriter(ctx.App.Writer)
		table.SetHeader([]string{"Metric", "Value"})
		table.AppendBulk([][]string{
			{"best block", stats.BestBlock.String()},
			{"active stakes", strconv.Itoa(stats.ActiveStakes)},
			{"owner scripts", strconv.Itoa(stats.Scripts)},
			{"maturity heights", strconv.Itoa(stats.MaturityHeights)},
			{"total staked", stats.Pool.TotalStaked.String()},
			{"rewards issued", stats.Pool.RewardsIssued.String()},
			{"penalties collected", stats.Pool.PenaltiesCollected.String()},
			{"free tx scripts", strconv.Itoa(stats.FreeTxScripts)},
			{"free tx blocks", strconv.Itoa(stats.FreeTxBlocks)},
		})
		table.Render()
		return nil
	})
}

func showAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expected a txid")
	}
	txid, err := chainhash.NewHashFromStr(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "txid")
	}
	return withStore(ctx, func(s *stakes.Store) error {
		e, err := s.GetStakeEntry(*txid)
		if err != nil {
			return err
		}
		if !e.IsValid() {
			return errors.Errorf("stake %v not found", txid)
		}
		params := s.Params()

		w := ctx.App.Writer
		spew.Fdump(w, e)
		if deposit, err := e.DepositBlock(params); err == nil {
			fmt.Fprintln(w, "deposit block:", deposit)
		}
		fmt.Fprintln(w, "reward or penalty:", e.RewardOrPenalty(params.EarlyWithdrawalPenaltyPercent))
		if disasm, err := txscript.DisasmString(e.Script); err == nil {
			fmt.Fprintln(w, "script:", disasm)
		} else {
			fmt.Fprintln(w, "script:", hex.EncodeToString(e.Script), "(", err, ")")
		}
		return nil
	})
}

func scriptAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expected a hex encoded script")
	}
	script, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "script")
	}
	return withStore(ctx, func(s *stakes.Store) error {
		w := ctx.App.Writer
		ids := s.GetActiveStakeIDsForScript(script)

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Txid", "Amount", "Period", "Complete Block"})
		for _, id := range ids {
			e, err := s.GetStakeEntry(id)
			if err != nil {
				return err
			}
			table.Append([]string{
				id.String(),
				e.Amount.String(),
				strconv.Itoa(int(e.PeriodIdx)),
				strconv.FormatUint(uint64(e.CompleteBlock), 10),
			})
		}
		table.Render()

		if info, ok := s.GetFreeTxInfoForScript(script); ok {
			fmt.Fprintf(w, "free tx: limit %d, used %d, window started at %d\n", info.Limit, info.Used, info.ResetHeight)
		} else {
			fmt.Fprintln(w, "free tx: none")
		}
		if s.Params().FreeTxAllowance != nil {
			return s.View(func(c *stakes.Cache) error {
				limit, err := c.CalculateFreeTxLimitForScript(script)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "free tx limit for a new window:", limit)
				return nil
			})
		}
		return nil
	})
}

func purgeFreeTxAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expected a height")
	}
	height, err := strconv.ParseUint(ctx.Args().First(), 10, 32)
	if err != nil {
		return errors.Wrap(err, "height")
	}
	return openStore(ctx, true, func(s *stakes.Store) error {
		before := s.Stats()
		if err := s.Update(func(c *stakes.Cache) error {
			return c.RemoveOldFreeTxInfos(uint32(height))
		}); err != nil {
			return err
		}
		after := s.Stats()
		fmt.Fprintf(ctx.App.Writer, "purged %d scripts and %d blocks\n",
			before.FreeTxScripts-after.FreeTxScripts, before.FreeTxBlocks-after.FreeTxBlocks)
		return nil
	})
}

func printMetrics(w io.Writer) error {
	samples, err := metrics.Samples()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	for _, s := range samples {
		table.Append([]string{s.Name, strconv.FormatFloat(s.Value, 'f', -1, 64)})
	}
	table.Render()
	return nil
}
