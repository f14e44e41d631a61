// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// stakedb inspects and verifies a stakes database offline.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakedb/metrics"
	"github.com/vechain/stakedb/stakes"
)

var (
	version   string
	gitCommit string
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "stakedb"
	app.Usage = "stakes database inspector"
	app.Version = fmt.Sprintf("%s-%s", version, gitCommit)
	app.Flags = []cli.Flag{
		dataDirFlag,
		paramsFlag,
		cacheFlag,
		metricsFlag,
		verbosityFlag,
	}
	app.Before = func(ctx *cli.Context) error {
		initLogger(ctx.GlobalInt(verbosityFlag.Name))
		if ctx.GlobalBool(metricsFlag.Name) {
			metrics.InitializePrometheusMetrics()
		}
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		if ctx.GlobalBool(metricsFlag.Name) {
			return printMetrics(ctx.App.Writer)
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   "verify",
			Usage:  "recompute every index and aggregate and compare them with the stored ones",
			Action: verifyAction,
		},
		{
			Name:   "stats",
			Usage:  "print per period amounts and pool totals",
			Action: statsAction,
		},
		{
			Name:      "show",
			Usage:     "print one stake entry",
			ArgsUsage: "<txid>",
			Action:    showAction,
		},
		{
			Name:      "script",
			Usage:     "print the active stakes and free transaction bookkeeping of an owner script",
			ArgsUsage: "<hex script>",
			Action:    scriptAction,
		},
		{
			Name:      "purge-freetx",
			Usage:     "drop the free transaction bookkeeping that fell out of the window at the given height",
			ArgsUsage: "<height>",
			Action:    purgeFreeTxAction,
		},
	}
	return app
}

func initLogger(verbosity int) {
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), useColor)
	log.SetDefault(log.NewLogger(handler))
	stakes.SetLogger(log.New("pkg", "stakes"))
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		if stakes.IsConsistencyError(err) {
			fmt.Fprintln(os.Stderr, "database is inconsistent, rebuild it from the chain:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
