// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import cli "gopkg.in/urfave/cli.v1"

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Value: defaultDataDir(),
		Usage: "directory of the stakes database",
	}
	paramsFlag = cli.StringFlag{
		Name:  "params",
		Usage: "path to a yaml file overriding the staking parameters",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Value: 64,
		Usage: "megabytes of ram allocated to the database read cache",
	}
	metricsFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "print the collected metrics after the command",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 2,
		Usage: "log verbosity (0-5)",
	}
)
