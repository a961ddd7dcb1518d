// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// blockexec partitions and executes synthetic blocks, mainly to inspect
// partitioning quality and executor behavior under different workloads.
package main

import (
	"os"

	"github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"
)

var log = log15.New("module", "blockexec")

func main() {
	app := &cli.App{
		Name:      "blockexec",
		Usage:     "block execution workbench",
		Copyright: "(c) 2025 Sonic Operations Ltd",
		Commands: []*cli.Command{
			&Partition,
			&Run,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("command failed", "err", err)
		os.Exit(1)
	}
}
