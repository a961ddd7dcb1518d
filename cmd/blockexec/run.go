// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aptos-labs/aptos-core-sub063/execution/executor"
	"github.com/aptos-labs/aptos-core-sub063/execution/limits"
	"github.com/aptos-labs/aptos-core-sub063/execution/partition"
	"github.com/aptos-labs/aptos-core-sub063/metrics"
	"github.com/aptos-labs/aptos-core-sub063/storage"
	"github.com/c2h5oh/datasize"
	"github.com/urfave/cli/v2"
)

var Run = cli.Command{
	Action: doRun,
	Name:   "run",
	Usage:  "executes a synthetic block across in-process shards",
	Flags: []cli.Flag{
		&shardsFlag,
		&toleranceFlag,
		&txnsFlag,
		&accountsFlag,
		&hotFlag,
		&seedFlag,
		&workersFlag,
		&gasLimitFlag,
		&outputLimitFlag,
		&windowFlag,
	},
}

var (
	workersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "per-shard worker pool size",
		Value: 4,
	}
	gasLimitFlag = cli.Uint64Flag{
		Name:  "gas-limit",
		Usage: "per-block effective gas limit, 0 disables",
		Value: 0,
	}
	outputLimitFlag = cli.StringFlag{
		Name:  "output-limit",
		Usage: "per-block output size limit (e.g. 4MB), empty disables",
	}
	windowFlag = cli.IntFlag{
		Name:  "window",
		Usage: "conflict penalty window size, 0 disables",
		Value: 8,
	}
)

func doRun(ctx *cli.Context) error {
	var outputLimit datasize.ByteSize
	if text := ctx.String(outputLimitFlag.Name); text != "" {
		if err := outputLimit.UnmarshalText([]byte(text)); err != nil {
			return fmt.Errorf("invalid output limit %q: %w", text, err)
		}
	}

	txns := workload{
		numTxns:     ctx.Int(txnsFlag.Name),
		numAccounts: ctx.Int(accountsFlag.Name),
		hotRatio:    ctx.Float64(hotFlag.Name),
		seed:        ctx.Int64(seedFlag.Name),
	}.generate()

	engine := executor.New(
		counterVM{},
		executor.Config{Workers: ctx.Int(workersFlag.Name)},
		metrics.NewUnregistered(),
	)

	start := time.Now()
	result, err := engine.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{
			NumShards:              ctx.Int(shardsFlag.Name),
			LoadImbalanceTolerance: float32(ctx.Float64(toleranceFlag.Name)),
		},
		limits.Config{
			BlockGasLimit:          ctx.Uint64(gasLimitFlag.Name),
			BlockOutputLimit:       outputLimit,
			ExecutionGasMultiplier: 1,
			IOGasMultiplier:        1,
			ConflictPenaltyWindow:  ctx.Int(windowFlag.Name),
		},
		storage.NewInMemory(),
	)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for _, shard := range result.Shards {
		fmt.Printf("shard %2d: committed %5d, effective gas %8d, halted early: %v\n",
			shard.Shard, shard.Committed, shard.EffectiveGas, shard.HaltedEarly)
	}
	fmt.Printf("committed %d of %d transactions in %v\n", result.Committed(), len(txns), elapsed)
	return nil
}
