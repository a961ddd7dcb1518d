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
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution/partition"
	"github.com/urfave/cli/v2"
)

var Partition = cli.Command{
	Action: doPartition,
	Name:   "partition",
	Usage:  "partitions a synthetic block and reports per-shard loads",
	Flags: []cli.Flag{
		&shardsFlag,
		&toleranceFlag,
		&txnsFlag,
		&accountsFlag,
		&hotFlag,
		&seedFlag,
	},
}

var (
	shardsFlag = cli.IntFlag{
		Name:  "shards",
		Usage: "number of execution shards",
		Value: 4,
	}
	toleranceFlag = cli.Float64Flag{
		Name:  "tolerance",
		Usage: "load imbalance tolerance, >= 1.0",
		Value: 2.0,
	}
	txnsFlag = cli.IntFlag{
		Name:  "txns",
		Usage: "number of transactions in the block",
		Value: 1000,
	}
	accountsFlag = cli.IntFlag{
		Name:  "accounts",
		Usage: "number of distinct accounts",
		Value: 100,
	}
	hotFlag = cli.Float64Flag{
		Name:  "hot",
		Usage: "fraction of transactions touching one shared key",
		Value: 0.1,
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "workload random seed",
		Value: 0,
	}
)

func doPartition(context *cli.Context) error {
	txns := workload{
		numTxns:     context.Int(txnsFlag.Name),
		numAccounts: context.Int(accountsFlag.Name),
		hotRatio:    context.Float64(hotFlag.Name),
		seed:        context.Int64(seedFlag.Name),
	}.generate()

	config := partition.Config{
		NumShards:              context.Int(shardsFlag.Name),
		LoadImbalanceTolerance: float32(context.Float64(toleranceFlag.Name)),
	}
	assignment, err := partition.Partition(txns, config)
	if err != nil {
		return err
	}

	maxLoad := 0
	for shard := 0; shard < assignment.NumShards(); shard++ {
		sub := assignment.Shard(common.ShardID(shard))
		if sub.Len() > maxLoad {
			maxLoad = sub.Len()
		}
		fmt.Printf("shard %2d: %5d txns, start offset %d\n", shard, sub.Len(), sub.StartOffset)
	}

	crossShard := 0
	for _, deps := range assignment.Analyze(txns) {
		crossShard += len(deps.Required)
	}
	fmt.Printf("max shard load: %d (LPT bound %.1f)\n",
		maxLoad, lptBound(len(txns), config.NumShards))
	fmt.Printf("cross-shard dependency edges: %d\n", crossShard)
	return nil
}

func lptBound(total, numShards int) float64 {
	optimal := float64(total+numShards-1) / float64(numShards)
	return optimal * (2.0 - 1.0/float64(numShards))
}
