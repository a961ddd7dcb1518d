// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package partition groups the transactions of a block into shard-sized,
// conflict-aware batches before execution. Transactions that conflict,
// directly or transitively through shared senders or shared keys, are kept
// on the same shard where possible, so that most dependencies resolve
// locally.
package partition

import (
	"fmt"
	"math"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"golang.org/x/exp/slices"
)

// Config are the tuning parameters of the pre-partitioner.
type Config struct {
	// NumShards is the number of execution shards to partition for.
	NumShards int
	// LoadImbalanceTolerance relaxes the group-size ceiling; 1.0 enforces
	// perfectly even shard loads, larger values keep more of a conflict
	// component together at the price of imbalance. Must be >= 1.0.
	LoadImbalanceTolerance float32
}

// group is one schedulable chunk of a conflict component, tagged with its
// component and weighted by its size for bin packing.
type group struct {
	component int
	txns      []int // original transaction indices, in block order
}

// Partition assigns the given transactions to shards. Mutually conflicting
// transactions are grouped into connected components over shared senders and
// shared write-set keys; components larger than the group-size ceiling are
// split, and the resulting groups are spread over the shards with
// longest-processing-time-first bin packing. The result is deterministic
// for a given input.
func Partition(txns []*execution.Transaction, config Config) (*Assignment, error) {
	if config.NumShards < 1 {
		return nil, fmt.Errorf("invalid shard count %d", config.NumShards)
	}
	if config.LoadImbalanceTolerance < 1.0 {
		return nil, fmt.Errorf("invalid load imbalance tolerance %f, must be >= 1.0", config.LoadImbalanceTolerance)
	}

	components := findComponents(txns)
	groups := splitIntoGroups(txns, components, config)
	loads := packGroups(groups, config.NumShards)

	assignment := &Assignment{
		shards: make([]SubBlock, config.NumShards),
		total:  len(txns),
	}
	offset := common.Version(0)
	for shard := 0; shard < config.NumShards; shard++ {
		sub := &assignment.shards[shard]
		sub.Shard = common.ShardID(shard)
		sub.StartOffset = offset
		for _, g := range loads[shard] {
			sub.Originals = append(sub.Originals, g.txns...)
		}
		offset += common.Version(len(sub.Originals))
	}
	return assignment, nil
}

// findComponents computes, per transaction, the id of its conflict
// component. Two transactions conflict if they share the sender or a
// write-set key, transitively. Component ids are assigned in order of the
// first member transaction, keeping the result independent of map iteration
// order.
func findComponents(txns []*execution.Transaction) []int {
	senderIndex := map[common.Address]int{}
	keyIndex := map[common.Key]int{}
	for _, txn := range txns {
		if _, found := senderIndex[txn.Sender]; !found {
			senderIndex[txn.Sender] = len(senderIndex)
		}
		for _, key := range txn.WriteSet {
			if _, found := keyIndex[key]; !found {
				keyIndex[key] = len(keyIndex)
			}
		}
	}

	// One flat element space: senders at [0, numSenders), keys shifted
	// behind them.
	numSenders := len(senderIndex)
	set := common.NewDisjointSet(numSenders + len(keyIndex))
	for _, txn := range txns {
		sender := senderIndex[txn.Sender]
		for _, key := range txn.WriteSet {
			set.Union(sender, numSenders+keyIndex[key])
		}
	}

	components := make([]int, len(txns))
	componentIDs := map[int]int{}
	for i, txn := range txns {
		root := set.Find(senderIndex[txn.Sender])
		id, found := componentIDs[root]
		if !found {
			id = len(componentIDs)
			componentIDs[root] = id
		}
		components[i] = id
	}
	return components
}

// splitIntoGroups buckets transactions by component, preserving block order
// within each bucket, and cuts buckets exceeding the group-size ceiling into
// fixed-size chunks.
func splitIntoGroups(txns []*execution.Transaction, components []int, config Config) []group {
	numComponents := 0
	for _, c := range components {
		if c >= numComponents {
			numComponents = c + 1
		}
	}
	buckets := make([][]int, numComponents)
	for i := range txns {
		buckets[components[i]] = append(buckets[components[i]], i)
	}

	ceiling := int(math.Ceil(float64(len(txns)) * float64(config.LoadImbalanceTolerance) / float64(config.NumShards)))
	if ceiling < 1 {
		ceiling = 1
	}

	var groups []group
	for component, bucket := range buckets {
		for len(bucket) > ceiling {
			groups = append(groups, group{component: component, txns: bucket[:ceiling]})
			bucket = bucket[ceiling:]
		}
		if len(bucket) > 0 {
			groups = append(groups, group{component: component, txns: bucket})
		}
	}
	return groups
}

// packGroups distributes the groups over the shards using the
// longest-processing-time-first heuristic: groups are placed in order of
// decreasing weight onto the currently least-loaded shard. This bounds the
// maximum shard load by (2 - 1/numShards) times the optimum.
func packGroups(groups []group, numShards int) [][]group {
	sorted := slices.Clone(groups)
	slices.SortStableFunc(sorted, func(a, b group) int {
		return len(b.txns) - len(a.txns)
	})

	loads := make([][]group, numShards)
	weights := make([]int, numShards)
	for _, g := range sorted {
		lightest := 0
		for shard := 1; shard < numShards; shard++ {
			if weights[shard] < weights[lightest] {
				lightest = shard
			}
		}
		loads[lightest] = append(loads[lightest], g)
		weights[lightest] += len(g.txns)
	}
	return loads
}
