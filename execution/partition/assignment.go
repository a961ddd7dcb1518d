// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package partition

import (
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
)

// SubBlock is the slice of a block assigned to one shard. Transactions are
// renumbered: the shard's local position j executes at the global version
// StartOffset + j, while Originals[j] remembers the transaction's index in
// the input block.
type SubBlock struct {
	Shard       common.ShardID
	StartOffset common.Version
	Originals   []int
}

// Len returns the number of transactions assigned to the sub-block.
func (b *SubBlock) Len() int {
	return len(b.Originals)
}

// Version returns the global version of the local position i.
func (b *SubBlock) Version(i int) common.Version {
	return b.StartOffset + common.Version(i)
}

// Assignment is the immutable result of pre-partitioning one block: the
// per-shard transaction order plus the renumbering of transactions into
// their execution versions. It is built once and read by all shards.
type Assignment struct {
	shards []SubBlock
	total  int
}

// NumShards returns the number of shards of the assignment.
func (a *Assignment) NumShards() int {
	return len(a.shards)
}

// Len returns the total number of transactions covered by the assignment.
func (a *Assignment) Len() int {
	return a.total
}

// Shard returns the sub-block of the given shard.
func (a *Assignment) Shard(id common.ShardID) *SubBlock {
	return &a.shards[id]
}

// ShardOf locates the shard and local position executing the given global
// version. Versions are contiguous per shard, so the owner is the last
// shard whose start offset does not exceed the version.
func (a *Assignment) ShardOf(version common.Version) (common.ShardID, int, error) {
	for i := len(a.shards) - 1; i >= 0; i-- {
		if a.shards[i].StartOffset <= version {
			local := int(version - a.shards[i].StartOffset)
			if local >= a.shards[i].Len() {
				break
			}
			return a.shards[i].Shard, local, nil
		}
	}
	return 0, 0, fmt.Errorf("version %d is not part of the assignment", version)
}

// PossibleWrites derives the (key, version) universe of the block from the
// declared write sets, using the renumbered execution versions.
func (a *Assignment) PossibleWrites(txns []*execution.Transaction) []common.KeyVersion {
	var pairs []common.KeyVersion
	for _, sub := range a.shards {
		for i, original := range sub.Originals {
			version := sub.Version(i)
			for _, key := range txns[original].WriteSet {
				pairs = append(pairs, common.KeyVersion{Key: key, Version: version})
			}
		}
	}
	return pairs
}

// Dependencies is the cross-shard data flow of one shard: the remote
// versions the shard has to wait on with the keys it needs from each, and
// for every local transaction the set of shards that depend on its output.
type Dependencies struct {
	// Required maps a non-local version to the keys some local transaction
	// reads or may overwrite from it.
	Required map[common.Version][]common.Key
	// Followers holds, per local position, the shards to notify when the
	// transaction commits.
	Followers [][]common.ShardID
}

type keyWriter struct {
	version common.Version
	shard   common.ShardID
	local   int
}

// Analyze computes the per-shard dependency tables of the assignment from
// the declared read and write sets.
func (a *Assignment) Analyze(txns []*execution.Transaction) []Dependencies {
	deps := make([]Dependencies, len(a.shards))
	for i := range deps {
		deps[i] = Dependencies{
			Required:  map[common.Version][]common.Key{},
			Followers: make([][]common.ShardID, a.shards[i].Len()),
		}
	}

	// Writers per key, naturally sorted by version since sub-blocks are
	// visited in start-offset order.
	writers := map[common.Key][]keyWriter{}
	for s := range a.shards {
		sub := &a.shards[s]
		for i, original := range sub.Originals {
			for _, key := range dedupe(txns[original].WriteSet) {
				writers[key] = append(writers[key], keyWriter{
					version: sub.Version(i),
					shard:   sub.Shard,
					local:   i,
				})
			}
		}
	}

	// A reader depends on every prior cross-shard writer of a key it
	// accesses, not only the latest one: a declared write may turn into a
	// skip at runtime, in which case the read falls through to the next
	// older version, which must have arrived as well.
	for s := range a.shards {
		sub := &a.shards[s]
		for i, original := range sub.Originals {
			version := sub.Version(i)
			txn := txns[original]
			accessed := dedupe(append(append([]common.Key{}, txn.ReadSet...), txn.WriteSet...))
			for _, key := range accessed {
				for _, writer := range writers[key] {
					if writer.version >= version {
						break
					}
					if writer.shard == sub.Shard {
						continue
					}
					required := deps[s].Required[writer.version]
					if !containsKey(required, key) {
						deps[s].Required[writer.version] = append(required, key)
					}
					followers := deps[writer.shard].Followers[writer.local]
					if !containsShard(followers, sub.Shard) {
						deps[writer.shard].Followers[writer.local] = append(followers, sub.Shard)
					}
				}
			}
		}
	}
	return deps
}

func dedupe(keys []common.Key) []common.Key {
	result := keys[:0:0]
	for _, key := range keys {
		if !containsKey(result, key) {
			result = append(result, key)
		}
	}
	return result
}

func containsKey(keys []common.Key, key common.Key) bool {
	for _, cur := range keys {
		if cur == key {
			return true
		}
	}
	return false
}

func containsShard(shards []common.ShardID, shard common.ShardID) bool {
	for _, cur := range shards {
		if cur == shard {
			return true
		}
	}
	return false
}
