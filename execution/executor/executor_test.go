// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package executor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"testing"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"github.com/aptos-labs/aptos-core-sub063/execution/limits"
	"github.com/aptos-labs/aptos-core-sub063/execution/partition"
	"github.com/aptos-labs/aptos-core-sub063/metrics"
	"github.com/aptos-labs/aptos-core-sub063/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// counterVM increments the 8-byte counter stored under the transaction's
// single declared write key. Since every read resolves against the latest
// committed predecessor, the value written at a version equals the number
// of committed increments of the key up to and including that version.
type counterVM struct{}

func (counterVM) Execute(view execution.StateView, txn *execution.Transaction, _ common.Version) (*execution.Output, error) {
	key := txn.WriteSet[0]
	value, err := view.Read(key)
	if err != nil {
		return nil, err
	}
	count := uint64(0)
	if len(value) == 8 {
		count = binary.BigEndian.Uint64(value)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, count+1)
	return &execution.Output{
		ResourceWrites: []execution.WriteOp{{Key: key, Value: next}},
		Fee:            execution.FeeStatement{ExecutionGas: 10, IOGas: 1},
	}, nil
}

func contendedBlock(numTxns int) []*execution.Transaction {
	hot := common.Key{0xff}
	txns := make([]*execution.Transaction, numTxns)
	for i := range txns {
		txns[i] = &execution.Transaction{
			Sender:   common.Address{byte(i), byte(i >> 8)},
			ReadSet:  []common.Key{hot},
			WriteSet: []common.Key{hot},
		}
	}
	return txns
}

func executorConfigs() map[string]Config {
	return map[string]Config{
		"sequential":  {Workers: 1},
		"fourWorkers": {Workers: 4},
	}
}

func TestExecutor_FullyContendedBlockCommitsInVersionOrder(t *testing.T) {
	for name, config := range executorConfigs() {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			const numTxns = 40
			txns := contendedBlock(numTxns)
			exec := New(counterVM{}, config, metrics.NewUnregistered())

			result, err := exec.ExecuteBlock(
				context.Background(),
				txns,
				partition.Config{NumShards: 4, LoadImbalanceTolerance: 1.0},
				limits.Config{ExecutionGasMultiplier: 1, IOGasMultiplier: 1},
				storage.NewInMemory(),
			)
			require.NoError(err)
			require.Equal(numTxns, result.Committed())

			// Versions are contiguous in shard order, so the counter value of
			// the output at global version v must be v+1.
			shards := append([]*ShardResult{}, result.Shards...)
			sort.Slice(shards, func(i, j int) bool {
				return shards[i].Shard < shards[j].Shard
			})
			version := uint64(0)
			for _, shard := range shards {
				require.False(shard.HaltedEarly)
				for _, output := range shard.Outputs {
					require.Len(output.ResourceWrites, 1)
					value := binary.BigEndian.Uint64(output.ResourceWrites[0].Value)
					require.Equal(version+1, value, "output of version %d", version)
					version++
				}
			}
			require.Equal(uint64(numTxns), version)
		})
	}
}

func TestExecutor_IndependentTransactionsAllCommit(t *testing.T) {
	for name, config := range executorConfigs() {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			const numTxns = 32
			txns := make([]*execution.Transaction, numTxns)
			for i := range txns {
				key := common.Key{byte(i)}
				txns[i] = &execution.Transaction{
					Sender:   common.Address{byte(i)},
					ReadSet:  []common.Key{key},
					WriteSet: []common.Key{key},
				}
			}
			exec := New(counterVM{}, config, metrics.NewUnregistered())

			result, err := exec.ExecuteBlock(
				context.Background(),
				txns,
				partition.Config{NumShards: 4, LoadImbalanceTolerance: 1.0},
				limits.Config{ExecutionGasMultiplier: 1},
				storage.NewInMemory(),
			)
			require.NoError(err)
			require.Equal(numTxns, result.Committed())

			// Every key starts at zero, so every independent increment
			// produces one.
			for _, shard := range result.Shards {
				for _, output := range shard.Outputs {
					require.Equal(uint64(1), binary.BigEndian.Uint64(output.ResourceWrites[0].Value))
				}
			}
		})
	}
}

func TestExecutor_ReadsFallThroughToTheBaseState(t *testing.T) {
	require := require.New(t)

	key := common.Key{0x42}
	base := storage.NewInMemory()
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, 100)
	base.Set(key, seed)

	txns := []*execution.Transaction{{
		Sender:   common.Address{1},
		ReadSet:  []common.Key{key},
		WriteSet: []common.Key{key},
	}}
	exec := New(counterVM{}, Config{Workers: 2}, metrics.NewUnregistered())

	result, err := exec.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{NumShards: 1, LoadImbalanceTolerance: 1.0},
		limits.Config{},
		base,
	)
	require.NoError(err)
	require.Equal(1, result.Committed())
	value := result.Shards[0].Outputs[0].ResourceWrites[0].Value
	require.Equal(uint64(101), binary.BigEndian.Uint64(value))
}

func TestExecutor_GasLimitHaltsTheBlockEarly(t *testing.T) {
	require := require.New(t)

	const numTxns = 50
	txns := contendedBlock(numTxns)
	exec := New(counterVM{}, Config{Workers: 1}, metrics.NewUnregistered())

	// Each commit costs 11 effective gas at multiplier weights of one, so
	// the limit of 100 is reached long before the block ends.
	result, err := exec.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{NumShards: 1, LoadImbalanceTolerance: 1.0},
		limits.Config{
			BlockGasLimit:          100,
			ExecutionGasMultiplier: 1,
			IOGasMultiplier:        1,
		},
		storage.NewInMemory(),
	)
	require.NoError(err)

	shard := result.Shards[0]
	require.True(shard.HaltedEarly)
	require.Less(shard.Committed, numTxns)
	require.Greater(shard.Committed, 0)
	require.Len(shard.Outputs, shard.Committed)
	require.GreaterOrEqual(shard.EffectiveGas, uint64(100))
}

func TestExecutor_OutputLimitHaltsTheBlockEarly(t *testing.T) {
	require := require.New(t)

	const numTxns = 50
	txns := contendedBlock(numTxns)
	exec := New(counterVM{}, Config{Workers: 4}, metrics.NewUnregistered())

	// Each output is one 32-byte key plus an 8-byte value.
	result, err := exec.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{NumShards: 1, LoadImbalanceTolerance: 1.0},
		limits.Config{BlockOutputLimit: 200},
		storage.NewInMemory(),
	)
	require.NoError(err)

	shard := result.Shards[0]
	require.True(shard.HaltedEarly)
	require.Less(shard.Committed, numTxns)
}

func TestExecutor_HaltedShardStillUnblocksItsFollowers(t *testing.T) {
	require := require.New(t)

	// A tight gas limit halts shards mid-block. Excluded transactions must
	// resolve their declared writes everywhere, so no shard hangs waiting
	// for an output that will never be produced.
	const numTxns = 60
	txns := contendedBlock(numTxns)
	exec := New(counterVM{}, Config{Workers: 4}, metrics.NewUnregistered())

	result, err := exec.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{NumShards: 3, LoadImbalanceTolerance: 1.0},
		limits.Config{
			BlockGasLimit:          50,
			ExecutionGasMultiplier: 1,
			IOGasMultiplier:        1,
		},
		storage.NewInMemory(),
	)
	require.NoError(err)
	require.Less(result.Committed(), numTxns)
}

func TestExecutor_FailingTransactionAbortsTheBlock(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	vm := execution.NewMockVM(ctrl)
	vm.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("vm rejected payload")).
		MinTimes(1)

	txns := contendedBlock(4)
	exec := New(vm, Config{Workers: 2}, metrics.NewUnregistered())

	_, err := exec.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{NumShards: 2, LoadImbalanceTolerance: 1.0},
		limits.Config{},
		storage.NewInMemory(),
	)
	require.ErrorContains(err, "vm rejected payload")
}

func TestExecutor_FailingBaseStateAbortsTheBlock(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	base := storage.NewMockReader(ctrl)
	base.EXPECT().Get(gomock.Any()).
		Return(nil, fmt.Errorf("backend unavailable")).
		MinTimes(1)

	txns := contendedBlock(4)
	exec := New(counterVM{}, Config{Workers: 2}, metrics.NewUnregistered())

	_, err := exec.ExecuteBlock(
		context.Background(),
		txns,
		partition.Config{NumShards: 1, LoadImbalanceTolerance: 1.0},
		limits.Config{},
		base,
	)
	require.ErrorContains(err, "backend unavailable")
}

func TestNotifier_ResolvedVersionsDoNotBlock(t *testing.T) {
	require := require.New(t)

	notif := newNotifier()
	notif.resolve(3)
	require.NoError(notif.await(context.Background(), 3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(notif.await(ctx, 4), context.Canceled)
}

func TestNotifier_AwaitWakesOnLaterResolve(t *testing.T) {
	require := require.New(t)

	notif := newNotifier()
	done := make(chan error, 1)
	go func() {
		done <- notif.await(context.Background(), 1)
	}()
	notif.resolve(1)
	require.NoError(<-done)
}
