// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package executor runs the transactions of a partitioned block. Within a
// shard, transactions execute speculatively on a fixed worker pool while
// commits are sequenced in version order; across shards, committed outputs
// travel by message passing only. Execution of a block either completes,
// halts early at a configured resource limit, or fails as a whole; there is
// no partial recovery.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/common/future"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"github.com/aptos-labs/aptos-core-sub063/execution/limits"
	"github.com/aptos-labs/aptos-core-sub063/execution/mvstore"
	"github.com/aptos-labs/aptos-core-sub063/execution/partition"
	"github.com/aptos-labs/aptos-core-sub063/execution/sharded"
	"github.com/aptos-labs/aptos-core-sub063/metrics"
	"github.com/aptos-labs/aptos-core-sub063/storage"
	"github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"
)

// Config tunes the executor.
type Config struct {
	// Workers is the size of the per-shard worker pool; 1 executes each
	// shard sequentially.
	Workers int
	// RemotePollInterval is the delay between polls of the arrival set
	// while a read waits on a remote version.
	RemotePollInterval time.Duration
}

const defaultRemotePollInterval = 50 * time.Microsecond

// Executor executes blocks against a virtual machine.
type Executor struct {
	vm      execution.VM
	config  Config
	metrics *metrics.Metrics
	log     log15.Logger
}

// New creates an executor running transactions on the given virtual
// machine.
func New(vm execution.VM, config Config, m *metrics.Metrics) *Executor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.RemotePollInterval <= 0 {
		config.RemotePollInterval = defaultRemotePollInterval
	}
	return &Executor{
		vm:      vm,
		config:  config,
		metrics: m,
		log:     log15.New("module", "executor"),
	}
}

// ShardResult is the outcome of one shard's execution: the outputs of the
// committed prefix in local order, and whether a resource limit ended the
// shard before all local transactions were admitted.
type ShardResult struct {
	Shard        common.ShardID
	Outputs      []*execution.Output
	Committed    int
	HaltedEarly  bool
	EffectiveGas uint64
}

// BlockResult is the outcome of a whole block.
type BlockResult struct {
	Shards []*ShardResult
}

// Committed returns the total number of committed transactions.
func (r *BlockResult) Committed() int {
	total := 0
	for _, shard := range r.Shards {
		total += shard.Committed
	}
	return total
}

// ExecuteBlock partitions the given transactions, executes them across
// in-process shards, and assembles the committed outputs. Any invariant
// violation or transport failure aborts the whole block; the caller may
// safely re-execute it from scratch, as writes are deterministic for a
// given input.
func (e *Executor) ExecuteBlock(
	ctx context.Context,
	txns []*execution.Transaction,
	partitionConfig partition.Config,
	limitConfig limits.Config,
	base storage.Reader,
) (*BlockResult, error) {
	assignment, err := partition.Partition(txns, partitionConfig)
	if err != nil {
		return nil, err
	}
	dependencies := assignment.Analyze(txns)
	possibleWrites := assignment.PossibleWrites(txns)

	numShards := assignment.NumShards()
	// Inbox capacity covers every possible commit message plus shutdown,
	// so sends never block and teardown cannot deadlock.
	network := sharded.NewChannelNetwork(numShards, len(txns)+1)

	providers := make([]*sharded.Provider, numShards)
	stores := make([]*mvstore.Store, numShards)
	loops := make([]future.Future[error], numShards)
	for i := 0; i < numShards; i++ {
		shard := common.ShardID(i)
		store, maxFanout := mvstore.Build(possibleWrites)
		e.log.Debug("shard store built", "shard", i, "cells", len(possibleWrites), "maxFanout", maxFanout)
		providers[i] = sharded.NewProvider(shard, assignment, txns, dependencies[i], network.Endpoint(shard), e.metrics)
		stores[i] = store
		loops[i] = providers[i].Start(store)
	}

	results := make([]*ShardResult, numShards)
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < numShards; i++ {
		group.Go(func() error {
			result, err := e.runShard(groupCtx, providers[i], stores[i], base, limits.NewProcessor(limitConfig))
			if err != nil {
				return fmt.Errorf("shard %d failed: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	execErr := group.Wait()

	// Shutdown must be the last message each shard sends itself.
	var loopErrs []error
	for i := 0; i < numShards; i++ {
		if err := providers[i].ShutdownReceiver(); err != nil {
			loopErrs = append(loopErrs, err)
			continue
		}
		loopErrs = append(loopErrs, loops[i].Await())
	}
	if err := errors.Join(append([]error{execErr}, loopErrs...)...); err != nil {
		return nil, err
	}
	return &BlockResult{Shards: results}, nil
}

type execResult struct {
	admitted bool
	output   *execution.Output
	reads    []common.Key
	err      error
}

// runShard executes the provider's local transactions. Workers claim
// transactions in local order and execute them speculatively; this
// goroutine commits results strictly in version order, feeding the limit
// processor after each commit. Once a limit triggers, not-yet-claimed
// transactions are excluded from the block: their declared writes are
// skipped and an empty output is fanned out so follower shards do not wait
// on them.
func (e *Executor) runShard(
	ctx context.Context,
	provider *sharded.Provider,
	store *mvstore.Store,
	base storage.Reader,
	processor *limits.Processor,
) (*ShardResult, error) {
	n := provider.Len()
	mode := limits.Sequential
	if e.config.Workers > 1 {
		mode = limits.Parallel
	}

	notif := newNotifier()
	results := make([]chan execResult, n)
	for i := range results {
		results[i] = make(chan execResult, 1)
	}

	var next atomic.Int64
	var halted atomic.Bool

	// A failing commit must also unpark workers waiting on versions that
	// will never resolve.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers, workerCtx := errgroup.WithContext(ctx)
	for w := 0; w < e.config.Workers; w++ {
		workers.Go(func() error {
			for {
				rank := int(next.Add(1) - 1)
				if rank >= n {
					return nil
				}
				if halted.Load() {
					results[rank] <- execResult{admitted: false}
					continue
				}
				version := provider.VersionAt(rank)
				view := &shardView{
					ctx:          workerCtx,
					store:        store,
					base:         base,
					provider:     provider,
					notifier:     notif,
					version:      version,
					pollInterval: e.config.RemotePollInterval,
				}
				output, err := e.vm.Execute(view, provider.Txn(version), version)
				results[rank] <- execResult{admitted: true, output: output, reads: view.reads, err: err}
				if err != nil {
					return err
				}
			}
		})
	}

	result := &ShardResult{Shard: provider.Shard()}
	var commitErr error
	for rank := 0; rank < n && commitErr == nil; rank++ {
		res := <-results[rank]
		if res.err != nil {
			commitErr = res.err
			break
		}
		if !res.admitted {
			e.exclude(provider, store, notif, rank)
			continue
		}
		commitErr = e.commit(provider, store, notif, processor, mode, rank, res, result)
		if commitErr == nil && !halted.Load() && processor.ShouldEndBlock(mode) {
			halted.Store(true)
			result.HaltedEarly = true
			e.metrics.EarlyHalts.WithLabelValues(mode.String()).Inc()
			e.log.Info("block limit reached, shard stops admitting transactions",
				"shard", int(provider.Shard()), "committed", result.Committed, "of", n)
		}
	}
	halted.Store(true)
	if commitErr != nil {
		cancel()
	}

	if err := workers.Wait(); err != nil && commitErr == nil {
		commitErr = err
	}
	if commitErr != nil {
		return nil, commitErr
	}
	result.EffectiveGas = processor.EffectiveGas()
	e.metrics.EffectiveGas.WithLabelValues(mode.String()).Add(float64(result.EffectiveGas))
	return result, nil
}

// commit finalizes an executed transaction: its writes become visible in
// the store, declared-but-unwritten cells are closed out, local waiters are
// woken, follower shards are notified, and its cost is accumulated.
func (e *Executor) commit(
	provider *sharded.Provider,
	store *mvstore.Store,
	notif *notifier,
	processor *limits.Processor,
	mode limits.Mode,
	rank int,
	res execResult,
	result *ShardResult,
) error {
	version := provider.VersionAt(rank)
	txn := provider.Txn(version)

	var writeErr error
	res.output.Writes(func(key common.Key, value []byte) bool {
		writeErr = store.Write(key, version, value)
		return writeErr == nil
	})
	if writeErr != nil {
		return fmt.Errorf("failed to commit version %d: %w", version, writeErr)
	}
	for _, key := range txn.WriteSet {
		store.SkipIfNotSet(key, version)
	}
	notif.resolve(version)

	if err := provider.OnLocalCommit(rank, res.output); err != nil {
		return err
	}

	processor.Accumulate(res.output.Fee, processor.Summarize(res.reads, res.output.WrittenKeys()), res.output.ApproxSize())
	result.Outputs = append(result.Outputs, res.output)
	result.Committed++
	e.metrics.CommittedTxns.WithLabelValues(mode.String()).Inc()
	return nil
}

// exclude closes out a transaction that was not admitted before the block
// limit triggered. Its cells resolve to skips locally and on all follower
// shards, so no reader waits on it; it will be retried in a later block.
func (e *Executor) exclude(
	provider *sharded.Provider,
	store *mvstore.Store,
	notif *notifier,
	rank int,
) {
	version := provider.VersionAt(rank)
	for _, key := range provider.Txn(version).WriteSet {
		store.SkipIfNotSet(key, version)
	}
	notif.resolve(version)
	if err := provider.OnLocalCommit(rank, &execution.Output{}); err != nil {
		// Losing a peer is fatal for the block anyway; the commit loop
		// surfaces the next transport failure.
		e.log.Error("failed to fan out exclusion", "version", version, "err", err)
	}
}
