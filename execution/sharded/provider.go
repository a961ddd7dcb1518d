// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package sharded coordinates the execution of one block across multiple
// shards. A provider owns a shard's local transaction list and applies the
// committed outputs of remote transactions, received by message passing,
// into the shard's multi-version store. Shards share no memory; the arrival
// of a remote output is the only synchronization between them.
package sharded

import (
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/common/future"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"github.com/aptos-labs/aptos-core-sub063/execution/mvstore"
	"github.com/aptos-labs/aptos-core-sub063/execution/partition"
	"github.com/aptos-labs/aptos-core-sub063/metrics"
	"github.com/inconshreveable/log15"
	"github.com/puzpuzpuz/xsync/v4"
)

// Provider is one shard's view of a partitioned block. It serves local
// transaction lookups to the execution scheduler, fans committed local
// outputs out to follower shards, and runs the message loop applying remote
// commits into the local store.
type Provider struct {
	shard      common.ShardID
	assignment *partition.Assignment
	txns       []*execution.Transaction
	deps       partition.Dependencies
	endpoint   Endpoint
	arrived    *xsync.Map[common.Version, struct{}]
	metrics    *metrics.Metrics
	log        log15.Logger
}

// NewProvider creates the provider of the given shard. The transaction
// slice is the full input block, indexed by original position; the
// dependency table is the shard's slice of the partition analysis.
func NewProvider(
	shard common.ShardID,
	assignment *partition.Assignment,
	txns []*execution.Transaction,
	deps partition.Dependencies,
	endpoint Endpoint,
	m *metrics.Metrics,
) *Provider {
	return &Provider{
		shard:      shard,
		assignment: assignment,
		txns:       txns,
		deps:       deps,
		endpoint:   endpoint,
		arrived:    xsync.NewMap[common.Version, struct{}](),
		metrics:    m,
		log:        log15.New("module", "sharded", "shard", int(shard)),
	}
}

// Shard returns the id of the provider's shard.
func (p *Provider) Shard() common.ShardID {
	return p.shard
}

// Len returns the number of local transactions.
func (p *Provider) Len() int {
	return p.sub().Len()
}

func (p *Provider) sub() *partition.SubBlock {
	return p.assignment.Shard(p.shard)
}

// VersionAt returns the global version of the local position rank.
func (p *Provider) VersionAt(rank int) common.Version {
	return p.sub().Version(rank)
}

// IsLocal reports whether the given version executes on this shard.
func (p *Provider) IsLocal(version common.Version) bool {
	sub := p.sub()
	return version >= sub.StartOffset && version < sub.StartOffset+common.Version(sub.Len())
}

// LocalRank returns the position of the given version in the shard's local
// order. Asking for a non-local version is a programming error.
func (p *Provider) LocalRank(version common.Version) int {
	if !p.IsLocal(version) {
		panic(fmt.Sprintf("version %d is not local to shard %d", version, p.shard))
	}
	return int(version - p.sub().StartOffset)
}

// Txn returns the transaction executing at the given version. Asking for a
// non-local version is a programming error.
func (p *Provider) Txn(version common.Version) *execution.Transaction {
	return p.txns[p.sub().Originals[p.LocalRank(version)]]
}

// NextTxn returns the version following the given one in the shard's local
// order, or false if the given version is the shard's last.
func (p *Provider) NextTxn(version common.Version) (common.Version, bool) {
	rank := p.LocalRank(version)
	if rank+1 >= p.sub().Len() {
		return 0, false
	}
	return p.sub().Version(rank + 1), true
}

// OnLocalCommit fans the finalized output of the local transaction at the
// given rank out to every follower shard. It has no local side effect.
func (p *Provider) OnLocalCommit(rank int, output *execution.Output) error {
	message := Message{
		Kind:    RemoteCommitMessage,
		Version: p.sub().Version(rank),
		Output:  output,
	}
	for _, follower := range p.deps.Followers[rank] {
		if err := p.endpoint.Send(follower, message); err != nil {
			return fmt.Errorf("failed to notify shard %d of commit %d: %w", follower, message.Version, err)
		}
	}
	return nil
}

// RunMessageLoop blocks on the shard's inbound channel, applying remote
// commits into the given store until a shutdown message arrives. A remote
// output is fully materialized in the store before its arrival flag becomes
// visible, so a reader observing the flag sees all of the writes.
func (p *Provider) RunMessageLoop(store *mvstore.Store) error {
	for {
		message, err := p.endpoint.Receive()
		if err != nil {
			return fmt.Errorf("shard %d lost its inbound channel: %w", p.shard, err)
		}
		switch message.Kind {
		case RemoteCommitMessage:
			if err := p.applyRemoteCommit(store, message); err != nil {
				return err
			}
		case ShutdownMessage:
			p.log.Debug("message loop shut down", "arrived", p.arrived.Size())
			return nil
		default:
			return fmt.Errorf("shard %d received unknown message kind %d", p.shard, message.Kind)
		}
	}
}

func (p *Provider) applyRemoteCommit(store *mvstore.Store, message Message) error {
	var err error
	message.Output.Writes(func(key common.Key, value []byte) bool {
		err = store.Write(key, message.Version, value)
		return err == nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply remote commit %d: %w", message.Version, err)
	}

	// Close out declared writes the transaction did not produce, so local
	// readers do not wait on them.
	shard, local, err := p.assignment.ShardOf(message.Version)
	if err != nil {
		return fmt.Errorf("remote commit for unassigned version: %w", err)
	}
	txn := p.txns[p.assignment.Shard(shard).Originals[local]]
	for _, key := range txn.WriteSet {
		store.SkipIfNotSet(key, message.Version)
	}

	p.arrived.Store(message.Version, struct{}{})
	p.metrics.RemoteCommits.WithLabelValues(fmt.Sprint(int(p.shard))).Inc()
	return nil
}

// Start runs the message loop on a background goroutine and returns a
// future resolving to its result.
func (p *Provider) Start(store *mvstore.Store) future.Future[error] {
	promise, result := future.Create[error]()
	go func() {
		promise.Fulfill(p.RunMessageLoop(store))
	}()
	return result
}

// ShutdownReceiver sends a shutdown message to the shard's own inbound
// channel, unblocking the message loop during teardown. It must be the last
// message the shard sends itself.
func (p *Provider) ShutdownReceiver() error {
	if err := p.endpoint.Send(p.shard, Message{Kind: ShutdownMessage}); err != nil {
		return fmt.Errorf("failed to shut down receiver of shard %d: %w", p.shard, err)
	}
	return nil
}

// TxnOutputHasArrived reports whether the output of the given remote
// transaction has been applied to the local store. It never blocks; local
// schedulers poll it to test whether a dependency is ready.
func (p *Provider) TxnOutputHasArrived(version common.Version) bool {
	_, found := p.arrived.Load(version)
	return found
}

// RequiredRemote returns the keys the shard needs from the given remote
// version, or nil if it does not depend on it.
func (p *Provider) RequiredRemote(version common.Version) []common.Key {
	return p.deps.Required[version]
}
