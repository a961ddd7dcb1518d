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
	"sync"
	"time"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution/mvstore"
	"github.com/aptos-labs/aptos-core-sub063/execution/sharded"
	"github.com/aptos-labs/aptos-core-sub063/storage"
)

// notifier wakes workers parked on the resolution of a local version. Every
// local version is resolved exactly once, when its transaction commits or
// is excluded from the block.
type notifier struct {
	mu      sync.Mutex
	waiters map[common.Version]chan struct{}
}

func newNotifier() *notifier {
	return &notifier{waiters: map[common.Version]chan struct{}{}}
}

func (n *notifier) channel(version common.Version) chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	channel, found := n.waiters[version]
	if !found {
		channel = make(chan struct{})
		n.waiters[version] = channel
	}
	return channel
}

// await blocks until the version has resolved or the context is done.
func (n *notifier) await(ctx context.Context, version common.Version) error {
	select {
	case <-n.channel(version):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve wakes all waiters of the version. Resolving a version twice is a
// programming error.
func (n *notifier) resolve(version common.Version) {
	close(n.channel(version))
}

// shardView is the state a single transaction executes against: the multi-
// version store of the shard, falling through to the base state, with reads
// suspending on unresolved earlier versions. A view is used by one worker
// at a time and records the keys it resolved for conflict accounting.
type shardView struct {
	ctx          context.Context
	store        *mvstore.Store
	base         storage.Reader
	provider     *sharded.Provider
	notifier     *notifier
	version      common.Version
	pollInterval time.Duration
	reads        []common.Key
}

// Read resolves the key as visible to the view's version. A read blocked on
// a local version parks until that version resolves; a read blocked on a
// remote version polls the arrival set, since shards share no memory to
// signal through.
func (v *shardView) Read(key common.Key) ([]byte, error) {
	for {
		result := v.store.Read(key, v.version)
		switch result.Status {
		case mvstore.ReadDone:
			v.reads = append(v.reads, key)
			return result.Value, nil
		case mvstore.ReadBase:
			v.reads = append(v.reads, key)
			return v.base.Get(key)
		case mvstore.ReadBlocked:
			if v.provider.IsLocal(result.BlockedBy) {
				if err := v.notifier.await(v.ctx, result.BlockedBy); err != nil {
					return nil, err
				}
			} else if err := v.awaitRemote(result.BlockedBy); err != nil {
				return nil, err
			}
		}
	}
}

func (v *shardView) awaitRemote(version common.Version) error {
	for !v.provider.TxnOutputHasArrived(version) {
		select {
		case <-v.ctx.Done():
			return v.ctx.Err()
		case <-time.After(v.pollInterval):
		}
	}
	return nil
}
