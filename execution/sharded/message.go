// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sharded

import (
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
)

// MessageKind tags the variants of inter-shard messages.
type MessageKind int

const (
	// RemoteCommitMessage carries the finalized output of a non-local
	// transaction.
	RemoteCommitMessage MessageKind = iota
	// ShutdownMessage unblocks a shard's message loop during teardown. It
	// must be the last message a shard ever sends itself, so that no
	// in-flight commit is dropped.
	ShutdownMessage
)

// Message is one inter-shard message. Version and Output are only set for
// RemoteCommitMessage.
type Message struct {
	Kind    MessageKind
	Version common.Version
	Output  *execution.Output
}

// Endpoint is one shard's attachment to the inter-shard transport. Send and
// Receive failures indicate a gone peer or a torn-down transport; they are
// fatal for the shard's participation in the current block, and the
// surrounding orchestrator discards and re-executes the whole block.
type Endpoint interface {
	Send(to common.ShardID, message Message) error
	Receive() (Message, error)
}

// ChannelNetwork connects the shards of one process through buffered
// channels, one inbox per shard. Cross-process transports implement
// Endpoint on top of their own encoding.
type ChannelNetwork struct {
	inboxes []chan Message
}

// NewChannelNetwork creates a network of numShards endpoints with the given
// per-shard inbox capacity.
func NewChannelNetwork(numShards, capacity int) *ChannelNetwork {
	inboxes := make([]chan Message, numShards)
	for i := range inboxes {
		inboxes[i] = make(chan Message, capacity)
	}
	return &ChannelNetwork{inboxes: inboxes}
}

// Endpoint returns the attachment of the given shard.
func (n *ChannelNetwork) Endpoint(shard common.ShardID) Endpoint {
	return &channelEndpoint{network: n, self: shard}
}

type channelEndpoint struct {
	network *ChannelNetwork
	self    common.ShardID
}

func (e *channelEndpoint) Send(to common.ShardID, message Message) error {
	if int(to) < 0 || int(to) >= len(e.network.inboxes) {
		return fmt.Errorf("no such shard %d", to)
	}
	e.network.inboxes[to] <- message
	return nil
}

func (e *channelEndpoint) Receive() (Message, error) {
	message, open := <-e.network.inboxes[e.self]
	if !open {
		return Message{}, fmt.Errorf("inbound channel of shard %d closed", e.self)
	}
	return message, nil
}
