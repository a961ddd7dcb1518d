// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package execution

import (
	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/holiman/uint256"
)

// Transaction is one unit of work of a block, as seen by the execution
// substrate. The payload interpreted by the virtual machine is opaque at
// this layer; only the sender identity, the declared access sets, and a
// size hint are inspected.
type Transaction struct {
	Sender   common.Address
	ReadSet  []common.Key
	WriteSet []common.Key
	SizeHint uint64
	Payload  []byte
}

// WriteOp is one key/value pair produced by a transaction. A nil value
// records a deletion.
type WriteOp struct {
	Key   common.Key
	Value []byte
}

// DeltaOp is a numeric delta a transaction applies to an aggregator value.
// The materialized result is computed when the transaction commits, so
// followers apply it as a plain value at the transaction's version.
type DeltaOp struct {
	Key   common.Key
	Value uint256.Int
}

// FeeStatement breaks the cost of a transaction down into its gas
// components. The storage fee covers persisted bytes and does not reflect
// execution cost.
type FeeStatement struct {
	ExecutionGas uint64
	IOGas        uint64
	StorageFee   uint64
}

// Output is the finalized effect of a transaction: the writes to resources
// and modules, the materialized aggregator deltas, the emitted events, and
// the cost of producing all of it.
type Output struct {
	ResourceWrites []WriteOp
	ModuleWrites   []WriteOp
	Deltas         []DeltaOp
	Events         [][]byte
	Fee            FeeStatement
}

// Writes iterates all key/value pairs of the output, including the
// materialized deltas, in a fixed order.
func (o *Output) Writes(yield func(common.Key, []byte) bool) {
	for _, write := range o.ResourceWrites {
		if !yield(write.Key, write.Value) {
			return
		}
	}
	for _, write := range o.ModuleWrites {
		if !yield(write.Key, write.Value) {
			return
		}
	}
	for _, delta := range o.Deltas {
		value := delta.Value.Bytes32()
		if !yield(delta.Key, value[:]) {
			return
		}
	}
}

// WrittenKeys returns the set of keys the output writes.
func (o *Output) WrittenKeys() []common.Key {
	keys := make([]common.Key, 0, len(o.ResourceWrites)+len(o.ModuleWrites)+len(o.Deltas))
	o.Writes(func(key common.Key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// ApproxSize is a conservative estimate of the serialized size of the
// output, used for block output limits.
func (o *Output) ApproxSize() uint64 {
	size := uint64(0)
	o.Writes(func(key common.Key, value []byte) bool {
		size += uint64(len(key)) + uint64(len(value))
		return true
	})
	for _, event := range o.Events {
		size += uint64(len(event))
	}
	return size
}
