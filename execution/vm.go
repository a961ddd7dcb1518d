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
)

//go:generate mockgen -source vm.go -destination vm_mock.go -package execution

// StateView is the read surface a transaction executes against. Reads
// resolve to the latest committed write of an earlier version, or fall
// through to the base state below the multi-version layer. A read may block
// until the version it depends on has resolved.
type StateView interface {
	// Read returns the value of the given key as visible to the executing
	// transaction, or nil if the key holds no value.
	Read(key common.Key) ([]byte, error)
}

// VM executes a single transaction against a state view and produces its
// output. Implementations are external to this substrate; the bytecode
// interpreter is treated as a collaborator behind this interface.
//
// Execute must be safe for concurrent use, as shards run transactions on
// parallel workers. All writes of the returned output must lie within the
// transaction's declared write set, and all reads within the declared read
// and write sets; the partitioner derives cross-shard data flow from those
// declarations.
type VM interface {
	Execute(view StateView, txn *Transaction, version common.Version) (*Output, error)
}
