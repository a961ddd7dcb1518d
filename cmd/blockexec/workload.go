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
	"encoding/binary"
	"math/rand"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/aptos-labs/aptos-core-sub063/execution"
	"github.com/holiman/uint256"
)

// workload tunes the synthetic block generator.
type workload struct {
	numTxns     int
	numAccounts int
	hotRatio    float64 // fraction of transactions touching the shared hot key
	seed        int64
}

func accountAddress(i int) common.Address {
	var address common.Address
	binary.BigEndian.PutUint64(address[12:], uint64(i)+1)
	return address
}

// generate produces a block of transfer-like transactions. Each transaction
// writes the sender's balance slot and one random receiver slot; a hotRatio
// fraction additionally writes one shared key, wiring all of those
// transactions into a single conflict component.
func (w workload) generate() []*execution.Transaction {
	random := rand.New(rand.NewSource(w.seed))
	hotKey := common.KeyForAccount(accountAddress(0), 0)

	txns := make([]*execution.Transaction, w.numTxns)
	for i := range txns {
		sender := accountAddress(1 + random.Intn(w.numAccounts))
		receiver := accountAddress(1 + random.Intn(w.numAccounts))
		writeSet := []common.Key{common.KeyForAccount(sender, 0)}
		if receiver != sender {
			writeSet = append(writeSet, common.KeyForAccount(receiver, 0))
		}
		if random.Float64() < w.hotRatio {
			writeSet = append(writeSet, hotKey)
		}
		txns[i] = &execution.Transaction{
			Sender:   sender,
			ReadSet:  writeSet,
			WriteSet: writeSet,
			SizeHint: 64,
		}
	}
	return txns
}

// counterVM is the demo virtual machine of the workbench: it reads every
// declared key and rewrites each write-set key with an incremented counter.
type counterVM struct{}

func (counterVM) Execute(view execution.StateView, txn *execution.Transaction, version common.Version) (*execution.Output, error) {
	output := &execution.Output{
		Fee: execution.FeeStatement{
			ExecutionGas: 3 + uint64(len(txn.WriteSet)),
			IOGas:        uint64(len(txn.ReadSet)),
			StorageFee:   10,
		},
	}
	for _, key := range txn.WriteSet {
		current, err := view.Read(key)
		if err != nil {
			return nil, err
		}
		counter := uint256.NewInt(0)
		if current != nil {
			counter.SetBytes(current)
		}
		counter.AddUint64(counter, 1)
		output.Deltas = append(output.Deltas, execution.DeltaOp{Key: key, Value: *counter})
	}
	return output, nil
}
