// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package storage

import (
	"github.com/aptos-labs/aptos-core-sub063/common"
)

//go:generate mockgen -source storage.go -destination storage_mock.go -package storage

// Reader provides access to the base state below the multi-version layer.
// A read of a key that no transaction of the current block has written falls
// through to this interface.
type Reader interface {
	// Get retrieves the value stored under the given key. A key without a
	// value yields (nil, nil); errors are reserved for backend failures.
	Get(key common.Key) ([]byte, error)
}

// InMemory is a Reader backed by a plain map, mainly used in tests and
// simulations.
type InMemory struct {
	data map[common.Key][]byte
}

// NewInMemory creates an empty in-memory base state.
func NewInMemory() *InMemory {
	return &InMemory{data: map[common.Key][]byte{}}
}

func (s *InMemory) Get(key common.Key) ([]byte, error) {
	return s.data[key], nil
}

// Set stores a value under the given key.
func (s *InMemory) Set(key common.Key, value []byte) {
	s.data[key] = value
}
