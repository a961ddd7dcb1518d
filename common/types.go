// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Version is the global sequence number of a transaction within a block.
// Versions are dense within a shard's local view but may be sparse in the
// universe of possible writes.
type Version uint64

// ShardID identifies one execution shard of a block.
type ShardID int

// Address is the identity of a transaction sender.
type Address [20]byte

// Key is an opaque identifier of a unit of state, such as an account
// resource, a table entry, or a code object. Keys are compared by equality
// and by a total order; the order carries no domain meaning and is only used
// for deterministic partitioning.
type Key [32]byte

// KeyVersion is a single (key, version) pair of the possible-writes universe
// of a block.
type KeyVersion struct {
	Key     Key
	Version Version
}

// Compare orders two keys lexicographically.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}

// ResourceGroup collapses a key to its resource-group granularity. The first
// 20 bytes of a key embed the owning account, so all keys of one account's
// resource group share a prefix.
func (k Key) ResourceGroup() Key {
	var group Key
	copy(group[:], k[:20])
	return group
}

func (k Key) String() string {
	return fmt.Sprintf("0x%x", k[:])
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// KeyForAccount derives the canonical state key of an account's slot with
// the given tag. The account occupies the leading bytes so that
// ResourceGroup collapsing groups all slots of one account.
func KeyForAccount(address Address, tag uint64) Key {
	var key Key
	copy(key[:], address[:])
	binary.BigEndian.PutUint64(key[24:], tag)
	return key
}

// Keccak256 computes the Keccak256 hash of the given data.
func Keccak256(data []byte) [32]byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	var hash [32]byte
	hasher.Sum(hash[0:0])
	return hash
}
