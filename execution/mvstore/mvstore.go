// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mvstore

import (
	"errors"
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/tidwall/btree"
)

// ErrUnexpectedWrite is returned when a write or skip targets a (key,
// version) pair outside the declared possible writes, or a pair whose cell
// has already been assigned. Both cases indicate a scheduler bug; callers in
// the concurrent engine treat this error as fatal for the block.
var ErrUnexpectedWrite = errors.New("unexpected write")

// ReadStatus describes the outcome of a versioned read.
type ReadStatus int

const (
	// ReadDone signals that a committed value of an earlier version was
	// found.
	ReadDone ReadStatus = iota
	// ReadBlocked signals that an earlier version may still produce a value
	// but has not resolved yet. The reader must retry once the blocking
	// version has been written or skipped.
	ReadBlocked
	// ReadBase signals that no earlier version can produce a value; the
	// read observes the base state below the multi-version layer.
	ReadBase
)

// ReadResult is the outcome of Store.Read. Value is only set for ReadDone,
// BlockedBy only for ReadBlocked.
type ReadResult struct {
	Status    ReadStatus
	Value     []byte
	BlockedBy common.Version
}

// Store is the multi-version state of one block: for every key, the ordered
// set of versions that may write it, each holding a single-assignment cell.
// The key and version structure is fixed at build time; after Build only the
// cells transition, so reads never take a lock.
type Store struct {
	keys map[common.Key]*btree.Map[uint64, *cell]
}

// Build allocates a store holding one cell per declared possible write. It
// returns the store and the maximum number of versions any single key may
// receive, used by schedulers to size dependency-retry bounds. Large inputs
// are built by parallel divide-and-conquer over key ranges; the result is
// identical to a sequential build.
func Build(possibleWrites []common.KeyVersion) (*Store, int) {
	store := build(possibleWrites)
	maxFanout := 0
	for _, versions := range store.keys {
		if versions.Len() > maxFanout {
			maxFanout = versions.Len()
		}
	}
	return store, maxFanout
}

func newStore() *Store {
	return &Store{keys: map[common.Key]*btree.Map[uint64, *cell]{}}
}

func (s *Store) add(pair common.KeyVersion) {
	versions, found := s.keys[pair.Key]
	if !found {
		versions = &btree.Map[uint64, *cell]{}
		s.keys[pair.Key] = versions
	}
	if _, exists := versions.Get(uint64(pair.Version)); !exists {
		versions.Set(uint64(pair.Version), &cell{})
	}
}

func (s *Store) lookup(key common.Key, version common.Version) *cell {
	versions, found := s.keys[key]
	if !found {
		return nil
	}
	cell, _ := versions.Get(uint64(version))
	return cell
}

// Write records the value produced by the transaction at the given version.
// The (key, version) pair must be part of the declared possible writes and
// must not have been assigned before.
func (s *Store) Write(key common.Key, version common.Version, value []byte) error {
	cell := s.lookup(key, version)
	if cell == nil {
		return fmt.Errorf("%w: %v@%d is not a declared write", ErrUnexpectedWrite, key, version)
	}
	if !cell.write(value) {
		return fmt.Errorf("%w: %v@%d was already assigned", ErrUnexpectedWrite, key, version)
	}
	return nil
}

// Skip records that the transaction at the given version made no write to
// the key after all. Same declaration and single-assignment rules as Write.
func (s *Store) Skip(key common.Key, version common.Version) error {
	cell := s.lookup(key, version)
	if cell == nil {
		return fmt.Errorf("%w: %v@%d is not a declared write", ErrUnexpectedWrite, key, version)
	}
	if !cell.skip() {
		return fmt.Errorf("%w: %v@%d was already assigned", ErrUnexpectedWrite, key, version)
	}
	return nil
}

// SkipIfNotSet marks the cell skipped if it is still unwritten. Unlike Skip
// it is idempotent and never fails on an already assigned cell; it is used
// to close out declared writes a transaction did not produce.
func (s *Store) SkipIfNotSet(key common.Key, version common.Version) {
	if cell := s.lookup(key, version); cell != nil {
		cell.skip()
	}
}

// Read resolves the value of key as visible to the transaction at the given
// version. It scans versions strictly below the reader in descending order:
// the first written cell provides the value, skipped cells are passed over,
// and an unresolved cell blocks the read until that version commits. If no
// version below the reader exists, the read falls through to the base state.
func (s *Store) Read(key common.Key, version common.Version) ReadResult {
	versions, found := s.keys[key]
	if !found || version == 0 {
		return ReadResult{Status: ReadBase}
	}
	result := ReadResult{Status: ReadBase}
	versions.Descend(uint64(version)-1, func(v uint64, c *cell) bool {
		switch state, value := c.load(); state {
		case cellWritten:
			result = ReadResult{Status: ReadDone, Value: value}
			return false
		case cellSkipped:
			return true
		default:
			result = ReadResult{Status: ReadBlocked, BlockedBy: common.Version(v)}
			return false
		}
	})
	return result
}
