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
	"fmt"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDb is a Reader backed by a LevelDB instance on disk. It is the
// backend used when a block is executed against a persisted base state.
type LevelDb struct {
	db *leveldb.DB
}

// OpenLevelDb opens the base state stored in the given directory, creating
// an empty one if the directory does not exist.
func OpenLevelDb(directory string) (*LevelDb, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open base state in %s: %w", directory, err)
	}
	return &LevelDb{db: db}, nil
}

func (s *LevelDb) Get(key common.Key) ([]byte, error) {
	value, err := s.db.Get(key[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %v: %w", key, err)
	}
	return value, nil
}

// Set stores a value under the given key.
func (s *LevelDb) Set(key common.Key, value []byte) error {
	return s.db.Put(key[:], value, nil)
}

// Close flushes and closes the underlying database.
func (s *LevelDb) Close() error {
	return s.db.Close()
}
