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

import "sync/atomic"

// The life cycle of a cell is a single transition from unwritten to either
// written or skipped. The intermediate claimed state is only visible while
// the winning writer is publishing its value; readers treat it as unwritten.
const (
	cellUnwritten int32 = iota
	cellClaimed
	cellWritten
	cellSkipped
)

// cell is the single-assignment slot of one (key, version) pair. The first
// writer wins the state transition with a compare-and-swap; the value is
// published before the terminal state becomes visible, so any reader that
// observes cellWritten also observes the value.
type cell struct {
	state atomic.Int32
	value []byte
}

// write stores the value and marks the cell written. It reports false if the
// cell was already claimed by another writer.
func (c *cell) write(value []byte) bool {
	if !c.state.CompareAndSwap(cellUnwritten, cellClaimed) {
		return false
	}
	c.value = value
	c.state.Store(cellWritten)
	return true
}

// skip marks the cell as permanently absent. It reports false if the cell
// was already claimed by another writer.
func (c *cell) skip() bool {
	return c.state.CompareAndSwap(cellUnwritten, cellSkipped)
}

// load returns the current state of the cell and, for a written cell, its
// value.
func (c *cell) load() (int32, []byte) {
	state := c.state.Load()
	if state == cellWritten {
		return state, c.value
	}
	return state, nil
}
