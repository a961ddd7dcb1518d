// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package limits

import (
	"github.com/aptos-labs/aptos-core-sub063/common"
)

// Summary is the read/write footprint of one finished transaction, kept in
// the conflict-penalty window for overlap checks against successors. With
// resource-group collapsing enabled, all keys of one account's resource
// group count as a single footprint entry.
type Summary struct {
	keys map[common.Key]struct{}
}

// NewSummary builds the footprint of a transaction from its read and write
// key sets.
func NewSummary(reads, writes []common.Key, collapseResourceGroups bool) Summary {
	keys := make(map[common.Key]struct{}, len(reads)+len(writes))
	add := func(key common.Key) {
		if collapseResourceGroups {
			key = key.ResourceGroup()
		}
		keys[key] = struct{}{}
	}
	for _, key := range reads {
		add(key)
	}
	for _, key := range writes {
		add(key)
	}
	return Summary{keys: keys}
}

// Conflicts reports whether the two summaries share at least one key.
func (s Summary) Conflicts(other Summary) bool {
	a, b := s.keys, other.keys
	if len(b) < len(a) {
		a, b = b, a
	}
	for key := range a {
		if _, found := b[key]; found {
			return true
		}
	}
	return false
}

// Len returns the number of distinct footprint entries.
func (s Summary) Len() int {
	return len(s.keys)
}
