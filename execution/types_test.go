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
	"testing"

	"github.com/aptos-labs/aptos-core-sub063/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestOutput_WritesCoversAllSectionsInOrder(t *testing.T) {
	require := require.New(t)

	output := Output{
		ResourceWrites: []WriteOp{
			{Key: common.Key{1}, Value: []byte("a")},
			{Key: common.Key{2}, Value: nil},
		},
		ModuleWrites: []WriteOp{
			{Key: common.Key{3}, Value: []byte("m")},
		},
		Deltas: []DeltaOp{
			{Key: common.Key{4}, Value: *uint256.NewInt(5)},
		},
	}

	keys := []common.Key{}
	values := [][]byte{}
	output.Writes(func(key common.Key, value []byte) bool {
		keys = append(keys, key)
		values = append(values, value)
		return true
	})

	require.Equal([]common.Key{{1}, {2}, {3}, {4}}, keys)
	require.Equal([]byte("a"), values[0])
	require.Nil(values[1])
	require.Equal([]byte("m"), values[2])

	want := uint256.NewInt(5).Bytes32()
	require.Equal(want[:], values[3])
}

func TestOutput_WritesStopsWhenYieldReturnsFalse(t *testing.T) {
	require := require.New(t)

	output := Output{
		ResourceWrites: []WriteOp{
			{Key: common.Key{1}},
			{Key: common.Key{2}},
			{Key: common.Key{3}},
		},
	}

	seen := 0
	output.Writes(func(common.Key, []byte) bool {
		seen++
		return seen < 2
	})
	require.Equal(2, seen)
}

func TestOutput_WrittenKeysMatchesWritesIteration(t *testing.T) {
	require := require.New(t)

	output := Output{
		ResourceWrites: []WriteOp{{Key: common.Key{1}}},
		ModuleWrites:   []WriteOp{{Key: common.Key{2}}},
		Deltas:         []DeltaOp{{Key: common.Key{3}}},
	}

	require.Equal([]common.Key{{1}, {2}, {3}}, output.WrittenKeys())
	require.Empty((&Output{}).WrittenKeys())
}

func TestOutput_ApproxSizeCountsKeysValuesAndEvents(t *testing.T) {
	require := require.New(t)

	output := Output{
		ResourceWrites: []WriteOp{
			{Key: common.Key{1}, Value: make([]byte, 10)},
		},
		Events: [][]byte{make([]byte, 7)},
	}

	// One 32-byte key, a 10-byte value, and a 7-byte event.
	require.Equal(uint64(32+10+7), output.ApproxSize())
}

func TestOutput_ApproxSizeMaterializesDeltas(t *testing.T) {
	require := require.New(t)

	output := Output{
		Deltas: []DeltaOp{{Key: common.Key{1}, Value: *uint256.NewInt(1)}},
	}
	require.Equal(uint64(32+32), output.ApproxSize())
}
