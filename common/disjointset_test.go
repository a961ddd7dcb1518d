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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisjointSet_StartsWithSingletons(t *testing.T) {
	require := require.New(t)

	set := NewDisjointSet(4)
	require.Equal(4, set.Len())
	for i := 0; i < 4; i++ {
		require.Equal(i, set.Find(i))
	}
	require.False(set.SameSet(0, 1))
}

func TestDisjointSet_UnionMergesTransitively(t *testing.T) {
	require := require.New(t)

	set := NewDisjointSet(6)
	require.True(set.Union(0, 1))
	require.True(set.Union(2, 3))
	require.False(set.SameSet(0, 2))

	require.True(set.Union(1, 2))
	require.True(set.SameSet(0, 3))
	require.False(set.SameSet(0, 4))

	// Merging already merged sets reports no change.
	require.False(set.Union(0, 3))
}

func TestDisjointSet_MixedDomainLayout(t *testing.T) {
	require := require.New(t)

	// Two senders at [0, 2), three keys at [2, 5); both senders write
	// key 0, so all of their keys collapse into one component.
	numSenders := 2
	set := NewDisjointSet(numSenders + 3)
	set.Union(0, numSenders+0)
	set.Union(0, numSenders+1)
	set.Union(1, numSenders+0)
	set.Union(1, numSenders+2)

	require.True(set.SameSet(0, 1))
	require.True(set.SameSet(numSenders+1, numSenders+2))
}
