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

// DisjointSet is a union-find structure over a fixed range of integer
// elements using path compression and union by size. Callers that need to
// group elements of mixed domains map each domain to a distinct sub-range of
// the element space.
type DisjointSet struct {
	parent []int
	size   []int
}

// NewDisjointSet creates a disjoint-set over the elements [0, n), each
// initially in its own singleton set.
func NewDisjointSet(n int) *DisjointSet {
	parent := make([]int, n)
	size := make([]int, n)
	for i := range parent {
		parent[i] = i
		size[i] = 1
	}
	return &DisjointSet{parent: parent, size: size}
}

// Find returns the representative of the set containing x.
func (s *DisjointSet) Find(x int) int {
	for s.parent[x] != x {
		s.parent[x] = s.parent[s.parent[x]] // path halving
		x = s.parent[x]
	}
	return x
}

// Union merges the sets containing a and b and reports whether the two were
// in different sets before the call.
func (s *DisjointSet) Union(a, b int) bool {
	ra, rb := s.Find(a), s.Find(b)
	if ra == rb {
		return false
	}
	if s.size[ra] < s.size[rb] {
		ra, rb = rb, ra
	}
	s.parent[rb] = ra
	s.size[ra] += s.size[rb]
	return true
}

// SameSet reports whether a and b are in the same set.
func (s *DisjointSet) SameSet(a, b int) bool {
	return s.Find(a) == s.Find(b)
}

// Len returns the number of elements covered by the structure.
func (s *DisjointSet) Len() int {
	return len(s.parent)
}
