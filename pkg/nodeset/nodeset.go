// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package nodeset provides the bitmap-over-node-indices primitives the
// node-selection core is built on: candidate sets, weight-group bitmaps,
// topology/block reachability bitmaps. It is a thin domain wrapper around
// k8s.io/utils/cpuset, the same way pkg/utils/cpuset wraps it for CPU
// indices in the topology-aware policy.
package nodeset

import (
	"k8s.io/utils/cpuset"
)

// NodeSet is an immutable set of candidate node indices.
type NodeSet = cpuset.CPUSet

// New returns a NodeSet containing exactly the given node indices.
func New(nodes ...int) NodeSet {
	return cpuset.New(nodes...)
}

// Empty returns the empty NodeSet.
func Empty() NodeSet {
	return cpuset.New()
}

// Range returns a NodeSet containing indices [from, to).
func Range(from, to int) NodeSet {
	if to <= from {
		return Empty()
	}
	nodes := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		nodes = append(nodes, i)
	}
	return cpuset.New(nodes...)
}

// And is bitmap intersection (bit_and).
func And(a, b NodeSet) NodeSet {
	return a.Intersection(b)
}

// Or is bitmap union (bit_or).
func Or(a, b NodeSet) NodeSet {
	return a.Union(b)
}

// AndNot is set difference a \ b (bit_and_not).
func AndNot(a, b NodeSet) NodeSet {
	return a.Difference(b)
}

// OverlapAny reports whether a and b share any node (bit_overlap_any).
func OverlapAny(a, b NodeSet) bool {
	return !a.Intersection(b).IsEmpty()
}

// SuperSet reports whether sub is fully contained in super (bit_super_set).
func SuperSet(super, sub NodeSet) bool {
	return sub.IsSubsetOf(super)
}

// Count is the population count of the set (bit_set_count).
func Count(a NodeSet) int {
	return a.Size()
}

// FirstSet returns the lowest set index and true, or (0, false) if empty
// (bit_ffs).
func FirstSet(a NodeSet) (int, bool) {
	list := a.List()
	if len(list) == 0 {
		return 0, false
	}
	return list[0], true
}

// LastSet returns the highest set index and true, or (0, false) if empty
// (bit_fls).
func LastSet(a NodeSet) (int, bool) {
	list := a.List()
	if len(list) == 0 {
		return 0, false
	}
	return list[len(list)-1], true
}

// ForEach walks every set index in ascending order (next_node_bitmap).
func ForEach(a NodeSet, fn func(node int)) {
	for _, n := range a.List() {
		fn(n)
	}
}

// Clear returns the empty NodeSet, mirroring bit_clear_all's intent without
// mutating the argument (NodeSet values are immutable).
func Clear(NodeSet) NodeSet {
	return Empty()
}
