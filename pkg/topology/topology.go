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

// Package topology holds the read-only switch-tree and block-group tables
// the topo/dfly/block strategies traverse (spec.md §3 "Topology"). Like the
// node table, these are built by an external collaborator (the job-manager
// that owns node-record storage); the core only ever reads them.
//
// The tree is modeled arena-style, indices into a flat slice rather than
// owning pointers, following spec.md §9's guidance ("use arena + index").
package topology

import (
	"math"

	"github.com/nri-plugins/node-select/pkg/nodeset"
)

// DistInfinite is the sticky distance sentinel for switches that cannot
// reach each other. Arithmetic with it saturates to itself, per spec.md §9
// ("retain a literal sentinel only for distances where arithmetic
// saturation is meaningful").
const DistInfinite = math.MaxInt32

// AddDist adds two switch distances, saturating at DistInfinite.
func AddDist(a, b int) int {
	if a >= DistInfinite || b >= DistInfinite {
		return DistInfinite
	}
	sum := a + b
	if sum < 0 || sum >= DistInfinite {
		return DistInfinite
	}
	return sum
}

// Switch is one node of the switch tree. Level 0 is a leaf switch directly
// attached to compute nodes.
type Switch struct {
	// Name is the switch's external name, for logging only.
	Name string
	// Level is 0 for a leaf switch, increasing toward the root.
	Level int
	// Parent is the index of this switch's parent, or -1 at the root.
	Parent int
	// Nodes is the transitive set of compute-node indices reachable below
	// this switch.
	Nodes nodeset.NodeSet
	// Dist holds switches_dist[j]: the topological distance from this
	// switch to switch j, or DistInfinite if unreachable.
	Dist []int
}

// Table is the read-only switch tree.
type Table struct {
	Switches []Switch
}

// Leaves returns the indices of every level-0 switch, in table order.
func (t Table) Leaves() []int {
	var leaves []int
	for i, sw := range t.Switches {
		if sw.Level == 0 {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

// Dist returns the distance from switch i to switch j, or DistInfinite if
// either index is out of range.
func (t Table) Dist(i, j int) int {
	if i < 0 || i >= len(t.Switches) {
		return DistInfinite
	}
	row := t.Switches[i].Dist
	if j < 0 || j >= len(row) {
		return DistInfinite
	}
	return row[j]
}

// Block is one base block of the block-group topology: a leaf unit holding
// a fixed set of compute-node indices.
type Block struct {
	// Name is the block's external name, for logging only.
	Name string
	// Nodes is the set of compute-node indices belonging to this block.
	Nodes nodeset.NodeSet
}

// BlockTable is the read-only, flat base-block list plus the bitmap of
// legal power-of-two block-group sizes (spec.md §3 "Block table").
type BlockTable struct {
	// Blocks is the flat list of base blocks, in table order.
	Blocks []Block
	// Levels is the set of exponents k for which grouping 2^k base blocks
	// together is a legal block-group size ("block_levels").
	Levels nodeset.NodeSet
}

// AllowedGroupSize returns the smallest legal block-group size (in base
// blocks) that is >= want, per the allowed exponents in Levels. It reports
// false if no legal size covers want, in which case block.go falls back to
// one block spanning everything (spec.md §4.7).
func (bt BlockTable) AllowedGroupSize(want int) (int, bool) {
	best := -1
	nodeset.ForEach(bt.Levels, func(k int) {
		size := 1 << k
		if size >= want && (best == -1 || size < best) {
			best = size
		}
	})
	if best == -1 {
		return 0, false
	}
	return best, true
}
