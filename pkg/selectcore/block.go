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

package selectcore

import (
	"fmt"

	idset "github.com/intel/goresctrl/pkg/utils"

	"github.com/nri-plugins/node-select/pkg/metrics"
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/topology"
)

// blockGroup is one power-of-two grouping of base blocks (spec.md §4.7).
type blockGroup struct {
	baseBlocks []int // indices into ctx.Blocks.Blocks
	nodes      nodeset.NodeSet
	cpus       int64
	weight     uint64 // lowest sched_weight among its nodes
}

// evalBlock implements the block strategy (spec.md §4.7): pick one
// power-of-two grouping of base blocks, then greedily add base blocks
// within it that best match the remaining need.
func evalBlock(ctx *EvalContext) (*Result, error) {
	bt := ctx.Blocks
	if bt == nil || len(bt.Blocks) == 0 {
		return nil, ErrNoTopology
	}

	st := newSelection(ctx)

	groupSize := blockGroupSize(ctx, bt, st.remNodes)
	groups := buildBlockGroups(ctx, st, bt, groupSize)
	if len(groups) == 0 {
		return st.fail(ErrInsufficientResources)
	}

	gi := pickBlockGroup(ctx, st, groups)
	if gi == -1 {
		return st.fail(ErrInsufficientResources)
	}
	group := &groups[gi]

	if ctx.Job.HasRequiredNodes && !nodeset.SuperSet(group.nodes, ctx.Job.RequiredNodes) {
		return st.fail(fmt.Errorf("%w: nodes do not share block", ErrLocalityViolation))
	}
	if err := st.absorbRequired(ctx); err != nil {
		return st.fail(err)
	}
	if st.satisfied(ctx) {
		return st.result(), nil
	}

	requiredBlocks := idset.NewIDSet()
	for bi, blk := range bt.Blocks {
		if !contains(group.baseBlocks, bi) {
			continue
		}
		if ctx.Job.HasRequiredNodes && nodeset.OverlapAny(blk.Nodes, ctx.Job.RequiredNodes) {
			requiredBlocks.Add(idset.ID(bi))
		}
	}

	buckets := ctx.buildWeightBuckets(remainingCandidates(ctx))
	lastBucket, err := absorbWeightBucketsUntilSatisfied(ctx, st, buckets, group.nodes)
	if err != nil {
		return st.fail(err)
	}
	bestNodes := group.nodes
	if lastBucket != nil {
		bestNodes = *lastBucket
	}

	for _, id := range requiredBlocks.Members() {
		bi := int(id)
		pool := nodeset.And(bestNodes, nodeset.AndNot(bt.Blocks[bi].Nodes, st.selected))
		if err := fillFromLeaf(ctx, st, pool); err != nil {
			return st.fail(err)
		}
	}

	for !st.satisfied(ctx) {
		bi := pickBaseBlock(ctx, st, bt, group.baseBlocks, requiredBlocks, bestNodes)
		if bi == -1 {
			break
		}
		requiredBlocks.Add(idset.ID(bi))
		pool := nodeset.And(bestNodes, nodeset.AndNot(bt.Blocks[bi].Nodes, st.selected))
		before := st.remNodes
		if err := fillFromLeaf(ctx, st, pool); err != nil {
			return st.fail(err)
		}
		if st.remNodes == before {
			break
		}
	}

	if !st.satisfied(ctx) {
		return st.fail(ErrInsufficientResources)
	}

	used := 0
	for _, bi := range group.baseBlocks {
		if nodeset.OverlapAny(bt.Blocks[bi].Nodes, st.selected) {
			used++
		}
	}
	metrics.LeafSwitchesUsed.Observe(float64(used))

	return st.result(), nil
}

// blockGroupSize implements spec.md §4.7's bblock_per_block computation:
// the smallest power of two covering ceil(rem_nodes / base_block_size),
// snapped up to an allowed block level; falls back to one block spanning
// everything if no level fits.
func blockGroupSize(ctx *EvalContext, bt *topology.BlockTable, remNodes int) int {
	baseBlockSize := 1
	if blocks := ctx.Blocks.Blocks; len(blocks) > 0 {
		if n := nodeset.Count(blocks[0].Nodes); n > 0 {
			baseBlockSize = n
		}
	}
	want := (remNodes + baseBlockSize - 1) / baseBlockSize
	if want < 1 {
		want = 1
	}
	if size, ok := bt.AllowedGroupSize(want); ok {
		return size
	}
	return len(ctx.Blocks.Blocks)
}

func buildBlockGroups(ctx *EvalContext, st *selection, bt *topology.BlockTable, groupSize int) []blockGroup {
	if groupSize < 1 {
		groupSize = 1
	}
	var groups []blockGroup
	for start := 0; start < len(bt.Blocks); start += groupSize {
		end := start + groupSize
		if end > len(bt.Blocks) {
			end = len(bt.Blocks)
		}
		g := blockGroup{weight: ^uint64(0)}
		for bi := start; bi < end; bi++ {
			blk := bt.Blocks[bi]
			onMap := nodeset.And(blk.Nodes, ctx.NodeMap)
			if nodeset.Count(onMap) == 0 {
				g.baseBlocks = append(g.baseBlocks, bi)
				continue
			}
			g.baseBlocks = append(g.baseBlocks, bi)
			g.nodes = nodeset.Or(g.nodes, onMap)
			nodeset.ForEach(onMap, func(idx int) {
				if w := ctx.Nodes[idx].SchedWeight; w < g.weight {
					g.weight = w
				}
				avail, _, err := peekNode(ctx, st, idx)
				if err == nil {
					g.cpus += int64(avail)
				}
			})
		}
		groups = append(groups, g)
	}
	return groups
}

// pickBlockGroup implements spec.md §4.7 step 2.
func pickBlockGroup(ctx *EvalContext, st *selection, groups []blockGroup) int {
	if ctx.Job.HasRequiredNodes {
		for i := range groups {
			if nodeset.OverlapAny(groups[i].nodes, ctx.Job.RequiredNodes) {
				return i
			}
		}
		return -1
	}

	best := -1
	for i := range groups {
		if nodeset.Count(groups[i].nodes) == 0 {
			continue
		}
		if !enoughNodes(nodeset.Count(groups[i].nodes), st.remNodes, ctx.MinNodes, ctx.ReqNodes) || groups[i].cpus < st.remCPUs {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		switch {
		case groups[i].weight != groups[best].weight:
			if groups[i].weight < groups[best].weight {
				best = i
			}
		case nodeset.Count(groups[i].nodes) < nodeset.Count(groups[best].nodes):
			best = i
		}
	}
	return best
}

// pickBaseBlock implements spec.md §4.7 step 6: among base blocks in group
// not yet required, prefer the smallest one that alone meets rem_nodes;
// failing that, the largest.
func pickBaseBlock(ctx *EvalContext, st *selection, bt *topology.BlockTable, group []int, required idset.IDSet, domain nodeset.NodeSet) int {
	best := -1
	bestCount := -1
	bestFits := false
	for _, bi := range group {
		if required.Has(idset.ID(bi)) {
			continue
		}
		count := nodeset.Count(nodeset.And(bt.Blocks[bi].Nodes, domain))
		if count == 0 {
			continue
		}
		fits := count >= st.remNodes
		switch {
		case best == -1:
			best, bestCount, bestFits = bi, count, fits
		case fits && !bestFits:
			best, bestCount, bestFits = bi, count, fits
		case fits == bestFits && fits && count < bestCount:
			best, bestCount, bestFits = bi, count, fits
		case fits == bestFits && !fits && count > bestCount:
			best, bestCount, bestFits = bi, count, fits
		}
	}
	return best
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
