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
	"sort"

	idset "github.com/intel/goresctrl/pkg/utils"

	"github.com/nri-plugins/node-select/pkg/metrics"
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/nodetable"
	"github.com/nri-plugins/node-select/pkg/topology"
)

// evalDragonfly implements the dfly strategy (spec.md §4.5): prefer a
// single leaf switch under one top switch, else round-robin leaves.
// req_switch is clamped to 1: dragonfly topology only ever reasons about
// "fits on one leaf" vs "spread across several".
func evalDragonfly(ctx *EvalContext) (*Result, error) {
	if ctx.Switches == nil || len(ctx.Switches.Switches) == 0 {
		return nil, ErrNoTopology
	}
	if ctx.Job.ReqSwitchCount != nil && *ctx.Job.ReqSwitchCount > 1 {
		one := 1
		ctx.Job.ReqSwitchCount = &one
	}

	st := newSelection(ctx)
	if err := st.absorbRequired(ctx); err != nil {
		return st.fail(err)
	}
	if st.satisfied(ctx) {
		return st.result(), nil
	}

	sw := ctx.Switches
	switchNodes := make([]nodeset.NodeSet, len(sw.Switches))
	for i := range sw.Switches {
		switchNodes[i] = nodeset.And(sw.Switches[i].Nodes, ctx.NodeMap)
	}

	buckets := ctx.buildWeightBuckets(remainingCandidates(ctx))

	top := chooseTopSwitch(ctx, sw, switchNodes, buckets)
	if top == -1 {
		return st.fail(ErrNoTopology)
	}
	if ctx.Job.HasRequiredNodes && !nodeset.SuperSet(switchNodes[top], ctx.Job.RequiredNodes) {
		return st.fail(fmt.Errorf("%w: required nodes straddle switches", ErrLocalityViolation))
	}

	for i := range switchNodes {
		if i != top {
			switchNodes[i] = nodeset.And(switchNodes[i], switchNodes[top])
		}
	}

	lastBucket, err := absorbWeightBucketsUntilSatisfied(ctx, st, buckets, switchNodes[top])
	if err != nil {
		return st.fail(err)
	}
	if lastBucket == nil {
		return st.fail(ErrInsufficientResources)
	}

	leaves := leavesUnder(sw, switchNodes, top)
	leafPool := make(map[int]nodeset.NodeSet, leaves.Size())
	for _, id := range leaves.Members() {
		leaf := int(id)
		leafPool[leaf] = nodeset.And(switchNodes[leaf], nodeset.AndNot(*lastBucket, st.selected))
	}

	if sole := soleSufficientLeaf(ctx, st, leafPool); sole != -1 {
		if err := fillFromLeaf(ctx, st, leafPool[sole]); err != nil {
			return st.fail(err)
		}
	} else if err := roundRobinLeaves(ctx, st, leaves, leafPool); err != nil {
		return st.fail(err)
	}

	if !st.satisfied(ctx) {
		return st.fail(ErrInsufficientResources)
	}

	applyBestSwitchAdvisory(ctx, st, sw, switchNodes, 1)
	metrics.LeafSwitchesUsed.Observe(float64(countLeavesUsed(sw, switchNodes, st.selected)))
	return st.result(), nil
}

// chooseTopSwitch picks the highest-level switch covering all required
// nodes, or (with none required) overlapping the lowest weight bucket.
func chooseTopSwitch(ctx *EvalContext, sw *topology.Table, switchNodes []nodeset.NodeSet, buckets []nodetable.WeightBucket) int {
	top := -1
	if ctx.Job.HasRequiredNodes {
		for i := range sw.Switches {
			if nodeset.SuperSet(switchNodes[i], ctx.Job.RequiredNodes) {
				if top == -1 || sw.Switches[i].Level > sw.Switches[top].Level {
					top = i
				}
			}
		}
		return top
	}
	if len(buckets) == 0 {
		return -1
	}
	lowest := buckets[0].Nodes
	for i := range sw.Switches {
		if nodeset.OverlapAny(switchNodes[i], lowest) {
			if top == -1 || sw.Switches[i].Level > sw.Switches[top].Level {
				top = i
			}
		}
	}
	return top
}

// absorbWeightBucketsUntilSatisfied walks weight buckets restricted to
// domain, promoting every bucket before the one that finally satisfies the
// request into the selection (spec.md §4.5 step 4 / §4.6's req2
// absorption). It returns the bitmap of the final (not yet absorbed) bucket
// for the caller's leaf pick.
func absorbWeightBucketsUntilSatisfied(ctx *EvalContext, st *selection, buckets []nodetable.WeightBucket, domain nodeset.NodeSet) (*nodeset.NodeSet, error) {
	cpuCnt := st.totalCPUs
	nodeCnt := nodeset.Count(st.selected)

	for bi := range buckets {
		onDomain := nodeset.And(buckets[bi].Nodes, domain)
		if nodeset.Count(onDomain) == 0 {
			continue
		}

		var sumErr error
		nodeset.ForEach(onDomain, func(idx int) {
			if sumErr != nil {
				return
			}
			avail, _, err := peekNode(ctx, st, idx)
			if err != nil {
				sumErr = err
				return
			}
			cpuCnt += int64(avail)
		})
		if sumErr != nil {
			return nil, sumErr
		}
		nodeCnt += nodeset.Count(onDomain)

		sufficient := cpuCnt >= st.remCPUs && enoughNodes(nodeCnt, st.remNodes, ctx.MinNodes, ctx.ReqNodes) &&
			(!ctx.gresActive || ctx.GRES.Sufficient(ctx.Job.GRESRequest, st.gresAccum))

		if sufficient {
			last := onDomain
			return &last, nil
		}

		// This bucket did not alone finish the job: every node in it is
		// promoted into the selection (spec.md's req2 absorption) before
		// moving to the next, lower-preference bucket.
		var absorbErr error
		nodeset.ForEach(onDomain, func(idx int) {
			if absorbErr != nil || nodeset.OverlapAny(st.selected, nodeset.New(idx)) {
				return
			}
			avail, remMax, err := peekNode(ctx, st, idx)
			if err != nil {
				absorbErr = err
				return
			}
			if avail == 0 {
				return
			}
			st.commit(ctx, idx, remMax)
		})
		if absorbErr != nil {
			return nil, absorbErr
		}
	}

	return nil, nil
}

func leavesUnder(sw *topology.Table, switchNodes []nodeset.NodeSet, top int) idset.IDSet {
	leaves := idset.NewIDSet()
	for i, s := range sw.Switches {
		if s.Level == 0 && nodeset.Count(switchNodes[i]) > 0 {
			leaves.Add(idset.ID(i))
		}
	}
	_ = top
	return leaves
}

// soleSufficientLeaf returns the lowest index of a leaf whose pool alone can
// satisfy the remaining counters, or -1 if none does (spec.md §4.5 step 6).
func soleSufficientLeaf(ctx *EvalContext, st *selection, leafPool map[int]nodeset.NodeSet) int {
	leafIDs := make([]int, 0, len(leafPool))
	for leaf := range leafPool {
		leafIDs = append(leafIDs, leaf)
	}
	sort.Ints(leafIDs)
	for _, leaf := range leafIDs {
		pool := leafPool[leaf]
		cpuCnt := int64(0)
		nodeset.ForEach(pool, func(idx int) {
			avail, _, err := peekNode(ctx, st, idx)
			if err == nil {
				cpuCnt += int64(avail)
			}
		})
		if cpuCnt >= st.remCPUs && enoughNodes(nodeset.Count(pool), st.remNodes, ctx.MinNodes, ctx.ReqNodes) {
			return leaf
		}
	}
	return -1
}

// fillFromLeaf takes nodes from pool in ascending index order until the
// request is satisfied.
func fillFromLeaf(ctx *EvalContext, st *selection, pool nodeset.NodeSet) error {
	var failure error
	nodeset.ForEach(pool, func(idx int) {
		if failure != nil || st.satisfied(ctx) {
			return
		}
		avail, remMax, err := peekNode(ctx, st, idx)
		if err != nil {
			failure = err
			return
		}
		if avail == 0 {
			return
		}
		st.commit(ctx, idx, remMax)
	})
	return failure
}

// roundRobinLeaves implements spec.md §4.5 step 7: repeatedly walk leaves
// taking one node each, stopping on satisfaction or a no-progress pass.
func roundRobinLeaves(ctx *EvalContext, st *selection, leaves idset.IDSet, leafPool map[int]nodeset.NodeSet) error {
	for {
		if st.satisfied(ctx) {
			return nil
		}
		before := st.remNodes
		for _, id := range leaves.Members() {
			leaf := int(id)
			if st.satisfied(ctx) {
				return nil
			}
			pool := nodeset.AndNot(leafPool[leaf], st.selected)
			idx, ok := nodeset.FirstSet(pool)
			if !ok {
				continue
			}
			avail, remMax, err := peekNode(ctx, st, idx)
			if err != nil {
				return err
			}
			if avail == 0 {
				leafPool[leaf] = nodeset.AndNot(leafPool[leaf], nodeset.New(idx))
				continue
			}
			st.commit(ctx, idx, remMax)
		}
		if st.remNodes == before {
			return nil // stall: no leaf had anything left to give
		}
	}
}

// applyBestSwitchAdvisory clears st.bestSwitch when the selection used more
// leaf switches than req_switch and the job is still within its
// wait4switch budget (spec.md §4.5's post-check / §4.6 shares it).
func applyBestSwitchAdvisory(ctx *EvalContext, st *selection, sw *topology.Table, switchNodes []nodeset.NodeSet, reqSwitch int) {
	used := 0
	for i, s := range sw.Switches {
		if s.Level == 0 && nodeset.OverlapAny(switchNodes[i], st.selected) {
			used++
		}
	}
	if used > reqSwitch && ctx.TimeWaiting < ctx.Job.Wait4Switch {
		st.bestSwitch = false
	}
}
