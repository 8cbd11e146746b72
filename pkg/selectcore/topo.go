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

// evalTopo implements the topo strategy (spec.md §4.6): the same top-switch
// skeleton as dfly, but multi-level and with retry-on-overshoot. Unlike
// dfly, req_switch is used as given rather than clamped to 1 (spec.md §9
// open question).
func evalTopo(ctx *EvalContext) (*Result, error) {
	if ctx.Switches == nil || len(ctx.Switches.Switches) == 0 {
		return nil, ErrNoTopology
	}

	reqSwitch := 0
	if ctx.Job.ReqSwitchCount != nil {
		reqSwitch = *ctx.Job.ReqSwitchCount
	}

	reqNodes := ctx.ReqNodes
	savedRes := append(ctx.AvailRes[:0:0], ctx.AvailRes...)
	for {
		st, leafCount, err := topoAttempt(ctx, reqNodes)
		if err != nil {
			return nil, err
		}

		overshoot := reqSwitch > 0 && leafCount > reqSwitch && ctx.TimeWaiting < ctx.Job.Wait4Switch
		if overshoot && reqNodes > ctx.MinNodes {
			metrics.TopoRetries.Inc()
			copy(ctx.AvailRes, savedRes)
			reqNodes--
			continue
		}
		if overshoot {
			st.bestSwitch = false
		}
		metrics.LeafSwitchesUsed.Observe(float64(leafCount))
		return st.result(), nil
	}
}

// topoAttempt runs one full top-switch selection with the given req_nodes,
// returning the accumulated selection and the number of leaf switches it
// ended up using.
func topoAttempt(ctx *EvalContext, reqNodes int) (*selection, int, error) {
	st := newSelection(ctx)
	if reqNodes > 0 {
		st.remNodes = reqNodes
		st.remMaxCPUs = getRemMaxCPUs(ctx.Job, reqNodes)
	}
	if err := st.absorbRequired(ctx); err != nil {
		return nil, 0, err
	}
	if st.satisfied(ctx) {
		return st, 0, nil
	}

	sw := ctx.Switches
	switchNodes := make([]nodeset.NodeSet, len(sw.Switches))
	for i := range sw.Switches {
		switchNodes[i] = nodeset.And(sw.Switches[i].Nodes, ctx.NodeMap)
	}

	buckets := ctx.buildWeightBuckets(remainingCandidates(ctx))
	top := chooseTopSwitch(ctx, sw, switchNodes, buckets)
	if top == -1 {
		return nil, 0, ErrNoTopology
	}
	if ctx.Job.HasRequiredNodes && !nodeset.SuperSet(switchNodes[top], ctx.Job.RequiredNodes) {
		return nil, 0, fmt.Errorf("%w: required nodes straddle switches", ErrLocalityViolation)
	}
	for i := range switchNodes {
		if i != top {
			switchNodes[i] = nodeset.And(switchNodes[i], switchNodes[top])
		}
	}

	lastBucket, err := absorbWeightBucketsUntilSatisfied(ctx, st, buckets, switchNodes[top])
	if err != nil {
		return nil, 0, err
	}
	if lastBucket == nil {
		return nil, 0, ErrInsufficientResources
	}

	dist := distanceFromRequiredSwitches(sw, switchNodes, st.selected)
	leaves := leavesUnder(sw, switchNodes, top)
	pool := *lastBucket

	for !st.satisfied(ctx) && leaves.Size() > 0 {
		leaf := chooseBestSwitch(ctx, st, sw, switchNodes, leaves, dist, pool)
		if leaf == -1 {
			break
		}
		avail := nodeset.And(switchNodes[leaf], nodeset.AndNot(pool, st.selected))
		if err := fillFromLeaf(ctx, st, avail); err != nil {
			return nil, 0, err
		}
		leaves.Del(idset.ID(leaf))
	}

	if !st.satisfied(ctx) {
		return nil, 0, ErrInsufficientResources
	}

	return st, countLeavesUsed(sw, switchNodes, st.selected), nil
}

// distanceFromRequiredSwitches seeds switches_dist per spec.md §4.6: for
// every leaf switch still in play, sum the distance from every switch
// already holding a selected node. With nothing selected yet every leaf
// starts at distance 0, leaving the choice to compare_switches alone.
func distanceFromRequiredSwitches(sw *topology.Table, switchNodes []nodeset.NodeSet, selected nodeset.NodeSet) []int {
	required := switchesHolding(sw, switchNodes, selected)
	dist := make([]int, len(sw.Switches))
	for i := range sw.Switches {
		if sw.Switches[i].Level != 0 {
			dist[i] = topology.DistInfinite
			continue
		}
		acc := 0
		for _, rs := range required {
			acc = topology.AddDist(acc, sw.Dist(rs, i))
		}
		dist[i] = acc
	}
	return dist
}

// switchesHolding returns the indices of every switch whose node set
// overlaps selected.
func switchesHolding(sw *topology.Table, switchNodes []nodeset.NodeSet, selected nodeset.NodeSet) []int {
	var out []int
	for i := range sw.Switches {
		if nodeset.OverlapAny(switchNodes[i], selected) {
			out = append(out, i)
		}
	}
	return out
}

// chooseBestSwitch implements spec.md §4.6's per-round leaf pick: lower
// distance wins outright; equal distance defers to compare_switches.
func chooseBestSwitch(ctx *EvalContext, st *selection, sw *topology.Table, switchNodes []nodeset.NodeSet, leaves idset.IDSet, dist []int, pool nodeset.NodeSet) int {
	best := -1
	for _, id := range leaves.Members() {
		leaf := int(id)
		avail := nodeset.And(switchNodes[leaf], nodeset.AndNot(pool, st.selected))
		if nodeset.Count(avail) == 0 || dist[leaf] >= topology.DistInfinite {
			continue
		}
		if best == -1 {
			best = leaf
			continue
		}
		if dist[leaf] != dist[best] {
			if dist[leaf] < dist[best] {
				best = leaf
			}
			continue
		}
		if compareSwitches(ctx, st, sw, switchNodes, leaf, best, pool) > 0 {
			best = leaf
		}
	}
	return best
}

// compareSwitches implements spec.md §4.6's compare_switches: a switch that
// "fits" (enough nodes and cpus to finish the job alone) beats one that
// doesn't; among two that fit, fewer nodes wins (tighter fit); among two
// that don't, more nodes wins; final ties break on level then popcount.
func compareSwitches(ctx *EvalContext, st *selection, sw *topology.Table, switchNodes []nodeset.NodeSet, a, b int, pool nodeset.NodeSet) int {
	availA := nodeset.And(switchNodes[a], nodeset.AndNot(pool, st.selected))
	availB := nodeset.And(switchNodes[b], nodeset.AndNot(pool, st.selected))
	nodesA, nodesB := nodeset.Count(availA), nodeset.Count(availB)
	cpusA, cpusB := poolCPUs(ctx, st, availA), poolCPUs(ctx, st, availB)

	fitsA := int64(nodesA) >= int64(st.remNodes) && cpusA >= st.remCPUs
	fitsB := int64(nodesB) >= int64(st.remNodes) && cpusB >= st.remCPUs

	switch {
	case fitsA != fitsB:
		if fitsA {
			return 1
		}
		return -1
	case fitsA && fitsB:
		if nodesA != nodesB {
			if nodesA < nodesB {
				return 1
			}
			return -1
		}
	default:
		if nodesA != nodesB {
			if nodesA > nodesB {
				return 1
			}
			return -1
		}
	}

	if sw.Switches[a].Level != sw.Switches[b].Level {
		if sw.Switches[a].Level > sw.Switches[b].Level {
			return 1
		}
		return -1
	}
	if nodesA != nodesB {
		if nodesA > nodesB {
			return 1
		}
		return -1
	}
	return 0
}

// poolCPUs sums avail_cpus over pool without committing any of it.
func poolCPUs(ctx *EvalContext, st *selection, pool nodeset.NodeSet) int64 {
	var total int64
	nodeset.ForEach(pool, func(idx int) {
		avail, _, err := peekNode(ctx, st, idx)
		if err == nil {
			total += int64(avail)
		}
	})
	return total
}

func countLeavesUsed(sw *topology.Table, switchNodes []nodeset.NodeSet, selected nodeset.NodeSet) int {
	n := 0
	for i, s := range sw.Switches {
		if s.Level == 0 && nodeset.OverlapAny(switchNodes[i], selected) {
			n++
		}
	}
	return n
}
