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

	"github.com/nri-plugins/node-select/pkg/gres"
	"github.com/nri-plugins/node-select/pkg/nodeset"
)

// selection is the shared working state every strategy (spec.md §4.3-§4.7)
// threads through absorption and its own per-strategy loop. ctx.NodeMap
// always stays the candidate set handed to this call: strategies never
// mutate it in place, they build up `selected` and the dispatcher writes it
// back to ctx.NodeMap only on success (spec.md invariant 1).
type selection struct {
	selected   nodeset.NodeSet
	remNodes   int
	remMaxCPUs int64
	remCPUs    int64
	totalCPUs  int64
	gresAccum  gres.Accumulator
	// bestSwitch is the advisory flag topology strategies may clear on
	// overshoot (spec.md §4.5/§4.6); every other strategy leaves it true.
	bestSwitch bool
}

// newSelection seeds rem_nodes/rem_cpus/rem_max_cpus from the job request,
// the same starting point spec.md §4.3 step 1 assumes.
func newSelection(ctx *EvalContext) *selection {
	remNodes := ctx.ReqNodes
	if remNodes <= 0 {
		remNodes = ctx.MinNodes
	}
	return &selection{
		selected:   nodeset.Empty(),
		remNodes:   remNodes,
		remMaxCPUs: getRemMaxCPUs(ctx.Job, remNodes),
		remCPUs:    ctx.Job.MinCPUs,
		bestSwitch: true,
	}
}

// absorbRequired implements spec.md §4.3 step 1: process every required
// node through select_cores + cpus_to_use, accumulate GRES, and decrement
// the remaining counters. It fails fast on an unusable required node or a
// max_nodes overrun.
func (st *selection) absorbRequired(ctx *EvalContext) error {
	job := ctx.Job
	if !job.HasRequiredNodes {
		return nil
	}

	var failure error
	nodeset.ForEach(job.RequiredNodes, func(idx int) {
		if failure != nil {
			return
		}
		if ctx.MaxNodes > 0 && nodeset.Count(st.selected)+1 > ctx.MaxNodes {
			failure = fmt.Errorf("%w: absorbing required node %s", ErrMaxNodesExceeded, ctx.Nodes[idx].Name)
			return
		}

		if err := selectCores(ctx, idx, st.remNodes); err != nil {
			failure = err
			return
		}
		st.remMaxCPUs = cpusToUse(ctx, idx, st.remMaxCPUs, st.remNodes)

		avail := ctx.AvailRes[idx].AvailCPUs
		if avail == 0 {
			failure = fmt.Errorf("%w: %s", ErrRequiredNodeUnavailable, ctx.Nodes[idx].Name)
			return
		}

		if ctx.gresActive {
			newAvail, err := ctx.GRES.Add(job.GRESRequest, ctx.AvailRes[idx].SockGRES, avail)
			if err != nil {
				failure = err
				return
			}
			ctx.AvailRes[idx].AvailCPUs = newAvail
			avail = newAvail
			st.gresAccum = ctx.GRES.Consec(st.gresAccum, job.GRESRequest, ctx.AvailRes[idx].SockGRES)
		}

		st.selected = nodeset.Or(st.selected, nodeset.New(idx))
		st.remNodes--
		st.remCPUs -= int64(avail)
		st.totalCPUs += int64(avail)
	})

	return failure
}

// remainingCandidates is spec.md §4.3 step 2's "clear non-required bits
// from node_map": the candidates not already absorbed as required, which
// is what build_weight_buckets iterates for the rest of the selection.
func remainingCandidates(ctx *EvalContext) nodeset.NodeSet {
	if !ctx.Job.HasRequiredNodes {
		return ctx.NodeMap
	}
	return nodeset.AndNot(ctx.NodeMap, ctx.Job.RequiredNodes)
}

// checkMaxCPUs implements spec.md §4.3 step 3.
func (st *selection) checkMaxCPUs(ctx *EvalContext) error {
	if ctx.Job.MaxCPUs != nil && st.totalCPUs > *ctx.Job.MaxCPUs {
		return fmt.Errorf("%w: required nodes alone total %d cpus > max_cpus %d",
			ErrInsufficientResources, st.totalCPUs, *ctx.Job.MaxCPUs)
	}
	return nil
}

// satisfied implements spec.md §4.3 step 5's stopping predicate.
func (st *selection) satisfied(ctx *EvalContext) bool {
	if st.remNodes > 0 {
		return false
	}
	if st.remCPUs > 0 {
		return false
	}
	if ctx.gresActive && !ctx.GRES.Test(ctx.Job.GRESRequest, ctx.Job.JobID) {
		return false
	}
	return true
}

// take records node idx as selected after select_cores/cpus_to_use have
// already been run on it, the common tail of every per-node pick in every
// strategy.
func (st *selection) take(ctx *EvalContext, idx int) {
	avail := ctx.AvailRes[idx].AvailCPUs
	if ctx.gresActive {
		st.gresAccum = ctx.GRES.Consec(st.gresAccum, ctx.Job.GRESRequest, ctx.AvailRes[idx].SockGRES)
	}
	st.selected = nodeset.Or(st.selected, nodeset.New(idx))
	st.remNodes--
	st.remCPUs -= int64(avail)
	st.totalCPUs += int64(avail)
}

// tryNode runs select_cores + cpus_to_use for node idx and reports whether
// it is usable (avail_cpus > 0). Unusable nodes are left untaken.
func tryNode(ctx *EvalContext, st *selection, idx int) (usable bool, err error) {
	if err := selectCores(ctx, idx, st.remNodes); err != nil {
		return false, err
	}
	st.remMaxCPUs = cpusToUse(ctx, idx, st.remMaxCPUs, st.remNodes)
	return ctx.AvailRes[idx].AvailCPUs > 0, nil
}

// peekNode runs select_cores + cpus_to_use for node idx without committing
// the result to st, so a caller can compare several candidates (lln's
// greatest-ratio pick) before deciding which one to actually take.
func peekNode(ctx *EvalContext, st *selection, idx int) (avail int, remMaxCPUs int64, err error) {
	if err := selectCores(ctx, idx, st.remNodes); err != nil {
		return 0, st.remMaxCPUs, err
	}
	remMaxCPUs = cpusToUse(ctx, idx, st.remMaxCPUs, st.remNodes)
	return ctx.AvailRes[idx].AvailCPUs, remMaxCPUs, nil
}

// commit finalizes a node already scored by peekNode: applies its
// rem_max_cpus and records it as selected.
func (st *selection) commit(ctx *EvalContext, idx int, remMaxCPUs int64) {
	st.remMaxCPUs = remMaxCPUs
	st.take(ctx, idx)
}

// fail returns err with no Result and leaves st as it is; EvalNodes then
// clears ctx.NodeMap. This is the common failure exit spec.md §4.3 step 5
// and §4.8 describe ("clear node_map and fail").
func (st *selection) fail(err error) (*Result, error) {
	return nil, err
}

// result builds the successful Result from the accumulated selection.
func (st *selection) result() *Result {
	return &Result{NodeMap: st.selected, BestSwitch: st.bestSwitch}
}
