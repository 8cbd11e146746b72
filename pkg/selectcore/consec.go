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

// consecRun is one maximal span of consecutive candidate indices sharing a
// weight, the unit evalConsec ranks and picks from (spec.md §4.4).
type consecRun struct {
	start, end  int // inclusive node-index bounds
	weight      uint64
	cpus        int64
	nodes       int
	requiredIdx int // index of the first required node in the run, or -1
	gresAccum   gres.Accumulator
}

func (r *consecRun) sufficient(ctx *EvalContext, st *selection) bool {
	return r.cpus >= st.remCPUs &&
		enoughNodes(r.nodes, st.remNodes, ctx.MinNodes, ctx.ReqNodes) &&
		(!ctx.gresActive || ctx.GRES.Sufficient(ctx.Job.GRESRequest, r.gresAccum))
}

// buildConsecRuns partitions candidates into maximal runs of consecutive
// indices sharing a weight, probing each node with select_cores/cpus_to_use
// along the way. Nodes with avail_cpus == 0 break a run.
func buildConsecRuns(ctx *EvalContext, st *selection, candidates nodeset.NodeSet) []consecRun {
	var runs []consecRun
	var cur *consecRun

	flush := func() {
		if cur != nil && cur.nodes > 0 {
			runs = append(runs, *cur)
		}
		cur = nil
	}

	prevIdx := -2
	nodeset.ForEach(candidates, func(idx int) {
		avail, _, err := peekNode(ctx, st, idx)
		if err != nil || avail == 0 {
			flush()
			prevIdx = idx
			return
		}

		w := ctx.Nodes[idx].SchedWeight
		contiguous := idx == prevIdx+1
		if cur == nil || !contiguous || cur.weight != w {
			flush()
			cur = &consecRun{start: idx, end: idx, weight: w, requiredIdx: -1}
		}

		cur.end = idx
		cur.nodes++
		cur.cpus += int64(avail)
		if ctx.Job.HasRequiredNodes && nodeset.OverlapAny(ctx.Job.RequiredNodes, nodeset.New(idx)) && cur.requiredIdx == -1 {
			cur.requiredIdx = idx
		}
		if ctx.gresActive {
			cur.gresAccum = ctx.GRES.Consec(cur.gresAccum, ctx.Job.GRESRequest, ctx.AvailRes[idx].SockGRES)
		}
		prevIdx = idx
	})
	flush()

	return runs
}

// bestRun implements spec.md §4.4's per-round ranking: required-node
// presence beats none, lower weight beats higher, and at equal weight
// sufficiency and tightest fit decide.
func bestRun(ctx *EvalContext, st *selection, runs []consecRun, picked []bool) int {
	best := -1
	for i := range runs {
		if picked[i] || runs[i].nodes == 0 {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		a, b := &runs[i], &runs[best]
		switch {
		case (a.requiredIdx >= 0) != (b.requiredIdx >= 0):
			if a.requiredIdx >= 0 {
				best = i
			}
		case a.weight != b.weight:
			if a.weight < b.weight {
				best = i
			}
		default:
			aSuff, bSuff := a.sufficient(ctx, st), b.sufficient(ctx, st)
			switch {
			case aSuff != bSuff:
				if aSuff {
					best = i
				}
			case aSuff && bSuff:
				if a.cpus < b.cpus {
					best = i
				}
			default:
				if a.cpus > b.cpus {
					best = i
				}
			}
		}
	}
	return best
}

// fillRun implements spec.md §4.4's within-run node pick: fan out from a
// required node both ways, pick one best-fit node for a single remaining
// slot, else fill forward from the run's start.
func fillRun(ctx *EvalContext, st *selection, run *consecRun) error {
	take := func(idx int) error {
		avail, remMax, err := peekNode(ctx, st, idx)
		if err != nil {
			return err
		}
		if avail == 0 {
			return nil
		}
		st.commit(ctx, idx, remMax)
		return nil
	}

	if run.requiredIdx >= 0 {
		for lo, hi := run.requiredIdx, run.requiredIdx+1; (lo >= run.start || hi <= run.end) && !st.satisfied(ctx); {
			if lo >= run.start {
				if err := take(lo); err != nil {
					return err
				}
				lo--
			}
			if st.satisfied(ctx) {
				break
			}
			if hi <= run.end {
				if err := take(hi); err != nil {
					return err
				}
				hi++
			}
		}
		return nil
	}

	if st.remNodes <= 1 {
		bestIdx, bestAvail := -1, int64(-1)
		for idx := run.start; idx <= run.end; idx++ {
			avail, _, err := peekNode(ctx, st, idx)
			if err != nil {
				return err
			}
			if int64(avail) > bestAvail {
				bestIdx, bestAvail = idx, int64(avail)
			}
		}
		if bestIdx >= 0 {
			return take(bestIdx)
		}
		return nil
	}

	for idx := run.start; idx <= run.end && !st.satisfied(ctx); idx++ {
		if err := take(idx); err != nil {
			return err
		}
	}
	return nil
}

// evalConsec implements the consec strategy (spec.md §4.4): best-fit over
// maximal runs of consecutive, equal-weight candidate indices. This is the
// fallback strategy when no other dispatch rule matches.
func evalConsec(ctx *EvalContext) (*Result, error) {
	st := newSelection(ctx)
	if err := consecAbsorbRequired(ctx, st); err != nil {
		return st.fail(err)
	}
	if st.satisfied(ctx) {
		return st.result(), nil
	}
	if err := st.checkMaxCPUs(ctx); err != nil {
		return st.fail(err)
	}
	if ctx.MaxNodes == 0 {
		return st.fail(ErrInsufficientResources)
	}

	runs := buildConsecRuns(ctx, st, nodeset.AndNot(remainingCandidates(ctx), st.selected))
	picked := make([]bool, len(runs))

	for !st.satisfied(ctx) {
		i := bestRun(ctx, st, runs, picked)
		if i == -1 {
			break
		}
		run := &runs[i]

		if ctx.Job.Contiguous {
			straddled := false
			for j := range runs {
				if j != i && !picked[j] && runs[j].requiredIdx >= 0 {
					straddled = true
				}
			}
			if straddled {
				picked[i] = true
				continue
			}
		}

		if err := fillRun(ctx, st, run); err != nil {
			return st.fail(err)
		}
		picked[i] = true
	}

	if !st.satisfied(ctx) && !(st.remCPUs <= 0 && enoughNodes(0, st.remNodes, ctx.MinNodes, ctx.ReqNodes)) {
		return st.fail(ErrInsufficientResources)
	}
	return st.result(), nil
}

// consecAbsorbRequired mirrors selection.absorbRequired but additionally
// honors job.ArbitraryTPN (spec.md §4.4, §9 open question: scope limited to
// required nodes).
func consecAbsorbRequired(ctx *EvalContext, st *selection) error {
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
		if reqCPUs, ok := job.ArbitraryTPN[idx]; ok {
			if avail < reqCPUs {
				failure = fmt.Errorf("%w: %s cannot meet arbitrary_tpn", ErrRequiredNodeUnavailable, ctx.Nodes[idx].Name)
				return
			}
			avail = reqCPUs
			ctx.AvailRes[idx].AvailCPUs = avail
		}
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
