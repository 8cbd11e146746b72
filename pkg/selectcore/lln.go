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

import "github.com/nri-plugins/node-select/pkg/nodeset"

// evalLLN implements the lln strategy (spec.md §4.3): within the current
// weight group, repeatedly take the node with the greatest ratio of
// available to total cpus, comparing ratios by cross-multiplication so no
// floating point is involved: cand is better than best iff
// avail[cand]*cpus[best] > avail[best]*cpus[cand].
func evalLLN(ctx *EvalContext) (*Result, error) {
	st := newSelection(ctx)
	if err := st.absorbRequired(ctx); err != nil {
		return st.fail(err)
	}
	if ctx.Job.NumTasks > 0 && ctx.MaxNodes > ctx.Job.NumTasks {
		ctx.MaxNodes = ctx.Job.NumTasks
	}
	if ctx.Job.MinGRESCPU != nil || ctx.Job.MinJobGRESCPU != nil {
		if ctx.ReqNodes > ctx.MinNodes {
			ctx.ReqNodes = ctx.MinNodes
		}
	} else if ctx.MinNodes > ctx.ReqNodes {
		ctx.ReqNodes = ctx.MinNodes
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

	buckets := ctx.buildWeightBuckets(remainingCandidates(ctx))
	for _, bucket := range buckets {
		remaining := bucket.Nodes
		prevRatioAvail, prevRatioTotal := int64(-1), int64(1)

		for !st.satisfied(ctx) && nodeset.Count(remaining) > 0 {
			if ctx.MaxNodes > 0 && nodeset.Count(st.selected)+1 > ctx.MaxNodes {
				break
			}

			bestIdx := -1
			var bestAvail, bestTotal, bestRemMax int64

			for _, idx := range remaining.List() {
				avail, remMax, err := peekNode(ctx, st, idx)
				if err != nil {
					return st.fail(err)
				}
				if avail == 0 {
					remaining = nodeset.AndNot(remaining, nodeset.New(idx))
					continue
				}
				total := int64(ctx.Nodes[idx].CPUs)
				if total <= 0 {
					total = 1
				}

				if bestIdx == -1 || int64(avail)*bestTotal > bestAvail*total {
					bestIdx, bestAvail, bestTotal, bestRemMax = idx, int64(avail), total, remMax
				}

				// Once a candidate matches the ratio that won the previous
				// round, nothing left in this group can beat it: stop early.
				if prevRatioAvail >= 0 && int64(avail)*prevRatioTotal == prevRatioAvail*total {
					break
				}
			}

			if bestIdx == -1 {
				break
			}

			st.commit(ctx, bestIdx, bestRemMax)
			remaining = nodeset.AndNot(remaining, nodeset.New(bestIdx))
			prevRatioAvail, prevRatioTotal = bestAvail, bestTotal
		}

		if st.satisfied(ctx) {
			break
		}
	}

	if !st.satisfied(ctx) {
		return st.fail(ErrInsufficientResources)
	}
	return st.result(), nil
}
