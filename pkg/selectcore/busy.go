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

// evalBusy implements the busy strategy (spec.md §4.3): prefer nodes
// already partly allocated. Within each weight group it makes two passes:
// pass 0 over nodes not in ctx.IdleNodes (already running work), pass 1
// over the rest.
func evalBusy(ctx *EvalContext) (*Result, error) {
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
		for pass := 0; pass < 2 && !st.satisfied(ctx); pass++ {
			wantIdle := pass == 1
			for _, idx := range bucket.Nodes.List() {
				if st.satisfied(ctx) {
					break
				}
				isIdle := nodeset.OverlapAny(ctx.IdleNodes, nodeset.New(idx))
				if isIdle != wantIdle {
					continue
				}
				if ctx.MaxNodes > 0 && nodeset.Count(st.selected)+1 > ctx.MaxNodes {
					continue
				}
				usable, err := tryNode(ctx, st, idx)
				if err != nil {
					return st.fail(err)
				}
				if !usable {
					continue
				}
				st.take(ctx, idx)
			}
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
