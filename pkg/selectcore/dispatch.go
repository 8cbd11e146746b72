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

	"github.com/nri-plugins/node-select/pkg/metrics"
	"github.com/nri-plugins/node-select/pkg/nodeset"
)

type strategyFunc func(*EvalContext) (*Result, error)

// EvalNodes is spec.md §2's single entry point: routes the request to one
// of the eight strategies based on job flags, partition flags, topology
// configuration, and the cached tunables, and returns the selection.
func EvalNodes(ctx *EvalContext) (*Result, error) {
	if err := checkPreconditions(ctx); err != nil {
		return nil, err
	}

	// gres_sched_init (spec.md §6) gates every other GRES.* call for this
	// request: a Scheduler that returns false here is never consulted again
	// below, regardless of what MinGRESCPU/MinJobGRESCPU say.
	if ctx.GRES != nil {
		ctx.gresActive = ctx.GRES.Init(ctx.Job.GRESRequest)
	}

	strategy, name := pickStrategy(ctx)
	ctx.logger().Info("eval_nodes: dispatching to %s (candidates=%d min_nodes=%d req_nodes=%d max_nodes=%d)",
		name, nodeset.Count(ctx.NodeMap), ctx.MinNodes, ctx.ReqNodes, ctx.MaxNodes)

	result, err := strategy(ctx)
	if err != nil {
		ctx.NodeMap = nodeset.Empty()
		metrics.Calls.WithLabelValues(name, "error").Inc()
		ctx.logger().Info("eval_nodes: %s failed: %v", name, err)
		return nil, err
	}

	result.Strategy = name
	ctx.NodeMap = result.NodeMap
	ctx.BestSwitch = result.BestSwitch
	metrics.Calls.WithLabelValues(name, "ok").Inc()
	metrics.SelectedNodes.Observe(float64(nodeset.Count(result.NodeMap)))
	ctx.logger().Info("eval_nodes: %s selected %d nodes (best_switch=%v)",
		name, nodeset.Count(result.NodeMap), result.BestSwitch)

	return result, nil
}

// checkPreconditions implements spec.md §4.2's preconditions: there must be
// at least min_nodes candidates, and any required nodes must already be a
// subset of the candidate set.
func checkPreconditions(ctx *EvalContext) error {
	if nodeset.Count(ctx.NodeMap) < ctx.MinNodes {
		return fmt.Errorf("%w: %d candidates, need at least %d", ErrPreconditionFailed, nodeset.Count(ctx.NodeMap), ctx.MinNodes)
	}
	if ctx.Job.HasRequiredNodes && !nodeset.SuperSet(ctx.NodeMap, ctx.Job.RequiredNodes) {
		return fmt.Errorf("%w: required nodes are not a subset of candidates", ErrPreconditionFailed)
	}
	return nil
}

// pickStrategy implements spec.md §4.2's selection rules, first match wins.
func pickStrategy(ctx *EvalContext) (strategyFunc, string) {
	job := ctx.Job

	switch {
	case ctx.Blocks != nil && len(ctx.Blocks.Blocks) > 0 && nodeset.OverlapAny(ctx.BlocksNodesBitmap, ctx.NodeMap):
		return evalBlock, "block"

	case job.SpreadJob:
		return evalSpread, "spread"

	case ctx.PreferAllocNodes && !job.Contiguous:
		return evalBusy, "busy"

	case ctx.CRType&CRLLN != 0:
		return evalLLN, "lln"

	case ctx.Tunables.PackSerialAtEnd && job.MinCPUs == 1 && job.ReqNodes == 1:
		return evalSerial, "serial"

	case ctx.Switches != nil && len(ctx.Switches.Switches) > 0 && !job.Contiguous &&
		(!ctx.Tunables.TopoOptional || (job.ReqSwitchCount != nil && *job.ReqSwitchCount > 0)):
		if ctx.Tunables.HaveDragonfly {
			return evalDragonfly, "dfly"
		}
		return evalTopo, "topo"

	default:
		return evalConsec, "consec"
	}
}
