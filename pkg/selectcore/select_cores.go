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
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/nodetable"
)

// taskBounds returns [minTasks, maxTasks] for a node, applying spec.md
// §4.1's select_cores priority order: ntasks_per_node, then
// ntasks_per_board*boards, ntasks_per_socket*tot_sockets,
// ntasks_per_core*(tot_cores-core_spec_cnt), ntasks_per_tres (with a
// single-node-count shortcut), a single-max-node shortcut, a num_tasks==1
// shortcut, and finally the unconstrained [1, Unbounded) case.
func taskBounds(ctx *EvalContext, node nodetable.Node) (min, max int) {
	job := ctx.Job
	switch {
	case job.NTasksPerNode > 0:
		n := job.NTasksPerNode
		return n, n
	case job.NTasksPerBoard > 0:
		n := job.NTasksPerBoard * node.Boards
		return n, n
	case job.NTasksPerSocket > 0:
		n := job.NTasksPerSocket * node.TotSockets
		return n, n
	case job.NTasksPerCore > 0:
		n := job.NTasksPerCore * (node.TotCores - node.CoreSpecCnt)
		return n, n
	case job.NTasksPerTRES > 0:
		if ctx.MaxNodes == 1 {
			n := job.NTasksPerTRES
			return n, n
		}
		return 1, Unbounded
	case ctx.MaxNodes == 1:
		if job.NumTasks <= 0 {
			return 1, Unbounded
		}
		return job.NumTasks, job.NumTasks
	case job.NumTasks == 1:
		return 1, 1
	default:
		return 1, Unbounded
	}
}

// selectCores implements spec.md §4.1's select_cores: derives the node's
// task-count ceiling, consults the GRES sock/core filter to prune
// avail_core and finalize avail_cpus, and writes gres_min_cpus /
// gres_max_tasks back onto the node's avail-res record.
func selectCores(ctx *EvalContext, nodeInx, remNodes int) error {
	node := ctx.Nodes[nodeInx]
	res := &ctx.AvailRes[nodeInx]
	job := ctx.Job

	minTasks, maxTasks := taskBounds(ctx, node)

	if !job.Overcommit && job.CPUsPerTask > 0 {
		if cap := res.AvailCPUs / job.CPUsPerTask; maxTasks > cap {
			maxTasks = cap
		}
	}

	if ctx.CoreFilter != nil {
		pruned, err := ctx.CoreFilter.FilterSockCore(nodeInx, res.SockGRES, remNodes, res.AvailCPUs)
		if err != nil {
			return err
		}
		res.AvailCPUs = pruned
	}

	if maxTasks <= 0 {
		res.AvailCPUs = 0
	}

	if ctx.CRType&CROneTaskPerCore != 0 {
		res.AvailCPUs = nodeset.Count(ctx.AvailCore[nodeInx])
	}

	cpusPerTask := job.CPUsPerTask
	if cpusPerTask <= 0 {
		cpusPerTask = 1
	}
	res.GRESMinCPUs = minTasks * cpusPerTask
	res.GRESMaxTasks = maxTasks

	ctx.logger().Debug("node %s: select_cores -> avail_cpus=%d gres_min_cpus=%d gres_max_tasks=%d",
		node.Name, res.AvailCPUs, res.GRESMinCPUs, res.GRESMaxTasks)

	return nil
}
