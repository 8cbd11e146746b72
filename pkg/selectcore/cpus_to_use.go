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

// cpusToUse implements spec.md §4.1's cpus_to_use: how many of a node's
// available CPUs to actually charge to the job, reserving headroom for
// nodes not yet picked and honoring per-node minimums. It mirrors the
// final avail_cpus onto both ctx.AvailCPUs (the "current node" scratch
// field) and the node's avail-res record, and returns the new
// rem_max_cpus.
func cpusToUse(ctx *EvalContext, nodeInx int, remMaxCPUs int64, remNodes int) int64 {
	job := ctx.Job
	res := &ctx.AvailRes[nodeInx]

	if job.WholeNode {
		ctx.AvailCPUs = res.AvailCPUs
		res.AvailCPUs = ctx.AvailCPUs
		return remMaxCPUs - int64(ctx.AvailCPUs)
	}

	node := ctx.Nodes[nodeInx]

	coresFactor := 1
	if ctx.CRType&CRSocket != 0 {
		coresFactor = node.Cores
	}
	cpusPerCore := ctx.CPUsPerCore
	if cpusPerCore <= 0 {
		cpusPerCore = 1
	}

	reserve := int64(0)
	if remNodes > 1 {
		reserve = int64(remNodes-1) * int64(cpusPerCore) * int64(coresFactor)
	}

	remaining := remMaxCPUs - reserve
	if remaining < 0 {
		remaining = 0
	}

	var pnMin int64
	if m, ok := job.PerNodeMinCPUs[nodeInx]; ok {
		pnMin = int64(m)
	}

	gresMin := int64(res.GRESMinCPUs)
	if job.MinGRESCPU != nil && *job.MinGRESCPU > gresMin {
		gresMin = *job.MinGRESCPU
	}

	floor := pnMin
	if gresMin > floor {
		floor = gresMin
	}

	avail := remaining
	if avail < floor {
		avail = floor
	}
	if avail > int64(res.AvailCPUs) {
		avail = int64(res.AvailCPUs)
	}
	if res.MaxCPUs > 0 && avail > int64(res.MaxCPUs) {
		avail = int64(res.MaxCPUs)
	}
	if avail < 0 {
		avail = 0
	}

	ctx.AvailCPUs = int(avail)
	res.AvailCPUs = int(avail)

	ctx.logger().Debug("node %s: cpus_to_use -> avail_cpus=%d (rem_max_cpus %d -> %d)",
		node.Name, ctx.AvailCPUs, remMaxCPUs, remMaxCPUs-avail)

	return remMaxCPUs - avail
}
