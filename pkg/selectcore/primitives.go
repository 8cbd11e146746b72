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

// enoughNodes implements spec.md §4.1's enough_nodes: whether avail nodes
// are enough to satisfy a [min..req] range request, allowing a shortfall of
// up to req-min when the range is wider than a point request.
func enoughNodes(avail, rem, min, req int) bool {
	needed := rem
	if req > min {
		needed = rem + min - req
	}
	return avail >= needed
}

// getRemMaxCPUs implements spec.md §4.1's get_rem_max_cpus: the ceiling on
// CPUs still chargeable to the job, raised to cover any GRES-induced
// per-node or aggregate CPU minimum.
func getRemMaxCPUs(job *Job, remNodes int) int64 {
	remMax := job.MinCPUs
	if job.MaxCPUs != nil {
		remMax = *job.MaxCPUs
	}

	if job.MinGRESCPU == nil && job.MinJobGRESCPU == nil {
		return remMax
	}

	var floor int64
	if job.MinGRESCPU != nil {
		floor = int64(remNodes) * (*job.MinGRESCPU)
	}
	if job.MinJobGRESCPU != nil && *job.MinJobGRESCPU > floor {
		floor = *job.MinJobGRESCPU
	}
	if floor > remMax {
		remMax = floor
	}
	return remMax
}
