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

// Package nodetable holds the read-only node and resource-availability
// records the selection core consults, and the weight-grouping primitive
// every strategy iterates over (spec.md §3, §4.1).
package nodetable

import (
	"sort"

	"github.com/nri-plugins/node-select/pkg/gres"
	"github.com/nri-plugins/node-select/pkg/nodeset"
)

// Node is the read-only, caller-owned record of one compute node. The core
// never mutates it.
type Node struct {
	// Name is the node's external name, used only for logging.
	Name string
	// SchedWeight is the scheduler's preference order for this node; lower
	// is preferred. Ties within a weight bucket are broken by node index.
	SchedWeight uint64
	// CPUs is the node's configured CPU count.
	CPUs int
	// Cores is cores-per-socket.
	Cores int
	// ThreadsPerCore is hardware threads per core.
	ThreadsPerCore int
	// TotCores is the total core count across all sockets.
	TotCores int
	// TotSockets is the node's socket count.
	TotSockets int
	// Boards is the node's board count.
	Boards int
	// CoreSpecCnt is the number of cores reserved for specialized use and
	// excluded from job scheduling.
	CoreSpecCnt int
}

// AvailRes is the per-node resource-availability record the core reads and
// writes (avail_res_array in spec.md §3).
type AvailRes struct {
	// AvailCPUs is the number of CPUs currently chargeable to a job on this
	// node. The core both reads and overwrites this field.
	AvailCPUs int
	// MaxCPUs is the ceiling cpus_to_use will not exceed for this node.
	MaxCPUs int
	// AvailGPUs is the count of available GPU-class GRES, informational.
	AvailGPUs int
	// AvailResCnt is a generic available-GRES-unit count, informational.
	AvailResCnt int
	// SockGRES is the opaque per-socket GRES layout the gres.Scheduler and
	// gres.SockCoreFilter collaborators consume.
	SockGRES gres.SockGRES
	// SockCnt is the number of sockets carrying GRES on this node.
	SockCnt int
	// GRESMinCPUs is the GRES-induced CPU minimum for this node, written
	// back by select_cores.
	GRESMinCPUs int
	// GRESMaxTasks is the GRES-induced task ceiling for this node, written
	// back by select_cores.
	GRESMaxTasks int
}

// WeightBucket groups every candidate node sharing one scheduling weight.
type WeightBucket struct {
	// Weight is the shared sched_weight of every node in Nodes.
	Weight uint64
	// Nodes is the set of node indices in this bucket.
	Nodes nodeset.NodeSet
	// Count is the population of Nodes, cached for cheap access.
	Count int
}

// BuildWeightBuckets partitions candidates by each node's SchedWeight and
// returns the buckets in ascending weight order (spec.md §4.1,
// build_weight_buckets). The input bitmap is partitioned exactly: every
// candidate index appears in exactly one returned bucket.
func BuildWeightBuckets(nodes []Node, candidates nodeset.NodeSet) []WeightBucket {
	byWeight := map[uint64][]int{}
	nodeset.ForEach(candidates, func(idx int) {
		w := nodes[idx].SchedWeight
		byWeight[w] = append(byWeight[w], idx)
	})
	if len(byWeight) == 0 {
		return nil
	}

	weights := make([]uint64, 0, len(byWeight))
	for w := range byWeight {
		weights = append(weights, w)
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i] < weights[j] })

	buckets := make([]WeightBucket, 0, len(weights))
	for _, w := range weights {
		idxs := byWeight[w]
		buckets = append(buckets, WeightBucket{
			Weight: w,
			Nodes:  nodeset.New(idxs...),
			Count:  len(idxs),
		})
	}
	return buckets
}
