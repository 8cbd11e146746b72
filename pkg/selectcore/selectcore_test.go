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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nri-plugins/node-select/pkg/gres"
	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/nodetable"
	"github.com/nri-plugins/node-select/pkg/topology"
)

// testNode is the compact per-node fixture every scenario below builds
// EvalContext from: weight plus the avail/max CPU pair cpus_to_use trims.
type testNode struct {
	weight    uint64
	availCPUs int
	maxCPUs   int
	cpus      int
}

func newTestContext(job *Job, nodes []testNode) *EvalContext {
	n := make([]nodetable.Node, len(nodes))
	avail := make([]nodetable.AvailRes, len(nodes))
	cores := make([]nodeset.NodeSet, len(nodes))

	for i, tn := range nodes {
		cpus := tn.cpus
		if cpus == 0 {
			cpus = tn.availCPUs
		}
		n[i] = nodetable.Node{SchedWeight: tn.weight, CPUs: cpus, TotCores: cpus, TotSockets: 1}
		avail[i] = nodetable.AvailRes{AvailCPUs: tn.availCPUs, MaxCPUs: tn.maxCPUs}
		cores[i] = nodeset.Range(0, cpus)
	}

	all := make([]int, len(nodes))
	for i := range nodes {
		all[i] = i
	}

	return &EvalContext{
		Job:         job,
		Nodes:       n,
		NodeMap:     nodeset.New(all...),
		AvailCore:   cores,
		AvailRes:    avail,
		MinNodes:    job.MinNodes,
		ReqNodes:    job.ReqNodes,
		MaxNodes:    job.MaxNodes,
		CPUsPerCore: 1,
		GRES:        gres.None{},
		CoreFilter:  gres.None{},
		Switches:    &topology.Table{},
		Blocks:      &topology.BlockTable{},
	}
}

// S1: required nodes alone satisfy the request.
func TestEvalNodesRequiredSatisfies(t *testing.T) {
	job := &Job{MinCPUs: 16, MinNodes: 2, ReqNodes: 2, MaxNodes: 2}
	job.HasRequiredNodes = true
	job.RequiredNodes = nodeset.New(0, 1)

	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 8, cpus: 8},
		{weight: 10, availCPUs: 8, cpus: 8},
		{weight: 10, availCPUs: 8, cpus: 8},
		{weight: 10, availCPUs: 8, cpus: 8},
	})

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, nodeset.New(0, 1), result.NodeMap)
	require.Equal(t, "consec", result.Strategy)
	require.Equal(t, 8, ctx.AvailRes[0].AvailCPUs)
	require.Equal(t, 8, ctx.AvailRes[1].AvailCPUs)
}

// S2: consec picks the best-fit run, not the first one scanned.
func TestEvalNodesConsecBestFit(t *testing.T) {
	job := &Job{MinCPUs: 16, MinNodes: 4, ReqNodes: 4, MaxNodes: 4}

	nodes := make([]testNode, 8)
	for i := range nodes {
		nodes[i] = testNode{weight: 10, availCPUs: 4, cpus: 4}
	}
	ctx := newTestContext(job, nodes)
	// index 3 is not a candidate: splits the run into [0..2] and [4..7].
	ctx.NodeMap = nodeset.New(0, 1, 2, 4, 5, 6, 7)
	ctx.MinNodes, ctx.ReqNodes, ctx.MaxNodes = 4, 4, 4

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, nodeset.New(4, 5, 6, 7), result.NodeMap)
	require.Equal(t, "consec", result.Strategy)
}

// S3a: spread takes candidates in ascending index order within a bucket,
// ignoring which one has the most headroom.
func TestEvalNodesSpreadPicksInIndexOrder(t *testing.T) {
	job := &Job{MinCPUs: 16, MinNodes: 2, ReqNodes: 2, MaxNodes: 2, SpreadJob: true}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 8, maxCPUs: 8, cpus: 8},
		{weight: 10, availCPUs: 8, maxCPUs: 16, cpus: 8},
		{weight: 10, availCPUs: 8, maxCPUs: 16, cpus: 8},
		{weight: 10, availCPUs: 8, maxCPUs: 16, cpus: 8},
	})

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "spread", result.Strategy)
	require.Equal(t, nodeset.New(0, 1), result.NodeMap)
}

// S3b: lln ranks candidates by greatest avail/total ratio first, so the
// tightest node (8 avail out of 8 total) is picked ahead of looser ones.
func TestEvalNodesLLNPicksGreatestRatioFirst(t *testing.T) {
	job := &Job{MinCPUs: 8, MinNodes: 1, ReqNodes: 1, MaxNodes: 1}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 8, maxCPUs: 16, cpus: 16},
		{weight: 10, availCPUs: 8, maxCPUs: 16, cpus: 16},
		{weight: 10, availCPUs: 8, maxCPUs: 8, cpus: 8},
	})
	ctx.CRType = CRLLN

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "lln", result.Strategy)
	require.Equal(t, nodeset.New(2), result.NodeMap)
}

// S5: required nodes straddle a block boundary under a groups-of-2
// constraint, which must fail before any fill attempt.
func TestEvalNodesBlockLocalityFailure(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 2, ReqNodes: 2, MaxNodes: 4}
	job.HasRequiredNodes = true
	job.RequiredNodes = nodeset.New(1, 4)

	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
	})
	ctx.Blocks = &topology.BlockTable{
		Blocks: []topology.Block{
			{Name: "b0", Nodes: nodeset.New(0, 1)},
			{Name: "b1", Nodes: nodeset.New(2, 3)},
			{Name: "b2", Nodes: nodeset.New(4, 5)},
			{Name: "b3", Nodes: nodeset.New(6, 7)},
		},
		Levels: nodeset.New(1), // only size-2 groupings allowed
	}
	ctx.BlocksNodesBitmap = nodeset.Range(0, 8)

	_, err := EvalNodes(ctx)
	require.ErrorIs(t, err, ErrLocalityViolation)
	require.True(t, ctx.NodeMap.IsEmpty())
}

// S6: candidates are exhausted without draining min_cpus; node_map clears.
func TestEvalNodesInsufficientResources(t *testing.T) {
	job := &Job{MinCPUs: 16, MinNodes: 2, ReqNodes: 2, MaxNodes: 2}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
	})

	_, err := EvalNodes(ctx)
	require.ErrorIs(t, err, ErrInsufficientResources)
	require.True(t, ctx.NodeMap.IsEmpty())
}

// Invariant: a precondition failure never invokes a strategy at all.
func TestEvalNodesPreconditionFailure(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 3, ReqNodes: 3, MaxNodes: 3}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
	})

	_, err := EvalNodes(ctx)
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestEvalNodesRequiredNodeNotCandidateFails(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 1, ReqNodes: 1, MaxNodes: 1}
	job.HasRequiredNodes = true
	job.RequiredNodes = nodeset.New(5)

	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 4, cpus: 4},
	})

	_, err := EvalNodes(ctx)
	require.ErrorIs(t, err, ErrPreconditionFailed)
}
