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
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nri-plugins/node-select/pkg/nodeset"
	"github.com/nri-plugins/node-select/pkg/topology"
)

func twoLeafSwitches() *topology.Table {
	return &topology.Table{Switches: []topology.Switch{
		{Name: "leaf0", Level: 0, Parent: 2, Nodes: nodeset.New(0, 1)},
		{Name: "leaf1", Level: 0, Parent: 2, Nodes: nodeset.New(2, 3)},
		{Name: "top", Level: 1, Parent: -1, Nodes: nodeset.New(0, 1, 2, 3)},
	}}
}

// dfly prefers a single leaf switch that alone covers the request over
// spreading across leaves, even when another leaf has equally many nodes.
func TestEvalNodesDflyPrefersSoleSufficientLeaf(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 2, ReqNodes: 2, MaxNodes: 2}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 1, cpus: 1},
		{weight: 10, availCPUs: 1, cpus: 1},
	})
	ctx.Switches = twoLeafSwitches()
	ctx.Tunables.HaveDragonfly = true

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "dfly", result.Strategy)
	require.Equal(t, nodeset.New(0, 1), result.NodeMap)
	require.True(t, result.BestSwitch)
}

// topo without a leaf-count preference behaves like dfly's sole-leaf case
// when the request fits on one leaf.
func TestEvalNodesTopoPicksSufficientLeaf(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 2, ReqNodes: 2, MaxNodes: 2}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 1, cpus: 1},
		{weight: 10, availCPUs: 1, cpus: 1},
	})
	ctx.Switches = twoLeafSwitches()

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "topo", result.Strategy)
	require.Equal(t, nodeset.New(0, 1), result.NodeMap)
	require.True(t, result.BestSwitch)
}

// S4: topo relaxes req_nodes on leaf-switch overshoot, retrying down toward
// min_nodes. Here the job's aggregate min_cpus can only be met by all four
// nodes regardless of req_nodes, so every retry keeps straddling both
// leaves; once req_nodes reaches min_nodes the retry loop stops and reports
// the overshoot via best_switch rather than looping forever.
func TestEvalNodesTopoRetriesOnOvershoot(t *testing.T) {
	one := 1
	job := &Job{
		MinCPUs: 8, MinNodes: 2, ReqNodes: 4, MaxNodes: 4,
		ReqSwitchCount: &one,
		Wait4Switch:    time.Hour,
	}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 2, cpus: 2},
		{weight: 10, availCPUs: 2, cpus: 2},
	})
	ctx.Switches = twoLeafSwitches()

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "topo", result.Strategy)
	require.Equal(t, nodeset.New(0, 1, 2, 3), result.NodeMap)
	require.False(t, result.BestSwitch, "overshoot persisted down to min_nodes, so best_switch must be cleared")
}

func blockTableOf(groupSizes nodeset.NodeSet) *topology.BlockTable {
	return &topology.BlockTable{
		Blocks: []topology.Block{
			{Name: "b0", Nodes: nodeset.New(0, 1)},
			{Name: "b1", Nodes: nodeset.New(2, 3)},
			{Name: "b2", Nodes: nodeset.New(4, 5)},
			{Name: "b3", Nodes: nodeset.New(6, 7)},
		},
		Levels: groupSizes,
	}
}

// block fills from within a single base block once one alone suffices.
func TestEvalNodesBlockFillsSingleBaseBlock(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 2, ReqNodes: 2, MaxNodes: 2}
	nodes := make([]testNode, 8)
	for i := range nodes {
		nodes[i] = testNode{weight: 10, availCPUs: 2, cpus: 2}
	}
	ctx := newTestContext(job, nodes)
	ctx.Blocks = blockTableOf(nodeset.New(0, 1)) // sizes 1 and 2 allowed
	ctx.BlocksNodesBitmap = nodeset.Range(0, 8)

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "block", result.Strategy)
	require.Equal(t, nodeset.New(0, 1), result.NodeMap)
}
