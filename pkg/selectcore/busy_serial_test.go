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

	"github.com/nri-plugins/node-select/pkg/nodeset"
)

func TestEvalNodesBusyPrefersAlreadyAllocated(t *testing.T) {
	job := &Job{MinCPUs: 4, MinNodes: 1, ReqNodes: 1, MaxNodes: 1}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
		{weight: 10, availCPUs: 4, cpus: 4},
	})
	ctx.PreferAllocNodes = true
	ctx.IdleNodes = nodeset.New(0, 1) // 2 is the only non-idle candidate

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "busy", result.Strategy)
	require.Equal(t, nodeset.New(2), result.NodeMap)
}

func TestEvalNodesSerialFillsFromHighIndexEnd(t *testing.T) {
	job := &Job{MinCPUs: 1, MinNodes: 1, ReqNodes: 1, MaxNodes: 1}
	ctx := newTestContext(job, []testNode{
		{weight: 10, availCPUs: 1, cpus: 1},
		{weight: 10, availCPUs: 1, cpus: 1},
		{weight: 10, availCPUs: 1, cpus: 1},
	})
	ctx.Tunables.PackSerialAtEnd = true

	result, err := EvalNodes(ctx)
	require.NoError(t, err)
	require.Equal(t, "serial", result.Strategy)
	require.Equal(t, nodeset.New(2), result.NodeMap)
}
