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

package nodetable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nri-plugins/node-select/pkg/nodeset"
)

func TestBuildWeightBucketsOrdersByAscendingWeight(t *testing.T) {
	nodes := []Node{
		{Name: "n0", SchedWeight: 10},
		{Name: "n1", SchedWeight: 5},
		{Name: "n2", SchedWeight: 10},
		{Name: "n3", SchedWeight: 1},
	}

	buckets := BuildWeightBuckets(nodes, nodeset.New(0, 1, 2, 3))
	require.Len(t, buckets, 3)
	require.Equal(t, uint64(1), buckets[0].Weight)
	require.Equal(t, nodeset.New(3), buckets[0].Nodes)
	require.Equal(t, uint64(5), buckets[1].Weight)
	require.Equal(t, nodeset.New(1), buckets[1].Nodes)
	require.Equal(t, uint64(10), buckets[2].Weight)
	require.Equal(t, nodeset.New(0, 2), buckets[2].Nodes)
	require.Equal(t, 2, buckets[2].Count)
}

func TestBuildWeightBucketsPartitionsExactly(t *testing.T) {
	nodes := []Node{
		{SchedWeight: 1}, {SchedWeight: 2}, {SchedWeight: 1}, {SchedWeight: 3},
	}
	candidates := nodeset.New(0, 2, 3)

	buckets := BuildWeightBuckets(nodes, candidates)

	var union nodeset.NodeSet = nodeset.Empty()
	for _, b := range buckets {
		union = nodeset.Or(union, b.Nodes)
	}
	require.Equal(t, candidates, union)
	require.False(t, nodeset.OverlapAny(buckets[0].Nodes, nodeset.New(1)))
}

func TestBuildWeightBucketsEmptyCandidates(t *testing.T) {
	require.Nil(t, BuildWeightBuckets(nil, nodeset.Empty()))
}
