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

package topology

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nri-plugins/node-select/pkg/nodeset"
)

func TestLeaves(t *testing.T) {
	tbl := Table{Switches: []Switch{
		{Name: "leaf0", Level: 0},
		{Name: "leaf1", Level: 0},
		{Name: "top", Level: 1},
	}}
	require.Equal(t, []int{0, 1}, tbl.Leaves())
}

func TestDistOutOfRange(t *testing.T) {
	tbl := Table{Switches: []Switch{{Dist: []int{0, 5}}}}
	require.Equal(t, 5, tbl.Dist(0, 1))
	require.Equal(t, DistInfinite, tbl.Dist(-1, 0))
	require.Equal(t, DistInfinite, tbl.Dist(0, 99))
	require.Equal(t, DistInfinite, tbl.Dist(99, 0))
}

func TestAddDistSaturates(t *testing.T) {
	require.Equal(t, 7, AddDist(3, 4))
	require.Equal(t, DistInfinite, AddDist(DistInfinite, 1))
	require.Equal(t, DistInfinite, AddDist(math.MaxInt32-1, math.MaxInt32-1))
}

func TestAllowedGroupSize(t *testing.T) {
	bt := BlockTable{Levels: nodeset.New(0, 2)} // sizes 1 and 4

	size, ok := bt.AllowedGroupSize(1)
	require.True(t, ok)
	require.Equal(t, 1, size)

	size, ok = bt.AllowedGroupSize(2)
	require.True(t, ok)
	require.Equal(t, 4, size)

	_, ok = bt.AllowedGroupSize(5)
	require.False(t, ok)
}
