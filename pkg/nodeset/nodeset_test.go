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

package nodeset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAlgebra(t *testing.T) {
	a := New(0, 1, 2, 3)
	b := New(2, 3, 4, 5)

	require.Equal(t, New(2, 3), And(a, b))
	require.Equal(t, New(0, 1, 2, 3, 4, 5), Or(a, b))
	require.Equal(t, New(0, 1), AndNot(a, b))
	require.True(t, OverlapAny(a, b))
	require.False(t, OverlapAny(New(0, 1), New(4, 5)))
}

func TestSuperSet(t *testing.T) {
	require.True(t, SuperSet(New(0, 1, 2), New(1, 2)))
	require.False(t, SuperSet(New(0, 1), New(1, 2)))
	require.True(t, SuperSet(New(0, 1), Empty()))
}

func TestCountAndFirstLast(t *testing.T) {
	require.Equal(t, 0, Count(Empty()))
	require.Equal(t, 3, Count(New(5, 6, 7)))

	first, ok := FirstSet(New(5, 6, 7))
	require.True(t, ok)
	require.Equal(t, 5, first)

	last, ok := LastSet(New(5, 6, 7))
	require.True(t, ok)
	require.Equal(t, 7, last)

	_, ok = FirstSet(Empty())
	require.False(t, ok)
	_, ok = LastSet(Empty())
	require.False(t, ok)
}

func TestRange(t *testing.T) {
	require.Equal(t, New(0, 1, 2), Range(0, 3))
	require.True(t, Range(3, 3).IsEmpty())
	require.True(t, Range(5, 2).IsEmpty())
}

func TestForEachVisitsInAscendingOrder(t *testing.T) {
	var seen []int
	ForEach(New(5, 1, 3), func(n int) {
		seen = append(seen, n)
	})
	require.Equal(t, []int{1, 3, 5}, seen)
}
