// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ordered_test

import (
	"testing"

	"github.com/awslabs/argot-ifds/internal/ordered"
	"github.com/stretchr/testify/require"
)

func TestMapLoadStore(t *testing.T) {
	t.Parallel()

	pairs := [][2]int{{3, 4}, {1, 2}, {2, 3}}
	m := ordered.NewMap[int, int]()
	for _, p := range pairs {
		k, v := p[0], p[1]
		m.Store(k, v)
		loadedV, ok := m.Load(k)
		require.True(t, ok)
		require.Equal(t, v, loadedV)
		require.Equal(t, v, m.Value(k))
	}

	v, ok := m.Load(-1)
	require.False(t, ok)
	require.Empty(t, v)
	require.Equal(t, len(pairs), m.Len())
	require.Equal(t, []int{3, 1, 2}, m.Keys())
}

func TestMapStoreKeepsPosition(t *testing.T) {
	t.Parallel()

	m := ordered.NewMap[string, int]()
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("a", 3)

	var keys []string
	var values []int
	m.OrderedRange(func(k string, v int) bool {
		keys = append(keys, k)
		values = append(values, v)
		return true
	})
	require.Equal(t, []string{"a", "b"}, keys)
	require.Equal(t, []int{3, 2}, values)
}

func TestMapOrderedRangeStops(t *testing.T) {
	t.Parallel()

	m := ordered.NewMap[int, int]()
	for i := 0; i < 10; i++ {
		m.Store(i, i)
	}
	count := 0
	m.OrderedRange(func(k int, _ int) bool {
		count++
		return k < 4
	})
	require.Equal(t, 5, count)
}

func TestMapLoadOrStore(t *testing.T) {
	t.Parallel()

	m := ordered.NewMap[int, []int]()
	calls := 0
	mk := func() []int {
		calls++
		return []int{calls}
	}
	require.Equal(t, []int{1}, m.LoadOrStore(7, mk))
	require.Equal(t, []int{1}, m.LoadOrStore(7, mk))
	require.Equal(t, 1, calls)
}

func TestSet(t *testing.T) {
	t.Parallel()

	s := ordered.NewSet[string]()
	require.True(t, s.Add("x"))
	require.True(t, s.Add("y"))
	require.False(t, s.Add("x"))
	require.True(t, s.Contains("y"))
	require.False(t, s.Contains("z"))
	require.Equal(t, 2, s.Len())
	require.Equal(t, "y", s.At(1))
	require.Equal(t, []string{"x", "y"}, s.Items())

	var nilSet *ordered.Set[string]
	require.False(t, nilSet.Contains("x"))
	require.Zero(t, nilSet.Len())
	require.Nil(t, nilSet.Items())
}
