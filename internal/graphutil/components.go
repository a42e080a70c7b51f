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

package graphutil

import (
	"github.com/yourbasic/graph"
)

// StrongComponents computes the same partition as StronglyConnectedComponents, using the yourbasic graph library on
// an indexed copy of the graph. Components are returned in the order in which the library produces them, with their
// nodes mapped back to the original values. Successors that are not in nodes are ignored.
func StrongComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	ids := make(map[T]int, len(nodes))
	for i, n := range nodes {
		ids[n] = i
	}
	g := graph.New(len(nodes))
	for i, n := range nodes {
		for _, s := range successors(n) {
			if j, ok := ids[s]; ok {
				g.Add(i, j)
			}
		}
	}
	var res [][]T
	for _, component := range graph.StrongComponents(g) {
		c := make([]T, len(component))
		for k, i := range component {
			c[k] = nodes[i]
		}
		res = append(res, c)
	}
	return res
}

// IsAcyclic returns true when the graph has no cycle, self-loops included.
func IsAcyclic[T comparable](nodes []T, successors func(T) []T) bool {
	ids := make(map[T]int, len(nodes))
	for i, n := range nodes {
		ids[n] = i
	}
	g := graph.New(len(nodes))
	for i, n := range nodes {
		for _, s := range successors(n) {
			if s == n {
				return false
			}
			if j, ok := ids[s]; ok {
				g.Add(i, j)
			}
		}
	}
	return graph.Acyclic(g)
}
