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

package ifds

type reversed[M comparable, S comparable] struct {
	g Supergraph[M, S]
}

// Reversed returns the view of g where all the edges are inverted: successors and predecessors are swapped, and so
// are entry points and exit points. Reversing a reversed graph returns the original graph.
func Reversed[M comparable, S comparable](g Supergraph[M, S]) Supergraph[M, S] {
	if r, ok := g.(reversed[M, S]); ok {
		return r.g
	}
	return reversed[M, S]{g}
}

func (r reversed[M, S]) Predecessors(s S) []S { return r.g.Successors(s) }
func (r reversed[M, S]) Successors(s S) []S   { return r.g.Predecessors(s) }
func (r reversed[M, S]) Callees(s S) []M      { return r.g.Callees(s) }
func (r reversed[M, S]) Callers(m M) []S      { return r.g.Callers(m) }
func (r reversed[M, S]) EntryPoints(m M) []S  { return r.g.ExitPoints(m) }
func (r reversed[M, S]) ExitPoints(m M) []S   { return r.g.EntryPoints(m) }
func (r reversed[M, S]) MethodOf(s S) M       { return r.g.MethodOf(s) }
