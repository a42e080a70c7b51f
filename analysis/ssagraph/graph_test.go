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

package ssagraph

import (
	"testing"

	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/internal/analysistest"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
)

const src = `package main

type I interface{ m(x int) int }

type A struct{}

func (A) m(x int) int { return x + 1 }

type B struct{}

func (B) m(x int) int { return x * 2 }

func id(x int) int { return x }

func even(n int) bool {
	if n == 0 {
		return true
	}
	return odd(n - 1)
}

func odd(n int) bool {
	if n == 0 {
		return false
	}
	return even(n - 1)
}

func loop(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}

func main() {
	var i I = A{}
	_ = i.m(id(1))
	_ = even(3)
	_ = loop(2)
}
`

func build(t *testing.T, algo string, keep func(*ssa.Function) bool) (*analysistest.Program, *Graph) {
	p := analysistest.BuildProgram(t, map[string]string{"main.go": src})
	g, err := New(p.Prog(), algo, keep)
	require.NoError(t, err)
	return p, g
}

func findFunction(t *testing.T, g *Graph, name string) *ssa.Function {
	for _, f := range g.Functions() {
		if f.String() == name {
			return f
		}
	}
	t.Fatalf("no function %s in graph", name)
	return nil
}

func findCall(t *testing.T, f *ssa.Function, pred func(*ssa.Call) bool) *ssa.Call {
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			if call, ok := instr.(*ssa.Call); ok && pred(call) {
				return call
			}
		}
	}
	t.Fatalf("no matching call in %s", f)
	return nil
}

func TestComputeCallgraphUnknownAlgorithm(t *testing.T) {
	p := analysistest.BuildProgram(t, map[string]string{"main.go": src})
	_, err := ComputeCallgraph(p.Prog(), "pointer")
	require.Error(t, err)
}

func TestControlFlowIsConsistent(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, nil)
	for _, f := range g.Functions() {
		entries := g.EntryPoints(f)
		require.Len(t, entries, 1, f.String())
		require.Equal(t, f.Blocks[0].Instrs[0], entries[0])
		require.Empty(t, g.Predecessors(entries[0]), f.String())
		for _, b := range f.Blocks {
			for _, s := range b.Instrs {
				require.Equal(t, f, g.MethodOf(s))
				for _, next := range g.Successors(s) {
					require.Contains(t, g.Predecessors(next), s)
				}
			}
		}
	}
}

func TestLoopHasBackEdge(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, nil)
	loop := findFunction(t, g, "example.com/test.loop")
	exits := g.ExitPoints(loop)
	require.Len(t, exits, 1)
	require.IsType(t, &ssa.Return{}, exits[0])
	require.Empty(t, g.Successors(exits[0]))

	// some block of the loop is reached from two blocks
	merge := false
	for _, b := range loop.Blocks {
		if len(b.Instrs) > 0 && len(g.Predecessors(b.Instrs[0])) == 2 {
			merge = true
		}
	}
	require.True(t, merge)
}

func TestCallersAndCallees(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, nil)
	main := findFunction(t, g, "example.com/test.main")
	id := findFunction(t, g, "example.com/test.id")
	call := findCall(t, main, func(c *ssa.Call) bool { return c.Call.StaticCallee() == id })
	require.Equal(t, []*ssa.Function{id}, g.Callees(call))
	require.Equal(t, []ssa.Instruction{call}, g.Callers(id))

	invoke := findCall(t, main, func(c *ssa.Call) bool { return c.Call.IsInvoke() })
	require.Empty(t, g.Callees(invoke))
}

func TestKeepFiltersFunctions(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, func(f *ssa.Function) bool { return f.Name() != "id" })
	main := findFunction(t, g, "example.com/test.main")
	call := findCall(t, main, func(c *ssa.Call) bool {
		return c.Call.StaticCallee() != nil && c.Call.StaticCallee().Name() == "id"
	})
	require.Empty(t, g.Callees(call))
	require.False(t, g.Contains(call.Call.StaticCallee()))
	require.True(t, g.Contains(main))
}

func TestRecursiveFunctions(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, nil)
	var names []string
	for _, f := range g.RecursiveFunctions() {
		names = append(names, f.Name())
	}
	require.Equal(t, []string{"even", "odd"}, names)
	require.False(t, g.IsAcyclic())

	cycles := g.CallCycles()
	require.Len(t, cycles, 1)
	names = nil
	for _, f := range cycles[0] {
		names = append(names, f.Name())
	}
	require.ElementsMatch(t, []string{"even", "odd"}, names)

	_, g = build(t, config.CallgraphStatic, func(f *ssa.Function) bool { return f.Name() != "odd" })
	require.True(t, g.IsAcyclic())
	require.Empty(t, g.CallCycles())
}

func TestDevirtualizer(t *testing.T) {
	_, g := build(t, config.CallgraphCha, nil)
	main := findFunction(t, g, "example.com/test.main")
	aM := findFunction(t, g, "(example.com/test.A).m")
	bM := findFunction(t, g, "(example.com/test.B).m")
	invoke := findCall(t, main, func(c *ssa.Call) bool { return c.Call.IsInvoke() })
	require.Contains(t, g.Callees(invoke), aM)
	require.Contains(t, g.Callees(invoke), bM)

	d := NewVTADevirtualizer(g)
	require.Contains(t, d.FindPossibleCallees(invoke), aM)
	require.NotContains(t, d.FindPossibleCallees(invoke), bM)

	id := findFunction(t, g, "example.com/test.id")
	call := findCall(t, main, func(c *ssa.Call) bool { return c.Call.StaticCallee() == id })
	require.Equal(t, g.Callees(call), d.FindPossibleCallees(call))
	require.Nil(t, d.FindPossibleCallees(main.Blocks[0].Instrs[0]))
}

func TestReachable(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, nil)
	main := findFunction(t, g, "example.com/test.main")
	reachable := g.Reachable([]*ssa.Function{main})
	for _, name := range []string{"id", "even", "odd", "loop"} {
		require.True(t, reachable[findFunction(t, g, "example.com/test."+name)], name)
	}
	require.False(t, reachable[findFunction(t, g, "(example.com/test.B).m")])
}

func TestStatistics(t *testing.T) {
	_, g := build(t, config.CallgraphStatic, nil)
	s := g.Statistics()
	instrs := 0
	for _, f := range g.Functions() {
		for _, b := range f.Blocks {
			instrs += len(b.Instrs)
		}
	}
	require.Equal(t, len(g.Functions()), s.Functions)
	require.Equal(t, instrs, s.Instructions)
	// main calls id, even and loop; even and odd call each other
	require.GreaterOrEqual(t, s.CallSites, 5)
	require.Equal(t, 2, s.Recursive)
	require.Equal(t, 1, s.Cycles)
	require.False(t, s.Acyclic)
	require.Zero(t, s.Defers)
	require.Zero(t, s.Closures)
}
