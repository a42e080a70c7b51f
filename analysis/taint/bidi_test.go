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

package taint

import (
	"testing"

	"github.com/awslabs/argot-ifds/analysis/ifds"
	"github.com/awslabs/argot-ifds/analysis/paths"
	"github.com/stretchr/testify/require"
)

type path = paths.AccessPath[string, string]
type fact = Fact[string, string, string]

func p(root string, fields ...string) path {
	return paths.New[string, string](root, fields...)
}

// stmt is a statement of the test programs: lhs = rhs, or lhs = source() when there is no rhs
type stmt struct {
	lhs, rhs       path
	hasLhs, hasRhs bool
}

// program is a single straight-line method "main" over string statements
type program struct {
	order []string
	stmts map[string]stmt
}

func newProgram() *program {
	return &program{stmts: map[string]stmt{}}
}

func (pr *program) nop(name string) *program {
	pr.order = append(pr.order, name)
	return pr
}

func (pr *program) source(name string, lhs path) *program {
	pr.stmts[name] = stmt{lhs: lhs, hasLhs: true}
	return pr.nop(name)
}

func (pr *program) copy(name string, lhs, rhs path) *program {
	pr.stmts[name] = stmt{lhs: lhs, rhs: rhs, hasLhs: true, hasRhs: true}
	return pr.nop(name)
}

func (pr *program) index(s string) int {
	for i, x := range pr.order {
		if x == s {
			return i
		}
	}
	return -1
}

func (pr *program) Predecessors(s string) []string {
	if i := pr.index(s); i > 0 {
		return []string{pr.order[i-1]}
	}
	return nil
}

func (pr *program) Successors(s string) []string {
	if i := pr.index(s); i >= 0 && i < len(pr.order)-1 {
		return []string{pr.order[i+1]}
	}
	return nil
}

func (pr *program) Callees(string) []string        { return nil }
func (pr *program) Callers(string) []string        { return nil }
func (pr *program) EntryPoints(string) []string    { return pr.order[:1] }
func (pr *program) ExitPoints(string) []string     { return pr.order[len(pr.order)-1:] }
func (pr *program) MethodOf(string) string         { return "main" }
func (pr *program) CallOperandPaths(string) []path { return nil }

func (pr *program) AssignedPath(s string) (path, bool) {
	st := pr.stmts[s]
	return st.lhs, st.hasLhs
}

type noCalls struct{}

func (noCalls) CallToStartFlowFunction(string, string) ifds.FlowFunction[fact] {
	return ifds.Identity[fact]()
}
func (noCalls) CallToReturnFlowFunction(_, _ string) ifds.FlowFunction[fact] {
	return ifds.Identity[fact]()
}
func (noCalls) ExitToReturnSiteFlowFunction(_, _, _ string) ifds.FlowFunction[fact] {
	return ifds.Identity[fact]()
}

// forwardSpace generates lhs at sources, kills facts on assigned paths and copies facts through assignments
type forwardSpace struct {
	noCalls
	pr *program
}

func (fs forwardSpace) StartFacts(string) []fact {
	return []fact{Zero[string, string, string]()}
}

func (fs forwardSpace) SequentFlowFunction(current, _ string) ifds.FlowFunction[fact] {
	return func(f fact) []fact {
		f = f.CheckActivation(current)
		st, ok := fs.pr.stmts[current]
		if !ok {
			return []fact{f}
		}
		if f.IsZero() {
			if !st.hasRhs {
				return []fact{f, FromPath[string](st.lhs)}
			}
			return []fact{f}
		}
		var res []fact
		if !f.Path().StartsWith(st.lhs) {
			res = append(res, f)
		}
		if st.hasRhs {
			if moved, ok := f.Path().Rebase(st.rhs, st.lhs, 5); ok {
				res = append(res, f.MoveTo(moved))
			}
		}
		return res
	}
}

// backwardSpace moves facts from the left-hand side of copies to their right-hand side
type backwardSpace struct {
	noCalls
	pr *program
}

func (bs backwardSpace) StartFacts(string) []fact {
	return nil
}

func (bs backwardSpace) SequentFlowFunction(current, _ string) ifds.FlowFunction[fact] {
	return func(f fact) []fact {
		if f.IsZero() {
			return []fact{f}
		}
		if a, ok := f.Activation(); ok && a == current {
			return []fact{f}
		}
		st := bs.pr.stmts[current]
		if st.hasRhs {
			if diff, ok := f.Path().Minus(st.lhs); ok && len(diff) > 0 {
				return []fact{f.MoveTo(paths.FromOther(st.rhs, diff, 5))}
			}
		}
		return []fact{f}
	}
}

func newTestBidi(pr *program) *Bidi[string, string, string, string] {
	return NewBidi[string, string, string, string](pr, forwardSpace{pr: pr}, backwardSpace{pr: pr}, pr,
		ifds.Options[string, string]{Name: "test"})
}

func TestFactActivation(t *testing.T) {
	f := FromPath[string](p("x", "f"))
	require.True(t, f.IsOnHeap())
	require.False(t, Zero[string, string, string]().IsOnHeap())
	require.False(t, FromPath[string](p("x")).IsOnHeap())

	g := f.WithActivation("s1")
	a, ok := g.Activation()
	require.True(t, ok)
	require.Equal(t, "s1", a)
	require.NotEqual(t, f, g)
	require.Equal(t, g, g.CheckActivation("s2"))
	require.Equal(t, f, g.CheckActivation("s1"))
	require.Equal(t, f, g.Activated())
	require.Equal(t, "x.f@s1", g.String())

	moved := g.MoveTo(p("y", "f"))
	a, ok = moved.Activation()
	require.True(t, ok && a == "s1")
	require.Equal(t, p("y", "f"), moved.Path())

	require.Equal(t, Zero[string, string, string](), Zero[string, string, string]().WithActivation("s1"))
}

func TestBackwardRunsOncePerNewHeapFact(t *testing.T) {
	pr := newProgram().
		nop("a0").
		source("a1", p("x", "f")).
		nop("a2").
		nop("a3")
	b := newTestBidi(pr)
	b.AddStart("main")
	b.Run()
	res := b.CollectResults()

	xf := FromPath[string](p("x", "f"))
	require.True(t, res.HoldsAt("a2", xf))
	require.True(t, res.HoldsAt("a3", xf))
	require.Equal(t, 1, b.Stats().BackwardRuns)
	require.Equal(t, 0, b.Backward().Pending())
	require.Equal(t, 0, b.Forward().Pending())
	// the backward instance explored the fact from its activation point
	require.True(t, b.Backward().CollectResults().HoldsAt("a0", xf.WithActivation("a1")))
}

func TestBidiDiscoversAliases(t *testing.T) {
	pr := newProgram().
		nop("a0").
		copy("a1", p("y"), p("x")).
		source("a2", p("y", "f")).
		nop("a3").
		nop("a4")

	// the forward analysis alone does not know that x.f is written at a2
	plain := ifds.NewInstance[string, string, fact](pr, forwardSpace{pr: pr}, ifds.Options[string, string]{})
	plain.AddStart("main")
	plain.Run()
	xf := FromPath[string](p("x", "f"))
	require.False(t, plain.CollectResults().HoldsAt("a3", xf))

	b := newTestBidi(pr)
	b.AddStart("main")
	b.Run()
	res := b.CollectResults()
	require.True(t, res.HoldsAt("a3", xf))
	require.True(t, res.HoldsAt("a3", FromPath[string](p("y", "f"))))
	require.True(t, b.Backward().CollectResults().HoldsAt("a0", xf.WithActivation("a2")))

	stats := b.Stats()
	require.Greater(t, stats.ToForward, 0)
	require.GreaterOrEqual(t, stats.ToBackward, stats.BackwardRuns)
	require.Equal(t, 0, b.Forward().Pending())
	require.Equal(t, 0, b.Backward().Pending())
}

func TestNonHeapFactsStayForward(t *testing.T) {
	pr := newProgram().
		nop("a0").
		source("a1", p("x")).
		copy("a2", p("y"), p("x")).
		nop("a3")
	b := newTestBidi(pr)
	b.AddStart("main")
	b.Run()
	res := b.CollectResults()

	require.True(t, res.HoldsAt("a3", FromPath[string](p("y"))))
	require.Equal(t, BidiStats{}, b.Stats())
	require.Empty(t, b.Backward().CollectResults().PathEdges())
}
