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

import (
	"testing"

	"github.com/awslabs/argot-ifds/internal/funcutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestInstance(g Supergraph[string, string], sp *testSpace) *Instance[string, string, string] {
	return NewInstance[string, string, string](g, sp, Options[string, string]{Name: "test"})
}

func TestPropagateIsIdempotent(t *testing.T) {
	g := newTestGraph().method("A", "a0", "a1")
	inst := newTestInstance(g, newTestSpace())
	rec := &recorder{}
	inst.AddListener(rec.listener())

	e := edge("a0", zero, "a1", "x")
	require.True(t, inst.Propagate(e, funcutil.None[string]()))
	require.False(t, inst.Propagate(e, funcutil.Some("a0")))
	require.Len(t, rec.propagations, 1)
	require.Equal(t, 1, inst.Stats().PathEdges)
	require.Equal(t, 1, inst.Pending())
}

func TestIsNewFlag(t *testing.T) {
	g := newTestGraph().method("A", "a0", "a1", "a2")
	sp := newTestSpace()
	sp.gen["a0"] = []string{"g"}
	inst := newTestInstance(g, sp)
	rec := &recorder{}
	inst.AddListener(rec.listener())
	inst.AddStart("A")
	inst.Run()

	expected := []propagation{
		{edge("a0", zero, "a0", zero), "", true},
		{edge("a0", zero, "a1", zero), "a0", false},
		{edge("a0", zero, "a1", "g"), "a0", true},
		{edge("a0", zero, "a2", zero), "a1", false},
		{edge("a0", zero, "a2", "g"), "a1", false},
	}
	require.Equal(t, expected, rec.propagations)
	require.Equal(t, []Edge[string, string]{edge("a0", zero, "a2", zero), edge("a0", zero, "a2", "g")}, rec.exits)
}

func callerCalleeGraph() *testGraph {
	return newTestGraph().
		method("A", "a0", "a1", "a2").
		call("a1", "B").
		method("B", "b0", "b1").
		method("D", "d0", "d1")
}

func TestMonotonicityAndFixedPoint(t *testing.T) {
	sp := newTestSpace("k")
	sp.gen["b0"] = []string{"g"}
	sp.gen["d0"] = []string{"h"}
	inst := newTestInstance(callerCalleeGraph(), sp)
	inst.AddStart("A")
	inst.Run()
	first := inst.CollectResults()
	require.NotEmpty(t, first.SummaryEdges())

	// no new stimulus: nothing changes
	inst.Run()
	second := inst.CollectResults()
	require.Equal(t, first.PathEdges(), second.PathEdges())
	require.Equal(t, first.SummaryEdges(), second.SummaryEdges())
	require.Equal(t, 0, inst.Pending())

	inst.AddStart("D")
	inst.Run()
	third := inst.CollectResults()
	require.Subset(t, third.PathEdges(), first.PathEdges())
	require.Subset(t, third.SummaryEdges(), first.SummaryEdges())
	require.Greater(t, len(third.PathEdges()), len(first.PathEdges()))
	require.True(t, third.HoldsAt("d1", "h"))
}

func TestSummaryMatchesInlining(t *testing.T) {
	g := newTestGraph().
		method("C", "c0", "c1", "c2", "c3").
		call("c1", "E").
		method("E", "e0", "e1", "e2").
		method("I", "i0", "i1", "i2", "i3", "i4")
	sp := newTestSpace("a", "k")
	sp.gen["e0"] = []string{"g"}
	sp.kill["e1"] = []string{"k"}
	sp.gen["i1"] = []string{"g"}
	sp.kill["i2"] = []string{"k"}

	inst := newTestInstance(g, sp)
	inst.AddStart("C")
	inst.AddStart("I")
	inst.Run()
	res := inst.CollectResults()

	want := sorted(res.FactsAt("i3"))
	if diff := cmp.Diff([]string{zero, "a", "g"}, want); diff != "" {
		t.Fatalf("inlined facts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sorted(res.FactsAt("c2"))); diff != "" {
		t.Errorf("facts at return site differ from inlined facts (-want +got):\n%s", diff)
	}
	for _, s := range res.SummaryEdges() {
		if s.From.Statement != "c1" || s.To.Statement != "c2" {
			t.Errorf("unexpected summary edge %s", s)
		}
	}
	require.NotEmpty(t, res.SummaryEdges())
}

func TestSummariesAreSharedBetweenCallSites(t *testing.T) {
	g := newTestGraph().
		method("C", "c0", "c1", "c2", "c3").
		call("c1", "E").
		call("c2", "E").
		method("E", "e0", "e1", "e2")
	sp := newTestSpace("a", "k")
	sp.gen["e0"] = []string{"g"}
	sp.kill["e1"] = []string{"k"}

	inst := newTestInstance(g, sp)
	inst.AddStart("C")
	inst.Run()
	res := inst.CollectResults()

	require.Equal(t, []string{zero, "a", "g"}, sorted(res.FactsAt("c3")))
	require.Equal(t, 6, inst.Stats().CallSites)
	fromSecondCall := funcutil.Filter(res.SummaryEdges(), func(e Edge[string, string]) bool {
		return e.From.Statement == "c2"
	})
	require.NotEmpty(t, fromSecondCall)
}

func TestRecursionTerminates(t *testing.T) {
	g := newTestGraph().
		method("M", "m0", "m1", "m2").
		call("m1", "R").
		method("R", "r0", "r1", "r3").
		edge("r1", "r2").
		edge("r2", "r3").
		call("r2", "R")
	g.methodOf["r2"] = "R"
	sp := newTestSpace()
	sp.gen["r0"] = []string{"x"}

	inst := newTestInstance(g, sp)
	inst.AddStart("M")
	inst.Run()
	res := inst.CollectResults()

	require.True(t, res.HoldsAt("m2", "x"))
	require.True(t, res.HoldsAt("r3", "x"))
	require.Equal(t, 0, inst.Pending())
	require.NotEmpty(t, res.SummaryEdges())
}

type mapDevirtualizer map[string][]string

func (d mapDevirtualizer) FindPossibleCallees(s string) []string {
	return d[s]
}

func TestDevirtualizerOverridesCallees(t *testing.T) {
	g := callerCalleeGraph().method("C", "c0", "c1")
	sp := newTestSpace()
	inst := NewInstance[string, string, string](g, sp, Options[string, string]{
		Devirtualizer: mapDevirtualizer{"a1": {"C"}},
	})
	inst.AddStart("A")
	inst.Run()
	res := inst.CollectResults()

	require.True(t, res.HoldsAt("c1", zero))
	require.Empty(t, res.FactsAt("b0"))
	require.ElementsMatch(t, []string{"A", "C"}, res.Methods())
}

func TestFlowFunctionPanicLeavesConsistentState(t *testing.T) {
	g := newTestGraph().method("A", "a0", "a1", "a2")
	sp := newTestSpace()
	sp.gen["a0"] = []string{"bad"}
	sp.panicOn = "bad"
	inst := newTestInstance(g, sp)
	inst.AddStart("A")

	require.Panics(t, inst.Run)
	require.Equal(t, 4, inst.Stats().PathEdges)
	require.Equal(t, 1, inst.Pending())

	sp.panicOn = ""
	inst.Run()
	res := inst.CollectResults()
	require.Equal(t, []string{zero}, res.FactsAt("a2"))
	require.True(t, res.HoldsAt("a1", "bad"))
}

func TestBackwardInstanceOnReversedGraph(t *testing.T) {
	g := newTestGraph().method("A", "a0", "a1", "a2")
	r := Reversed[string, string](g)
	require.Equal(t, g.Predecessors("a1"), r.Successors("a1"))
	require.Equal(t, []string{"a2"}, r.EntryPoints("A"))
	require.Equal(t, []string{"a0"}, r.ExitPoints("A"))
	require.Same(t, g, Reversed[string, string](r))

	sp := newTestSpace()
	sp.gen["a2"] = []string{"late"}
	inst := newTestInstance(r, sp)
	inst.AddStart("A")
	inst.Run()
	res := inst.CollectResults()
	require.True(t, res.HoldsAt("a0", "late"))
	require.False(t, res.HoldsAt("a2", "late"))
}

func TestIdentityAndCompose(t *testing.T) {
	double := func(x string) []string { return []string{x, x + x} }
	f := Compose[string](double, Identity[string]())
	require.Equal(t, []string{"a", "aa"}, f("a"))
	g := Compose[string](double, double)
	require.Equal(t, []string{"a", "aa", "aa", "aaaa"}, g("a"))
}
