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

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildComputesControlFlow(t *testing.T) {
	p := NewProgram()
	b := p.Method("m", "x")
	i0 := b.If(Eq, L("x"), Null(), "isnull", "")
	i1 := b.Assign(L("y"), Ref("x", "f"))
	i2 := b.Goto("end")
	b.Label("isnull")
	i3 := b.Assign(L("y"), Null())
	b.Label("end")
	i4 := b.Return(L("y"))
	dead := b.Return(nil)

	g, err := p.Build()
	require.NoError(t, err)
	m := g.Method("m")
	require.NotNil(t, m)

	require.Equal(t, []Inst{i1, i3}, g.Successors(i0))
	require.Equal(t, []Inst{i4}, g.Successors(i2))
	require.Equal(t, []Inst{i2, i3}, g.Predecessors(i4))
	require.Empty(t, g.Predecessors(i0))
	require.Empty(t, g.Successors(i4))
	require.Equal(t, Inst(i3), i0.True())
	require.Equal(t, Inst(i1), i0.False())
	require.Equal(t, Inst(i4), i2.Target())

	require.Equal(t, []Inst{i0}, g.EntryPoints(m))
	require.Equal(t, []Inst{i4, dead}, g.ExitPoints(m))
	require.Equal(t, []Value{L("y")}, m.Returns())
	require.Equal(t, []Inst{dead}, m.Unreachable())
	require.Equal(t, m, g.MethodOf(i3))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *Program)
		err   error
	}{
		{"unknown label", func(p *Program) {
			p.Method("m").Goto("nowhere")
		}, ErrUnknownLabel},
		{"label at end", func(p *Program) {
			b := p.Method("m")
			b.Return(nil)
			b.Label("end")
		}, ErrUnknownLabel},
		{"duplicate label", func(p *Program) {
			b := p.Method("m")
			b.Label("a").Label("a")
			b.Return(nil)
		}, ErrDuplicateLabel},
		{"empty method", func(p *Program) {
			p.Method("m")
		}, ErrEmptyMethod},
		{"undeclared callee", func(p *Program) {
			b := p.Method("m")
			b.Call(StaticCall("f"))
			b.Return(nil)
		}, ErrUnknownMethod},
		{"arity", func(p *Program) {
			p.Method("f", "a").Return(nil)
			b := p.Method("m")
			b.Call(StaticCall("f"))
			b.Return(nil)
		}, ErrArity},
		{"falls off end", func(p *Program) {
			p.Method("m").Assign(L("x"), Null())
		}, ErrFallsOffEnd},
		{"self loop", func(p *Program) {
			b := p.Method("m")
			b.Label("l")
			b.Goto("l")
		}, ErrSelfLoop},
		{"invalid lhs", func(p *Program) {
			b := p.Method("m")
			b.Assign(Null(), L("x"))
			b.Return(nil)
		}, ErrInvalidLhs},
		{"duplicate method", func(p *Program) {
			p.Method("m").Return(nil)
			p.Method("m").Return(nil)
		}, ErrDuplicateMethod},
		{"unknown override", func(p *Program) {
			p.Method("m").Return(nil)
			p.Override("m", "n")
		}, ErrUnknownMethod},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := NewProgram()
			test.build(p)
			g, err := p.Build()
			require.ErrorIs(t, err, test.err)
			require.Nil(t, g)
		})
	}
}

func TestCallersAndCallees(t *testing.T) {
	p := NewProgram()
	main := p.Method("main")
	c1 := main.Call(StaticCall("f", C("a")))
	c2 := main.Assign(L("x"), StaticCall("g"))
	main.Return(nil)
	f := p.Method("f", "a")
	c3 := f.Call(StaticCall("g"))
	f.Return(nil)
	p.Method("g").Return(Null())

	g, err := p.Build()
	require.NoError(t, err)
	require.Equal(t, []*Method{g.Method("f")}, g.Callees(c1))
	require.Equal(t, []*Method{g.Method("g")}, g.Callees(c2))
	require.Equal(t, []Inst{c2, c3}, g.Callers(g.Method("g")))
	require.Empty(t, g.Callers(g.Method("main")))
	require.Nil(t, g.Callees(main.m.Insts[2]))
	require.Empty(t, g.RecursiveMethods())
}

func TestRecursiveMethods(t *testing.T) {
	p := NewProgram()
	b := p.Method("main")
	b.Call(StaticCall("even"))
	b.Return(nil)
	b = p.Method("even")
	b.Call(StaticCall("odd"))
	b.Return(nil)
	b = p.Method("odd")
	b.Call(StaticCall("even"))
	b.Return(nil)
	b = p.Method("self")
	b.Call(StaticCall("self"))
	b.Return(nil)

	g, err := p.Build()
	require.NoError(t, err)
	names := func(ms []*Method) []string {
		var res []string
		for _, m := range ms {
			res = append(res, m.Name)
		}
		return res
	}
	require.Equal(t, []string{"even", "odd", "self"}, names(g.RecursiveMethods()))
}

func TestOverridesDevirtualizer(t *testing.T) {
	p := NewProgram()
	b := p.Method("main", "r")
	virtual := b.Call(VirtualCall(L("r"), "get"))
	static := b.Call(StaticCall("get"))
	b.Return(nil)
	for _, name := range []string{"get", "get1", "get2", "get3"} {
		p.Method(name).Return(nil)
	}
	p.Override("get", "get1")
	p.Override("get", "get2")
	p.Override("get", "get3")

	g, err := p.Build()
	require.NoError(t, err)
	get := g.Method("get")

	d := NewOverridesDevirtualizer(g, 3)
	require.Equal(t, []*Method{get, g.Method("get1"), g.Method("get2")}, d.FindPossibleCallees(virtual))
	require.Equal(t, []*Method{get}, d.FindPossibleCallees(static))
	require.Equal(t, []*Method{get}, NewOverridesDevirtualizer(g, 0).FindPossibleCallees(virtual))
	require.Len(t, NewOverridesDevirtualizer(g, 10).FindPossibleCallees(virtual), 4)
}

func TestPathOf(t *testing.T) {
	path, ok := PathOf(Ref("x", "f", "g"), 5)
	require.True(t, ok)
	require.Equal(t, "x.f.g", path.String())

	path, ok = PathOf(Ref("x", "f", "g"), 1)
	require.True(t, ok)
	require.Equal(t, "x.f", path.String())

	_, ok = PathOf(Null(), 5)
	require.False(t, ok)
	_, ok = PathOf(FieldRef{Base: New("T"), Field: "f"}, 5)
	require.False(t, ok)
}

func TestInstructionStrings(t *testing.T) {
	p := NewProgram()
	b := p.Method("m", "x")
	i0 := b.Assign(Ref("x", "f"), StaticCall("g", L("x"), C("s")))
	i1 := b.Call(VirtualCall(L("x"), "run"))
	i2 := b.If(Neq, L("x"), Null(), "end", "")
	b.Assign(L("y"), New("T"))
	b.Label("end")
	i4 := b.Return(nil)

	require.Equal(t, `m#0: x.f = g(x, "s")`, i0.String())
	require.Equal(t, "m#1: x.run()", i1.String())
	require.Equal(t, "m#2: if x != null goto end", i2.String())
	require.Equal(t, "m#4: return", i4.String())
	require.Equal(t, []Value{Ref("x", "f"), L("x"), C("s")}, i0.Operands())
	require.Equal(t, []Value{L("x")}, i1.Operands())
}
