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

package analysisutil

import (
	"testing"

	"github.com/awslabs/argot-ifds/analysis/config"
	"github.com/awslabs/argot-ifds/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
)

const src = `package main

type T struct {
	A string
	b int
}

func (t *T) Get() string { return t.A }

type Getter interface{ Get() string }

func use(g Getter) string { return g.Get() }

func main() {
	t := &T{A: "x"}
	_ = t.Get()
	_ = use(t)
	_ = t.A
}
`

func instrs[I ssa.Instruction](f *ssa.Function) []I {
	var r []I
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			if i, ok := instr.(I); ok {
				r = append(r, i)
			}
		}
	}
	return r
}

func TestCallIdentifier(t *testing.T) {
	p := analysistest.BuildProgram(t, map[string]string{"main.go": src})

	var get *ssa.Call
	for _, c := range instrs[*ssa.Call](p.Func(t, "main")) {
		if callee := c.Call.StaticCallee(); callee != nil && callee.Name() == "Get" {
			get = c
		}
	}
	require.NotNil(t, get)
	cid, ok := CallIdentifier(get.Common())
	require.True(t, ok)
	assert.Equal(t, config.CodeIdentifier{Package: analysistest.PackagePath, Method: "Get", Receiver: "T"}, cid)

	invokes := instrs[*ssa.Call](p.Func(t, "use"))
	require.Len(t, invokes, 1)
	cid, ok = CallIdentifier(invokes[0].Common())
	require.True(t, ok)
	assert.Equal(t, config.CodeIdentifier{Package: analysistest.PackagePath, Method: "Get", Receiver: "g"}, cid)
}

func TestFunctionIdentifier(t *testing.T) {
	p := analysistest.BuildProgram(t, map[string]string{"main.go": src})
	assert.Equal(t, config.CodeIdentifier{Package: analysistest.PackagePath, Method: "use"},
		FunctionIdentifier(p.Func(t, "use")))
}

func TestIsMatchingNode(t *testing.T) {
	p := analysistest.BuildProgram(t, map[string]string{"main.go": src})
	main := p.Func(t, "main")

	isFieldA := func(cid config.CodeIdentifier) bool { return cid.Type == "T" && cid.Field == "A" }
	addrs := instrs[*ssa.FieldAddr](main)
	require.NotEmpty(t, addrs)
	for _, a := range addrs {
		assert.Equal(t, "A", FieldAddrFieldName(a))
		assert.True(t, IsMatchingNode(a, isFieldA))
	}

	allocs := instrs[*ssa.Alloc](main)
	require.NotEmpty(t, allocs)
	assert.True(t, IsMatchingNode(allocs[0], func(cid config.CodeIdentifier) bool {
		return cid.Package == analysistest.PackagePath && cid.Type == "T"
	}))

	ret := instrs[*ssa.Return](main)
	require.NotEmpty(t, ret)
	assert.False(t, IsMatchingNode(ret[0], func(config.CodeIdentifier) bool { return true }))
}

func TestMakeAbsolute(t *testing.T) {
	assert.Equal(t, []string{"/base/a/", "/base/b.go", "/abs"},
		MakeAbsolute("/base", []string{"a/", "b.go", "/abs"}))
}

func TestIsExcluded(t *testing.T) {
	p := analysistest.BuildProgram(t, map[string]string{"main.go": src})
	main := p.Func(t, "main")
	assert.True(t, IsExcluded(p.Prog(), main, []string{"main.go"}))
	assert.False(t, IsExcluded(p.Prog(), main, []string{"other.go", "dir/"}))
	assert.False(t, IsExcluded(p.Prog(), main, nil))
}
