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

package ssataint

import (
	"strconv"
	"strings"

	"github.com/awslabs/argot-ifds/analysis/paths"
	"github.com/awslabs/argot-ifds/analysis/taint"
	"github.com/awslabs/argot-ifds/internal/analysisutil"
	"golang.org/x/tools/go/ssa"
)

// Fact is a taint fact: the zero fact, or an access path to tainted data
type Fact = taint.Fact[ssa.Instruction, ssa.Value, string]

// Path is an access path rooted at an SSA value. The selectors are field names, derefField for the whole value a
// pointer points to, elemField for the elements of slices, arrays, maps and channels, and "#i" for the i-th
// component of a tuple.
type Path = paths.AccessPath[ssa.Value, string]

const (
	derefField = "*"
	elemField  = "[]"
)

func tupleField(i int) string {
	return "#" + strconv.Itoa(i)
}

func valuePath(v ssa.Value) Path {
	return paths.New[ssa.Value, string](v)
}

func fromPath(p Path) Fact {
	return taint.FromPath[ssa.Instruction](p)
}

func extend(p Path, k int, fields ...string) Path {
	return paths.FromOther(p, fields, k)
}

func rebase(p Path, root ssa.Value, k int) Path {
	return extend(valuePath(root), k, p.Fields()...)
}

// locate returns the path of the memory addr points to. Field and element addresses are paths below the object
// they select from, other pointers p are located at p.*
func locate(addr ssa.Value, k int) Path {
	switch a := addr.(type) {
	case *ssa.FieldAddr:
		return extend(object(a.X, k), k, analysisutil.FieldAddrFieldName(a))
	case *ssa.IndexAddr:
		return extend(object(a.X, k), k, elemField)
	default:
		return paths.New[ssa.Value, string](addr, derefField)
	}
}

// object returns the path under which the fields of the object ptr points to are selected
func object(ptr ssa.Value, k int) Path {
	switch ptr.(type) {
	case *ssa.FieldAddr, *ssa.IndexAddr:
		return locate(ptr, k)
	default:
		return valuePath(ptr)
	}
}

// withoutDeref returns l without its last selector when it is a dereference
func withoutDeref(l Path) (Path, bool) {
	fields := l.Fields()
	if len(fields) == 0 || fields[len(fields)-1] != derefField {
		return l, false
	}
	return paths.New(l.Root(), fields[:len(fields)-1]...), true
}

// under returns the path of the data at rest below the location l. The fields of a dereferenced pointer are
// selected from the pointer directly.
func under(l Path, rest []string, k int) Path {
	if len(rest) > 0 {
		if obj, ok := withoutDeref(l); ok {
			return extend(obj, k, rest...)
		}
	}
	return extend(l, k, rest...)
}

// overwritten returns true when storing to the location l replaces the data of p
func overwritten(l Path, p Path) bool {
	if p.StartsWith(l) {
		return true
	}
	obj, ok := withoutDeref(l)
	return ok && p.StartsWith(obj) && p.Len() > obj.Len()
}

// loaded returns the paths of t, the value loaded from the location l, that are tainted when p is
func loaded(t ssa.Value, l Path, p Path, k int) []Path {
	if rest, ok := p.Minus(l); ok {
		return []Path{extend(valuePath(t), k, rest...)}
	}
	if l.StartsWith(p) {
		return []Path{valuePath(t)}
	}
	if obj, ok := withoutDeref(l); ok {
		if rest, ok := p.Minus(obj); ok && len(rest) > 0 {
			return []Path{extend(valuePath(t), k, rest...)}
		}
	}
	return nil
}

// PathString returns the path with the root value named as in the SSA listing
func PathString(p Path) string {
	var b strings.Builder
	if p.Root() != nil {
		b.WriteString(p.Root().Name())
	}
	for _, f := range p.Fields() {
		b.WriteString(".")
		b.WriteString(f)
	}
	return b.String()
}
