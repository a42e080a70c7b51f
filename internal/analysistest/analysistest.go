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

// Package analysistest builds SSA programs from Go sources held in memory and reads the flows they are annotated
// with, for the tests of the SSA analyses.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/awslabs/argot-ifds/internal/funcutil"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PackagePath is the path of the packages built by BuildProgram
const PackagePath = "example.com/test"

// Match annotations of the form "@Source(id1, id2, id3)"
var SourceRegex = regexp.MustCompile(`//.*@Source\(((?:\s*\w\s*,?)+)\)`)
var SinkRegex = regexp.MustCompile(`//.*@Sink\(((?:\s*\w\s*,?)+)\)`)

// LPos is a position without column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// RemoveColumn drops the column of pos and the directories of its filename
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: filepath.Base(pos.Filename)}
}

// Program is an SSA program built from in-memory sources
type Program struct {
	Fset    *token.FileSet
	Files   []*ast.File
	Package *ssa.Package
}

// BuildProgram parses the sources (file name -> source) as one package and builds its SSA. The test fails if the
// sources do not type check.
func BuildProgram(t testing.TB, sources map[string]string) *Program {
	t.Helper()
	fset := token.NewFileSet()
	names := make(map[string]bool, len(sources))
	for name := range sources {
		names[name] = true
	}
	var files []*ast.File
	for _, name := range funcutil.SetToOrderedSlice(names) {
		f, err := parser.ParseFile(fset, name, sources[name], parser.ParseComments)
		if err != nil {
			t.Fatalf("could not parse %s: %v", name, err)
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		t.Fatalf("no sources")
	}
	pkg := types.NewPackage(PackagePath, files[0].Name.Name)
	conf := &types.Config{Importer: importer.Default()}
	ssaPkg, _, err := ssautil.BuildPackage(conf, fset, pkg, files, ssa.BuilderMode(0))
	if err != nil {
		t.Fatalf("could not build ssa: %v", err)
	}
	return &Program{Fset: fset, Files: files, Package: ssaPkg}
}

// Prog returns the SSA program
func (p *Program) Prog() *ssa.Program {
	return p.Package.Prog
}

// Func returns the package level function name. The test fails if there is none.
func (p *Program) Func(t testing.TB, name string) *ssa.Function {
	t.Helper()
	f := p.Package.Func(name)
	if f == nil {
		t.Fatalf("no function %s", name)
	}
	return f
}

// ExpectedFlows reads the comments @Source(id) and @Sink(id) of the files to construct the expected flows from
// sources to sinks, in the form of a map from sink positions to all the source positions that reach that sink.
func (p *Program) ExpectedFlows() map[LPos]map[LPos]bool {
	sourceIds := map[string]LPos{}
	p.mapComments(SourceRegex, func(ident string, pos LPos) {
		sourceIds[ident] = pos
	})

	source2sink := map[LPos]map[LPos]bool{}
	p.mapComments(SinkRegex, func(ident string, sinkPos LPos) {
		sourcePos, ok := sourceIds[ident]
		if !ok {
			return
		}
		if _, ok := source2sink[sinkPos]; !ok {
			source2sink[sinkPos] = make(map[LPos]bool)
		}
		source2sink[sinkPos][sourcePos] = true
	})
	return source2sink
}

func (p *Program) mapComments(r *regexp.Regexp, f func(ident string, pos LPos)) {
	for _, file := range p.Files {
		for _, c := range file.Comments {
			for _, c1 := range c.List {
				a := r.FindStringSubmatch(c1.Text)
				if len(a) <= 1 {
					continue
				}
				pos := RemoveColumn(p.Fset.Position(c1.Pos()))
				for _, ident := range strings.Split(a[1], ",") {
					f(strings.TrimSpace(ident), pos)
				}
			}
		}
	}
}
