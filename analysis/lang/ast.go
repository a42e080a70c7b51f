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

// Package lang contains helpers for the Go syntax trees and the SSA representation the analyses run on.
package lang

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
)

// AstPackages returns all the AST packages in dir and its subdirectories (map of package name -> package) with
// comments parsed. When two directories declare packages with the same name, the first one walked is kept.
func AstPackages(dir string, fset *token.FileSet) (map[string]*ast.Package, error) {
	astPkgs := make(map[string]*ast.Package)
	if err := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			parsedDir, err := parser.ParseDir(fset, path, nil, parser.ParseComments)
			if err != nil {
				return fmt.Errorf("failed to parse dir %s: %w", path, err)
			}
			for name, pkg := range parsedDir {
				if _, ok := astPkgs[name]; !ok {
					astPkgs[name] = pkg
				}
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to walk dir %s: %w", dir, err)
	}

	return astPkgs, nil
}

// MapComments applies fmap to each comment in packages.
func MapComments(packages map[string]*ast.Package, fmap func(*ast.Comment)) {
	for _, pkg := range packages {
		for _, f := range pkg.Files {
			MapFileComments(f, fmap)
		}
	}
}

// MapFileComments applies fmap to each comment in f.
func MapFileComments(f *ast.File, fmap func(*ast.Comment)) {
	for _, c := range f.Comments {
		for _, c1 := range c.List {
			fmap(c1)
		}
	}
}
