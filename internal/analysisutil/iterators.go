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
	"github.com/awslabs/argot-ifds/internal/funcutil"
	"golang.org/x/tools/go/packages"
)

// VisitPackages calls f on the roots and then, breadth first, on the imports of every package for which f returns
// true. Each package is visited once. The visited packages are returned in visit order.
func VisitPackages(roots []*packages.Package, f func(p *packages.Package) bool) []*packages.Package {
	seen := map[*packages.Package]bool{}
	var visited []*packages.Package
	queue := append([]*packages.Package{}, roots...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || seen[cur] {
			continue
		}
		seen[cur] = true
		visited = append(visited, cur)
		if f(cur) {
			for _, path := range sortedImports(cur) {
				queue = append(queue, cur.Imports[path])
			}
		}
	}
	return visited
}

func sortedImports(p *packages.Package) []string {
	paths := make(map[string]bool, len(p.Imports))
	for path := range p.Imports {
		paths[path] = true
	}
	return funcutil.SetToOrderedSlice(paths)
}
