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
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// MakeAbsolute converts the paths in excludeRelative to absolute paths, resolving relative ones against base.
// Paths that are already absolute are returned unchanged, and a trailing slash is preserved.
func MakeAbsolute(base string, excludeRelative []string) []string {
	result := make([]string, 0, len(excludeRelative))
	for _, s := range excludeRelative {
		abs := s
		if !filepath.IsAbs(s) {
			abs = filepath.Join(base, s)
			if strings.HasSuffix(s, "/") {
				abs += "/"
			}
		}
		result = append(result, abs)
	}
	return result
}

func isExcludedOne(filename string, exclude string) bool {
	switch {
	case strings.HasSuffix(exclude, ".go"):
		return filename == exclude
	case strings.HasSuffix(exclude, "/"):
		return strings.HasPrefix(filename, exclude)
	default:
		return strings.HasPrefix(filename, exclude+"/")
	}
}

// IsExcluded returns true when the file declaring f matches one of the exclude paths. A path ending in .go must
// match the file exactly, any other path excludes the files in that directory and below.
func IsExcluded(program *ssa.Program, f *ssa.Function, exclude []string) bool {
	if len(exclude) == 0 {
		return false
	}
	filename := program.Fset.Position(f.Pos()).Filename
	if filename == "" {
		return false
	}
	for _, e := range exclude {
		if isExcludedOne(filename, e) {
			return true
		}
	}
	return false
}
