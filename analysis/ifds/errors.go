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
	"errors"
	"fmt"
)

var (
	// ErrNoMatchingEdge is the cause of a LookupError raised when a stack trace cannot be reconstructed because no
	// edge leads to some vertex.
	ErrNoMatchingEdge = errors.New("no matching edge")

	// ErrTraceCycle is the cause of a LookupError raised when the reconstruction of a stack trace comes back to a
	// vertex it already visited. The first edges recorded by the solver never form such a cycle, so it only happens
	// on a malformed predecessor graph.
	ErrTraceCycle = errors.New("stack trace reconstruction cycles")
)

// A LookupError is the value of the panics of [Result.ResolvePossibleStackTrace]. It signals an inconsistency in the
// bookkeeping of the edges, never a problem of the analyzed program.
type LookupError struct {
	// Vertex is the vertex for which no edge could be found
	Vertex any
	// Kind is the kind of edge that was looked up
	Kind string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("looking up %s to %v: %v", e.Kind, e.Vertex, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
