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

// Package taint contains the heap-aware dataflow facts and the bidirectional solver that the taint-style analyses are
// built on.
package taint

import (
	"fmt"

	"github.com/awslabs/argot-ifds/analysis/paths"
)

// A Fact is either the zero fact, which always holds, or an access path that may hold a tainted value.
// A non-zero fact may carry an activation statement: the fact only starts to mean something once the analysis has
// gone through that statement, and before that it is only used to find the values it may alias.
//
// Facts are values: all the methods return modified copies.
type Fact[S comparable, V comparable, F comparable] struct {
	zero          bool
	path          paths.AccessPath[V, F]
	activation    S
	hasActivation bool
}

// Zero returns the zero fact
func Zero[S comparable, V comparable, F comparable]() Fact[S, V, F] {
	return Fact[S, V, F]{zero: true}
}

// FromPath returns the fact that p holds, without activation
func FromPath[S comparable, V comparable, F comparable](p paths.AccessPath[V, F]) Fact[S, V, F] {
	return Fact[S, V, F]{path: p}
}

// IsZero returns true if f is the zero fact
func (f Fact[S, V, F]) IsZero() bool {
	return f.zero
}

// Path returns the access path of the fact. The path of the zero fact is the zero path.
func (f Fact[S, V, F]) Path() paths.AccessPath[V, F] {
	return f.path
}

// IsOnHeap returns true if f is not the zero fact and its path goes through a field
func (f Fact[S, V, F]) IsOnHeap() bool {
	return !f.zero && f.path.IsOnHeap()
}

// Activation returns the activation statement of the fact, if any
func (f Fact[S, V, F]) Activation() (S, bool) {
	return f.activation, f.hasActivation
}

// WithActivation returns f with activation s. The zero fact has no activation.
func (f Fact[S, V, F]) WithActivation(s S) Fact[S, V, F] {
	if f.zero {
		return f
	}
	f.activation = s
	f.hasActivation = true
	return f
}

// Activated returns f without activation statement
func (f Fact[S, V, F]) Activated() Fact[S, V, F] {
	var none S
	f.activation = none
	f.hasActivation = false
	return f
}

// CheckActivation returns f activated if s is its activation statement, and f otherwise.
func (f Fact[S, V, F]) CheckActivation(s S) Fact[S, V, F] {
	if f.hasActivation && f.activation == s {
		return f.Activated()
	}
	return f
}

// MoveTo returns the fact for path p with the activation of f
func (f Fact[S, V, F]) MoveTo(p paths.AccessPath[V, F]) Fact[S, V, F] {
	f.zero = false
	f.path = p
	return f
}

func (f Fact[S, V, F]) String() string {
	if f.zero {
		return "ZERO"
	}
	if f.hasActivation {
		return fmt.Sprintf("%s@%v", f.path, f.activation)
	}
	return f.path.String()
}
