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

// Package paths implements access paths: a root value followed by a bounded chain of field selectors.
//
// Access paths are values. Two access paths are equal (with ==) when their roots are equal and their field selectors
// are equal, in order, which lets analyses use them directly in dataflow facts and as map keys.
package paths

import (
	"fmt"
	"strings"
)

// MaxLength is the maximum number of field selectors an access path can hold. Constructors truncate longer chains.
const MaxLength = 8

// AccessPath is a root value of type V with a chain of at most MaxLength field selectors of type F.
// The zero value is the path with the zero root and no fields.
type AccessPath[V comparable, F comparable] struct {
	root V
	// only fields[:n] are meaningful, the rest is always the zero F so that == is structural
	fields [MaxLength]F
	n      int
}

// New returns the access path root.fields[0]...fields[k-1], where k is at most MaxLength.
func New[V comparable, F comparable](root V, fields ...F) AccessPath[V, F] {
	p := AccessPath[V, F]{root: root}
	p.n = copy(p.fields[:], fields)
	return p
}

// FromOther returns the path p with the extra fields appended, truncated to its first k fields.
// k is clamped to [0, MaxLength].
func FromOther[V comparable, F comparable](p AccessPath[V, F], extra []F, k int) AccessPath[V, F] {
	res := p
	res.n += copy(res.fields[res.n:], extra)
	return res.Limit(k)
}

// Limit returns p truncated to its first k fields. k is clamped to [0, MaxLength].
func (p AccessPath[V, F]) Limit(k int) AccessPath[V, F] {
	k = max(0, min(k, MaxLength))
	if p.n <= k {
		return p
	}
	var zero F
	for i := k; i < p.n; i++ {
		p.fields[i] = zero
	}
	p.n = k
	return p
}

// Root returns the root value of the path.
func (p AccessPath[V, F]) Root() V {
	return p.root
}

// Fields returns a copy of the field selectors of the path.
func (p AccessPath[V, F]) Fields() []F {
	res := make([]F, p.n)
	copy(res, p.fields[:p.n])
	return res
}

// Len returns the number of field selectors.
func (p AccessPath[V, F]) Len() int {
	return p.n
}

// IsOnHeap returns true when the path goes through at least one field.
func (p AccessPath[V, F]) IsOnHeap() bool {
	return p.n > 0
}

// StartsWith returns true when other is a prefix of p: same root, and the fields of other are the first fields of p.
func (p AccessPath[V, F]) StartsWith(other AccessPath[V, F]) bool {
	if p.root != other.root || p.n < other.n {
		return false
	}
	for i := 0; i < other.n; i++ {
		if p.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// Minus returns the fields of p that follow the prefix other. The boolean is false when p does not start with other.
func (p AccessPath[V, F]) Minus(other AccessPath[V, F]) ([]F, bool) {
	if !p.StartsWith(other) {
		return nil, false
	}
	res := make([]F, p.n-other.n)
	copy(res, p.fields[other.n:p.n])
	return res, true
}

// Rebase replaces the prefix from of p by to. The boolean is false when p does not start with from.
// The result is truncated to k fields.
func (p AccessPath[V, F]) Rebase(from, to AccessPath[V, F], k int) (AccessPath[V, F], bool) {
	diff, ok := p.Minus(from)
	if !ok {
		return p, false
	}
	return FromOther(to, diff, k), true
}

func (p AccessPath[V, F]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v", p.root)
	for _, f := range p.fields[:p.n] {
		fmt.Fprintf(&b, ".%v", f)
	}
	return b.String()
}
