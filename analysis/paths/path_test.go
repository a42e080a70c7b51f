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

package paths

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type path = AccessPath[string, string]

func TestFromOtherBound(t *testing.T) {
	base := New[string, string]("x", "a", "b")
	extra := []string{"c", "d", "e", "f", "g", "h", "i", "j"}
	for k := -2; k <= MaxLength+3; k++ {
		p := FromOther(base, extra, k)
		if p.Len() > k && p.Len() > 0 {
			t.Errorf("FromOther(%v, %v, %d) has %d fields", base, extra, k, p.Len())
		}
		if p.Len() > MaxLength {
			t.Errorf("path %v is longer than %d", p, MaxLength)
		}
		if p.IsOnHeap() != (p.Len() > 0) {
			t.Errorf("IsOnHeap of %v should be %v", p, p.Len() > 0)
		}
		if p.Root() != "x" {
			t.Errorf("FromOther should keep the root, got %v", p.Root())
		}
	}
}

func TestFromOtherKeepsFirstFields(t *testing.T) {
	p := FromOther(New[string, string]("x", "a"), []string{"b", "c"}, 2)
	if diff := cmp.Diff([]string{"a", "b"}, p.Fields()); diff != "" {
		t.Errorf("unexpected fields (-want +got):\n%s", diff)
	}
	if p != New[string, string]("x", "a", "b") {
		t.Errorf("truncated path should equal the path built directly, got %v", p)
	}
}

func TestNewTruncates(t *testing.T) {
	fields := make([]int, MaxLength+4)
	p := New[string, int]("r", fields...)
	if p.Len() != MaxLength {
		t.Errorf("expected %d fields, got %d", MaxLength, p.Len())
	}
}

func TestIsOnHeap(t *testing.T) {
	if New[string, string]("x").IsOnHeap() {
		t.Errorf("a local is not on the heap")
	}
	if !New[string, string]("x", "f").IsOnHeap() {
		t.Errorf("x.f is on the heap")
	}
	if FromOther(New[string, string]("x", "f"), nil, 0).IsOnHeap() {
		t.Errorf("x.f limited to 0 fields is x")
	}
}

func TestStartsWithAndMinus(t *testing.T) {
	x := New[string, string]("x")
	xf := New[string, string]("x", "f")
	xfg := New[string, string]("x", "f", "g")
	xg := New[string, string]("x", "g")
	y := New[string, string]("y")

	cases := []struct {
		p, other path
		starts   bool
		rest     []string
	}{
		{xfg, x, true, []string{"f", "g"}},
		{xfg, xf, true, []string{"g"}},
		{xfg, xfg, true, []string{}},
		{xf, xfg, false, nil},
		{xfg, xg, false, nil},
		{xf, y, false, nil},
	}
	for _, c := range cases {
		if got := c.p.StartsWith(c.other); got != c.starts {
			t.Errorf("%v.StartsWith(%v) = %v", c.p, c.other, got)
		}
		rest, ok := c.p.Minus(c.other)
		if ok != c.starts {
			t.Errorf("%v.Minus(%v) ok = %v", c.p, c.other, ok)
		}
		if diff := cmp.Diff(c.rest, rest); diff != "" {
			t.Errorf("%v.Minus(%v) (-want +got):\n%s", c.p, c.other, diff)
		}
	}
}

func TestRebase(t *testing.T) {
	p, ok := New[string, string]("x", "f", "g").Rebase(New[string, string]("x", "f"), New[string, string]("y"), 5)
	if !ok || p != New[string, string]("y", "g") {
		t.Errorf("expected y.g, got %v (%v)", p, ok)
	}
	if _, ok := New[string, string]("x").Rebase(New[string, string]("y"), New[string, string]("z"), 5); ok {
		t.Errorf("x does not start with y")
	}
}

func TestPathsAsKeys(t *testing.T) {
	m := map[path]int{}
	m[New[string, string]("x", "f")]++
	m[FromOther(New[string, string]("x"), []string{"f"}, 3)]++
	m[FromOther(New[string, string]("x", "f", "g"), nil, 1)]++
	if len(m) != 1 || m[New[string, string]("x", "f")] != 3 {
		t.Errorf("structurally equal paths should be the same key: %v", m)
	}
	if New[string, string]("x", "f").String() != "x.f" {
		t.Errorf("unexpected String: %s", New[string, string]("x", "f"))
	}
}
