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

// Package ordered implements maps and sets that iterate in insertion order. The analyses use them wherever the
// iteration order leaks into results, so that two runs on the same input produce the same output.
package ordered

// Map is a map that remembers the order in which keys were first inserted.
type Map[K comparable, V any] struct {
	inner map[K]V
	keys  []K
}

// NewMap returns an empty ordered map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored for key, and whether the key is present.
func (m *Map[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Value returns the value stored for key, or the zero value.
func (m *Map[K, V]) Value(key K) V {
	return m.inner[key]
}

// Store sets the value of key. Storing an existing key does not change its position.
func (m *Map[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = value
}

// LoadOrStore returns the value stored for key if present. Otherwise, it stores and returns mk().
func (m *Map[K, V]) LoadOrStore(key K, mk func() V) V {
	if v, ok := m.inner[key]; ok {
		return v
	}
	v := mk()
	m.Store(key, v)
	return v
}

// Len returns the number of keys.
func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice must not be modified.
func (m *Map[K, V]) Keys() []K {
	return m.keys
}

// OrderedRange calls f on each key-value pair in insertion order, until f returns false.
func (m *Map[K, V]) OrderedRange(f func(key K, value V) bool) {
	for _, k := range m.keys {
		if !f(k, m.inner[k]) {
			return
		}
	}
}

// Set is a set that remembers the order in which elements were first added.
type Set[T comparable] struct {
	index map[T]int
	elems []T
}

// NewSet returns an empty ordered set.
func NewSet[T comparable]() *Set[T] {
	return &Set[T]{index: make(map[T]int)}
}

// Add inserts x and returns true if x was not already in the set.
func (s *Set[T]) Add(x T) bool {
	if _, ok := s.index[x]; ok {
		return false
	}
	s.index[x] = len(s.elems)
	s.elems = append(s.elems, x)
	return true
}

// Contains returns true if x is in the set. A nil set is empty.
func (s *Set[T]) Contains(x T) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[x]
	return ok
}

// Len returns the number of elements. A nil set is empty.
func (s *Set[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.elems)
}

// At returns the i-th inserted element.
func (s *Set[T]) At(i int) T {
	return s.elems[i]
}

// Items returns a copy of the elements in insertion order. A nil set yields nil.
func (s *Set[T]) Items() []T {
	if s == nil {
		return nil
	}
	res := make([]T, len(s.elems))
	copy(res, s.elems)
	return res
}
