// Copyright 2024 The Erigon Payload Index Authors
// This file is part of erigon-payload-index.
//
// erigon-payload-index is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// erigon-payload-index is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with erigon-payload-index. If not, see <http://www.gnu.org/licenses/>.

// Package ordermap is the shared mutable in-memory ordered-map backend
// (spec §4.2 "Mutable: an ordered map keyed by (key, point_id)"). The
// numeric index's mutable layout is an ordered set over that composite
// key and is the user of this B-tree wrapper; the map index's mutable
// layout keeps roaring bitmaps instead.
package ordermap

import "github.com/google/btree"

const degree = 32

// Set is an ordered set of T with caller-supplied ordering, backed by an
// in-memory B-tree (google/btree, already in the teacher's dependency
// graph). It is not safe for concurrent use; the engine above serializes
// writes per spec §5.
type Set[T any] struct {
	tree *btree.BTreeG[T]
	less func(a, b T) bool
}

// New returns an empty ordered set using less for ordering.
func New[T any](less func(a, b T) bool) *Set[T] {
	return &Set[T]{tree: btree.NewG(degree, less), less: less}
}

func (s *Set[T]) Insert(v T)        { s.tree.ReplaceOrInsert(v) }
func (s *Set[T]) Delete(v T) bool   { _, ok := s.tree.Delete(v); return ok }
func (s *Set[T]) Len() int          { return s.tree.Len() }
func (s *Set[T]) Has(v T) bool      { _, ok := s.tree.Get(v); return ok }

// Ascend iterates in ascending order starting from the minimum,
// stopping when yield returns false.
func (s *Set[T]) Ascend(yield func(T) bool) {
	s.tree.Ascend(func(v T) bool { return yield(v) })
}

// AscendRange iterates [lo, hi) in ascending order.
func (s *Set[T]) AscendRange(lo, hi T, yield func(T) bool) {
	s.tree.AscendRange(lo, hi, func(v T) bool { return yield(v) })
}

// AscendGreaterOrEqual iterates [lo, +inf) in ascending order.
func (s *Set[T]) AscendGreaterOrEqual(lo T, yield func(T) bool) {
	s.tree.AscendGreaterOrEqual(lo, func(v T) bool { return yield(v) })
}

// Descend iterates in descending order starting from the maximum.
func (s *Set[T]) Descend(yield func(T) bool) {
	s.tree.Descend(func(v T) bool { return yield(v) })
}

// DescendRange iterates from hi down to lo in descending order, hi
// included and lo excluded — btree's DescendRange is inclusive of the
// greater bound and exclusive of the lesser one.
func (s *Set[T]) DescendRange(hi, lo T, yield func(T) bool) {
	s.tree.DescendRange(hi, lo, func(v T) bool { return yield(v) })
}

// DescendLessOrEqual iterates (-inf, hi] in descending order.
func (s *Set[T]) DescendLessOrEqual(hi T, yield func(T) bool) {
	s.tree.DescendLessOrEqual(hi, func(v T) bool { return yield(v) })
}

func (s *Set[T]) Min() (T, bool) { return s.tree.Min() }
func (s *Set[T]) Max() (T, bool) { return s.tree.Max() }

// Clone returns a cheap copy-on-write snapshot, used when a reader needs
// a consistent view across concurrent mutation of other keys (spec §5).
func (s *Set[T]) Clone() *Set[T] {
	return &Set[T]{tree: s.tree.Clone(), less: s.less}
}
