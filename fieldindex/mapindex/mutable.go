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

package mapindex

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// Mutable is the in-memory inverted-index backend (spec §4.3: "an
// inverted map value -> sorted point ids, plus a forward point_id ->
// values map for removal and equality"). Postings are roaring bitmaps
// rather than storage/ordermap sets: set algebra (any-of's union,
// except's complement) is the dominant access pattern here, unlike the
// range scans numeric needs.
type Mutable struct {
	field    string
	domain   Domain
	postings map[string]*roaring.Bitmap
	forward  map[common.PointID][]string
	allIDs   *roaring.Bitmap
}

func NewMutable(field string, domain Domain) *Mutable {
	return &Mutable{
		field:    field,
		domain:   domain,
		postings: make(map[string]*roaring.Bitmap),
		forward:  make(map[common.PointID][]string),
		allIDs:   roaring.New(),
	}
}

func (m *Mutable) CountIndexedPoints() uint64 { return uint64(len(m.forward)) }

func (m *Mutable) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if err := m.RemovePoint(id); err != nil {
		return err
	}
	keys := m.domain.projectValues(values)
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		b, ok := m.postings[k]
		if !ok {
			b = roaring.New()
			m.postings[k] = b
		}
		b.Add(uint32(id))
		hw.AddComparisons(1)
	}
	m.forward[id] = keys
	m.allIDs.Add(uint32(id))
	return nil
}

func (m *Mutable) RemovePoint(id common.PointID) error {
	keys, ok := m.forward[id]
	if !ok {
		return nil
	}
	for _, k := range keys {
		if b, ok := m.postings[k]; ok {
			b.Remove(uint32(id))
			if b.IsEmpty() {
				delete(m.postings, k)
			}
		}
	}
	delete(m.forward, id)
	m.allIDs.Remove(uint32(id))
	return nil
}

// matchingBitmap resolves cond to the roaring bitmap of matching ids,
// or (nil, false) when cond's shape is not one of Value/AnyOf/Except.
func (m *Mutable) matchingBitmap(cond query.Condition, hw *hwcounter.Counter) (*roaring.Bitmap, bool) {
	switch cond.Shape() {
	case query.ShapeMatchValue:
		key, ok := m.domain.getValue(*cond.Match.Value)
		if !ok {
			return roaring.New(), true
		}
		hw.AddComparisons(1)
		if b, ok := m.postings[key]; ok {
			return b.Clone(), true
		}
		return roaring.New(), true
	case query.ShapeMatchAnyOf:
		out := roaring.New()
		for _, v := range cond.Match.AnyOf {
			key, ok := m.domain.getValue(v)
			if !ok {
				continue
			}
			hw.AddComparisons(1)
			if b, ok := m.postings[key]; ok {
				out.Or(b)
			}
		}
		return out, true
	case query.ShapeMatchExcept:
		excluded := roaring.New()
		for _, v := range cond.Match.Except {
			key, ok := m.domain.getValue(v)
			if !ok {
				continue
			}
			hw.AddComparisons(1)
			if b, ok := m.postings[key]; ok {
				excluded.Or(b)
			}
		}
		out := m.allIDs.Clone()
		out.AndNot(excluded)
		return out, true
	default:
		return nil, false
	}
}

func (m *Mutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	b, ok := m.matchingBitmap(cond, hw)
	if !ok {
		return nil, false
	}
	return func(yield func(common.PointID) bool) {
		it := b.Iterator()
		for it.HasNext() {
			hw.AddPostingBytes(4)
			if !yield(it.Next()) {
				return
			}
		}
	}, true
}

// EstimateCardinality returns the exact cardinality of the resolved
// bitmap (spec §4.3 calls for an inclusion-exclusion estimate under a
// uniform-independence assumption; roaring set algebra makes the exact
// union/complement cheap enough that no approximation is needed here).
func (m *Mutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	hw := hwcounter.New()
	b, ok := m.matchingBitmap(cond, hw)
	if !ok {
		return query.Estimate{}, false
	}
	return query.Exact(b.GetCardinality()), true
}

// PayloadBlocks enumerates one block per distinct value with at least
// threshold points (spec §4.1 "map: one block per distinct value").
func (m *Mutable) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		if threshold <= 0 {
			return
		}
		for k, b := range m.postings {
			n := b.GetCardinality()
			if n < uint64(threshold) {
				continue
			}
			val := m.domain.decode(k)
			blk := query.Block{
				Condition:   query.Condition{Field: key, Match: &query.Match{Value: &val}},
				Cardinality: query.Exact(n),
			}
			if !yield(blk) {
				return
			}
		}
	}
}

func (m *Mutable) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false
}

func (m *Mutable) Load() (bool, error)      { return true, nil }
func (m *Mutable) Flusher() func() error    { return func() error { return nil } }
func (m *Mutable) Files() []string          { return nil }
func (m *Mutable) ImmutableFiles() []string { return nil }
func (m *Mutable) Cleanup() error           { return nil }
func (m *Mutable) Populate() error          { return nil }
func (m *Mutable) ClearCache() error        { return nil }
func (m *Mutable) IsOnDisk() bool           { return false }

func (m *Mutable) GetTelemetryData() query.Telemetry {
	var valuesCount uint64
	for _, b := range m.postings {
		valuesCount += b.GetCardinality()
	}
	return query.Telemetry{
		FieldName:         m.field,
		PointsCount:       m.CountIndexedPoints(),
		PointsValuesCount: valuesCount,
	}
}

func (m *Mutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: m.domain.Variant(), Mutability: common.Mutable, Storage: common.StorageInMemory}
}
