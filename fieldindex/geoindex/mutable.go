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

package geoindex

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// Mutable is the in-memory backend: a cell->posting map per geohash
// level plus a forward point_id->points map for exact verification and
// removal (spec §4.5).
type Mutable struct {
	field   string
	cells   [MaxLevel + 1]map[string]*roaring.Bitmap // indexed by level, 1-based
	forward map[common.PointID][]common.GeoPoint
}

func NewMutable(field string) *Mutable {
	m := &Mutable{field: field, forward: make(map[common.PointID][]common.GeoPoint)}
	for l := MinLevel; l <= MaxLevel; l++ {
		m.cells[l] = make(map[string]*roaring.Bitmap)
	}
	return m
}

func (m *Mutable) CountIndexedPoints() uint64 { return uint64(len(m.forward)) }

func (m *Mutable) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if err := m.RemovePoint(id); err != nil {
		return err
	}
	points := projectValues(values)
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		for l := MinLevel; l <= MaxLevel; l++ {
			cell := Encode(p, l)
			b, ok := m.cells[l][cell]
			if !ok {
				b = roaring.New()
				m.cells[l][cell] = b
			}
			b.Add(uint32(id))
		}
		hw.AddComparisons(1)
	}
	m.forward[id] = points
	return nil
}

func (m *Mutable) RemovePoint(id common.PointID) error {
	points, ok := m.forward[id]
	if !ok {
		return nil
	}
	for _, p := range points {
		for l := MinLevel; l <= MaxLevel; l++ {
			cell := Encode(p, l)
			if b, ok := m.cells[l][cell]; ok {
				b.Remove(uint32(id))
				if b.IsEmpty() {
					delete(m.cells[l], cell)
				}
			}
		}
	}
	delete(m.forward, id)
	return nil
}

// candidates returns the union of postings for the cells covering b at
// the adaptively chosen level.
func (m *Mutable) candidates(b bbox) *roaring.Bitmap {
	level := coveringLevel(b, defaultMaxCoveringCells)
	out := roaring.New()
	for _, cell := range coveringCells(b, level) {
		if bm, ok := m.cells[level][cell]; ok {
			out.Or(bm)
		}
	}
	return out
}

func (m *Mutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	b, verify, ok := resolveQuery(cond)
	if !ok {
		return nil, false
	}
	candidates := m.candidates(b)
	return func(yield func(common.PointID) bool) {
		it := candidates.Iterator()
		for it.HasNext() {
			id := it.Next()
			hw.AddComparisons(uint64(len(m.forward[id])))
			matched := false
			for _, p := range m.forward[id] {
				if verify(p) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}, true
}

// EstimateCardinality reports cell occupancy without verification (spec
// §4.5): the candidate count is reported as Max with Min=0, since
// verification may reject some candidates but never admits points
// outside the covering cells.
func (m *Mutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	b, _, ok := resolveQuery(cond)
	if !ok {
		return query.Estimate{}, false
	}
	n := m.candidates(b).GetCardinality()
	return query.Estimate{Min: 0, Expected: n, Max: n}.Clamp(m.CountIndexedPoints()), true
}

// PayloadBlocks: geo does not emit blocks (spec §4.1).
func (m *Mutable) PayloadBlocks(int, string) query.BlockIter {
	return func(func(query.Block) bool) {}
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
	return query.Telemetry{FieldName: m.field, PointsCount: m.CountIndexedPoints()}
}

func (m *Mutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: common.VariantGeo, Mutability: common.Mutable, Storage: common.StorageInMemory}
}
