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

package numeric

import (
	"iter"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/ordermap"
)

// Mutable is the in-memory ordered-map backend (spec §4.2 "Mutable: an
// ordered map keyed by (key, point_id)"). Not safe for concurrent
// mutation; see spec §5.
type Mutable struct {
	field     string
	domain    Domain
	set       *ordermap.Set[kv]
	perPoint  map[common.PointID][]float64
	histogram *Histogram
	dirty     int // mutations since last histogram Rebuild
}

// NewMutable returns an empty mutable numeric index for field in domain.
func NewMutable(field string, domain Domain) *Mutable {
	return &Mutable{
		field:     field,
		domain:    domain,
		set:       ordermap.New(lessKV),
		perPoint:  make(map[common.PointID][]float64),
		histogram: NewHistogram(nil),
	}
}

func (m *Mutable) CountIndexedPoints() uint64 { return uint64(len(m.perPoint)) }

func (m *Mutable) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	// Pre-clear: idempotency guarantee for retried ingestion (spec §4.7).
	if err := m.RemovePoint(id); err != nil {
		return err
	}
	keys, err := m.domain.projectValues(m.field, values)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		m.set.Insert(kv{Key: k, ID: id})
		m.histogram.Insert(k)
		hw.AddComparisons(1)
	}
	m.perPoint[id] = keys
	m.dirty++
	if m.dirty > 4096 {
		m.rebuildHistogram()
	}
	return nil
}

func (m *Mutable) RemovePoint(id common.PointID) error {
	keys, ok := m.perPoint[id]
	if !ok {
		return nil // never indexed: no-op, not an error (spec §7, §9)
	}
	for _, k := range keys {
		m.set.Delete(kv{Key: k, ID: id})
		m.histogram.Remove(k)
	}
	delete(m.perPoint, id)
	m.dirty++
	return nil
}

func (m *Mutable) rebuildHistogram() {
	keys := make([]float64, 0, m.set.Len())
	m.set.Ascend(func(v kv) bool { keys = append(keys, v.Key); return true })
	m.histogram.Rebuild(keys)
	m.dirty = 0
}

// RangeAscending streams (key, id) in ascending key order within
// [lo, hi] (nil bound = unbounded), ties broken by ascending id (spec
// §4.2). It is the building block Filter wraps with exact bound checks.
func (m *Mutable) RangeAscending(lo, hi *float64) iter.Seq2[float64, common.PointID] {
	return func(yield func(float64, common.PointID) bool) {
		var start kv
		if lo != nil {
			start = kv{Key: *lo}
		} else {
			start = kv{Key: negInf}
		}
		m.set.AscendGreaterOrEqual(start, func(v kv) bool {
			if hi != nil && v.Key > *hi {
				return false
			}
			return yield(v.Key, v.ID)
		})
	}
}

// RangeDescending is the exact reverse of RangeAscending (spec §8).
func (m *Mutable) RangeDescending(lo, hi *float64) iter.Seq2[float64, common.PointID] {
	return func(yield func(float64, common.PointID) bool) {
		var start kv
		if hi != nil {
			start = kv{Key: *hi, ID: ^common.PointID(0)}
		} else {
			start = kv{Key: posInf}
		}
		m.set.DescendLessOrEqual(start, func(v kv) bool {
			if lo != nil && v.Key < *lo {
				return false
			}
			return yield(v.Key, v.ID)
		})
	}
}

const negInf = -1.0 / 0.0
const posInf = 1.0 / 0.0

func (m *Mutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	r, ok := effectiveRange(m.domain, m.field, cond)
	if !ok {
		return nil, false
	}
	lo, hi := floatBounds(r)
	return func(yield func(common.PointID) bool) {
		for k, id := range m.RangeAscending(lo, hi) {
			hw.AddComparisons(1)
			if !matches(k, r) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}, true
}

func (m *Mutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	r, ok := effectiveRange(m.domain, m.field, cond)
	if !ok {
		return query.Estimate{}, false
	}
	lo, hi := floatBounds(r)
	est := m.histogram.EstimateRange(lo, hi).Clamp(m.CountIndexedPoints())
	return est, true
}

// PayloadBlocks buckets the sorted key stream into threshold-sized
// equal-count ranges (spec §4.1 "numeric: equal-count buckets along the
// sorted key stream").
func (m *Mutable) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		if threshold <= 0 {
			return
		}
		keys := make([]float64, 0, m.set.Len())
		m.set.Ascend(func(v kv) bool { keys = append(keys, v.Key); return true })
		for i := 0; i < len(keys); {
			end := i + threshold
			if end > len(keys) {
				if len(keys)-i < threshold {
					break // final partial bucket below threshold: drop it
				}
				end = len(keys)
			}
			lo, hi := keys[i], keys[end-1]
			n := uint64(end - i)
			blk := query.Block{
				Condition:   query.Condition{Field: key, Range: &query.Range{Gte: &lo, Lte: &hi}},
				Cardinality: query.Exact(n),
			}
			if !yield(blk) {
				return
			}
			i = end
		}
	}
}

func (m *Mutable) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false // no extra information beyond raw values
}

func (m *Mutable) Load() (bool, error)        { return true, nil }
func (m *Mutable) Flusher() func() error      { return func() error { return nil } }
func (m *Mutable) Files() []string            { return nil }
func (m *Mutable) ImmutableFiles() []string   { return nil }
func (m *Mutable) Cleanup() error             { return nil }
func (m *Mutable) Populate() error            { return nil }
func (m *Mutable) ClearCache() error          { return nil }
func (m *Mutable) IsOnDisk() bool             { return false }

func (m *Mutable) GetTelemetryData() query.Telemetry {
	return query.Telemetry{
		FieldName:         m.field,
		PointsCount:       m.CountIndexedPoints(),
		PointsValuesCount: uint64(m.set.Len()),
		HistogramBuckets:  len(m.histogram.counts),
		HistogramStale:    m.histogram.Stale(),
	}
}

func (m *Mutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: m.domain.Variant(), Mutability: common.Mutable, Storage: common.StorageInMemory}
}
