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

// Package boolindex implements the bool field index (spec §4.6): two
// bitmaps, has-true and has-false — a point may appear in both when the
// field is multivalued.
//
// Grounded on original_source/field_index_base.rs's BoolIndex
// description and the map index's roaring-bitmap posting idiom.
package boolindex

import (
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

// Index is the single physical layout for bool: two roaring bitmaps.
// Unlike numeric/map/geo there is no separate mutable/immutable split
// in memory layout, only in whether the bitmaps are persisted — two
// bitmaps this small gain nothing from the mmap sealed-file machinery,
// so both instances serialize via storage/mmapfile's plain
// LoadBitmap/WriteBitmap helpers rather than WriteSealed/Open.
type Index struct {
	field    string
	dir      string // empty for the in-memory (mutable) instance
	hasTrue  *roaring.Bitmap
	hasFalse *roaring.Bitmap
	onDisk   bool
}

// NewMutable returns an empty in-memory bool index for field.
func NewMutable(field string) *Index {
	return &Index{
		field:    field,
		hasTrue:  roaring.New(),
		hasFalse: roaring.New(),
	}
}

func truePath(dir string) string  { return filepath.Join(dir, "has_true.bitmap") }
func falsePath(dir string) string { return filepath.Join(dir, "has_false.bitmap") }

// OpenImmutable loads a previously-sealed bool index directory.
func OpenImmutable(dir, field string) (*Index, error) {
	idx := &Index{field: field, dir: dir, onDisk: true}
	if _, err := idx.Load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) Load() (bool, error) {
	if idx.dir == "" {
		return true, nil
	}
	t, err := mmapfile.LoadBitmap(truePath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	f, err := mmapfile.LoadBitmap(falsePath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.hasTrue, idx.hasFalse = t, f
	return true, nil
}

func (idx *Index) CountIndexedPoints() uint64 {
	all := idx.hasTrue.Clone()
	all.Or(idx.hasFalse)
	return all.GetCardinality()
}

func (idx *Index) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if err := idx.RemovePoint(id); err != nil {
		return err
	}
	flat := common.FlattenOneLevel(values)
	for _, v := range flat {
		b, ok := common.AsBool(v)
		if !ok {
			continue
		}
		hw.AddComparisons(1)
		if b {
			idx.hasTrue.Add(uint32(id))
		} else {
			idx.hasFalse.Add(uint32(id))
		}
	}
	return nil
}

func (idx *Index) RemovePoint(id common.PointID) error {
	idx.hasTrue.Remove(uint32(id))
	idx.hasFalse.Remove(uint32(id))
	return nil
}

func (idx *Index) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	if cond.Match == nil || cond.Match.Value == nil {
		return nil, false
	}
	b, ok := common.AsBool(*cond.Match.Value)
	if !ok {
		return nil, false
	}
	hw.AddComparisons(1)
	src := idx.hasFalse
	if b {
		src = idx.hasTrue
	}
	return func(yield func(common.PointID) bool) {
		it := src.Iterator()
		for it.HasNext() {
			hw.AddPostingBytes(4)
			if !yield(it.Next()) {
				return
			}
		}
	}, true
}

func (idx *Index) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	if cond.Match == nil || cond.Match.Value == nil {
		return query.Estimate{}, false
	}
	b, ok := common.AsBool(*cond.Match.Value)
	if !ok {
		return query.Estimate{}, false
	}
	src := idx.hasFalse
	if b {
		src = idx.hasTrue
	}
	return query.Exact(src.GetCardinality()), true
}

// PayloadBlocks emits the natural 2 blocks (spec §4.1 "bool/null: the
// natural 2-3 blocks").
func (idx *Index) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		for _, arm := range []struct {
			val bool
			bm  *roaring.Bitmap
		}{{true, idx.hasTrue}, {false, idx.hasFalse}} {
			n := arm.bm.GetCardinality()
			if threshold > 0 && n < uint64(threshold) {
				continue
			}
			v := common.RawValue(arm.val)
			blk := query.Block{
				Condition:   query.Condition{Field: key, Match: &query.Match{Value: &v}},
				Cardinality: query.Exact(n),
			}
			if !yield(blk) {
				return
			}
		}
	}
}

func (idx *Index) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false
}

func (idx *Index) Flusher() func() error {
	if idx.dir == "" {
		return func() error { return nil }
	}
	return func() error {
		if err := mmapfile.WriteBitmap(truePath(idx.dir), idx.hasTrue); err != nil {
			return err
		}
		return mmapfile.WriteBitmap(falsePath(idx.dir), idx.hasFalse)
	}
}

func (idx *Index) Files() []string {
	if idx.dir == "" {
		return nil
	}
	return []string{truePath(idx.dir), falsePath(idx.dir)}
}
func (idx *Index) ImmutableFiles() []string { return idx.Files() }
func (idx *Index) Cleanup() error {
	if idx.dir == "" {
		return nil
	}
	return mmapfile.RemoveAll(idx.dir)
}
func (idx *Index) Populate() error   { return nil }
func (idx *Index) ClearCache() error { return nil }
func (idx *Index) IsOnDisk() bool    { return idx.onDisk }

func (idx *Index) GetTelemetryData() query.Telemetry {
	return query.Telemetry{FieldName: idx.field, PointsCount: idx.CountIndexedPoints()}
}

func (idx *Index) GetFullIndexType() common.FullIndexType {
	storage := common.StorageInMemory
	mut := common.Mutable
	if idx.onDisk {
		storage = common.StorageMmap
		mut = common.Immutable
	}
	return common.FullIndexType{Kind: common.VariantBool, Mutability: mut, Storage: storage}
}
