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

// Package nullindex implements the null/empty field index (spec §4.6):
// three bitmaps, all-points, has-any and is-empty-array, plus a per-point value count
// for values_count/values_is_empty (spec §9 Open Question, resolved in
// SPEC_FULL.md §D by keeping the two bitmaps independent rather than
// collapsing "field absent" and "field present as empty array" into one
// flag).
//
// Grounded on original_source/field_index_base.rs's values_count /
// values_is_empty dispatch and the boolindex package's unified
// mutable/immutable Index shape.
package nullindex

import (
	"encoding/binary"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

const countRecordSize = 8 // uint32 id, uint32 count

// Index is the single physical layout for null: three small bitmaps and a
// forward point->count map, all of which fit comfortably in memory even
// when persisted, so — like boolindex — there is one Index type rather
// than a separate mutable/immutable pair.
type Index struct {
	field string
	dir   string // empty for the in-memory (mutable) instance

	hasAny       *roaring.Bitmap
	isEmptyArray *roaring.Bitmap
	allPoints    *roaring.Bitmap
	counts       map[common.PointID]uint32

	onDisk bool
}

// NewMutable returns an empty in-memory null index for field.
func NewMutable(field string) *Index {
	return &Index{
		field:        field,
		hasAny:       roaring.New(),
		isEmptyArray: roaring.New(),
		allPoints:    roaring.New(),
		counts:       make(map[common.PointID]uint32),
	}
}

func hasAnyPath(dir string) string { return filepath.Join(dir, "has_any.bitmap") }
func isEmptyPath(dir string) string { return filepath.Join(dir, "is_empty.bitmap") }
func allPath(dir string) string     { return filepath.Join(dir, "all_points.bitmap") }
func countsPath(dir string) string  { return filepath.Join(dir, "counts.bin") }

// OpenImmutable loads a previously-sealed null index directory.
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
	hasAny, err := mmapfile.LoadBitmap(hasAnyPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	isEmpty, err := mmapfile.LoadBitmap(isEmptyPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	all, err := mmapfile.LoadBitmap(allPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	sealed, buf, err := mmapfile.Open(countsPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	defer sealed.Close()
	counts := make(map[common.PointID]uint32, len(buf)/countRecordSize)
	for off := 0; off+countRecordSize <= len(buf); off += countRecordSize {
		id := binary.LittleEndian.Uint32(buf[off : off+4])
		n := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		counts[id] = n
	}
	idx.hasAny, idx.isEmptyArray, idx.allPoints, idx.counts = hasAny, isEmpty, all, counts
	return true, nil
}

func (idx *Index) CountIndexedPoints() uint64 { return idx.hasAny.GetCardinality() }

// AddPoint records presence for id. A nil values slice means the field
// was entirely absent for this point; a non-nil empty slice means the
// field was present as an empty array (spec §9's distinction).
func (idx *Index) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if err := idx.RemovePoint(id); err != nil {
		return err
	}
	idx.allPoints.Add(uint32(id))
	hw.AddComparisons(1)
	if values == nil {
		return nil
	}
	if len(values) == 0 {
		idx.isEmptyArray.Add(uint32(id))
		return nil
	}
	idx.hasAny.Add(uint32(id))
	idx.counts[id] = uint32(len(values))
	return nil
}

func (idx *Index) RemovePoint(id common.PointID) error {
	idx.hasAny.Remove(uint32(id))
	idx.isEmptyArray.Remove(uint32(id))
	idx.allPoints.Remove(uint32(id))
	delete(idx.counts, id)
	return nil
}

// ValuesCount returns the total multiset size recorded for id, 0 if id
// was never indexed or the field was absent/empty for it.
func (idx *Index) ValuesCount(id common.PointID) int {
	return int(idx.counts[id])
}

// ValuesIsEmpty reports whether the field was present as an empty array
// for id (strictly — absent is not "empty", per spec §9).
func (idx *Index) ValuesIsEmpty(id common.PointID) bool {
	return idx.isEmptyArray.Contains(uint32(id))
}

func (idx *Index) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	var src *roaring.Bitmap
	switch cond.Shape() {
	case query.ShapeIsNull:
		src = idx.allPoints.Clone()
		src.AndNot(idx.hasAny)
		src.AndNot(idx.isEmptyArray)
	case query.ShapeIsEmpty:
		src = idx.allPoints.Clone()
		src.AndNot(idx.hasAny)
	default:
		return nil, false
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
	switch cond.Shape() {
	case query.ShapeIsNull:
		n := idx.allPoints.GetCardinality() - idx.hasAny.GetCardinality() - idx.isEmptyArray.GetCardinality()
		return query.Exact(n), true
	case query.ShapeIsEmpty:
		n := idx.allPoints.GetCardinality() - idx.hasAny.GetCardinality()
		return query.Exact(n), true
	}
	return query.Estimate{}, false
}

// PayloadBlocks emits the natural blocks for null (spec §4.1): is-null,
// is-empty, has-any.
func (idx *Index) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		isNull := idx.allPoints.Clone()
		isNull.AndNot(idx.hasAny)
		isNull.AndNot(idx.isEmptyArray)
		isEmpty := idx.allPoints.Clone()
		isEmpty.AndNot(idx.hasAny)
		for _, arm := range []struct {
			cond query.Condition
			bm   *roaring.Bitmap
		}{
			{query.Condition{Field: key, IsNull: true}, isNull},
			{query.Condition{Field: key, IsEmpty: true}, isEmpty},
			{query.Condition{Field: key, IsNull: false, IsEmpty: false}, idx.hasAny},
		} {
			n := arm.bm.GetCardinality()
			if threshold > 0 && n < uint64(threshold) {
				continue
			}
			if !yield(query.Block{Condition: arm.cond, Cardinality: query.Exact(n)}) {
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
		if err := mmapfile.WriteBitmap(hasAnyPath(idx.dir), idx.hasAny); err != nil {
			return err
		}
		if err := mmapfile.WriteBitmap(isEmptyPath(idx.dir), idx.isEmptyArray); err != nil {
			return err
		}
		if err := mmapfile.WriteBitmap(allPath(idx.dir), idx.allPoints); err != nil {
			return err
		}
		ids := make([]common.PointID, 0, len(idx.counts))
		for id := range idx.counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		buf := make([]byte, len(ids)*countRecordSize)
		for i, id := range ids {
			off := i * countRecordSize
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(id))
			binary.LittleEndian.PutUint32(buf[off+4:off+8], idx.counts[id])
		}
		return mmapfile.WriteSealed(idx.dir, "counts.bin", buf)
	}
}

func (idx *Index) Files() []string {
	if idx.dir == "" {
		return nil
	}
	return []string{hasAnyPath(idx.dir), isEmptyPath(idx.dir), allPath(idx.dir), countsPath(idx.dir)}
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
	return common.FullIndexType{Kind: common.VariantNull, Mutability: mut, Storage: storage}
}
