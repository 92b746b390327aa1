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
	"bytes"
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

const offsetRecordSize = 8 + 4 + 8 + 4 // valueOffset, valueLen, postingOffset, postingCount

// Immutable is the sealed mmap layout (spec §4.3 "Immutable mmap: keys.bin
// / postings.bin / offsets.bin — variant-specific"): values.bin holds the
// sorted distinct value bytes, offsets.bin a fixed-size record per value
// pointing into both values.bin and postings.bin, postings.bin the
// concatenated ascending point-id lists.
type Immutable struct {
	field   string
	domain  Domain
	dir     string
	values  *mmapfile.Sealed
	offsets *mmapfile.Sealed
	posting *mmapfile.Sealed

	valuesB  []byte
	offsetsB []byte
	postingB []byte
	nValues  int

	deleted   *roaring.Bitmap
	allIDs    *roaring.Bitmap
	liveCount uint64
}

func OpenImmutable(dir, field string, domain Domain) (*Immutable, error) {
	idx := &Immutable{field: field, domain: domain, dir: dir}
	if _, err := idx.Load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func valuesPath(dir string) string  { return filepath.Join(dir, "values.bin") }
func offsetsPath(dir string) string { return filepath.Join(dir, "offsets.bin") }
func postingPath(dir string) string { return filepath.Join(dir, "postings.bin") }
func deletedPath(dir string) string { return filepath.Join(dir, "deleted.bitmap") }

func (idx *Immutable) Load() (bool, error) {
	vs, vb, err := mmapfile.Open(valuesPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	os_, ob, err := mmapfile.Open(offsetsPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	ps, pb, err := mmapfile.Open(postingPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.values, idx.valuesB = vs, vb
	idx.offsets, idx.offsetsB = os_, ob
	idx.posting, idx.postingB = ps, pb
	idx.nValues = len(ob) / offsetRecordSize

	db, err := mmapfile.LoadBitmap(deletedPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.deleted = db

	idx.allIDs = roaring.New()
	for i := 0; i < idx.nValues; i++ {
		_, _, poff, pcount := idx.recordAt(i)
		idx.allIDs.AddMany(idx.idsAt(poff, pcount))
	}
	idx.allIDs.AndNot(idx.deleted)
	idx.liveCount = idx.allIDs.GetCardinality()
	return true, nil
}

func (idx *Immutable) recordAt(i int) (voff uint64, vlen uint32, poff uint64, pcount uint32) {
	off := i * offsetRecordSize
	r := idx.offsetsB[off : off+offsetRecordSize]
	voff = binary.LittleEndian.Uint64(r[0:8])
	vlen = binary.LittleEndian.Uint32(r[8:12])
	poff = binary.LittleEndian.Uint64(r[12:20])
	pcount = binary.LittleEndian.Uint32(r[20:24])
	return
}

func (idx *Immutable) valueAt(i int) []byte {
	voff, vlen, _, _ := idx.recordAt(i)
	return idx.valuesB[voff : voff+uint64(vlen)]
}

func (idx *Immutable) idsAt(poff uint64, pcount uint32) []uint32 {
	out := make([]uint32, pcount)
	for j := uint32(0); j < pcount; j++ {
		out[j] = binary.LittleEndian.Uint32(idx.postingB[poff+uint64(j)*4 : poff+uint64(j)*4+4])
	}
	return out
}

// find returns the record index whose value equals key, or (-1, false).
func (idx *Immutable) find(key string) (int, bool) {
	target := []byte(key)
	i := sort.Search(idx.nValues, func(i int) bool { return bytes.Compare(idx.valueAt(i), target) >= 0 })
	if i < idx.nValues && bytes.Equal(idx.valueAt(i), target) {
		return i, true
	}
	return -1, false
}

func (idx *Immutable) bitmapFor(i int) *roaring.Bitmap {
	_, _, poff, pcount := idx.recordAt(i)
	b := roaring.New()
	b.AddMany(idx.idsAt(poff, pcount))
	b.AndNot(idx.deleted)
	return b
}

func (idx *Immutable) matchingBitmap(cond query.Condition, hw *hwcounter.Counter) (*roaring.Bitmap, bool) {
	onDisk := idx.IsOnDisk()
	switch cond.Shape() {
	case query.ShapeMatchValue:
		key, ok := idx.domain.getValue(*cond.Match.Value)
		if !ok {
			return roaring.New(), true
		}
		hw.AddComparisons(1)
		if i, ok := idx.find(key); ok {
			_, _, _, pcount := idx.recordAt(i)
			hw.AddDiskBytes(uint64(pcount)*4, onDisk)
			return idx.bitmapFor(i), true
		}
		return roaring.New(), true
	case query.ShapeMatchAnyOf:
		out := roaring.New()
		for _, v := range cond.Match.AnyOf {
			key, ok := idx.domain.getValue(v)
			if !ok {
				continue
			}
			hw.AddComparisons(1)
			if i, ok := idx.find(key); ok {
				out.Or(idx.bitmapFor(i))
			}
		}
		return out, true
	case query.ShapeMatchExcept:
		excluded := roaring.New()
		for _, v := range cond.Match.Except {
			key, ok := idx.domain.getValue(v)
			if !ok {
				continue
			}
			hw.AddComparisons(1)
			if i, ok := idx.find(key); ok {
				excluded.Or(idx.bitmapFor(i))
			}
		}
		out := idx.allIDs.Clone()
		out.AndNot(excluded)
		return out, true
	default:
		return nil, false
	}
}

func (idx *Immutable) CountIndexedPoints() uint64 { return idx.liveCount }

func (idx *Immutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	b, ok := idx.matchingBitmap(cond, hw)
	if !ok {
		return nil, false
	}
	return func(yield func(common.PointID) bool) {
		it := b.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}, true
}

func (idx *Immutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	b, ok := idx.matchingBitmap(cond, hwcounter.New())
	if !ok {
		return query.Estimate{}, false
	}
	return query.Exact(b.GetCardinality()), true
}

func (idx *Immutable) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		if threshold <= 0 {
			return
		}
		for i := 0; i < idx.nValues; i++ {
			n := idx.bitmapFor(i).GetCardinality()
			if n < uint64(threshold) {
				continue
			}
			val := idx.domain.decode(string(idx.valueAt(i)))
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

func (idx *Immutable) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false
}

func (idx *Immutable) AddPoint(common.PointID, []common.RawValue, *hwcounter.Counter) error {
	return errs.PreconditionFailed(idx.field, "sealed immutable map index rejects mutation")
}

func (idx *Immutable) RemovePoint(id common.PointID) error {
	if idx.deleted.Contains(uint32(id)) {
		return nil
	}
	if !idx.allIDs.Contains(uint32(id)) {
		return nil
	}
	idx.deleted.Add(uint32(id))
	idx.allIDs.Remove(uint32(id))
	idx.liveCount--
	return nil
}

func (idx *Immutable) Flusher() func() error {
	return func() error {
		return mmapfile.WriteBitmap(deletedPath(idx.dir), idx.deleted)
	}
}

func (idx *Immutable) Files() []string {
	return []string{valuesPath(idx.dir), offsetsPath(idx.dir), postingPath(idx.dir), deletedPath(idx.dir)}
}
func (idx *Immutable) ImmutableFiles() []string {
	return []string{valuesPath(idx.dir), offsetsPath(idx.dir), postingPath(idx.dir)}
}

func (idx *Immutable) Cleanup() error {
	for _, s := range []*mmapfile.Sealed{idx.values, idx.offsets, idx.posting} {
		if s != nil {
			if err := s.Close(); err != nil {
				return errs.ServiceError(idx.field, err)
			}
		}
	}
	return mmapfile.RemoveAll(idx.dir)
}

func (idx *Immutable) Populate() error {
	for _, s := range []*mmapfile.Sealed{idx.values, idx.offsets, idx.posting} {
		if err := s.Populate(); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Immutable) ClearCache() error {
	for _, s := range []*mmapfile.Sealed{idx.values, idx.offsets, idx.posting} {
		if err := s.ClearCache(); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Immutable) IsOnDisk() bool { return true }

func (idx *Immutable) GetTelemetryData() query.Telemetry {
	var valuesCount uint64
	for i := 0; i < idx.nValues; i++ {
		_, _, _, pcount := idx.recordAt(i)
		valuesCount += uint64(pcount)
	}
	return query.Telemetry{
		FieldName:         idx.field,
		PointsCount:       idx.liveCount,
		PointsValuesCount: valuesCount,
		StorageBytes:      uint64(len(idx.valuesB) + len(idx.offsetsB) + len(idx.postingB)),
	}
}

func (idx *Immutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: idx.domain.Variant(), Mutability: common.Immutable, Storage: common.StorageMmap}
}
