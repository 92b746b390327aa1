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
	"encoding/binary"
	"math"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

const forwardRecordSize = 4 + 8 + 8 // id uint32, lat float64, lon float64

// Immutable is the sealed mmap layout: forward.bin is a binary-
// searchable sorted-by-id array of (id, lat, lon) used for exact
// verification, and cells.bin holds the per-level cell->posting
// bitmaps (parsed into memory once at Load, the same tradeoff numeric's
// histogram makes — this metadata is small relative to point data).
type Immutable struct {
	field   string
	dir     string
	fwd     *mmapfile.Sealed
	fwdB    []byte
	nFwd    int
	cellsF  *mmapfile.Sealed
	cells   [MaxLevel + 1]map[string]*roaring.Bitmap
	deleted *roaring.Bitmap
	allIDs  *roaring.Bitmap
}

func OpenImmutable(dir, field string) (*Immutable, error) {
	idx := &Immutable{field: field, dir: dir}
	if _, err := idx.Load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func forwardPath(dir string) string { return filepath.Join(dir, "forward.bin") }
func cellsPath(dir string) string   { return filepath.Join(dir, "cells.bin") }
func deletedPath(dir string) string { return filepath.Join(dir, "deleted.bitmap") }

func (idx *Immutable) Load() (bool, error) {
	fwd, fwdB, err := mmapfile.Open(forwardPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.fwd, idx.fwdB = fwd, fwdB
	idx.nFwd = len(fwdB) / forwardRecordSize

	cellsF, cellsB, err := mmapfile.Open(cellsPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.cellsF = cellsF
	for l := MinLevel; l <= MaxLevel; l++ {
		idx.cells[l] = make(map[string]*roaring.Bitmap)
	}
	off := 0
	for off < len(cellsB) {
		level := int(cellsB[off])
		off++
		cellLen := int(cellsB[off])
		off++
		cell := string(cellsB[off : off+cellLen])
		off += cellLen
		bmLen := int(binary.LittleEndian.Uint32(cellsB[off : off+4]))
		off += 4
		b := roaring.New()
		if _, err := b.FromBuffer(cellsB[off : off+bmLen]); err != nil {
			return false, errs.ServiceError(idx.field, err)
		}
		off += bmLen
		idx.cells[level][cell] = b
	}

	db, err := mmapfile.LoadBitmap(deletedPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.deleted = db

	idx.allIDs = roaring.New()
	for i := 0; i < idx.nFwd; i++ {
		idx.allIDs.Add(idx.idAt(i))
	}
	idx.allIDs.AndNot(idx.deleted)
	return true, nil
}

func (idx *Immutable) idAt(i int) uint32 {
	off := i * forwardRecordSize
	return binary.LittleEndian.Uint32(idx.fwdB[off : off+4])
}

func (idx *Immutable) pointAt(i int) common.GeoPoint {
	off := i * forwardRecordSize
	lat := math.Float64frombits(binary.LittleEndian.Uint64(idx.fwdB[off+4 : off+12]))
	lon := math.Float64frombits(binary.LittleEndian.Uint64(idx.fwdB[off+12 : off+20]))
	return common.GeoPoint{Lat: lat, Lon: lon}
}

func (idx *Immutable) lowerBound(id uint32) int {
	return sort.Search(idx.nFwd, func(i int) bool { return idx.idAt(i) >= id })
}

func (idx *Immutable) pointsOf(id common.PointID) []common.GeoPoint {
	i := idx.lowerBound(uint32(id))
	var out []common.GeoPoint
	for i < idx.nFwd && idx.idAt(i) == uint32(id) {
		out = append(out, idx.pointAt(i))
		i++
	}
	return out
}

func (idx *Immutable) candidates(b bbox) *roaring.Bitmap {
	level := coveringLevel(b, defaultMaxCoveringCells)
	out := roaring.New()
	for _, cell := range coveringCells(b, level) {
		if bm, ok := idx.cells[level][cell]; ok {
			out.Or(bm)
		}
	}
	out.AndNot(idx.deleted)
	return out
}

func (idx *Immutable) CountIndexedPoints() uint64 { return idx.allIDs.GetCardinality() }

func (idx *Immutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	b, verify, ok := resolveQuery(cond)
	if !ok {
		return nil, false
	}
	candidates := idx.candidates(b)
	onDisk := idx.IsOnDisk()
	return func(yield func(common.PointID) bool) {
		it := candidates.Iterator()
		for it.HasNext() {
			id := it.Next()
			pts := idx.pointsOf(id)
			hw.AddDiskBytes(uint64(len(pts))*forwardRecordSize, onDisk)
			matched := false
			for _, p := range pts {
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

func (idx *Immutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	b, _, ok := resolveQuery(cond)
	if !ok {
		return query.Estimate{}, false
	}
	n := idx.candidates(b).GetCardinality()
	return query.Estimate{Min: 0, Expected: n, Max: n}.Clamp(idx.CountIndexedPoints()), true
}

func (idx *Immutable) PayloadBlocks(int, string) query.BlockIter {
	return func(func(query.Block) bool) {}
}

func (idx *Immutable) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false
}

func (idx *Immutable) AddPoint(common.PointID, []common.RawValue, *hwcounter.Counter) error {
	return errs.PreconditionFailed(idx.field, "sealed immutable geo index rejects mutation")
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
	return nil
}

func (idx *Immutable) Flusher() func() error {
	return func() error { return mmapfile.WriteBitmap(deletedPath(idx.dir), idx.deleted) }
}

func (idx *Immutable) Files() []string {
	return []string{forwardPath(idx.dir), cellsPath(idx.dir), deletedPath(idx.dir)}
}
func (idx *Immutable) ImmutableFiles() []string {
	return []string{forwardPath(idx.dir), cellsPath(idx.dir)}
}

func (idx *Immutable) Cleanup() error {
	for _, s := range []*mmapfile.Sealed{idx.fwd, idx.cellsF} {
		if s != nil {
			if err := s.Close(); err != nil {
				return errs.ServiceError(idx.field, err)
			}
		}
	}
	return mmapfile.RemoveAll(idx.dir)
}

func (idx *Immutable) Populate() error {
	if err := idx.fwd.Populate(); err != nil {
		return err
	}
	return idx.cellsF.Populate()
}

func (idx *Immutable) ClearCache() error {
	if err := idx.fwd.ClearCache(); err != nil {
		return err
	}
	return idx.cellsF.ClearCache()
}

func (idx *Immutable) IsOnDisk() bool { return true }

func (idx *Immutable) GetTelemetryData() query.Telemetry {
	return query.Telemetry{
		FieldName:    idx.field,
		PointsCount:  idx.CountIndexedPoints(),
		StorageBytes: uint64(len(idx.fwdB)),
	}
}

func (idx *Immutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: common.VariantGeo, Mutability: common.Immutable, Storage: common.StorageMmap}
}
