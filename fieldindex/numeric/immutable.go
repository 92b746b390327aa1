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

const recordSize = 8 + 4 // key float64 LE + point id uint32 LE

// Immutable is the sealed mmap layout (spec §4.2 "Immutable mmap: a
// sorted array of (key, point_id) with an auxiliary bitmap of live
// points; binary search on range endpoints, deletions flip bits").
type Immutable struct {
	field     string
	domain    Domain
	dir       string
	sealed    *mmapfile.Sealed
	records   []byte // raw mmapped keys.bin payload, recordSize per entry
	n         int
	deleted   *roaring.Bitmap
	liveCount uint64
	histogram *Histogram
}

// OpenImmutable loads a previously-sealed numeric index directory.
func OpenImmutable(dir, field string, domain Domain) (*Immutable, error) {
	idx := &Immutable{field: field, domain: domain, dir: dir}
	if _, err := idx.Load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func keysPath(dir string) string    { return filepath.Join(dir, "keys.bin") }
func deletedPath(dir string) string { return filepath.Join(dir, "deleted.bitmap") }
func metaPath(dir string) string    { return filepath.Join(dir, "index.meta") }

func (idx *Immutable) Load() (bool, error) {
	sealed, payload, err := mmapfile.Open(keysPath(idx.dir))
	if err != nil {
		if err == mmapfile.ErrChecksum {
			return false, errs.ChecksumMismatch(idx.field, keysPath(idx.dir))
		}
		return false, errs.ServiceError(idx.field, err)
	}
	idx.sealed = sealed
	idx.records = payload
	idx.n = len(payload) / recordSize

	db, err := mmapfile.LoadBitmap(deletedPath(idx.dir))
	if err != nil {
		return false, errs.ServiceError(idx.field, err)
	}
	idx.deleted = db

	keys := make([]float64, 0, idx.n)
	live := roaring.New()
	for i := 0; i < idx.n; i++ {
		if idx.deleted.Contains(idx.idAt(i)) {
			continue
		}
		keys = append(keys, idx.keyAt(i))
		live.Add(idx.idAt(i))
	}
	idx.liveCount = live.GetCardinality()
	idx.histogram = NewHistogram(keys)
	return true, nil
}

func (idx *Immutable) keyAt(i int) float64 {
	off := i * recordSize
	bits := binary.LittleEndian.Uint64(idx.records[off : off+8])
	return math.Float64frombits(bits)
}

func (idx *Immutable) idAt(i int) common.PointID {
	off := i * recordSize
	return binary.LittleEndian.Uint32(idx.records[off+8 : off+recordSize])
}

// lowerBound returns the first record index whose key is >= target.
func (idx *Immutable) lowerBound(target float64) int {
	return sort.Search(idx.n, func(i int) bool { return idx.keyAt(i) >= target })
}

// upperBound returns the first record index whose key is > target.
func (idx *Immutable) upperBound(target float64) int {
	return sort.Search(idx.n, func(i int) bool { return idx.keyAt(i) > target })
}

func (idx *Immutable) CountIndexedPoints() uint64 { return idx.liveCount }

func (idx *Immutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	r, ok := effectiveRange(idx.domain, idx.field, cond)
	if !ok {
		return nil, false
	}
	lo, hi := floatBounds(r)
	start, end := 0, idx.n
	if lo != nil {
		start = idx.lowerBound(*lo)
	}
	if hi != nil {
		end = idx.upperBound(*hi)
	}
	onDisk := idx.IsOnDisk()
	return func(yield func(common.PointID) bool) {
		for i := start; i < end; i++ {
			hw.AddDiskBytes(recordSize, onDisk)
			k := idx.keyAt(i)
			if !matches(k, r) {
				continue
			}
			id := idx.idAt(i)
			if idx.deleted.Contains(id) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}, true
}

func (idx *Immutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	r, ok := effectiveRange(idx.domain, idx.field, cond)
	if !ok {
		return query.Estimate{}, false
	}
	lo, hi := floatBounds(r)
	return idx.histogram.EstimateRange(lo, hi).Clamp(idx.liveCount), true
}

func (idx *Immutable) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		if threshold <= 0 || idx.n == 0 {
			return
		}
		i := 0
		for i < idx.n {
			end := i + threshold
			if end > idx.n {
				if idx.n-i < threshold {
					return
				}
				end = idx.n
			}
			lo, hi := idx.keyAt(i), idx.keyAt(end-1)
			var live uint64
			for j := i; j < end; j++ {
				if !idx.deleted.Contains(idx.idAt(j)) {
					live++
				}
			}
			blk := query.Block{
				Condition:   query.Condition{Field: key, Range: &query.Range{Gte: &lo, Lte: &hi}},
				Cardinality: query.Exact(live),
			}
			if !yield(blk) {
				return
			}
			i = end
		}
	}
}

func (idx *Immutable) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false
}

func (idx *Immutable) AddPoint(common.PointID, []common.RawValue, *hwcounter.Counter) error {
	return errs.PreconditionFailed(idx.field, "sealed immutable numeric index rejects mutation")
}

func (idx *Immutable) RemovePoint(id common.PointID) error {
	if idx.deleted.Contains(id) {
		return nil
	}
	found := false
	for i := 0; i < idx.n; i++ {
		if idx.idAt(i) == id {
			found = true
			idx.histogram.Remove(idx.keyAt(i))
		}
	}
	if found {
		idx.deleted.Add(id)
		idx.liveCount--
	}
	return nil
}

func (idx *Immutable) Flusher() func() error {
	return func() error {
		return mmapfile.WriteBitmap(deletedPath(idx.dir), idx.deleted)
	}
}

func (idx *Immutable) Files() []string { return []string{keysPath(idx.dir), deletedPath(idx.dir), metaPath(idx.dir)} }
func (idx *Immutable) ImmutableFiles() []string { return []string{keysPath(idx.dir), metaPath(idx.dir)} }

func (idx *Immutable) Cleanup() error {
	if idx.sealed != nil {
		if err := idx.sealed.Close(); err != nil {
			return errs.ServiceError(idx.field, err)
		}
	}
	return mmapfile.RemoveAll(idx.dir)
}

func (idx *Immutable) Populate() error   { return idx.sealed.Populate() }
func (idx *Immutable) ClearCache() error { return idx.sealed.ClearCache() }
func (idx *Immutable) IsOnDisk() bool    { return true }

func (idx *Immutable) GetTelemetryData() query.Telemetry {
	return query.Telemetry{
		FieldName:         idx.field,
		PointsCount:       idx.liveCount,
		PointsValuesCount: uint64(idx.n),
		StorageBytes:      uint64(len(idx.records)),
		HistogramBuckets:  len(idx.histogram.counts),
		HistogramStale:    idx.histogram.Stale(),
	}
}

func (idx *Immutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: idx.domain.Variant(), Mutability: common.Immutable, Storage: common.StorageMmap}
}
