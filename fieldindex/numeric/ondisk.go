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

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mdbxkv"
)

// OnDiskMutable is the third numeric storage backend spec §2 calls for
// ("on-disk mutable block store"), keyed against mdbxkv rather than
// storage/ordermap's in-memory btree: every AddPoint/RemovePoint is a
// durable mdbx transaction, so the index survives a crash without
// replaying a log, at the cost of a transaction per mutation instead of
// an in-memory insert.
//
// The "entries" table holds one row per (key, point id) pair, keyed by
// a 12-byte order-preserving encoding so ascending cursor order matches
// ascending key order with ties broken by point id (spec §4.2). The
// "points" table is the per-point reverse map spec §4.2 requires for
// O(values) deletion, keyed by point id, valued as a packed list of the
// 8-byte key halves of that point's entries.
type OnDiskMutable struct {
	field  string
	domain Domain
	path   string
	kv     *mdbxkv.Env

	histogram *Histogram
	count     uint64
	dirty     int
}

const entriesTable = "entries"
const pointsTable = "points"
const metaTable = "meta"

var onDiskTables = []string{entriesTable, pointsTable, metaTable}

func dataPath(dir string) string { return filepath.Join(dir, "numeric.mdbx") }

// NewOnDiskMutable opens (creating if absent) dir's mdbx environment.
func NewOnDiskMutable(dir, field string, domain Domain) (*OnDiskMutable, error) {
	env, err := mdbxkv.Open(dataPath(dir), field, onDiskTables)
	if err != nil {
		return nil, err
	}
	idx := &OnDiskMutable{field: field, domain: domain, path: dir, kv: env, histogram: NewHistogram(nil)}
	if err := idx.rebuildFromDisk(); err != nil {
		env.Close()
		return nil, err
	}
	return idx, nil
}

// orderPreservingBits maps a float64 onto a uint64 such that the normal
// unsigned integer (and therefore byte-lexicographic) ordering of the
// result matches IEEE-754 total order: flip all bits for negatives,
// flip only the sign bit for non-negatives.
func orderPreservingBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func orderPreservingFloat(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		return math.Float64frombits(bits &^ (1 << 63))
	}
	return math.Float64frombits(^bits)
}

const entryKeySize = 8 + 4

func encodeEntryKey(key float64, id common.PointID) []byte {
	buf := make([]byte, entryKeySize)
	binary.BigEndian.PutUint64(buf[0:8], orderPreservingBits(key))
	binary.BigEndian.PutUint32(buf[8:12], id)
	return buf
}

func decodeEntryKey(buf []byte) (float64, common.PointID) {
	return orderPreservingFloat(binary.BigEndian.Uint64(buf[0:8])), binary.BigEndian.Uint32(buf[8:12])
}

func encodePointKeys(keys []float64) []byte {
	buf := make([]byte, len(keys)*8)
	for i, k := range keys {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], orderPreservingBits(k))
	}
	return buf
}

func decodePointKeys(buf []byte) []float64 {
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = orderPreservingFloat(binary.BigEndian.Uint64(buf[i*8 : i*8+8]))
	}
	return out
}

// rebuildFromDisk restores the in-memory histogram and point count from
// a previously-populated environment — the equivalent of Load for a
// backend whose authoritative state already lives on disk.
func (idx *OnDiskMutable) rebuildFromDisk() error {
	var keys []float64
	var count uint64
	err := idx.kv.ForEach(pointsTable, nil, func(_, v []byte) bool {
		count++
		keys = append(keys, decodePointKeys(v)...)
		return true
	})
	if err != nil {
		return err
	}
	idx.count = count
	// Histogram wants ascending input; the points table is keyed by
	// point id, not by key, so sort once here rather than keep the
	// entries table's order (which is already key-ascending, but a
	// second scan to get it would cost another full pass).
	sortFloats(keys)
	idx.histogram.Rebuild(keys)
	return nil
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func (idx *OnDiskMutable) CountIndexedPoints() uint64 { return idx.count }

func (idx *OnDiskMutable) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if err := idx.RemovePoint(id); err != nil {
		return err
	}
	keys, err := idx.domain.projectValues(idx.field, values)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if err := idx.kv.Put(entriesTable, encodeEntryKey(k, id), nil); err != nil {
			return err
		}
		idx.histogram.Insert(k)
		hw.AddComparisons(1)
	}
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], id)
	if err := idx.kv.Put(pointsTable, idBuf[:], encodePointKeys(keys)); err != nil {
		return err
	}
	idx.count++
	idx.dirty++
	if idx.dirty > 4096 {
		idx.rebuildHistogram()
	}
	return nil
}

func (idx *OnDiskMutable) rebuildHistogram() {
	var keys []float64
	idx.kv.ForEach(entriesTable, nil, func(k, _ []byte) bool {
		key, _ := decodeEntryKey(k)
		keys = append(keys, key)
		return true
	})
	idx.histogram.Rebuild(keys)
	idx.dirty = 0
}

func (idx *OnDiskMutable) RemovePoint(id common.PointID) error {
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], id)
	val, found, err := idx.kv.Get(pointsTable, idBuf[:])
	if err != nil {
		return err
	}
	if !found {
		return nil // never indexed: no-op, not an error (spec §7, §9)
	}
	for _, k := range decodePointKeys(val) {
		if err := idx.kv.Delete(entriesTable, encodeEntryKey(k, id)); err != nil {
			return err
		}
		idx.histogram.Remove(k)
	}
	if err := idx.kv.Delete(pointsTable, idBuf[:]); err != nil {
		return err
	}
	idx.count--
	idx.dirty++
	return nil
}

func (idx *OnDiskMutable) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	r, ok := effectiveRange(idx.domain, idx.field, cond)
	if !ok {
		return nil, false
	}
	lo, _ := floatBounds(r)
	var from []byte
	if lo != nil {
		from = encodeEntryKey(*lo, 0)
	}
	return func(yield func(common.PointID) bool) {
		idx.kv.ForEach(entriesTable, from, func(k, _ []byte) bool {
			key, id := decodeEntryKey(k)
			hw.AddDiskBytes(entryKeySize, true)
			if !matches(key, r) {
				// Ascending scan: once we pass the upper bound we can
				// stop; a gap below the lower bound (shouldn't happen
				// given `from`) just continues.
				_, hi := floatBounds(r)
				if hi != nil && key > *hi {
					return false
				}
				return true
			}
			hw.AddComparisons(1)
			return yield(id)
		})
	}, true
}

func (idx *OnDiskMutable) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	r, ok := effectiveRange(idx.domain, idx.field, cond)
	if !ok {
		return query.Estimate{}, false
	}
	lo, hi := floatBounds(r)
	return idx.histogram.EstimateRange(lo, hi).Clamp(idx.count), true
}

// PayloadBlocks buckets the sorted key stream the same way Mutable does
// (spec §4.1), scanning the entries table in key order instead of an
// in-memory btree.
func (idx *OnDiskMutable) PayloadBlocks(threshold int, key string) query.BlockIter {
	return func(yield func(query.Block) bool) {
		if threshold <= 0 {
			return
		}
		var keys []float64
		idx.kv.ForEach(entriesTable, nil, func(k, _ []byte) bool {
			kf, _ := decodeEntryKey(k)
			keys = append(keys, kf)
			return true
		})
		for i := 0; i < len(keys); {
			end := i + threshold
			if end > len(keys) {
				if len(keys)-i < threshold {
					break
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

func (idx *OnDiskMutable) SpecialCheckCondition(query.Condition, []common.RawValue) (bool, bool) {
	return false, false
}

func (idx *OnDiskMutable) Load() (bool, error) { return true, idx.rebuildFromDisk() }

func (idx *OnDiskMutable) Flusher() func() error {
	return idx.kv.Sync
}

func (idx *OnDiskMutable) Files() []string {
	return []string{idx.kv.Path(), idx.kv.LockPath()}
}

// ImmutableFiles is empty: a mutable mdbx-backed index never seals a
// read-only snapshot of its own (spec §3 "files() superset of
// immutable_files()" — the empty set is a valid subset).
func (idx *OnDiskMutable) ImmutableFiles() []string { return nil }

func (idx *OnDiskMutable) Cleanup() error {
	if err := idx.kv.Close(); err != nil {
		return errs.ServiceError(idx.field, err)
	}
	return mdbxkv.RemoveAll(dataPath(idx.path))
}

func (idx *OnDiskMutable) Populate() error   { return nil }
func (idx *OnDiskMutable) ClearCache() error { return nil }
func (idx *OnDiskMutable) IsOnDisk() bool    { return true }

func (idx *OnDiskMutable) GetTelemetryData() query.Telemetry {
	return query.Telemetry{
		FieldName:        idx.field,
		PointsCount:      idx.count,
		HistogramBuckets: len(idx.histogram.counts),
		HistogramStale:   idx.histogram.Stale(),
	}
}

func (idx *OnDiskMutable) GetFullIndexType() common.FullIndexType {
	return common.FullIndexType{Kind: idx.domain.Variant(), Mutability: common.Mutable, Storage: common.StorageRocksDBLike}
}
