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
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

// MutableBuilder wraps a live Mutable and hands it back on Finalize
// (spec §4.8).
type MutableBuilder struct {
	field  string
	m      *Mutable
	lastID common.PointID
	seen   bool
}

func NewMutableBuilder(field string) *MutableBuilder { return &MutableBuilder{field: field} }

func (b *MutableBuilder) Init() error {
	b.m = NewMutable(b.field)
	return nil
}

func (b *MutableBuilder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if b.seen && id <= b.lastID {
		return errs.PreconditionFailed(b.field, "builder ids must be strictly increasing, got %d after %d", id, b.lastID)
	}
	b.seen, b.lastID = true, id
	return b.m.AddPoint(id, values, hw)
}

func (b *MutableBuilder) Finalize() (query.VariantIndex, error) { return b.m, nil }
func (b *MutableBuilder) Abort() error                          { return nil }

type idPoint struct {
	ID common.PointID
	P  common.GeoPoint
}

// ImmutableBuilder buffers (id, point) pairs, then sorts and seals the
// forward.bin / cells.bin / index.meta trio on Finalize (spec §4.8).
type ImmutableBuilder struct {
	field  string
	dir    string
	buf    []idPoint
	lastID common.PointID
	seen   bool
	done   bool
}

func NewImmutableBuilder(dir, field string) *ImmutableBuilder {
	return &ImmutableBuilder{dir: dir, field: field}
}

func (b *ImmutableBuilder) Init() error { return nil }

func (b *ImmutableBuilder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if b.seen && id <= b.lastID {
		return errs.PreconditionFailed(b.field, "builder ids must be strictly increasing, got %d after %d", id, b.lastID)
	}
	b.seen, b.lastID = true, id
	for _, p := range projectValues(values) {
		b.buf = append(b.buf, idPoint{ID: id, P: p})
		hw.AddComparisons(1)
	}
	return nil
}

func (b *ImmutableBuilder) Finalize() (query.VariantIndex, error) {
	sort.Slice(b.buf, func(i, j int) bool { return b.buf[i].ID < b.buf[j].ID })

	fwdBuf := make([]byte, len(b.buf)*forwardRecordSize)
	var cellIDs [MaxLevel + 1]map[string]*roaring.Bitmap
	for l := MinLevel; l <= MaxLevel; l++ {
		cellIDs[l] = make(map[string]*roaring.Bitmap)
	}
	for i, e := range b.buf {
		off := i * forwardRecordSize
		binary.LittleEndian.PutUint32(fwdBuf[off:off+4], uint32(e.ID))
		binary.LittleEndian.PutUint64(fwdBuf[off+4:off+12], math.Float64bits(e.P.Lat))
		binary.LittleEndian.PutUint64(fwdBuf[off+12:off+20], math.Float64bits(e.P.Lon))
		for l := MinLevel; l <= MaxLevel; l++ {
			cell := Encode(e.P, l)
			bm, ok := cellIDs[l][cell]
			if !ok {
				bm = roaring.New()
				cellIDs[l][cell] = bm
			}
			bm.Add(uint32(e.ID))
		}
	}

	var cellsBuf []byte
	for l := MinLevel; l <= MaxLevel; l++ {
		cells := make([]string, 0, len(cellIDs[l]))
		for c := range cellIDs[l] {
			cells = append(cells, c)
		}
		sort.Strings(cells)
		for _, c := range cells {
			bm := cellIDs[l][c]
			data, err := bm.ToBytes()
			if err != nil {
				return nil, errs.ServiceError(b.field, err)
			}
			cellsBuf = append(cellsBuf, byte(l), byte(len(c)))
			cellsBuf = append(cellsBuf, c...)
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
			cellsBuf = append(cellsBuf, lenBuf[:]...)
			cellsBuf = append(cellsBuf, data...)
		}
	}

	if err := mmapfile.WriteSealed(b.dir, "forward.bin", fwdBuf); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	if err := mmapfile.WriteSealed(b.dir, "cells.bin", cellsBuf); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	header := mmapfile.EncodeHeader(mmapfile.Header{
		Version:    mmapfile.CurrentVersion,
		Variant:    common.VariantGeo,
		PointCount: uint64(len(b.buf)),
	})
	if err := mmapfile.WriteSealed(b.dir, "index.meta", header); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	b.done = true
	return OpenImmutable(b.dir, b.field)
}

func (b *ImmutableBuilder) Abort() error {
	if b.done {
		return nil
	}
	return mmapfile.RemoveAll(b.dir)
}
