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
	"sort"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mdbxkv"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

// MutableBuilder wraps a live Mutable and hands it back directly on
// Finalize (spec §4.8 "Builders for mutable backends wrap the live
// structure and return it directly").
type MutableBuilder struct {
	field  string
	domain Domain
	m      *Mutable
	lastID common.PointID
	seen   bool
}

func NewMutableBuilder(field string, domain Domain) *MutableBuilder {
	return &MutableBuilder{field: field, domain: domain}
}

func (b *MutableBuilder) Init() error {
	b.m = NewMutable(b.field, b.domain)
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

// ImmutableBuilder buffers (key, id) pairs in memory, sorts once, and
// writes a sealed mmap file on Finalize (spec §4.8 "Builders for
// immutable mmap layouts buffer in memory, sort, and write a sealed
// file").
type ImmutableBuilder struct {
	field  string
	domain Domain
	dir    string
	buf    []kv
	lastID common.PointID
	seen   bool
	done   bool
}

func NewImmutableBuilder(dir, field string, domain Domain) *ImmutableBuilder {
	return &ImmutableBuilder{dir: dir, field: field, domain: domain}
}

func (b *ImmutableBuilder) Init() error { return nil }

func (b *ImmutableBuilder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if b.seen && id <= b.lastID {
		return errs.PreconditionFailed(b.field, "builder ids must be strictly increasing, got %d after %d", id, b.lastID)
	}
	b.seen, b.lastID = true, id
	keys, err := b.domain.projectValues(b.field, values)
	if err != nil {
		return err
	}
	for _, k := range keys {
		b.buf = append(b.buf, kv{Key: k, ID: id})
		hw.AddComparisons(1)
	}
	return nil
}

func (b *ImmutableBuilder) Finalize() (query.VariantIndex, error) {
	sort.Slice(b.buf, func(i, j int) bool { return lessKV(b.buf[i], b.buf[j]) })
	payload := make([]byte, len(b.buf)*recordSize)
	for i, e := range b.buf {
		off := i * recordSize
		binary.LittleEndian.PutUint64(payload[off:off+8], math.Float64bits(e.Key))
		binary.LittleEndian.PutUint32(payload[off+8:off+recordSize], e.ID)
	}
	if err := mmapfile.WriteSealed(b.dir, "keys.bin", payload); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	header := mmapfile.EncodeHeader(mmapfile.Header{
		Version:    mmapfile.CurrentVersion,
		Variant:    b.domain.Variant(),
		PointCount: uint64(len(b.buf)),
	})
	if err := mmapfile.WriteSealed(b.dir, "index.meta", header); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	b.done = true
	return OpenImmutable(b.dir, b.field, b.domain)
}

func (b *ImmutableBuilder) Abort() error {
	if b.done {
		return nil
	}
	return mmapfile.RemoveAll(b.dir)
}

// OnDiskMutableBuilder wraps a live OnDiskMutable (spec §4.8 "Builders
// for mutable backends wrap the live structure and return it
// directly") — the mdbxkv-backed third storage option, see ondisk.go.
type OnDiskMutableBuilder struct {
	field  string
	domain Domain
	dir    string
	idx    *OnDiskMutable
	lastID common.PointID
	seen   bool
}

func NewOnDiskMutableBuilder(dir, field string, domain Domain) *OnDiskMutableBuilder {
	return &OnDiskMutableBuilder{dir: dir, field: field, domain: domain}
}

func (b *OnDiskMutableBuilder) Init() error {
	idx, err := NewOnDiskMutable(b.dir, b.field, b.domain)
	if err != nil {
		return err
	}
	b.idx = idx
	return nil
}

func (b *OnDiskMutableBuilder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if b.seen && id <= b.lastID {
		return errs.PreconditionFailed(b.field, "builder ids must be strictly increasing, got %d after %d", id, b.lastID)
	}
	b.seen, b.lastID = true, id
	return b.idx.AddPoint(id, values, hw)
}

func (b *OnDiskMutableBuilder) Finalize() (query.VariantIndex, error) { return b.idx, nil }

func (b *OnDiskMutableBuilder) Abort() error {
	if b.idx == nil {
		return nil
	}
	if err := b.idx.kv.Close(); err != nil {
		return err
	}
	return mdbxkv.RemoveAll(dataPath(b.dir))
}
