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
	"encoding/binary"
	"sort"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
	"github.com/erigontech/erigon-payload-index/storage/mmapfile"
)

// MutableBuilder wraps a live Mutable and hands it back directly on
// Finalize (spec §4.8).
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

type kv struct {
	Key string
	ID  common.PointID
}

// ImmutableBuilder buffers (key, id) pairs, sorts once by (key, id), and
// writes the sealed values.bin/offsets.bin/postings.bin trio on
// Finalize (spec §4.8).
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
	for _, k := range b.domain.projectValues(values) {
		b.buf = append(b.buf, kv{Key: k, ID: id})
		hw.AddComparisons(1)
	}
	return nil
}

func (b *ImmutableBuilder) Finalize() (query.VariantIndex, error) {
	sort.Slice(b.buf, func(i, j int) bool {
		if b.buf[i].Key != b.buf[j].Key {
			return b.buf[i].Key < b.buf[j].Key
		}
		return b.buf[i].ID < b.buf[j].ID
	})

	var valuesBuf, offsetsBuf, postingBuf []byte
	i := 0
	for i < len(b.buf) {
		j := i
		key := b.buf[i].Key
		for j < len(b.buf) && b.buf[j].Key == key {
			j++
		}
		voff := uint64(len(valuesBuf))
		valuesBuf = append(valuesBuf, key...)
		poff := uint64(len(postingBuf))
		for k := i; k < j; k++ {
			var idBytes [4]byte
			binary.LittleEndian.PutUint32(idBytes[:], uint32(b.buf[k].ID))
			postingBuf = append(postingBuf, idBytes[:]...)
		}
		var rec [offsetRecordSize]byte
		binary.LittleEndian.PutUint64(rec[0:8], voff)
		binary.LittleEndian.PutUint32(rec[8:12], uint32(len(key)))
		binary.LittleEndian.PutUint64(rec[12:20], poff)
		binary.LittleEndian.PutUint32(rec[20:24], uint32(j-i))
		offsetsBuf = append(offsetsBuf, rec[:]...)
		i = j
	}

	if err := mmapfile.WriteSealed(b.dir, "values.bin", valuesBuf); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	if err := mmapfile.WriteSealed(b.dir, "offsets.bin", offsetsBuf); err != nil {
		return nil, errs.ServiceError(b.field, err)
	}
	if err := mmapfile.WriteSealed(b.dir, "postings.bin", postingBuf); err != nil {
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

// OnDiskMutableBuilder wraps a live OnDiskMutable (the blockstore-backed
// third storage option, see ondisk.go) and hands it back directly.
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
	return b.idx.Cleanup()
}
