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

package fulltext

import (
	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// MutableBuilder wraps a live Index and hands it back on Finalize.
type MutableBuilder struct {
	field  string
	cfg    Config
	idx    *Index
	lastID common.PointID
	seen   bool
}

func NewMutableBuilder(field string, cfg Config) *MutableBuilder {
	return &MutableBuilder{field: field, cfg: cfg}
}

func (b *MutableBuilder) Init() error {
	b.idx = NewMutable(b.field, b.cfg)
	return nil
}

func (b *MutableBuilder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if b.seen && id <= b.lastID {
		return errs.PreconditionFailed(b.field, "builder ids must be strictly increasing, got %d after %d", id, b.lastID)
	}
	b.seen, b.lastID = true, id
	return b.idx.AddPoint(id, values, hw)
}

func (b *MutableBuilder) Finalize() (query.VariantIndex, error) { return b.idx, nil }
func (b *MutableBuilder) Abort() error                          { return nil }

// ImmutableBuilder accumulates in an in-memory Index, then persists the
// dictionary, postings, forward index and tracked-points bitmap to dir
// and reopens on Finalize.
type ImmutableBuilder struct {
	field  string
	dir    string
	cfg    Config
	idx    *Index
	lastID common.PointID
	seen   bool
	done   bool
}

func NewImmutableBuilder(dir, field string, cfg Config) *ImmutableBuilder {
	return &ImmutableBuilder{dir: dir, field: field, cfg: cfg}
}

func (b *ImmutableBuilder) Init() error {
	b.idx = NewMutable(b.field, b.cfg)
	return nil
}

func (b *ImmutableBuilder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	if b.seen && id <= b.lastID {
		return errs.PreconditionFailed(b.field, "builder ids must be strictly increasing, got %d after %d", id, b.lastID)
	}
	b.seen, b.lastID = true, id
	return b.idx.AddPoint(id, values, hw)
}

func (b *ImmutableBuilder) Finalize() (query.VariantIndex, error) {
	b.idx.dir = b.dir
	if err := b.idx.Flusher()(); err != nil {
		return nil, err
	}
	b.done = true
	return OpenImmutable(b.dir, b.field)
}

func (b *ImmutableBuilder) Abort() error {
	if b.done || b.idx == nil {
		return nil
	}
	b.idx.dir = b.dir
	return b.idx.Cleanup()
}
