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

package fieldindex

import (
	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/fieldindex/boolindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/fulltext"
	"github.com/erigontech/erigon-payload-index/fieldindex/geoindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/mapindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/nullindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/numeric"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// Builder is the facade's own parallel sum type over the per-variant
// builders (spec §4.8 "builders as a parallel sum type"): it carries
// enough of the (kind, mutability, storage) triple to hand Finalize's
// result back already wrapped in a *FieldIndex with the right
// discriminant, so callers never construct a FullIndexType themselves.
type Builder struct {
	field string
	fidx  common.FullIndexType
	inner query.Builder
}

// NewBuilder selects the (kind, storage) pair's concrete builder. dir is
// ignored for in-memory storage. cfg is only consulted for
// VariantFullText.
func NewBuilder(dir, field string, kind common.VariantKind, storage common.StorageKind, cfg fulltext.Config) (*Builder, error) {
	fidx := common.FullIndexType{Kind: kind, Storage: storage}
	switch storage {
	case common.StorageInMemory:
		fidx.Mutability = common.Mutable
		inner, err := newInMemoryBuilder(field, kind, cfg)
		if err != nil {
			return nil, err
		}
		return &Builder{field: field, fidx: fidx, inner: inner}, nil
	case common.StorageMmap:
		fidx.Mutability = common.Immutable
		inner, err := newMmapBuilder(dir, field, kind, cfg)
		if err != nil {
			return nil, err
		}
		return &Builder{field: field, fidx: fidx, inner: inner}, nil
	case common.StorageBlock, common.StorageRocksDBLike:
		fidx.Mutability = common.Mutable
		inner, err := newOnDiskBuilder(dir, field, kind, storage)
		if err != nil {
			return nil, err
		}
		return &Builder{field: field, fidx: fidx, inner: inner}, nil
	default:
		return nil, errs.BadInputf(field, "unknown storage kind %s", storage)
	}
}

func newInMemoryBuilder(field string, kind common.VariantKind, cfg fulltext.Config) (query.Builder, error) {
	switch {
	case isNumericFamily(kind):
		return numeric.NewMutableBuilder(field, numericDomainFor(kind)), nil
	case isMapFamily(kind):
		return mapindex.NewMutableBuilder(field, mapDomainFor(kind)), nil
	case kind == common.VariantGeo:
		return geoindex.NewMutableBuilder(field), nil
	case kind == common.VariantFullText:
		return fulltext.NewMutableBuilder(field, cfg), nil
	case kind == common.VariantBool:
		return boolindex.NewMutableBuilder(field), nil
	case kind == common.VariantNull:
		return nullindex.NewMutableBuilder(field), nil
	default:
		return nil, errs.BadInputf(field, "unknown variant kind %s", kind)
	}
}

func newMmapBuilder(dir, field string, kind common.VariantKind, cfg fulltext.Config) (query.Builder, error) {
	switch {
	case isNumericFamily(kind):
		return numeric.NewImmutableBuilder(dir, field, numericDomainFor(kind)), nil
	case isMapFamily(kind):
		return mapindex.NewImmutableBuilder(dir, field, mapDomainFor(kind)), nil
	case kind == common.VariantGeo:
		return geoindex.NewImmutableBuilder(dir, field), nil
	case kind == common.VariantFullText:
		return fulltext.NewImmutableBuilder(dir, field, cfg), nil
	case kind == common.VariantBool:
		return boolindex.NewImmutableBuilder(dir, field), nil
	case kind == common.VariantNull:
		return nullindex.NewImmutableBuilder(dir, field), nil
	default:
		return nil, errs.BadInputf(field, "unknown variant kind %s", kind)
	}
}

// newOnDiskBuilder only has numeric (rocksdb-like) and map-family
// (append-only block) implementations — see the matching note on
// NewOnDiskMutable in open.go.
func newOnDiskBuilder(dir, field string, kind common.VariantKind, storage common.StorageKind) (query.Builder, error) {
	switch {
	case isNumericFamily(kind) && storage == common.StorageRocksDBLike:
		return numeric.NewOnDiskMutableBuilder(dir, field, numericDomainFor(kind)), nil
	case isMapFamily(kind) && storage == common.StorageBlock:
		return mapindex.NewOnDiskMutableBuilder(dir, field, mapDomainFor(kind)), nil
	default:
		return nil, errs.BadInputf(field, "%s has no %s builder", kind, storage)
	}
}

func (b *Builder) Init() error { return b.inner.Init() }

func (b *Builder) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	return b.inner.AddPoint(id, values, hw)
}

// Finalize seals the underlying builder and wraps the resulting engine
// in a *FieldIndex carrying this Builder's discriminant.
func (b *Builder) Finalize() (*FieldIndex, error) {
	engine, err := b.inner.Finalize()
	if err != nil {
		return nil, err
	}
	return Wrap(b.field, b.fidx, engine), nil
}

func (b *Builder) Abort() error { return b.inner.Abort() }
