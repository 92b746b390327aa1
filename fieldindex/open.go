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
	"fmt"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
	"github.com/erigontech/erigon-payload-index/fieldindex/boolindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/fulltext"
	"github.com/erigontech/erigon-payload-index/fieldindex/geoindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/mapindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/nullindex"
	"github.com/erigontech/erigon-payload-index/fieldindex/numeric"
)

// numericDomainFor maps the facade's kind space onto numeric.Domain;
// callers asking for a non-numeric kind through this path is a coding
// error, not a runtime condition, so it panics the way a bad type
// switch would.
func numericDomainFor(kind common.VariantKind) numeric.Domain {
	switch kind {
	case common.VariantInt:
		return numeric.DomainInt
	case common.VariantFloat:
		return numeric.DomainFloat
	case common.VariantDatetime:
		return numeric.DomainDatetime
	case common.VariantUUID:
		return numeric.DomainUUIDOrdered
	default:
		panic(fmt.Sprintf("fieldindex: %s is not a numeric-family kind", kind))
	}
}

func mapDomainFor(kind common.VariantKind) mapindex.Domain {
	switch kind {
	case common.VariantIntMap:
		return mapindex.DomainIntMap
	case common.VariantKeyword:
		return mapindex.DomainKeyword
	case common.VariantUUIDMap:
		return mapindex.DomainUUIDMap
	default:
		panic(fmt.Sprintf("fieldindex: %s is not a map-family kind", kind))
	}
}

func isNumericFamily(kind common.VariantKind) bool {
	switch kind {
	case common.VariantInt, common.VariantFloat, common.VariantDatetime, common.VariantUUID:
		return true
	}
	return false
}

func isMapFamily(kind common.VariantKind) bool {
	switch kind {
	case common.VariantIntMap, common.VariantKeyword, common.VariantUUIDMap:
		return true
	}
	return false
}

// NewMutable opens a fresh in-memory mutable engine for kind (spec §2
// storage backend 1, "in-memory structures"). fulltextConfig is
// consulted only when kind is VariantFullText.
func NewMutable(field string, kind common.VariantKind, fulltextConfig fulltext.Config) (*FieldIndex, error) {
	fidx := common.FullIndexType{Kind: kind, Mutability: common.Mutable, Storage: common.StorageInMemory}
	switch {
	case isNumericFamily(kind):
		return Wrap(field, fidx, numeric.NewMutable(field, numericDomainFor(kind))), nil
	case isMapFamily(kind):
		return Wrap(field, fidx, mapindex.NewMutable(field, mapDomainFor(kind))), nil
	case kind == common.VariantGeo:
		return Wrap(field, fidx, geoindex.NewMutable(field)), nil
	case kind == common.VariantFullText:
		return Wrap(field, fidx, fulltext.NewMutable(field, fulltextConfig)), nil
	case kind == common.VariantBool:
		return Wrap(field, fidx, boolindex.NewMutable(field)), nil
	case kind == common.VariantNull:
		return Wrap(field, fidx, nullindex.NewMutable(field)), nil
	default:
		return nil, errs.BadInputf(field, "unknown variant kind %s", kind)
	}
}

// OpenImmutable opens a previously-sealed mmap-backed immutable layout
// from dir (spec §2 storage backend 2, "immutable structures ...
// memory-mapped files"). Full-text immutable layouts don't need the
// Config that built them: persist.go's sealed header carries everything
// search needs back.
func OpenImmutable(dir, field string, kind common.VariantKind) (*FieldIndex, error) {
	fidx := common.FullIndexType{Kind: kind, Mutability: common.Immutable, Storage: common.StorageMmap}
	switch {
	case isNumericFamily(kind):
		idx, err := numeric.OpenImmutable(dir, field, numericDomainFor(kind))
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	case isMapFamily(kind):
		idx, err := mapindex.OpenImmutable(dir, field, mapDomainFor(kind))
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	case kind == common.VariantGeo:
		idx, err := geoindex.OpenImmutable(dir, field)
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	case kind == common.VariantFullText:
		idx, err := fulltext.OpenImmutable(dir, field)
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	case kind == common.VariantBool:
		idx, err := boolindex.OpenImmutable(dir, field)
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	case kind == common.VariantNull:
		idx, err := nullindex.OpenImmutable(dir, field)
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	default:
		return nil, errs.BadInputf(field, "unknown variant kind %s", kind)
	}
}

// NewOnDiskMutable opens the on-disk mutable storage backend spec §2
// names as a third option (block store / rocksdb-like). Only the
// numeric and map-family kinds carry an on-disk mutable implementation
// today — geo, full-text, bool and null stay in-memory-or-mmap.
func NewOnDiskMutable(dir, field string, kind common.VariantKind) (*FieldIndex, error) {
	switch {
	case isNumericFamily(kind):
		fidx := common.FullIndexType{Kind: kind, Mutability: common.Mutable, Storage: common.StorageRocksDBLike}
		idx, err := numeric.NewOnDiskMutable(dir, field, numericDomainFor(kind))
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	case isMapFamily(kind):
		fidx := common.FullIndexType{Kind: kind, Mutability: common.Mutable, Storage: common.StorageBlock}
		idx, err := mapindex.NewOnDiskMutable(dir, field, mapDomainFor(kind))
		if err != nil {
			return nil, err
		}
		return Wrap(field, fidx, idx), nil
	default:
		return nil, errs.BadInputf(field, "%s has no on-disk mutable backend", kind)
	}
}
