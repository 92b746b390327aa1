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

// Package common holds the types shared by every field index variant and
// storage backend: the point id space, the payload value domain, and the
// shared add_point flatten contract (spec §4.7).
package common

// PointID is a dense point offset into [0, N). Holes (deleted points) are
// allowed; PointID carries no validity bit of its own.
type PointID = uint32

// Mutability describes whether an index instance accepts further writes.
type Mutability uint8

const (
	Mutable Mutability = iota
	Immutable
)

func (m Mutability) String() string {
	if m == Immutable {
		return "immutable"
	}
	return "mutable"
}

// StorageKind names the physical backend behind an index instance.
type StorageKind uint8

const (
	StorageInMemory StorageKind = iota
	StorageMmap
	StorageBlock
	StorageRocksDBLike
)

func (s StorageKind) String() string {
	switch s {
	case StorageInMemory:
		return "in-memory"
	case StorageMmap:
		return "mmap"
	case StorageBlock:
		return "block"
	case StorageRocksDBLike:
		return "rocksdb-like"
	default:
		return "unknown"
	}
}

// VariantKind names the FieldIndex tagged-variant discriminant.
type VariantKind uint8

const (
	VariantInt VariantKind = iota
	VariantDatetime
	VariantFloat
	VariantUUID
	VariantIntMap
	VariantKeyword
	VariantUUIDMap
	VariantGeo
	VariantFullText
	VariantBool
	VariantNull
)

func (v VariantKind) String() string {
	switch v {
	case VariantInt:
		return "int"
	case VariantDatetime:
		return "datetime"
	case VariantFloat:
		return "float"
	case VariantUUID:
		return "uuid"
	case VariantIntMap:
		return "int-map"
	case VariantKeyword:
		return "keyword"
	case VariantUUIDMap:
		return "uuid-map"
	case VariantGeo:
		return "geo"
	case VariantFullText:
		return "full-text"
	case VariantBool:
		return "bool"
	case VariantNull:
		return "null"
	default:
		return "unknown"
	}
}

// FullIndexType is the (kind, mutability, storage) triple reported by
// GetFullIndexType (supplemented feature, see SPEC_FULL.md §C.1).
type FullIndexType struct {
	Kind       VariantKind
	Mutability Mutability
	Storage    StorageKind
}
