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

// Package mapindex implements the discrete-value inverted index (spec
// §4.3): IntMapIndex, KeywordIndex and UuidMapIndex share this engine,
// differing only in Domain's raw-value projection and byte encoding.
//
// Grounded on original_source/field_index_base.rs's MapIndex
// description. The keyword variant "hashes the string for the inverted
// bucket but stores the full string for the forward map and for
// predicate equality" (spec §4.3) — here the inverted bucket key is the
// encoded byte string itself (Go's map/byte-compare already gives
// O(1)/O(log n) lookup without a separate hash step); the forward map
// keeps the same encoded keys, and Domain decodes them back into a
// common.RawValue where one is needed.
package mapindex

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/erigontech/erigon-payload-index/common"
)

type Domain uint8

const (
	DomainIntMap Domain = iota
	DomainKeyword
	DomainUUIDMap
)

func (d Domain) Variant() common.VariantKind {
	switch d {
	case DomainIntMap:
		return common.VariantIntMap
	case DomainUUIDMap:
		return common.VariantUUIDMap
	default:
		return common.VariantKeyword
	}
}

const signBit = uint64(1) << 63

// getValue projects+encodes a raw value into this domain's inverted
// index key. ok is false when v's Go type does not fit this domain
// (spec §4.7: "silently skipping").
func (d Domain) getValue(v common.RawValue) (key string, ok bool) {
	switch d {
	case DomainIntMap:
		i, ok := common.AsInt64(v)
		if !ok {
			return "", false
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(i)^signBit)
		return string(buf[:]), true
	case DomainUUIDMap:
		u, ok := common.AsUUID(v)
		if !ok {
			return "", false
		}
		return string(u[:]), true
	default: // DomainKeyword
		s, ok := common.AsKeyword(v)
		if !ok {
			return "", false
		}
		return s, true
	}
}

// decode reconstructs a common.RawValue from an encoded key, for
// telemetry and forward-map responses; not on any hot path.
func (d Domain) decode(key string) common.RawValue {
	switch d {
	case DomainIntMap:
		if len(key) != 8 {
			return nil
		}
		u := binary.BigEndian.Uint64([]byte(key)) ^ signBit
		return int64(u)
	case DomainUUIDMap:
		if len(key) != 16 {
			return nil
		}
		var u uuid.UUID
		copy(u[:], key)
		return u
	default:
		return key
	}
}

// projectValues implements the shared add_point "Flatten" + "get_value"
// steps of spec §4.7, returning the encoded keys to insert for one
// point.
func (d Domain) projectValues(raw []common.RawValue) []string {
	flat := common.FlattenOneLevel(raw)
	out := make([]string, 0, len(flat))
	for _, v := range flat {
		if k, ok := d.getValue(v); ok {
			out = append(out, k)
		}
	}
	return out
}
