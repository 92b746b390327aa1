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

// Package numeric implements the ordered scalar index (spec §4.2):
// IntIndex, DatetimeIndex, FloatIndex and the ordered-integer encoding
// of UuidIndex all share this engine, differing only in Domain (their
// GetValue projection and BadInput rule).
//
// Grounded on original_source/field_index_base.rs's NumericIndex
// description; the mutable layout's ordered set is storage/ordermap
// (google/btree, from the teacher's go.mod), the immutable layout is
// storage/mmapfile (edsrzf/mmap-go, also from the teacher).
package numeric

import (
	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/common/errs"
)

// Domain selects which raw-value projection and variant tag a numeric
// engine instance uses.
type Domain uint8

const (
	DomainInt Domain = iota
	DomainFloat
	DomainDatetime
	DomainUUIDOrdered
)

func (d Domain) Variant() common.VariantKind {
	switch d {
	case DomainInt:
		return common.VariantInt
	case DomainDatetime:
		return common.VariantDatetime
	case DomainUUIDOrdered:
		return common.VariantUUID
	default:
		return common.VariantFloat
	}
}

// getValue projects a raw payload value onto this domain's float64 key
// space: ok is false when v's Go type does not fit this domain at all
// (spec §4.7: "silently skipping"), distinct from err, which is only
// ever the NaN-rejection BadInput case for the float domain.
//
// UUIDs are projected through their high 64 bits only when used as a
// range key; equality checks go through the uuid map index instead,
// which compares the full 128 bits, so range *scans* over the ordered
// UuidIndex are an approximation the planner double-checks with
// SpecialCheckCondition's raw fallback.
func (d Domain) getValue(field string, v common.RawValue) (key float64, ok bool, err error) {
	switch d {
	case DomainInt:
		i, ok := common.AsInt64(v)
		if !ok {
			return 0, false, nil
		}
		return float64(i), true, nil
	case DomainDatetime:
		i, ok := common.AsDatetimeMicros(v)
		if !ok {
			return 0, false, nil
		}
		return float64(i), true, nil
	case DomainUUIDOrdered:
		u, ok := common.AsUUID(v)
		if !ok {
			return 0, false, nil
		}
		hi, _ := common.UUIDAsOrderedInt(u)
		return float64(hi), true, nil
	default: // DomainFloat
		f, ok, isNaN := common.AsFloat64(v)
		if isNaN {
			return 0, false, errs.BadInputf(field, "NaN is not a valid indexed float value")
		}
		if !ok {
			return 0, false, nil
		}
		return f, true, nil
	}
}

// projectValues implements the shared add_point "Flatten" + "get_value"
// steps of spec §4.7, returning the keys to insert for one point.
func (d Domain) projectValues(field string, raw []common.RawValue) ([]float64, error) {
	flat := common.FlattenOneLevel(raw)
	out := make([]float64, 0, len(flat))
	for _, v := range flat {
		key, ok, err := d.getValue(field, v)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, key)
	}
	return out, nil
}

// kv is the composite (key, point id) ordering unit spec §4.2 requires:
// "Ties on key are broken by point id ascending."
type kv struct {
	Key float64
	ID  common.PointID
}

func lessKV(a, b kv) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.ID < b.ID
}
