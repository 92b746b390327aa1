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

package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/erigontech/erigon-payload-index/common"
)

// point is one line of the NDJSON points file the build command reads.
// Values are still raw encoding/json output (float64, string, bool,
// map[string]any, nil, or []any) — convertValue does the job a real
// collection engine's payload decoder would do, turning those into the
// concrete Go types common.RawValue documents.
type point struct {
	ID     common.PointID `json:"id"`
	Values []any          `json:"values"`
}

// convertValue projects one decoded JSON value onto kind's domain. It
// intentionally duplicates none of the variant packages' own
// getValue/projectValues logic — those still reject anything that
// doesn't fit; this only bridges JSON's limited type set (float64 for
// every number, no UUID or geo point type) to the Go types they expect.
func convertValue(kind common.VariantKind, v any) (common.RawValue, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case common.VariantInt, common.VariantDatetime:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", v)
		}
		return int64(f), nil
	case common.VariantFloat:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", v)
		}
		return f, nil
	case common.VariantUUID, common.VariantUUIDMap:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a uuid string, got %T", v)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse uuid: %w", err)
		}
		return u, nil
	case common.VariantIntMap:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", v)
		}
		return int64(f), nil
	case common.VariantKeyword, common.VariantFullText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		return s, nil
	case common.VariantGeo:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected {lat,lon}, got %T", v)
		}
		lat, _ := m["lat"].(float64)
		lon, _ := m["lon"].(float64)
		return common.GeoPoint{Lat: lat, Lon: lon}, nil
	case common.VariantBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a bool, got %T", v)
		}
		return b, nil
	case common.VariantNull:
		// Null index cares only about presence/absence and array-ness,
		// not the scalar's own type; pass it through unconverted.
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
}

func convertValues(kind common.VariantKind, raw []any) ([]common.RawValue, error) {
	out := make([]common.RawValue, 0, len(raw))
	for i, v := range raw {
		// A nested []any is an array value (spec §4.7's one-level
		// flatten contract): convert each element individually, let
		// common.FlattenOneLevel merge them back at AddPoint time.
		if arr, ok := v.([]any); ok {
			conv, err := convertValues(kind, arr)
			if err != nil {
				return nil, fmt.Errorf("values[%d]: %w", i, err)
			}
			out = append(out, common.RawValue(conv))
			continue
		}
		conv, err := convertValue(kind, v)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		out = append(out, conv)
	}
	return out, nil
}
