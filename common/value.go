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

package common

import "github.com/google/uuid"

// RawValue is one payload value as handed to AddPoint: a scalar of one
// of the domains in spec §3, or a []RawValue for a one-level array. The
// collection engine is the one JSON-decoding the payload; by the time it
// reaches the index it is already one of these Go types.
type RawValue = any

// GeoPoint is a (latitude, longitude) pair in degrees.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// FlattenOneLevel implements the "Flatten" step of the shared add_point
// contract (spec §4.7): arrays are flattened exactly one level, scalars
// pass through unchanged. Nested arrays are not flattened further — an
// inner []RawValue is handed to the variant's GetValue projection, which
// will reject it (wrong domain) rather than recurse.
func FlattenOneLevel(values []RawValue) []RawValue {
	out := make([]RawValue, 0, len(values))
	for _, v := range values {
		if arr, ok := v.([]RawValue); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// AsInt64 projects a raw value onto the signed 64-bit integer domain.
// Accepts Go int, int32, int64 for convenience at call sites.
func AsInt64(v RawValue) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}

// AsFloat64 projects a raw value onto the 64-bit float domain. NaN is
// rejected here, not downstream, per spec §4.2: "NaN is rejected at
// insert time (fails with BadInput)".
func AsFloat64(v RawValue) (f float64, ok bool, isNaN bool) {
	switch x := v.(type) {
	case float64:
		if x != x { // NaN
			return 0, false, true
		}
		return x, true, false
	case float32:
		f64 := float64(x)
		if f64 != f64 {
			return 0, false, true
		}
		return f64, true, false
	case int:
		return float64(x), true, false
	case int64:
		return float64(x), true, false
	}
	return 0, false, false
}

// AsKeyword projects a raw value onto the keyword (string) domain.
func AsKeyword(v RawValue) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool projects a raw value onto the bool domain.
func AsBool(v RawValue) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// AsGeoPoint projects a raw value onto the geo domain.
func AsGeoPoint(v RawValue) (GeoPoint, bool) {
	g, ok := v.(GeoPoint)
	return g, ok
}

// AsUUID projects a raw value onto the UUID domain, accepting both a
// parsed uuid.UUID and its canonical string encoding.
func AsUUID(v RawValue) (uuid.UUID, bool) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, true
	case string:
		u, err := uuid.Parse(x)
		if err != nil {
			return uuid.UUID{}, false
		}
		return u, true
	}
	return uuid.UUID{}, false
}

// AsDatetimeMicros projects a raw value onto the datetime domain, stored
// as signed microseconds since epoch and compared as an integer (spec §3).
func AsDatetimeMicros(v RawValue) (int64, bool) {
	return AsInt64(v)
}

// UUIDAsOrderedInt encodes a UUID as an ordered 128-bit quantity split
// into two uint64 halves, so the UUID range/ordering index (UuidIndex)
// can reuse the numeric engine's ordered key machinery (spec §3: "UUID:
// also indexable as an ordered integer").
func UUIDAsOrderedInt(u uuid.UUID) (hi, lo uint64) {
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(u[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(u[i])
	}
	return hi, lo
}
