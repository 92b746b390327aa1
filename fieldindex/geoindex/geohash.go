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

// Package geoindex implements the geohash cell index (spec §4.5): points
// are mapped to geohash cells at multiple precisions, a cell->posting
// map is kept per level, and bounding-box/radius/polygon queries
// enumerate covering cells at an adaptively chosen level before exact
// haversine/point-in-polygon verification.
//
// No geohash library lives anywhere in the retrieved example pack (the
// two candidates, blevesearch/geo and golang/geo, both implement S2/
// Hilbert cell schemes rather than the base-32 geohash prefix scheme
// this spec names — see DESIGN.md), so this file hand-rolls the
// standard interleaved-bit geohash encoding.
package geoindex

import "github.com/erigontech/erigon-payload-index/common"

const base32Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// MinLevel and MaxLevel bound the geohash precisions maintained per
// point (spec §4.5: "multiple precisions, e.g. levels 1..12").
const (
	MinLevel = 1
	MaxLevel = 12
)

// Encode returns the base-32 geohash of (lat, lon) at the given
// precision (number of characters).
func Encode(p common.GeoPoint, precision int) string {
	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	out := make([]byte, 0, precision)
	bit, ch, even := 0, 0, true
	for len(out) < precision {
		if even {
			mid := (lonLo + lonHi) / 2
			if p.Lon >= mid {
				ch |= 1 << (4 - bit)
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if p.Lat >= mid {
				ch |= 1 << (4 - bit)
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even
		if bit == 4 {
			out = append(out, base32Alphabet[ch])
			bit, ch = 0, 0
		} else {
			bit++
		}
	}
	return string(out)
}

// cellSize returns the (lonWidth, latHeight) of every cell at
// precision, a constant over the whole globe since geohash is a
// uniform binary subdivision.
func cellSize(precision int) (lonWidth, latHeight float64) {
	totalBits := precision * 5
	lonBits := (totalBits + 1) / 2
	latBits := totalBits / 2
	lonWidth = 360.0 / float64(uint64(1)<<uint(lonBits))
	latHeight = 180.0 / float64(uint64(1)<<uint(latBits))
	return
}
