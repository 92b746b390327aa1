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

package geoindex

import (
	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/query"
)

// resolveQuery extracts the search bbox and the exact-match verifier for
// cond's geo arm. ok is false when cond is none of BoundingBox/Radius/
// Polygon, meaning "not native to this variant".
func resolveQuery(cond query.Condition) (b bbox, verify func(common.GeoPoint) bool, ok bool) {
	switch {
	case cond.GeoBoundingBox != nil:
		box := cond.GeoBoundingBox
		b = bboxOf(box.TopLeft, box.BottomRight)
		return b, func(p common.GeoPoint) bool { return inBBox(p, b) }, true
	case cond.GeoRadius != nil:
		r := cond.GeoRadius
		b = circleBBox(r.Center, r.RadiusMeters)
		return b, func(p common.GeoPoint) bool { return haversineMeters(r.Center, p) <= r.RadiusMeters }, true
	case cond.GeoPolygon != nil:
		poly := cond.GeoPolygon
		b = polygonBBox(poly.Exterior)
		return b, func(p common.GeoPoint) bool { return pointInPolygon(p, poly) }, true
	default:
		return bbox{}, nil, false
	}
}

// getValue projects a raw payload value onto the geo domain, silently
// skipping anything that does not fit (spec §4.7).
func getValue(v common.RawValue) (common.GeoPoint, bool) {
	return common.AsGeoPoint(v)
}

func projectValues(raw []common.RawValue) []common.GeoPoint {
	flat := common.FlattenOneLevel(raw)
	out := make([]common.GeoPoint, 0, len(flat))
	for _, v := range flat {
		if p, ok := getValue(v); ok {
			out = append(out, p)
		}
	}
	return out
}
