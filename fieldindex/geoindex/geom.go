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
	"math"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/query"
)

const earthRadiusMeters = 6371000.0

// haversineMeters returns the great-circle distance between a and b.
func haversineMeters(a, b common.GeoPoint) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

type bbox struct {
	latMin, latMax, lonMin, lonMax float64
}

func bboxOf(topLeft, bottomRight common.GeoPoint) bbox {
	return bbox{
		latMin: bottomRight.Lat, latMax: topLeft.Lat,
		lonMin: topLeft.Lon, lonMax: bottomRight.Lon,
	}
}

// circleBBox returns the enclosing lat/lon box of a radius-meters
// circle, used to cheaply bound the cell covering before exact
// haversine verification.
func circleBBox(center common.GeoPoint, radiusMeters float64) bbox {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 1e-9 {
		cosLat = 1e-9
	}
	dLon := radiusMeters / (earthRadiusMeters * cosLat) * 180 / math.Pi
	return bbox{
		latMin: center.Lat - dLat, latMax: center.Lat + dLat,
		lonMin: center.Lon - dLon, lonMax: center.Lon + dLon,
	}
}

func polygonBBox(ring []common.GeoPoint) bbox {
	b := bbox{latMin: math.Inf(1), latMax: math.Inf(-1), lonMin: math.Inf(1), lonMax: math.Inf(-1)}
	for _, p := range ring {
		b.latMin = math.Min(b.latMin, p.Lat)
		b.latMax = math.Max(b.latMax, p.Lat)
		b.lonMin = math.Min(b.lonMin, p.Lon)
		b.lonMax = math.Max(b.lonMax, p.Lon)
	}
	return b
}

func inBBox(p common.GeoPoint, b bbox) bool {
	return p.Lat >= b.latMin && p.Lat <= b.latMax && p.Lon >= b.lonMin && p.Lon <= b.lonMax
}

// pointInRing reports whether p is inside ring via the standard
// ray-casting test.
func pointInRing(p common.GeoPoint, ring []common.GeoPoint) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Lon > p.Lon) != (pj.Lon > p.Lon) {
			x := (pj.Lat-pi.Lat)*(p.Lon-pi.Lon)/(pj.Lon-pi.Lon) + pi.Lat
			if p.Lat < x {
				inside = !inside
			}
		}
	}
	return inside
}

// pointInPolygon reports whether p is inside poly's exterior and
// outside every interior ring (hole).
func pointInPolygon(p common.GeoPoint, poly *query.GeoPolygon) bool {
	if !pointInRing(p, poly.Exterior) {
		return false
	}
	for _, hole := range poly.Interiors {
		if pointInRing(p, hole) {
			return false
		}
	}
	return true
}

// coveringLevel picks the finest geohash precision whose grid of cells
// over b numbers at most maxCells, never going below MinLevel — spec
// §4.5 "enclosing cells are enumerated at an adaptively chosen level so
// that at most a small constant number of cells cover the query".
func coveringLevel(b bbox, maxCells int) int {
	level := MinLevel
	for l := MinLevel; l <= MaxLevel; l++ {
		lonW, latH := cellSize(l)
		cols := math.Ceil((b.lonMax-b.lonMin)/lonW) + 1
		rows := math.Ceil((b.latMax-b.latMin)/latH) + 1
		if cols*rows > float64(maxCells) {
			break
		}
		level = l
	}
	return level
}

const defaultMaxCoveringCells = 64

// coveringCells enumerates the distinct geohash cells at level that
// overlap b, by stepping a sample grid across it.
func coveringCells(b bbox, level int) []string {
	lonW, latH := cellSize(level)
	seen := make(map[string]struct{})
	var out []string
	for lat := b.latMin; lat <= b.latMax+latH; lat += latH {
		clampedLat := math.Min(lat, 89.999999)
		for lon := b.lonMin; lon <= b.lonMax+lonW; lon += lonW {
			clampedLon := math.Mod(lon+180, 360) - 180
			cell := Encode(common.GeoPoint{Lat: clampedLat, Lon: clampedLon}, level)
			if _, ok := seen[cell]; !ok {
				seen[cell] = struct{}{}
				out = append(out, cell)
			}
		}
	}
	return out
}
