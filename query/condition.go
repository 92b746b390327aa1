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

// Package query holds the planner-facing shapes (FieldCondition, the
// cardinality Estimate, payload Blocks) and the VariantIndex capability
// interface every index engine implements, per spec §6.
package query

import "github.com/erigontech/erigon-payload-index/common"

// Range is the numeric/datetime/uuid-ordered range arm of a condition.
// Exactly the ends that are non-nil are bounding; all four nil means
// unbounded (matches everything the key domain can hold).
type Range struct {
	Gt  *float64
	Gte *float64
	Lt  *float64
	Lte *float64
}

// IsUnbounded reports whether the range has no constraint at all.
func (r Range) IsUnbounded() bool {
	return r.Gt == nil && r.Gte == nil && r.Lt == nil && r.Lte == nil
}

// Match is the discrete-set arm of a condition: exactly one of Value,
// AnyOf, Except, Text, Phrase is populated.
type Match struct {
	Value  *common.RawValue
	AnyOf  []common.RawValue
	Except []common.RawValue
	Text   *string
	Phrase *string
}

// GeoBoundingBox bounds a query by its top-left and bottom-right corners.
type GeoBoundingBox struct {
	TopLeft     common.GeoPoint
	BottomRight common.GeoPoint
}

// GeoRadius bounds a query to points within RadiusMeters of Center.
type GeoRadius struct {
	Center       common.GeoPoint
	RadiusMeters float64
}

// GeoPolygon bounds a query to points inside Exterior and outside every
// ring in Interiors (holes).
type GeoPolygon struct {
	Exterior  []common.GeoPoint
	Interiors [][]common.GeoPoint
}

// Condition is the tagged record described in spec §6: exactly one arm
// is populated. Field is the payload field key the condition targets;
// the facade uses it only for logging/telemetry, the variant engines
// never look at it (they are already scoped to one field).
type Condition struct {
	Field          string
	Range          *Range
	Match          *Match
	GeoBoundingBox *GeoBoundingBox
	GeoRadius      *GeoRadius
	GeoPolygon     *GeoPolygon
	IsNull         bool
	IsEmpty        bool
}

// Shape reports which arm is populated, for routing and logging.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeRange
	ShapeMatchValue
	ShapeMatchAnyOf
	ShapeMatchExcept
	ShapeMatchText
	ShapeMatchPhrase
	ShapeGeoBoundingBox
	ShapeGeoRadius
	ShapeGeoPolygon
	ShapeIsNull
	ShapeIsEmpty
)

func (c Condition) Shape() Shape {
	switch {
	case c.Range != nil:
		return ShapeRange
	case c.Match != nil && c.Match.Value != nil:
		return ShapeMatchValue
	case c.Match != nil && c.Match.AnyOf != nil:
		return ShapeMatchAnyOf
	case c.Match != nil && c.Match.Except != nil:
		return ShapeMatchExcept
	case c.Match != nil && c.Match.Text != nil:
		return ShapeMatchText
	case c.Match != nil && c.Match.Phrase != nil:
		return ShapeMatchPhrase
	case c.GeoBoundingBox != nil:
		return ShapeGeoBoundingBox
	case c.GeoRadius != nil:
		return ShapeGeoRadius
	case c.GeoPolygon != nil:
		return ShapeGeoPolygon
	case c.IsNull:
		return ShapeIsNull
	case c.IsEmpty:
		return ShapeIsEmpty
	default:
		return ShapeNone
	}
}
