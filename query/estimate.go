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

package query

// Estimate is the (min, expected, max) triple of point counts matching a
// predicate (spec §4.1): min <= expected <= max <= total indexed points.
type Estimate struct {
	Min      uint64
	Expected uint64
	Max      uint64
}

// Clamp repairs ordering after arithmetic that might have nudged Expected
// outside [Min, Max], and caps everything at total (count_indexed_points).
func (e Estimate) Clamp(total uint64) Estimate {
	if e.Max > total {
		e.Max = total
	}
	if e.Min > e.Max {
		e.Min = e.Max
	}
	if e.Expected < e.Min {
		e.Expected = e.Min
	}
	if e.Expected > e.Max {
		e.Expected = e.Max
	}
	return e
}

// Exact builds a degenerate estimate for a predicate whose match count is
// known exactly (e.g. an equality lookup into an inverted index).
func Exact(n uint64) Estimate { return Estimate{Min: n, Expected: n, Max: n} }

// Block is one payload block (spec §4.1): a sub-predicate paired with
// the cardinality of the points it covers, emitted to guide the vector
// index's filtered-graph shortcut construction.
type Block struct {
	Condition   Condition
	Cardinality Estimate
}

// Telemetry is what GetTelemetryData reports (spec §6).
type Telemetry struct {
	FieldName         string
	PointsCount       uint64
	PointsValuesCount uint64
	StorageBytes      uint64
	PostingsCount     uint64
	HistogramBuckets  int
	HistogramStale    bool
}
