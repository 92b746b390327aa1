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

package numeric

import "github.com/erigontech/erigon-payload-index/query"

// matches reports whether key satisfies every populated bound of r.
func matches(key float64, r *query.Range) bool {
	if r.Gt != nil && !(key > *r.Gt) {
		return false
	}
	if r.Gte != nil && !(key >= *r.Gte) {
		return false
	}
	if r.Lt != nil && !(key < *r.Lt) {
		return false
	}
	if r.Lte != nil && !(key <= *r.Lte) {
		return false
	}
	return true
}

// effectiveRange extracts the range this engine should scan for cond,
// whether it arrived as an explicit Range arm or as a Match.Value
// equality (spec §3 "equality via degenerate range"). ok is false when
// cond's shape is native to neither.
func effectiveRange(d Domain, field string, cond query.Condition) (*query.Range, bool) {
	if cond.Range != nil {
		return cond.Range, true
	}
	if cond.Match != nil && cond.Match.Value != nil {
		key, ok, err := d.getValue(field, *cond.Match.Value)
		if err != nil || !ok {
			return nil, false
		}
		return equalityRange(key), true
	}
	return nil, false
}

// equalityRange builds the "equality via degenerate range" condition
// spec §3 names for IntIndex/DatetimeIndex/FloatIndex/UuidIndex: a range
// whose lo and hi both equal key.
func equalityRange(key float64) *query.Range {
	return &query.Range{Gte: &key, Lte: &key}
}

// floatBounds extracts the (lo, hi) pair used to drive both the ordered
// set range scan and the histogram estimate. A nil bound means
// unbounded on that side; the Gt/Lt-vs-Gte/Lte distinction only matters
// for exact membership (matches), not for bucket-level estimation.
func floatBounds(r *query.Range) (lo, hi *float64) {
	switch {
	case r.Gte != nil:
		lo = r.Gte
	case r.Gt != nil:
		lo = r.Gt
	}
	switch {
	case r.Lte != nil:
		hi = r.Lte
	case r.Lt != nil:
		hi = r.Lt
	}
	return lo, hi
}
