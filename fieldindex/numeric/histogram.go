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

import (
	"sort"

	"github.com/erigontech/erigon-payload-index/common/mathutil"
	"github.com/erigontech/erigon-payload-index/query"
)

// DefaultBuckets is the target bucket count K for the equi-depth
// histogram (spec §4.2). A weak index (design note §9): never
// authoritative for membership, only for EstimateCardinality.
const DefaultBuckets = 64

// Histogram is an equi-depth histogram over the key space, rebuilt from
// scratch periodically and updated incrementally between rebuilds by
// bumping the bucket a key's insert/remove falls into. Staying
// consistent under every mutation is the contract design note §9 calls
// out; Insert/Remove below are how that contract is kept between
// rebuilds.
type Histogram struct {
	bounds []float64 // len(buckets)+1, bounds[i] <= keys in bucket i < bounds[i+1]
	counts []uint64
	stale  bool
}

// NewHistogram rebuilds a histogram with up to DefaultBuckets equi-depth
// buckets from a fully sorted key slice (ascending).
func NewHistogram(sortedKeys []float64) *Histogram {
	h := &Histogram{}
	h.Rebuild(sortedKeys)
	return h
}

// Rebuild recomputes equi-depth bucket boundaries from sortedKeys
// (ascending). Call after a burst of mutations to clear staleness.
func (h *Histogram) Rebuild(sortedKeys []float64) {
	n := len(sortedKeys)
	if n == 0 {
		h.bounds = nil
		h.counts = nil
		h.stale = false
		return
	}
	numBuckets := mathutil.Clamp(mathutil.CeilDiv(n, 8), 1, DefaultBuckets)
	depth := mathutil.CeilDiv(n, numBuckets)
	bounds := make([]float64, 0, numBuckets+1)
	counts := make([]uint64, 0, numBuckets)
	bounds = append(bounds, sortedKeys[0])
	i := 0
	for i < n {
		end := i + depth
		if end > n {
			end = n
		}
		counts = append(counts, uint64(end-i))
		i = end
		if i < n {
			bounds = append(bounds, sortedKeys[i])
		}
	}
	bounds = append(bounds, sortedKeys[n-1])
	h.bounds = bounds
	h.counts = counts
	h.stale = false
}

// bucketOf returns the index of the bucket containing key, via binary
// search on the upper bounds.
func (h *Histogram) bucketOf(key float64) int {
	if len(h.counts) == 0 {
		return -1
	}
	// bounds has len(counts)+1 entries; bucket i covers [bounds[i], bounds[i+1]].
	idx := sort.Search(len(h.counts), func(i int) bool { return h.bounds[i+1] >= key })
	if idx >= len(h.counts) {
		idx = len(h.counts) - 1
	}
	return idx
}

// Insert bumps the bucket containing key. Does not move boundaries —
// repeated skew makes the histogram stale until the next Rebuild.
func (h *Histogram) Insert(key float64) {
	if len(h.counts) == 0 {
		h.bounds = []float64{key, key}
		h.counts = []uint64{1}
		return
	}
	b := h.bucketOf(key)
	h.counts[b]++
	if key < h.bounds[0] {
		h.bounds[0] = key
		h.stale = true
	}
	if key > h.bounds[len(h.bounds)-1] {
		h.bounds[len(h.bounds)-1] = key
		h.stale = true
	}
}

// Remove decrements the bucket containing key.
func (h *Histogram) Remove(key float64) {
	if len(h.counts) == 0 {
		return
	}
	b := h.bucketOf(key)
	if h.counts[b] > 0 {
		h.counts[b]--
	}
}

// Stale reports whether skewed inserts have invalidated the boundary
// invariant since the last Rebuild (telemetry surface only).
func (h *Histogram) Stale() bool { return h.stale }

// EstimateRange computes the (min, expected, max) triple for the closed
// range [lo, hi] (either may be nil = unbounded), per spec §4.2: "a
// range estimate linearly interpolates bucket coverage; expected uses
// bucket midcounts, min/max use worst/best-case assignment of
// partially-covered buckets."
func (h *Histogram) EstimateRange(lo, hi *float64) query.Estimate {
	if len(h.counts) == 0 {
		return query.Estimate{}
	}
	var min, expected, max uint64
	for i, cnt := range h.counts {
		bLo, bHi := h.bounds[i], h.bounds[i+1]
		if hi != nil && bLo > *hi {
			continue
		}
		if lo != nil && bHi < *lo {
			continue
		}
		fullyCovered := (lo == nil || bLo >= *lo) && (hi == nil || bHi <= *hi)
		if fullyCovered {
			min += cnt
			max += cnt
			expected += cnt
			continue
		}
		// Partially covered bucket: best case all of it matches (max),
		// worst case none of it matches (min contributes 0), expected
		// interpolates coverage fraction linearly across the bucket.
		max += cnt
		width := bHi - bLo
		if width <= 0 {
			expected += cnt
			continue
		}
		coveredLo, coveredHi := bLo, bHi
		if lo != nil && *lo > coveredLo {
			coveredLo = *lo
		}
		if hi != nil && *hi < coveredHi {
			coveredHi = *hi
		}
		if coveredHi < coveredLo {
			continue
		}
		frac := (coveredHi - coveredLo) / width
		expected += uint64(frac * float64(cnt))
	}
	return query.Estimate{Min: min, Expected: expected, Max: max}
}
