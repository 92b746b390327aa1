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

// Package hwcounter implements the thread-owned hardware usage counter
// threaded through every query and mutation (spec §4.9). It is additive
// and cheap and never influences correctness — only request accounting.
package hwcounter

import "sync/atomic"

// Counter accumulates bytes read from disk, bytes of postings
// decompressed, and payload-value comparisons performed, for a single
// caller-owned request. The zero value is ready to use.
type Counter struct {
	diskBytes   atomic.Uint64
	postingBytes atomic.Uint64
	comparisons atomic.Uint64
}

// New returns a fresh, zeroed counter. Callers create one per request
// and pass it down through filter/estimate/add_point/remove_point.
func New() *Counter { return &Counter{} }

// AddDiskBytes charges n bytes read from disk, multiplied by onDisk ? 1
// : 0 as spec §4.9 requires — pass onDisk=false for in-memory indexes to
// make the call itself a no-op rather than special-casing every site.
func (c *Counter) AddDiskBytes(n uint64, onDisk bool) {
	if c == nil || !onDisk {
		return
	}
	c.diskBytes.Add(n)
}

// AddPostingBytes charges n bytes of postings decompressed.
func (c *Counter) AddPostingBytes(n uint64) {
	if c == nil {
		return
	}
	c.postingBytes.Add(n)
}

// AddComparisons charges n payload-value comparisons performed.
func (c *Counter) AddComparisons(n uint64) {
	if c == nil {
		return
	}
	c.comparisons.Add(n)
}

// Snapshot is a point-in-time read of the accumulated counters.
type Snapshot struct {
	DiskBytes    uint64
	PostingBytes uint64
	Comparisons  uint64
}

func (c *Counter) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		DiskBytes:    c.diskBytes.Load(),
		PostingBytes: c.postingBytes.Load(),
		Comparisons:  c.comparisons.Load(),
	}
}

// Merge folds other's counts into c, for fan-in across parallel shards.
func (c *Counter) Merge(other *Counter) {
	if c == nil || other == nil {
		return
	}
	s := other.Snapshot()
	c.diskBytes.Add(s.DiskBytes)
	c.postingBytes.Add(s.PostingBytes)
	c.comparisons.Add(s.Comparisons)
}
