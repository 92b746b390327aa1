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

import (
	"iter"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
)

// PointIter is a lazy, abandon-anywhere sequence of point ids, ascending
// by key (descending iterators are a distinct method, see Range-capable
// engines). Go's range-over-func makes "safe to drop at any yield point"
// (spec §5) the default: the caller simply stops ranging.
type PointIter = iter.Seq[common.PointID]

// BlockIter is a lazy sequence of payload blocks (spec §4.1).
type BlockIter = iter.Seq[Block]

// VariantIndex is the capability set every field index engine
// implements (spec §4.1, §6). The facade in package fieldindex is a
// closed tagged union over these implementations, matching design note
// §9 "tagged variant over indexes" translated to Go: Go has no sum
// types, so the facade keeps a VariantKind discriminant alongside the
// interface value, giving callers both dynamic dispatch and an
// exhaustive switch where one is needed (SpecialCheckCondition, whose
// asymmetry — only full-text overrides it — is the reason the design
// note calls out in the first place).
type VariantIndex interface {
	// CountIndexedPoints returns the number of distinct ids with at
	// least one value for this field.
	CountIndexedPoints() uint64

	// Filter returns (iterator, true) when cond's shape is native to
	// this variant, else (nil, false) — the planner then falls back to
	// scanning with SpecialCheckCondition.
	Filter(cond Condition, hw *hwcounter.Counter) (PointIter, bool)

	// EstimateCardinality mirrors Filter's (value, ok) shape for the
	// planner's cost model.
	EstimateCardinality(cond Condition) (Estimate, bool)

	// PayloadBlocks enumerates dense sub-predicate blocks with at least
	// threshold points each, for the given field key.
	PayloadBlocks(threshold int, key string) BlockIter

	// SpecialCheckCondition returns (matches, true) only when the index
	// holds information not derivable from raw alone (full-text
	// tokenization decisions); otherwise (false, false) meaning
	// "re-check using raw directly".
	SpecialCheckCondition(cond Condition, raw []common.RawValue) (matches bool, applicable bool)

	// AddPoint pre-clears any existing values for id (idempotency, spec
	// §4.7), flattens and projects values, and inserts the result.
	AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error
	// RemovePoint is a no-op, not an error, if id was never indexed.
	RemovePoint(id common.PointID) error

	Load() (bool, error)
	Flusher() func() error
	Files() []string
	ImmutableFiles() []string
	Cleanup() error
	Populate() error
	ClearCache() error
	IsOnDisk() bool
	GetTelemetryData() Telemetry
	GetFullIndexType() common.FullIndexType
}

// Builder mirrors one (variant x storage backend) pair (spec §4.8).
// Output is the concrete VariantIndex Finalize seals and hands back;
// callers type-assert or simply store the VariantIndex.
type Builder interface {
	Init() error
	AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error
	Finalize() (VariantIndex, error)
	// Abort releases partial files if Finalize is never called — a
	// builder must be safe to abandon (spec §4.8 "safe to drop before
	// finalize"); Go has no destructors, so this is explicit.
	Abort() error
}
