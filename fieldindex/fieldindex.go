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

// Package fieldindex is the planner-facing facade (spec §4.1, design
// note §9 "tagged variant over indexes"): a closed sum type over the
// per-variant engines in its subpackages (numeric, mapindex, geoindex,
// fulltext, boolindex, nullindex). Go has no sum types, so FieldIndex
// keeps a VariantKind discriminant alongside the query.VariantIndex
// interface value, giving callers both ordinary dynamic dispatch and an
// exhaustive switch where the asymmetry design note §9 calls out
// matters (SpecialCheckCondition is only non-trivial for full-text).
package fieldindex

import (
	"fmt"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

// FieldIndex wraps one concrete variant engine with its discriminant.
// It implements query.VariantIndex itself by delegation, so a
// collection engine can hold a slice of *FieldIndex next to the typed
// per-variant value it came from without losing the capability
// interface.
type FieldIndex struct {
	field string
	kind  common.VariantKind
	fidx  common.FullIndexType
	engine query.VariantIndex
}

// Wrap adapts an already-constructed variant engine into the facade.
// Every constructor in this package funnels through it so the
// discriminant and the engine can never disagree.
func Wrap(field string, fidx common.FullIndexType, engine query.VariantIndex) *FieldIndex {
	return &FieldIndex{field: field, kind: fidx.Kind, fidx: fidx, engine: engine}
}

func (f *FieldIndex) Field() string                    { return f.field }
func (f *FieldIndex) Kind() common.VariantKind          { return f.kind }
func (f *FieldIndex) FullIndexType() common.FullIndexType { return f.fidx }

// Engine exposes the concrete per-variant implementation for callers
// that need to type-assert down to e.g. *numeric.Mutable for
// variant-specific operations (RangeAscending/RangeDescending) the
// planner-facing VariantIndex interface deliberately doesn't carry.
func (f *FieldIndex) Engine() query.VariantIndex { return f.engine }

func (f *FieldIndex) String() string {
	return fmt.Sprintf("FieldIndex{field=%q, kind=%s, mutability=%s, storage=%s}",
		f.field, f.fidx.Kind, f.fidx.Mutability, f.fidx.Storage)
}

func (f *FieldIndex) CountIndexedPoints() uint64 { return f.engine.CountIndexedPoints() }

func (f *FieldIndex) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	return f.engine.Filter(cond, hw)
}

func (f *FieldIndex) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	return f.engine.EstimateCardinality(cond)
}

func (f *FieldIndex) PayloadBlocks(threshold int, key string) query.BlockIter {
	return f.engine.PayloadBlocks(threshold, key)
}

// SpecialCheckCondition is the one place the design note's asymmetry
// shows up structurally: every variant but full-text returns (false,
// false) unconditionally, so this is a plain delegation rather than a
// switch on f.kind — the asymmetry lives in the engines, not the
// facade.
func (f *FieldIndex) SpecialCheckCondition(cond query.Condition, raw []common.RawValue) (bool, bool) {
	return f.engine.SpecialCheckCondition(cond, raw)
}

func (f *FieldIndex) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	return f.engine.AddPoint(id, values, hw)
}

func (f *FieldIndex) RemovePoint(id common.PointID) error { return f.engine.RemovePoint(id) }

func (f *FieldIndex) Load() (bool, error)      { return f.engine.Load() }
func (f *FieldIndex) Flusher() func() error    { return f.engine.Flusher() }
func (f *FieldIndex) Files() []string          { return f.engine.Files() }
func (f *FieldIndex) ImmutableFiles() []string { return f.engine.ImmutableFiles() }
func (f *FieldIndex) Cleanup() error           { return f.engine.Cleanup() }
func (f *FieldIndex) Populate() error          { return f.engine.Populate() }
func (f *FieldIndex) ClearCache() error        { return f.engine.ClearCache() }
func (f *FieldIndex) IsOnDisk() bool           { return f.engine.IsOnDisk() }

func (f *FieldIndex) GetTelemetryData() query.Telemetry { return f.engine.GetTelemetryData() }

func (f *FieldIndex) GetFullIndexType() common.FullIndexType { return f.fidx }

var _ query.VariantIndex = (*FieldIndex)(nil)
