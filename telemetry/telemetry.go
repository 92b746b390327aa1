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

// Package telemetry instruments a query.VariantIndex with per-operation
// latency statistics — a call count, total and maximum per operation
// name, with no bucketed latency histogram; query.Telemetry itself has
// no room for these, since it reports index-wide counts, not operation
// timing — and logs periodic
// structured summaries through go.uber.org/zap, following the teacher's
// one-package-level-logger-per-subsystem convention.
package telemetry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

var log = zap.L().Named("fieldindex.telemetry")

// OpStats accumulates latency for one operation name as a count, a
// running total and a maximum. It keeps no per-bucket distribution of
// latencies.
type OpStats struct {
	Count      uint64
	TotalNanos uint64
	MaxNanos   uint64
}

func (s *OpStats) observe(d time.Duration) {
	n := uint64(d.Nanoseconds())
	s.Count++
	s.TotalNanos += n
	if n > s.MaxNanos {
		s.MaxNanos = n
	}
}

// Mean is zero for an OpStats with no observations, not a divide-by-zero
// panic.
func (s OpStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return time.Duration(s.TotalNanos / s.Count)
}

// Recorder tracks per-operation OpStats for one field index instance.
type Recorder struct {
	field string
	log   *zap.Logger

	mu  sync.Mutex
	ops map[string]*OpStats
}

// NewRecorder builds a Recorder for field, logging under the package
// logger named with the field so concurrent indexes' summaries don't
// interleave unlabeled.
func NewRecorder(field string) *Recorder {
	return &Recorder{field: field, log: log.With(zap.String("field", field)), ops: make(map[string]*OpStats)}
}

func (r *Recorder) observe(op string, start time.Time) {
	d := time.Since(start)
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.ops[op]
	if !ok {
		s = &OpStats{}
		r.ops[op] = s
	}
	s.observe(d)
}

// Snapshot returns a copy of the current per-operation stats, safe to
// read from concurrently with further observations.
func (r *Recorder) Snapshot() map[string]OpStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OpStats, len(r.ops))
	for op, s := range r.ops {
		out[op] = *s
	}
	return out
}

// LogSummary emits one structured zap line per recorded operation,
// meant to be called periodically (e.g. from a collection engine's
// background telemetry tick), not on every call.
func (r *Recorder) LogSummary() {
	for op, s := range r.Snapshot() {
		if s.Count == 0 {
			continue
		}
		r.log.Info("field index operation latency",
			zap.String("op", op),
			zap.Uint64("count", s.Count),
			zap.Duration("mean", s.Mean()),
			zap.Duration("max", time.Duration(s.MaxNanos)),
		)
	}
}

// Instrumented wraps a query.VariantIndex, timing the operations that
// matter for planner cost decisions (Filter, EstimateCardinality,
// PayloadBlocks) and the mutation path (AddPoint, RemovePoint), and
// otherwise delegating unchanged via the embedded interface.
type Instrumented struct {
	query.VariantIndex
	rec *Recorder
}

// Wrap instruments idx, logging under field's name.
func Wrap(field string, idx query.VariantIndex) *Instrumented {
	return &Instrumented{VariantIndex: idx, rec: NewRecorder(field)}
}

// Recorder exposes the underlying Recorder for callers that want to
// drive LogSummary from their own ticker instead of relying on a
// default cadence this package doesn't impose.
func (i *Instrumented) Recorder() *Recorder { return i.rec }

func (i *Instrumented) Filter(cond query.Condition, hw *hwcounter.Counter) (query.PointIter, bool) {
	defer i.rec.observe("filter", time.Now())
	return i.VariantIndex.Filter(cond, hw)
}

func (i *Instrumented) EstimateCardinality(cond query.Condition) (query.Estimate, bool) {
	defer i.rec.observe("estimate_cardinality", time.Now())
	return i.VariantIndex.EstimateCardinality(cond)
}

func (i *Instrumented) PayloadBlocks(threshold int, key string) query.BlockIter {
	defer i.rec.observe("payload_blocks", time.Now())
	return i.VariantIndex.PayloadBlocks(threshold, key)
}

func (i *Instrumented) AddPoint(id common.PointID, values []common.RawValue, hw *hwcounter.Counter) error {
	defer i.rec.observe("add_point", time.Now())
	return i.VariantIndex.AddPoint(id, values, hw)
}

func (i *Instrumented) RemovePoint(id common.PointID) error {
	defer i.rec.observe("remove_point", time.Now())
	return i.VariantIndex.RemovePoint(id)
}

var _ query.VariantIndex = (*Instrumented)(nil)
