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

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/fieldindex/numeric"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

func TestOpStatsMeanWithNoObservationsIsZero(t *testing.T) {
	var s OpStats
	require.Zero(t, s.Mean())
}

func TestOpStatsObserveTracksCountAndMax(t *testing.T) {
	var s OpStats
	s.observe(10 * time.Millisecond)
	s.observe(30 * time.Millisecond)
	require.EqualValues(t, 2, s.Count)
	require.Equal(t, uint64((30 * time.Millisecond).Nanoseconds()), s.MaxNanos)
	require.Equal(t, 20*time.Millisecond, s.Mean())
}

func TestRecorderSnapshotIsIndependentCopy(t *testing.T) {
	r := NewRecorder("f")
	r.observe("filter", time.Now().Add(-5*time.Millisecond))

	snap := r.Snapshot()
	require.EqualValues(t, 1, snap["filter"].Count)

	r.observe("filter", time.Now().Add(-5*time.Millisecond))
	require.EqualValues(t, 1, snap["filter"].Count, "snapshot must not see later observations")

	snap2 := r.Snapshot()
	require.EqualValues(t, 2, snap2["filter"].Count)
}

func TestInstrumentedDelegatesAndRecordsFilter(t *testing.T) {
	idx := numeric.NewMutable("age", numeric.DomainInt)
	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{int64(10)}, hw))

	wrapped := Wrap("age", idx)

	gt := 5.0
	cond := query.Condition{Field: "age", Range: &query.Range{Gt: &gt}}
	wrappedIt, wrappedOK := wrapped.Filter(cond, hw)
	directIt, directOK := idx.Filter(cond, hw)
	require.Equal(t, directOK, wrappedOK)

	var wrappedIDs, directIDs []common.PointID
	for id := range wrappedIt {
		wrappedIDs = append(wrappedIDs, id)
	}
	for id := range directIt {
		directIDs = append(directIDs, id)
	}
	require.Equal(t, directIDs, wrappedIDs)

	snap := wrapped.Recorder().Snapshot()
	require.EqualValues(t, 1, snap["filter"].Count)
}

func TestInstrumentedRecordsAddPoint(t *testing.T) {
	idx := numeric.NewMutable("age", numeric.DomainInt)
	wrapped := Wrap("age", idx)
	hw := hwcounter.New()

	require.NoError(t, wrapped.AddPoint(1, []common.RawValue{int64(1)}, hw))
	require.NoError(t, wrapped.AddPoint(2, []common.RawValue{int64(2)}, hw))

	snap := wrapped.Recorder().Snapshot()
	require.EqualValues(t, 2, snap["add_point"].Count)
	require.EqualValues(t, 2, wrapped.CountIndexedPoints())
}

var _ query.VariantIndex = (*Instrumented)(nil)
