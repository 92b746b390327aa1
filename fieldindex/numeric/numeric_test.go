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
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
	"github.com/erigontech/erigon-payload-index/query"
)

func collectIDs(t *testing.T, it query.PointIter, ok bool) []common.PointID {
	t.Helper()
	require.True(t, ok)
	var ids []common.PointID
	for id := range it {
		ids = append(ids, id)
	}
	return ids
}

func rng(lo, hi float64) query.Condition {
	return query.Condition{Field: "n", Range: &query.Range{Gte: &lo, Lte: &hi}}
}

// scenario 1, spec §8: insert (1,10),(2,20),(3,30),(4,20); range [15,25]
// -> {2,4}; cardinality expected in [2,2].
func TestMutableRangeScenario(t *testing.T) {
	m := NewMutable("n", DomainInt)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{int64(20)}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{int64(30)}, hw))
	require.NoError(t, m.AddPoint(4, []common.RawValue{int64(20)}, hw))

	it, ok := m.Filter(rng(15, 25), hw)
	ids := collectIDs(t, it, ok)
	require.ElementsMatch(t, []common.PointID{2, 4}, ids)

	est, ok := m.EstimateCardinality(rng(15, 25))
	require.True(t, ok)
	require.Equal(t, uint64(2), est.Expected)
}

func TestRangeAscendingTiesByID(t *testing.T) {
	m := NewMutable("n", DomainFloat)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(5, []common.RawValue{1.0}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{1.0}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{2.0}, hw))

	var asc []common.PointID
	for _, id := range m.RangeAscending(nil, nil) {
		asc = append(asc, id)
	}
	require.Equal(t, []common.PointID{2, 5, 3}, asc)

	var desc []common.PointID
	for _, id := range m.RangeDescending(nil, nil) {
		desc = append(desc, id)
	}
	require.Equal(t, []common.PointID{3, 5, 2}, desc)
}

func TestRemovePointIdempotentPreClear(t *testing.T) {
	m := NewMutable("n", DomainInt)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{int64(5)}, hw))
	require.NoError(t, m.AddPoint(1, []common.RawValue{int64(9)}, hw))
	it, _ := m.Filter(rng(0, 100), hw)
	var keys []float64
	for range it {
		keys = append(keys, 0)
	}
	require.Len(t, keys, 1) // second AddPoint replaced, not accumulated

	require.NoError(t, m.RemovePoint(1))
	it2, _ := m.Filter(rng(0, 100), hw)
	require.Empty(t, collectIDs(t, it2, true))
}

func TestRemoveUnknownPointIsNoop(t *testing.T) {
	m := NewMutable("n", DomainInt)
	require.NoError(t, m.RemovePoint(42))
	require.Equal(t, uint64(0), m.CountIndexedPoints())
}

func TestNaNRejected(t *testing.T) {
	m := NewMutable("n", DomainFloat)
	hw := hwcounter.New()
	nan := math.NaN()
	err := m.AddPoint(1, []common.RawValue{nan}, hw)
	require.Error(t, err)
}

func TestImmutableBuilderMatchesMutable(t *testing.T) {
	dir := t.TempDir()
	b := NewImmutableBuilder(filepath.Join(dir, "n"), "n", DomainInt)
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{int64(20)}, hw))
	require.NoError(t, b.AddPoint(3, []common.RawValue{int64(30)}, hw))
	require.NoError(t, b.AddPoint(4, []common.RawValue{int64(20)}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Immutable)
	defer idx.Cleanup()

	it, ok := idx.Filter(rng(15, 25), hw)
	require.True(t, ok)
	require.ElementsMatch(t, []common.PointID{2, 4}, collectIDs(t, it, true))
	require.Equal(t, uint64(4), idx.CountIndexedPoints())
}

func TestImmutableRemoveThenFilter(t *testing.T) {
	dir := t.TempDir()
	b := NewImmutableBuilder(filepath.Join(dir, "n"), "n", DomainInt)
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{int64(20)}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Immutable)
	defer idx.Cleanup()

	require.NoError(t, idx.RemovePoint(2))
	it, _ := idx.Filter(rng(0, 100), hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it, true))
}
