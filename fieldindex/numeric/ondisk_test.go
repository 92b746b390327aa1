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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
)

func TestOnDiskMutableRangeScenario(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", DomainInt)
	require.NoError(t, err)
	defer idx.Cleanup()

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, idx.AddPoint(2, []common.RawValue{int64(20)}, hw))
	require.NoError(t, idx.AddPoint(3, []common.RawValue{int64(30)}, hw))
	require.NoError(t, idx.AddPoint(4, []common.RawValue{int64(20)}, hw))

	it, ok := idx.Filter(rng(15, 25), hw)
	ids := collectIDs(t, it, ok)
	require.ElementsMatch(t, []common.PointID{2, 4}, ids)
	require.EqualValues(t, 4, idx.CountIndexedPoints())
}

func TestOnDiskMutableRemovePointIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", DomainFloat)
	require.NoError(t, err)
	defer idx.Cleanup()

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{1.5}, hw))
	require.NoError(t, idx.RemovePoint(1))
	// Removing a point never indexed, or already removed, is a no-op.
	require.NoError(t, idx.RemovePoint(1))
	require.NoError(t, idx.RemovePoint(999))

	it, ok := idx.Filter(rng(0, 10), hw)
	ids := collectIDs(t, it, ok)
	require.Empty(t, ids)
	require.EqualValues(t, 0, idx.CountIndexedPoints())
}

func TestOnDiskMutableAddPointPreClearsExisting(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", DomainInt)
	require.NoError(t, err)
	defer idx.Cleanup()

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{int64(5)}, hw))
	require.NoError(t, idx.AddPoint(1, []common.RawValue{int64(50)}, hw))

	it, ok := idx.Filter(rng(0, 10), hw)
	require.Empty(t, collectIDs(t, it, ok))

	it, ok = idx.Filter(rng(40, 60), hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it, ok))
}

func TestOnDiskMutableSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", DomainInt)
	require.NoError(t, err)

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, idx.AddPoint(2, []common.RawValue{int64(20)}, hw))
	require.NoError(t, idx.Flusher()())
	require.NoError(t, idx.kv.Close())

	reopened, err := NewOnDiskMutable(dir, "n", DomainInt)
	require.NoError(t, err)
	defer reopened.Cleanup()

	it, ok := reopened.Filter(rng(0, 100), hw)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, ok))
	require.EqualValues(t, 2, reopened.CountIndexedPoints())
}

func TestOnDiskMutableEstimateCardinality(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", DomainInt)
	require.NoError(t, err)
	defer idx.Cleanup()

	hw := hwcounter.New()
	for i := common.PointID(1); i <= 10; i++ {
		require.NoError(t, idx.AddPoint(i, []common.RawValue{int64(i)}, hw))
	}
	est, ok := idx.EstimateCardinality(rng(1, 10))
	require.True(t, ok)
	require.Equal(t, uint64(10), est.Max)
}

func TestOnDiskMutableBuilderFinalizeHandsBackLiveIndex(t *testing.T) {
	dir := t.TempDir()
	b := NewOnDiskMutableBuilder(dir, "n", DomainInt)
	require.NoError(t, b.Init())

	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{int64(20)}, hw))

	engine, err := b.Finalize()
	require.NoError(t, err)
	defer engine.Cleanup()

	it, ok := engine.Filter(rng(0, 100), hw)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, ok))
}

func TestOnDiskMutableBuilderRejectsOutOfOrderIDs(t *testing.T) {
	dir := t.TempDir()
	b := NewOnDiskMutableBuilder(dir, "n", DomainInt)
	require.NoError(t, b.Init())

	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(5, []common.RawValue{int64(1)}, hw))
	err := b.AddPoint(3, []common.RawValue{int64(1)}, hw)
	require.Error(t, err)
	require.NoError(t, b.Abort())
}

func TestOnDiskMutableGetFullIndexType(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", DomainFloat)
	require.NoError(t, err)
	defer idx.Cleanup()

	fidx := idx.GetFullIndexType()
	require.Equal(t, common.VariantFloat, fidx.Kind)
	require.Equal(t, common.Mutable, fidx.Mutability)
	require.Equal(t, common.StorageRocksDBLike, fidx.Storage)
	require.True(t, idx.IsOnDisk())
}
