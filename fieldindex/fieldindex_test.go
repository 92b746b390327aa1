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

package fieldindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/fieldindex/fulltext"
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

var allKinds = []common.VariantKind{
	common.VariantInt, common.VariantFloat, common.VariantDatetime, common.VariantUUID,
	common.VariantIntMap, common.VariantKeyword, common.VariantUUIDMap,
	common.VariantGeo, common.VariantFullText, common.VariantBool, common.VariantNull,
}

func TestNewMutableCoversEveryKind(t *testing.T) {
	for _, kind := range allKinds {
		idx, err := NewMutable("f", kind, fulltext.Config{})
		require.NoError(t, err, kind)
		require.Equal(t, kind, idx.Kind())
		require.Equal(t, common.StorageInMemory, idx.FullIndexType().Storage)
		require.Equal(t, common.Mutable, idx.FullIndexType().Mutability)
	}
}

func TestFieldIndexFacadeRoundTrip(t *testing.T) {
	idx, err := NewMutable("age", common.VariantInt, fulltext.Config{})
	require.NoError(t, err)

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{int64(10)}, hw))
	require.NoError(t, idx.AddPoint(2, []common.RawValue{int64(20)}, hw))

	gt := 5.0
	cond := query.Condition{Field: "age", Range: &query.Range{Gt: &gt}}
	it, ok := idx.Filter(cond, hw)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, ok))

	require.Equal(t, "age", idx.Field())
	require.Contains(t, idx.String(), "age")
	require.NotNil(t, idx.Engine())
}

func TestNewOnDiskMutableUnsupportedKindErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewOnDiskMutable(dir, "loc", common.VariantGeo)
	require.Error(t, err)
}

func TestNewOnDiskMutableSupportedKinds(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "n", common.VariantInt)
	require.NoError(t, err)
	defer idx.Cleanup()
	require.Equal(t, common.StorageRocksDBLike, idx.FullIndexType().Storage)
	require.True(t, idx.IsOnDisk())

	dir2 := t.TempDir()
	idx2, err := NewOnDiskMutable(dir2, "tag", common.VariantKeyword)
	require.NoError(t, err)
	defer idx2.Cleanup()
	require.Equal(t, common.StorageBlock, idx2.FullIndexType().Storage)
	require.True(t, idx2.IsOnDisk())
}

func TestMmapRoundTripThroughBuilderAndOpenImmutable(t *testing.T) {
	dir := t.TempDir()
	hw := hwcounter.New()

	b, err := NewBuilder(dir, "n", common.VariantInt, common.StorageMmap, fulltext.Config{})
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.AddPoint(1, []common.RawValue{int64(1)}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{int64(2)}, hw))
	sealed, err := b.Finalize()
	require.NoError(t, err)

	reopened, err := OpenImmutable(dir, "n", common.VariantInt)
	require.NoError(t, err)
	defer reopened.Cleanup()

	lte := 2.0
	it, ok := reopened.Filter(query.Condition{Field: "n", Range: &query.Range{Lte: &lte}}, hw)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, ok))
	require.NoError(t, sealed.Cleanup())
}

func TestOnDiskBuilderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hw := hwcounter.New()

	b, err := NewBuilder(dir, "tag", common.VariantKeyword, common.StorageBlock, fulltext.Config{})
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{"blue"}, hw))
	idx, err := b.Finalize()
	require.NoError(t, err)
	defer idx.Cleanup()

	require.Equal(t, common.StorageBlock, idx.GetFullIndexType().Storage)
	val := common.RawValue("blue")
	it, ok := idx.Filter(query.Condition{Field: "tag", Match: &query.Match{Value: &val}}, hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))
}

func TestNewBuilderUnknownStorageErrors(t *testing.T) {
	_, err := NewBuilder(t.TempDir(), "f", common.VariantInt, common.StorageKind(99), fulltext.Config{})
	require.Error(t, err)
}
