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

package mapindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/erigon-payload-index/common"
	"github.com/erigontech/erigon-payload-index/hwcounter"
)

func TestOnDiskMutableAddFilterRemove(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "tag", DomainKeyword)
	require.NoError(t, err)
	defer idx.Cleanup()

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{"red", "blue"}, hw))
	require.NoError(t, idx.AddPoint(2, []common.RawValue{"blue"}, hw))

	it, ok := idx.Filter(valueCond("blue"), hw)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, ok))

	require.NoError(t, idx.RemovePoint(1))
	it, ok = idx.Filter(valueCond("blue"), hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))

	// A point never indexed is a no-op to remove, not an error.
	require.NoError(t, idx.RemovePoint(999))
}

func TestOnDiskMutableReplaysWAL(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "tag", DomainKeyword)
	require.NoError(t, err)

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, idx.AddPoint(2, []common.RawValue{"green"}, hw))
	require.NoError(t, idx.RemovePoint(1))
	require.NoError(t, idx.store.Close())

	reopened, err := NewOnDiskMutable(dir, "tag", DomainKeyword)
	require.NoError(t, err)
	defer reopened.Cleanup()

	it, ok := reopened.Filter(valueCond("red"), hw)
	require.Empty(t, collectIDs(t, it, ok))
	it, ok = reopened.Filter(valueCond("green"), hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))
}

func TestOnDiskMutableCompactionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "tag", DomainKeyword)
	require.NoError(t, err)

	hw := hwcounter.New()
	require.NoError(t, idx.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, idx.AddPoint(2, []common.RawValue{"green"}, hw))
	require.NoError(t, idx.Flusher()())
	require.NoError(t, idx.store.Close())

	reopened, err := NewOnDiskMutable(dir, "tag", DomainKeyword)
	require.NoError(t, err)
	defer reopened.Cleanup()

	it, ok := reopened.Filter(valueCond("red"), hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it, ok))
	it, ok = reopened.Filter(valueCond("green"), hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))
}

func TestOnDiskMutableGetFullIndexType(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewOnDiskMutable(dir, "tag", DomainIntMap)
	require.NoError(t, err)
	defer idx.Cleanup()

	fidx := idx.GetFullIndexType()
	require.Equal(t, common.VariantIntMap, fidx.Kind)
	require.Equal(t, common.Mutable, fidx.Mutability)
	require.Equal(t, common.StorageBlock, fidx.Storage)
	require.True(t, idx.IsOnDisk())
}

func TestOnDiskMutableBuilderFinalizeHandsBackLiveIndex(t *testing.T) {
	dir := t.TempDir()
	b := NewOnDiskMutableBuilder(dir, "tag", DomainKeyword)
	require.NoError(t, b.Init())

	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{"blue"}, hw))

	engine, err := b.Finalize()
	require.NoError(t, err)
	defer engine.Cleanup()

	it, ok := engine.Filter(valueCond("blue"), hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))
}
