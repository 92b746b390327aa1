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

package nullindex

import (
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

// spec §8 scenario 6: insert 1 with value, 2 absent, 3 with [];
// is-null -> {2}; is-empty -> {2,3}.
func TestMutableNullScenario(t *testing.T) {
	m := NewMutable("maybe")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"v"}, hw))
	require.NoError(t, m.AddPoint(2, nil, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{}, hw))

	it, ok := m.Filter(query.Condition{Field: "maybe", IsNull: true}, hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))

	it2, ok := m.Filter(query.Condition{Field: "maybe", IsEmpty: true}, hw)
	require.ElementsMatch(t, []common.PointID{2, 3}, collectIDs(t, it2, ok))

	require.Equal(t, 1, m.ValuesCount(1))
	require.Equal(t, 0, m.ValuesCount(2))
	require.False(t, m.ValuesIsEmpty(2))
	require.True(t, m.ValuesIsEmpty(3))
}

func TestMutableRemovePointIdempotent(t *testing.T) {
	m := NewMutable("maybe")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"v"}, hw))
	require.NoError(t, m.RemovePoint(1))
	require.NoError(t, m.RemovePoint(1))
	require.Equal(t, uint64(0), m.CountIndexedPoints())
}

func TestImmutableBuilderMatchesMutable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "maybe")
	b := NewImmutableBuilder(dir, "maybe")
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{"v"}, hw))
	require.NoError(t, b.AddPoint(2, nil, hw))
	require.NoError(t, b.AddPoint(3, []common.RawValue{}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Index)
	defer idx.Cleanup()
	require.True(t, idx.IsOnDisk())

	it, ok := idx.Filter(query.Condition{Field: "maybe", IsNull: true}, hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, ok))
	it2, ok := idx.Filter(query.Condition{Field: "maybe", IsEmpty: true}, hw)
	require.ElementsMatch(t, []common.PointID{2, 3}, collectIDs(t, it2, ok))
	require.Equal(t, 1, idx.ValuesCount(1))
}

func TestPayloadBlocksThreeArms(t *testing.T) {
	m := NewMutable("maybe")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"v"}, hw))
	require.NoError(t, m.AddPoint(2, nil, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{}, hw))

	var blocks []query.Block
	for b := range m.PayloadBlocks(0, "maybe") {
		blocks = append(blocks, b)
	}
	require.Len(t, blocks, 3)
}
