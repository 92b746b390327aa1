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

package boolindex

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

func eqCond(field string, b bool) query.Condition {
	v := common.RawValue(b)
	return query.Condition{Field: field, Match: &query.Match{Value: &v}}
}

// spec §8 scenario 5: insert (1,true),(2,false),(3,[true,false]);
// equality true -> {1,3}; equality false -> {2,3}.
func TestMutableBoolScenario(t *testing.T) {
	m := NewMutable("flag")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{true}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{false}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{true, false}, hw))

	it, ok := m.Filter(eqCond("flag", true), hw)
	require.ElementsMatch(t, []common.PointID{1, 3}, collectIDs(t, it, ok))

	it2, ok := m.Filter(eqCond("flag", false), hw)
	require.ElementsMatch(t, []common.PointID{2, 3}, collectIDs(t, it2, ok))

	require.Equal(t, uint64(3), m.CountIndexedPoints())
}

func TestMutableRemovePointIdempotent(t *testing.T) {
	m := NewMutable("flag")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{true}, hw))
	require.NoError(t, m.RemovePoint(1))
	require.NoError(t, m.RemovePoint(1))

	it, ok := m.Filter(eqCond("flag", true), hw)
	require.Empty(t, collectIDs(t, it, ok))
	require.Equal(t, uint64(0), m.CountIndexedPoints())
}

func TestAddPointReindexesOnReinsert(t *testing.T) {
	m := NewMutable("flag")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{true}, hw))
	require.NoError(t, m.AddPoint(1, []common.RawValue{false}, hw))

	it, ok := m.Filter(eqCond("flag", true), hw)
	require.Empty(t, collectIDs(t, it, ok))
	it2, ok := m.Filter(eqCond("flag", false), hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it2, ok))
}

func TestPayloadBlocksTwoArms(t *testing.T) {
	m := NewMutable("flag")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{true}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{false}, hw))

	var blocks []query.Block
	for b := range m.PayloadBlocks(0, "flag") {
		blocks = append(blocks, b)
	}
	require.Len(t, blocks, 2)
}

func TestImmutableBuilderMatchesMutable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "flag")
	b := NewImmutableBuilder(dir, "flag")
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{true}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{false}, hw))
	require.NoError(t, b.AddPoint(3, []common.RawValue{true, false}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Index)
	defer idx.Cleanup()
	require.True(t, idx.IsOnDisk())

	it, ok := idx.Filter(eqCond("flag", true), hw)
	require.ElementsMatch(t, []common.PointID{1, 3}, collectIDs(t, it, ok))
	it2, ok := idx.Filter(eqCond("flag", false), hw)
	require.ElementsMatch(t, []common.PointID{2, 3}, collectIDs(t, it2, ok))
	require.Equal(t, uint64(3), idx.CountIndexedPoints())
}

func TestSpecialCheckConditionAlwaysDeclines(t *testing.T) {
	m := NewMutable("flag")
	handled, _ := m.SpecialCheckCondition(eqCond("flag", true), nil)
	require.False(t, handled)
}
