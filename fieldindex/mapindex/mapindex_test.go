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

func valueCond(v common.RawValue) query.Condition {
	return query.Condition{Field: "tag", Match: &query.Match{Value: &v}}
}

func anyOfCond(vs ...common.RawValue) query.Condition {
	return query.Condition{Field: "tag", Match: &query.Match{AnyOf: vs}}
}

func exceptCond(vs ...common.RawValue) query.Condition {
	return query.Condition{Field: "tag", Match: &query.Match{Except: vs}}
}

func TestMutableEquality(t *testing.T) {
	m := NewMutable("tag", DomainKeyword)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{"blue"}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{"red", "blue"}, hw))

	it, ok := m.Filter(valueCond("red"), hw)
	require.ElementsMatch(t, []common.PointID{1, 3}, collectIDs(t, it, ok))
}

func TestMutableAnyOfAndExcept(t *testing.T) {
	m := NewMutable("tag", DomainKeyword)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{"blue"}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{"green"}, hw))

	it, ok := m.Filter(anyOfCond("red", "green"), hw)
	require.ElementsMatch(t, []common.PointID{1, 3}, collectIDs(t, it, ok))

	it2, ok := m.Filter(exceptCond("red"), hw)
	require.ElementsMatch(t, []common.PointID{2, 3}, collectIDs(t, it2, ok))
}

func TestMutableRemovePointIdempotent(t *testing.T) {
	m := NewMutable("tag", DomainKeyword)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"red", "blue"}, hw))
	require.NoError(t, m.RemovePoint(1))
	require.NoError(t, m.RemovePoint(1)) // second removal: no-op
	it, ok := m.Filter(valueCond("red"), hw)
	require.Empty(t, collectIDs(t, it, ok))
	require.Equal(t, uint64(0), m.CountIndexedPoints())
}

func TestMutableIntMapAndUUIDMap(t *testing.T) {
	m := NewMutable("code", DomainIntMap)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{int64(-7)}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{int64(42)}, hw))
	it, ok := m.Filter(valueCond(int64(-7)), hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it, ok))
}

func TestImmutableBuilderMatchesMutable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tag")
	b := NewImmutableBuilder(dir, "tag", DomainKeyword)
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{"blue"}, hw))
	require.NoError(t, b.AddPoint(3, []common.RawValue{"red", "blue"}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Immutable)
	defer idx.Cleanup()

	it, ok := idx.Filter(valueCond("red"), hw)
	require.True(t, ok)
	require.ElementsMatch(t, []common.PointID{1, 3}, collectIDs(t, it, true))
	require.Equal(t, uint64(3), idx.CountIndexedPoints())

	it2, ok := idx.Filter(exceptCond("red"), hw)
	require.True(t, ok)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it2, true))
}

func TestImmutableRemoveThenFilter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tag")
	b := NewImmutableBuilder(dir, "tag", DomainKeyword)
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{"red"}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Immutable)
	defer idx.Cleanup()

	require.NoError(t, idx.RemovePoint(1))
	it, _ := idx.Filter(valueCond("red"), hw)
	require.ElementsMatch(t, []common.PointID{2}, collectIDs(t, it, true))
	require.Equal(t, uint64(1), idx.CountIndexedPoints())
}

func TestPayloadBlocksThreshold(t *testing.T) {
	m := NewMutable("tag", DomainKeyword)
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{"red"}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{"red"}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{"blue"}, hw))

	var blocks []query.Block
	for blk := range m.PayloadBlocks(2, "tag") {
		blocks = append(blocks, blk)
	}
	require.Len(t, blocks, 1)
	require.Equal(t, uint64(2), blocks[0].Cardinality.Expected)
}
