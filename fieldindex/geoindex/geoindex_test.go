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

package geoindex

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

func radiusCond(center common.GeoPoint, meters float64) query.Condition {
	return query.Condition{Field: "loc", GeoRadius: &query.GeoRadius{Center: center, RadiusMeters: meters}}
}

// spec §8 scenario 4: points 1=(0,0), 2=(0.01,0.01), 3=(10,10); radius
// center (0,0) r=5km -> {1,2}.
func TestMutableRadiusScenario(t *testing.T) {
	m := NewMutable("loc")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{common.GeoPoint{Lat: 0, Lon: 0}}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{common.GeoPoint{Lat: 0.01, Lon: 0.01}}, hw))
	require.NoError(t, m.AddPoint(3, []common.RawValue{common.GeoPoint{Lat: 10, Lon: 10}}, hw))

	it, ok := m.Filter(radiusCond(common.GeoPoint{Lat: 0, Lon: 0}, 5000), hw)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, ok))
}

func TestBoundingBoxAndPolygon(t *testing.T) {
	m := NewMutable("loc")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{common.GeoPoint{Lat: 1, Lon: 1}}, hw))
	require.NoError(t, m.AddPoint(2, []common.RawValue{common.GeoPoint{Lat: 50, Lon: 50}}, hw))

	bbox := query.Condition{Field: "loc", GeoBoundingBox: &query.GeoBoundingBox{
		TopLeft:     common.GeoPoint{Lat: 2, Lon: 0},
		BottomRight: common.GeoPoint{Lat: 0, Lon: 2},
	}}
	it, ok := m.Filter(bbox, hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it, ok))

	poly := query.Condition{Field: "loc", GeoPolygon: &query.GeoPolygon{
		Exterior: []common.GeoPoint{
			{Lat: -1, Lon: -1}, {Lat: -1, Lon: 3}, {Lat: 3, Lon: 3}, {Lat: 3, Lon: -1},
		},
	}}
	it2, ok := m.Filter(poly, hw)
	require.ElementsMatch(t, []common.PointID{1}, collectIDs(t, it2, ok))
}

func TestRemovePointIdempotent(t *testing.T) {
	m := NewMutable("loc")
	hw := hwcounter.New()
	require.NoError(t, m.AddPoint(1, []common.RawValue{common.GeoPoint{Lat: 0, Lon: 0}}, hw))
	require.NoError(t, m.RemovePoint(1))
	require.NoError(t, m.RemovePoint(1))
	it, ok := m.Filter(radiusCond(common.GeoPoint{Lat: 0, Lon: 0}, 5000), hw)
	require.Empty(t, collectIDs(t, it, ok))
}

func TestImmutableBuilderMatchesMutable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "loc")
	b := NewImmutableBuilder(dir, "loc")
	require.NoError(t, b.Init())
	hw := hwcounter.New()
	require.NoError(t, b.AddPoint(1, []common.RawValue{common.GeoPoint{Lat: 0, Lon: 0}}, hw))
	require.NoError(t, b.AddPoint(2, []common.RawValue{common.GeoPoint{Lat: 0.01, Lon: 0.01}}, hw))
	require.NoError(t, b.AddPoint(3, []common.RawValue{common.GeoPoint{Lat: 10, Lon: 10}}, hw))
	vi, err := b.Finalize()
	require.NoError(t, err)
	idx := vi.(*Immutable)
	defer idx.Cleanup()

	it, ok := idx.Filter(radiusCond(common.GeoPoint{Lat: 0, Lon: 0}, 5000), hw)
	require.True(t, ok)
	require.ElementsMatch(t, []common.PointID{1, 2}, collectIDs(t, it, true))
	require.Equal(t, uint64(3), idx.CountIndexedPoints())
}

func TestGeohashEncodeDeterministic(t *testing.T) {
	p := common.GeoPoint{Lat: 57.64911, Lon: 10.40744}
	require.Equal(t, Encode(p, 6), Encode(p, 6))
	require.Len(t, Encode(p, 6), 6)
}
