package cell

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-cellindex/pkg/errs"
)

var cities = []struct {
	name     string
	lat, lon float64
}{
	{"San Francisco", 37.7749, -122.4194},
	{"Los Angeles", 34.0522, -118.2437},
	{"New York", 40.7128, -74.0060},
	{"Tokyo", 35.6895, 139.6917},
	{"Seoul", 37.5665, 126.9780},
	{"Sydney", -33.8688, 151.2093},
	{"London", 51.5074, -0.1278},
	{"Null Island", 0, 0},
	{"North Pole", 90, 0},
	{"South Pole", -90, 0},
	{"Antimeridian east", 0, 180},
	{"Antimeridian west", 0, -180},
	{"Face corner", 35.26438968, 45},
	{"Face edge", 0, 45},
}

func TestFromDegreesMatchesS2(t *testing.T) {
	for _, c := range cities {
		t.Run(c.name, func(t *testing.T) {
			id, err := FromDegrees(c.lat, c.lon)
			require.NoError(t, err)

			want := s2.CellIDFromLatLng(s2.LatLngFromDegrees(c.lat, c.lon))
			assert.Equal(t, uint64(want), uint64(id))
			assert.True(t, id.IsLeaf())
			assert.True(t, id.IsValid())
		})
	}

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		lat := r.Float64()*180 - 90
		lon := r.Float64()*360 - 180

		id, err := FromDegrees(lat, lon)
		require.NoError(t, err)

		want := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
		require.Equal(t, uint64(want), uint64(id), "lat=%v lon=%v", lat, lon)
	}
}

func TestFromDegreesIsDeterministic(t *testing.T) {
	first, err := FromDegrees(37.7749, -122.4194)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := FromDegrees(37.7749, -122.4194)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFromDegreesRejectsInvalidInput(t *testing.T) {
	testCases := []struct {
		name     string
		lat, lon float64
		field    string
	}{
		{"latitude too high", 90.0001, 0, "latitude"},
		{"latitude too low", -91, 0, "latitude"},
		{"longitude too high", 0, 180.5, "longitude"},
		{"longitude too low", 0, -181, "longitude"},
		{"latitude NaN", math.NaN(), 0, "latitude"},
		{"longitude +Inf", 0, math.Inf(1), "longitude"},
		{"latitude -Inf", math.Inf(-1), 10, "latitude"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromDegrees(tc.lat, tc.lon)
			require.ErrorIs(t, err, errs.ErrInvalidArgument)

			field, ok := errs.Field(err)
			assert.True(t, ok)
			assert.Equal(t, tc.field, field)
		})
	}
}

func TestFaceAssignment(t *testing.T) {
	testCases := []struct {
		lat, lon float64
		face     int
	}{
		{0, 0, 0},
		{0, 90, 1},
		{90, 0, 2},
		{0, 179, 3},
		{0, -90, 4},
		{-90, 0, 5},
		{30, -130, 4},
		{45, -120, 2},
		{37.7749, -122.4194, 4},
	}

	for _, tc := range testCases {
		id, err := FromDegrees(tc.lat, tc.lon)
		require.NoError(t, err)
		assert.Equal(t, tc.face, id.Face(), "lat=%v lon=%v", tc.lat, tc.lon)
	}
}

func TestHierarchy(t *testing.T) {
	leaf, err := FromDegrees(37.7749, -122.4194)
	require.NoError(t, err)
	assert.Equal(t, MaxLevel, leaf.Level())

	want := s2.CellID(leaf)
	for level := 0; level <= MaxLevel; level++ {
		parent := leaf.Parent(level)
		assert.Equal(t, level, parent.Level())
		assert.True(t, parent.Contains(leaf))
		assert.Equal(t, uint64(want.Parent(level)), uint64(parent))
		assert.Equal(t, uint64(want.Parent(level).RangeMin()), uint64(parent.RangeMin()))
		assert.Equal(t, uint64(want.Parent(level).RangeMax()), uint64(parent.RangeMax()))
		assert.Equal(t, want.Parent(level).ToToken(), parent.String())
	}
}

func TestPrevNext(t *testing.T) {
	center, err := FromDegrees(37.7749, -122.4194)
	require.NoError(t, err)

	prev, next := center.Prev(), center.Next()
	assert.Equal(t, uint64(s2.CellID(center).Prev()), uint64(prev))
	assert.Equal(t, uint64(s2.CellID(center).Next()), uint64(next))
	assert.Equal(t, center-2, prev)
	assert.Equal(t, center+2, next)

	r := Range{Min: prev, Max: next}
	assert.True(t, r.Contains(center))
	assert.False(t, r.Contains(next+2))
}

func TestLatLngRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		lat := r.Float64()*160 - 80
		lon := r.Float64()*360 - 180

		id, err := FromDegrees(lat, lon)
		require.NoError(t, err)

		got := id.LatLng()
		assert.InDelta(t, lat, got.Lat, 1e-5)
		assert.InDelta(t, lon, got.Lon, 1e-5)

		want := s2.CellID(id).LatLng()
		assert.InDelta(t, want.Lat.Degrees(), got.Lat, 1e-9)
		assert.InDelta(t, want.Lng.Degrees(), got.Lon, 1e-9)
	}
}

func TestFaceCellsAreContiguous(t *testing.T) {
	for f := 0; f < NumFaces; f++ {
		face := FromFace(f)
		assert.Equal(t, 0, face.Level())
		assert.Equal(t, f, face.Face())
		assert.Equal(t, uint64(s2.CellIDFromFace(f)), uint64(face))
		if f > 0 {
			assert.Equal(t, RangeOf(FromFace(f-1)).Max+2, RangeOf(face).Min)
		}
	}
}

func TestChildrenPartitionParent(t *testing.T) {
	leaf, err := FromDegrees(-33.8688, 151.2093)
	require.NoError(t, err)
	parent := leaf.Parent(5)

	var lo, hi ID = ^ID(0), 0
	var total uint64
	for i, child := range parent.Children() {
		assert.Equal(t, parent.Level()+1, child.Level())
		assert.Equal(t, parent, child.Parent(parent.Level()))
		assert.Equal(t, uint64(s2.CellID(parent).Children()[i]), uint64(child))

		r := RangeOf(child)
		lo = min(lo, r.Min)
		hi = max(hi, r.Max)
		total += uint64(r.Max-r.Min)/2 + 1
	}

	assert.Equal(t, parent.RangeMin(), lo)
	assert.Equal(t, parent.RangeMax(), hi)
	assert.Equal(t, uint64(parent.RangeMax()-parent.RangeMin())/2+1, total)
}

func TestStringIsToken(t *testing.T) {
	assert.Equal(t, "X", ID(0).String())
	assert.Equal(t, "1", FromFace(0).String())
	assert.Equal(t, "b", FromFace(5).String())
}

func BenchmarkFromDegrees(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	lats := make([]float64, 1024)
	lons := make([]float64, 1024)
	for i := range lats {
		lats[i] = r.Float64()*180 - 90
		lons[i] = r.Float64()*360 - 180
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = FromDegrees(lats[i&1023], lons[i&1023])
	}
}
