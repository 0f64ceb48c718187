package cover

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

func key(t testing.TB, lat, lon float64) cell.ID {
	t.Helper()
	id, err := cell.FromDegrees(lat, lon)
	require.NoError(t, err)
	return id
}

func TestSimpleCoversPointRegion(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	c := New(PolicySimple)

	for i := 0; i < 1000; i++ {
		lat := r.Float64()*180 - 90
		lon := r.Float64()*360 - 180
		k := key(t, lat, lon)

		cov, err := c.Cover(models.NewBoundingBox(lat, lon, lat, lon), 1)
		require.NoError(t, err)
		require.Len(t, cov, 1)
		assert.Equal(t, cell.Range{Min: k, Max: k}, cov[0])
		assert.True(t, cov.Contains(k))
	}
}

func TestSimpleIsCornerRange(t *testing.T) {
	lo := key(t, 30, -130)
	hi := key(t, 45, -120)
	require.Greater(t, lo, hi, "corners sit on faces 4 and 2")

	cov, err := New(PolicySimple).Cover(models.NewBoundingBox(30, -130, 45, -120), 8)
	require.NoError(t, err)
	assert.Equal(t, Covering{{Min: hi, Max: lo}}, cov)

	// Every key of face 3 lies between the two corners.
	assert.True(t, cov.Contains(key(t, 0, 179)))
}

func TestExactNeverMissesPointsInside(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for n := 0; n < 200; n++ {
		box := randomBox(r)
		for _, maxRanges := range []int{1, 4, 16, 64} {
			cov, err := New(PolicyExact).Cover(box, maxRanges)
			require.NoError(t, err)
			require.LessOrEqual(t, len(cov), maxRanges)

			for _, p := range samplePoints(r, box, 50) {
				k := key(t, p.Lat, p.Lon)
				require.Truef(t, cov.Contains(k), "box %+v, maxRanges %d, point %+v", box, maxRanges, p)
			}
		}
	}
}

func TestExactRegionsAcrossFaceEdges(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	boxes := []models.BoundingBox{
		models.NewBoundingBox(30, -130, 45, -120),   // faces 4 and 2
		models.NewBoundingBox(-50, 40, -30, 50),     // around a cube corner
		models.NewBoundingBox(80, -180, 90, 180),    // north pole cap
		models.NewBoundingBox(-90, -10, -85, 10),    // south pole
		models.NewBoundingBox(-10, 170, 10, -170),   // antimeridian
		models.NewBoundingBox(-1e-7, -1e-7, 0, 0),   // centre of face 0
		models.NewBoundingBox(-90, -180, 90, 180),   // world
		models.NewBoundingBox(44.9, 134.9, 45, 135), // small box on face 2
	}

	for _, box := range boxes {
		cov, err := New(PolicyExact).Cover(box, DefaultMaxRanges)
		require.NoError(t, err)
		for _, p := range samplePoints(r, box, 500) {
			require.Truef(t, cov.Contains(key(t, p.Lat, p.Lon)), "box %+v point %+v", box, p)
		}
	}
}

func TestExactWorldIsOneRange(t *testing.T) {
	cov, err := New(PolicyExact).Cover(models.NewBoundingBox(-90, -180, 90, 180), 1)
	require.NoError(t, err)

	want := cell.Range{Min: cell.FromFace(0).RangeMin(), Max: cell.FromFace(5).RangeMax()}
	assert.Equal(t, Covering{want}, cov)
}

func TestExactMatchesRegionCoverer(t *testing.T) {
	box := models.NewBoundingBox(37, -123, 38, -122)
	cov, err := New(PolicyExact).Cover(box, DefaultMaxRanges)
	require.NoError(t, err)
	require.LessOrEqual(t, len(cov), DefaultMaxRanges)

	var candidates []Covering
	for n := DefaultMaxRanges; n <= DefaultMaxRanges<<(maxCellsSteps-1); n *= 2 {
		rc := &s2.RegionCoverer{MaxLevel: cell.MaxLevel, LevelMod: 1, MaxCells: n}
		candidates = append(candidates, Merge(rangesOf(rc.Covering(rectOf(box)))))
	}
	assert.Contains(t, candidates, cov)
}

func TestRectOf(t *testing.T) {
	world := rectOf(models.NewBoundingBox(-90, -180, 90, 180))
	for _, ll := range []s2.LatLng{
		s2.LatLngFromDegrees(90, 0),
		s2.LatLngFromDegrees(-90, 0),
		s2.LatLngFromDegrees(0, 180),
		s2.LatLngFromDegrees(0, -180),
	} {
		assert.True(t, world.ContainsLatLng(ll), ll)
	}

	wrap := rectOf(models.NewBoundingBox(-10, 170, 10, -170))
	assert.True(t, wrap.Lng.IsInverted())
	assert.True(t, wrap.ContainsLatLng(s2.LatLngFromDegrees(0, 180)))
	assert.False(t, wrap.ContainsLatLng(s2.LatLngFromDegrees(0, 0)))

	plain := rectOf(models.NewBoundingBox(37, -123, 38, -122))
	assert.False(t, plain.Lng.IsInverted())
	assert.True(t, plain.ContainsLatLng(s2.LatLngFromDegrees(37.7749, -122.4194)))
}

func TestExactCoversPointRegion(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	c := New(PolicyExact)

	for i := 0; i < 200; i++ {
		lat := r.Float64()*180 - 90
		lon := r.Float64()*360 - 180
		cov, err := c.Cover(models.NewBoundingBox(lat, lon, lat, lon), 4)
		require.NoError(t, err)
		assert.True(t, cov.Contains(key(t, lat, lon)), "lat=%v lon=%v", lat, lon)
	}
}

func TestExactIsSelective(t *testing.T) {
	cov, err := New(PolicyExact).Cover(models.NewBoundingBox(37, -123, 38, -122), DefaultMaxRanges)
	require.NoError(t, err)

	assert.True(t, cov.Contains(key(t, 37.7749, -122.4194)))
	assert.False(t, cov.Contains(key(t, 40.7128, -74.0060)))
	assert.False(t, cov.Contains(key(t, 35.6762, 139.6503)))
}

func TestExactRespectsMaxLevel(t *testing.T) {
	c := &Coverer{Policy: PolicyExact, MaxLevel: 4}
	cov, err := c.Cover(models.NewBoundingBox(37.7, -122.5, 37.8, -122.4), 1000)
	require.NoError(t, err)

	// Every range is a union of cells no deeper than level 4.
	for _, r := range cov {
		assert.GreaterOrEqual(t, uint64(r.Max-r.Min)+1, uint64(1)<<(2*(cell.MaxLevel-4)+1)-1)
	}
	assert.True(t, cov.Contains(key(t, 37.75, -122.45)))
}

func TestCoverWrapsAntimeridian(t *testing.T) {
	box := models.NewBoundingBox(-10, 170, 10, -170)

	for _, p := range []Policy{PolicySimple, PolicyExact} {
		cov, err := New(p).Cover(box, 2)
		require.NoError(t, err, p)
		assert.LessOrEqual(t, len(cov), 2)
		assert.True(t, cov.Contains(key(t, -10, 170)), p)
		assert.True(t, cov.Contains(key(t, 10, 180)), p)
		assert.True(t, cov.Contains(key(t, -10, -180)), p)
		assert.True(t, cov.Contains(key(t, 10, -170)), p)
	}
}

func TestCoverRejectsInvalidArguments(t *testing.T) {
	testCases := []struct {
		name      string
		box       models.BoundingBox
		maxRanges int
		field     string
	}{
		{"zero ranges", models.NewBoundingBox(37, -123, 38, -122), 0, "maxRanges"},
		{"inverted latitude", models.NewBoundingBox(38, -123, 37, -122), 8, "latitude"},
		{"latitude out of range", models.NewBoundingBox(37, -123, 91, -122), 8, "latitude"},
		{"not a number", models.NewBoundingBox(37, math.NaN(), 38, -122), 8, "longitude"},
	}

	for _, tc := range testCases {
		for _, p := range []Policy{PolicySimple, PolicyExact} {
			t.Run(tc.name+"/"+p.String(), func(t *testing.T) {
				_, err := New(p).Cover(tc.box, tc.maxRanges)
				require.ErrorIs(t, err, errs.ErrInvalidArgument)
				field, _ := errs.Field(err)
				assert.Equal(t, tc.field, field)
			})
		}
	}
}

func TestMerge(t *testing.T) {
	face := cell.FromFace(1)
	ch := face.Children()
	rng := func(id cell.ID) cell.Range { return cell.RangeOf(id) }

	got := Merge([]cell.Range{rng(ch[3]), rng(ch[0]), rng(ch[1])})
	require.NotEmpty(t, got)
	for _, r := range got {
		assert.True(t, r.Min <= r.Max)
	}
	// The four children tile the face; merging all of them yields the face.
	all := Merge([]cell.Range{rng(ch[2]), rng(ch[0]), rng(ch[3]), rng(ch[1])})
	assert.Equal(t, Covering{rng(face)}, all)

	assert.Equal(t, Covering{{Min: 1, Max: 9}}, Merge([]cell.Range{{Min: 5, Max: 9}, {Min: 1, Max: 3}}))
	assert.Equal(t, Covering{{Min: 1, Max: 3}, {Min: 7, Max: 9}}, Merge([]cell.Range{{Min: 7, Max: 9}, {Min: 1, Max: 3}}))
	assert.Empty(t, Merge(nil))
}

func TestCoalesce(t *testing.T) {
	ranges := func() Covering {
		return Covering{{Min: 1, Max: 3}, {Min: 11, Max: 13}, {Min: 17, Max: 19}, {Min: 101, Max: 103}}
	}
	assert.Equal(t, Covering{{Min: 1, Max: 3}, {Min: 11, Max: 19}, {Min: 101, Max: 103}}, coalesce(ranges(), 3))
	assert.Equal(t, Covering{{Min: 1, Max: 103}}, coalesce(ranges(), 1))
	assert.Len(t, coalesce(ranges(), 10), 4)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("Exact")
	require.NoError(t, err)
	assert.Equal(t, PolicyExact, p)

	p, err = ParsePolicy("simple")
	require.NoError(t, err)
	assert.Equal(t, PolicySimple, p)

	_, err = ParsePolicy("fuzzy")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func BenchmarkExactCover(b *testing.B) {
	box := models.NewBoundingBox(37, -123, 38, -122)
	c := New(PolicyExact)
	for i := 0; i < b.N; i++ {
		if _, err := c.Cover(box, DefaultMaxRanges); err != nil {
			b.Fatal(err)
		}
	}
}

// randomBox returns boxes from a few metres to a third of the globe wide,
// some wrapping the antimeridian and some touching a pole.
func randomBox(r *rand.Rand) models.BoundingBox {
	size := math.Pow(10, r.Float64()*7.5-6) // 1e-6 .. ~30 degrees
	lat := r.Float64()*180 - 90
	lon := r.Float64()*360 - 180

	minLat := math.Max(lat-size*r.Float64(), -90)
	maxLat := math.Min(lat+size*r.Float64(), 90)
	minLon := lon - size*r.Float64()
	maxLon := lon + size*r.Float64()
	if minLon < -180 {
		minLon += 360
	}
	if maxLon > 180 {
		maxLon -= 360
	}
	return models.NewBoundingBox(minLat, minLon, maxLat, maxLon)
}

// samplePoints returns the corners and edge midpoints of box plus n random
// points inside it.
func samplePoints(r *rand.Rand, box models.BoundingBox, n int) []models.Location {
	latLo, latHi := box.BottomLeft.Lat, box.TopRight.Lat
	lonLo := box.BottomLeft.Lon
	width := box.TopRight.Lon - lonLo
	if box.WrapsAntimeridian() {
		width += 360
	}
	at := func(fLat, fLon float64) models.Location {
		lon := lonLo + fLon*width
		if lon > 180 {
			lon -= 360
		}
		return models.Location{Lat: latLo + fLat*(latHi-latLo), Lon: lon}
	}

	out := []models.Location{
		at(0, 0), at(0, 1), at(1, 0), at(1, 1),
		at(0, 0.5), at(1, 0.5), at(0.5, 0), at(0.5, 1), at(0.5, 0.5),
	}
	for i := 0; i < n; i++ {
		out = append(out, at(r.Float64(), r.Float64()))
	}
	return out
}
