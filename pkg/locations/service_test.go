package locations

import (
	"bytes"
	"context"
	"math/rand"
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store/memory"
	"github.com/kass/go-geo-cellindex/pkg/store/storetest"
)

var sfArea = models.NewBoundingBox(37.0, -123.0, 38.0, -122.0)

func newFixture(t *testing.T) (*Service, []models.StoredLocation) {
	t.Helper()
	svc := New(memory.New(), DefaultConfig())

	var stored []models.StoredLocation
	for _, c := range storetest.Cities {
		s, err := svc.InsertPoint(context.Background(), c.Lat, c.Lon)
		require.NoError(t, err)
		stored = append(stored, s)
	}
	return svc, stored
}

func ids(points []models.StoredLocation) []int64 {
	return lo.Map(points, func(p models.StoredLocation, _ int) int64 { return p.ID })
}

func TestSanFranciscoAreaWithBothStrategies(t *testing.T) {
	ctx := context.Background()
	svc, stored := newFixture(t)

	for _, strategy := range []Strategy{StrategyKeyRange, StrategyBoundingBox} {
		res, err := svc.QueryByRegion(ctx, sfArea, strategy, models.Page{})
		require.NoError(t, err, strategy)
		require.Equal(t, 1, res.Count, strategy)
		assert.Equal(t, stored[0], res.Points[0], strategy)
	}
}

func TestSimpleCoveringWithoutRefineKeepsSanFrancisco(t *testing.T) {
	svc, stored := newFixture(t)

	res, err := svc.QueryByRegion(context.Background(), sfArea, StrategyKeyRange, models.Page{},
		WithPolicy(cover.PolicySimple), WithRefine(false))
	require.NoError(t, err)
	assert.Contains(t, ids(res.Points), stored[0].ID)
	assert.Len(t, res.Ranges, 1)
}

func TestQueryNeighborsReturnsOnlyThePoint(t *testing.T) {
	svc, stored := newFixture(t)

	found, err := svc.QueryNeighbors(context.Background(), storetest.SanFrancisco.Lat, storetest.SanFrancisco.Lon, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, stored[:1], found)
}

func TestInsertPointRejectsInvalidCoordinates(t *testing.T) {
	svc, _ := newFixture(t)

	_, err := svc.InsertPoint(context.Background(), 37, 181)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	field, _ := errs.Field(err)
	assert.Equal(t, "longitude", field)
}

func TestSimpleCoveringOverCoversAcrossFaces(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), DefaultConfig())
	_, err := svc.Load(ctx, []models.Location{
		{Lat: 30, Lon: -130}, // face 4
		{Lat: 45, Lon: -120}, // face 2
		{Lat: 0, Lon: 179},   // face 3, far outside the region
	})
	require.NoError(t, err)

	region := models.NewBoundingBox(30, -130, 45, -120)

	bbox, err := svc.QueryByRegion(ctx, region, StrategyBoundingBox, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, bbox.Count)

	keyRange, err := svc.QueryByRegion(ctx, region, StrategyKeyRange, models.Page{},
		WithPolicy(cover.PolicySimple), WithRefine(false))
	require.NoError(t, err)
	assert.Equal(t, 3, keyRange.Count)
	assert.Subset(t, ids(keyRange.Points), ids(bbox.Points))
}

func TestExactRefinedKeyRangeAgreesWithBoundingBox(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewSource(99))

	points := make([]models.Location, 5000)
	for i := range points {
		points[i] = models.Location{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
	}
	cfg := DefaultConfig()
	cfg.ChunkSize = 1000
	svc := New(memory.New(), cfg)
	n, err := svc.Load(ctx, points)
	require.NoError(t, err)
	require.Equal(t, len(points), n)

	boxes := []models.BoundingBox{
		sfArea,
		models.NewBoundingBox(30, -130, 45, -120),
		models.NewBoundingBox(-10, 170, 10, -170),
		models.NewBoundingBox(60, -180, 90, 180),
		models.NewBoundingBox(-45, 10, 5, 80),
	}
	for i := 0; i < 20; i++ {
		lat, lon := r.Float64()*160-80, r.Float64()*340-170
		boxes = append(boxes, models.NewBoundingBox(lat, lon, lat+r.Float64()*10, lon+r.Float64()*10))
	}

	for _, box := range boxes {
		bbox, err := svc.QueryByRegion(ctx, box, StrategyBoundingBox, models.Page{})
		require.NoError(t, err)

		for _, maxRanges := range []int{1, 8, 32} {
			keyRange, err := svc.QueryByRegion(ctx, box, StrategyKeyRange, models.Page{}, WithMaxRanges(maxRanges))
			require.NoError(t, err)

			got := ids(keyRange.Points)
			slices.Sort(got)
			assert.Equal(t, ids(bbox.Points), got, "box %+v maxRanges %d", box, maxRanges)
		}
	}
}

func TestKeyRangePagination(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), DefaultConfig())
	_, err := svc.Load(ctx, []models.Location{
		{Lat: 37.1, Lon: -122.9}, {Lat: 37.2, Lon: -122.8}, {Lat: 37.3, Lon: -122.7},
		{Lat: 37.4, Lon: -122.6}, {Lat: 37.5, Lon: -122.5},
	})
	require.NoError(t, err)

	all, err := svc.QueryByRegion(ctx, sfArea, StrategyKeyRange, models.Page{})
	require.NoError(t, err)
	require.Equal(t, 5, all.Count)

	page, err := svc.QueryByRegion(ctx, sfArea, StrategyKeyRange, models.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, all.Points[2:4], page.Points)

	pushed, err := svc.QueryByRegion(ctx, sfArea, StrategyKeyRange, models.Page{Limit: 2},
		WithPolicy(cover.PolicySimple), WithRefine(false))
	require.NoError(t, err)
	assert.LessOrEqual(t, pushed.Count, 2)
}

func TestLoadStopsAtFirstInvalidChunk(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ChunkSize = 2
	svc := New(memory.New(), cfg)

	n, err := svc.Load(ctx, []models.Location{
		{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2},
		{Lat: 3, Lon: 3}, {Lat: 95, Lon: 4},
		{Lat: 5, Lon: 5},
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Equal(t, 2, n)

	count, err := svc.Index().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestQueryByRegionErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFixture(t)

	_, err := svc.QueryByRegion(ctx, sfArea, Strategy("nearest"), models.Page{})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	field, _ := errs.Field(err)
	assert.Equal(t, "strategy", field)

	_, err = svc.QueryByRegion(ctx, models.NewBoundingBox(38, -123, 37, -122), StrategyKeyRange, models.Page{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = svc.QueryByRegion(ctx, sfArea, StrategyKeyRange, models.Page{}, WithMaxRanges(0))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	field, _ = errs.Field(err)
	assert.Equal(t, "maxRanges", field)

	require.NoError(t, svc.Index().Close())
	for _, strategy := range []Strategy{StrategyKeyRange, StrategyBoundingBox} {
		_, err = svc.QueryByRegion(ctx, sfArea, strategy, models.Page{})
		assert.ErrorIs(t, err, errs.ErrStorageUnavailable, strategy)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyRange, s)

	s, err = ParseStrategy("BBOX")
	require.NoError(t, err)
	assert.Equal(t, StrategyBoundingBox, s)

	_, err = ParseStrategy("grid")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestQueryByRadius(t *testing.T) {
	ctx := context.Background()
	svc, stored := newFixture(t)

	for _, strategy := range []Strategy{StrategyKeyRange, StrategyBoundingBox} {
		res, err := svc.QueryByRadius(ctx, models.Location{Lat: 37.8, Lon: -122.4}, 20, strategy, models.Page{})
		require.NoError(t, err)
		assert.Equal(t, stored[:1], res.Points, strategy)
	}

	_, err := svc.QueryByRadius(ctx, storetest.SanFrancisco, -5, StrategyKeyRange, models.Page{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestInteriorRegionAgreesWithBoundingBox(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFixture(t)
	sf := storetest.SanFrancisco
	box := models.NewBoundingBox(sf.Lat-1e-9, sf.Lon-1e-9, sf.Lat+1e-9, sf.Lon+1e-9)

	bbox, err := svc.QueryByRegion(ctx, box, StrategyBoundingBox, models.Page{})
	require.NoError(t, err)
	keyRange, err := svc.QueryByRegion(ctx, box, StrategyKeyRange, models.Page{})
	require.NoError(t, err)

	require.Equal(t, 1, bbox.Count)
	assert.Equal(t, bbox.Points, keyRange.Points)
}

func TestOperationsLogThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.NewContextWithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))
	svc := New(memory.New(), DefaultConfig())

	stored, err := svc.InsertPoint(ctx, 37.7749, -122.4194)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"location stored"`)
	assert.Contains(t, buf.String(), stored.CellID.String())

	buf.Reset()
	_, err = svc.QueryByRegion(ctx, sfArea, StrategyKeyRange, models.Page{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"region query"`)
	assert.Contains(t, buf.String(), `"strategy":"`+string(StrategyKeyRange)+`"`)
}
