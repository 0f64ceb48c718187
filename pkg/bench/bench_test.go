package bench

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store/memory"
)

func newHarness(t *testing.T, points []models.Location) *Harness {
	t.Helper()
	h := NewHarness(locations.New(memory.New(), locations.DefaultConfig()))
	n, err := h.Load(context.Background(), points)
	require.NoError(t, err)
	require.Equal(t, len(points), n)
	return h
}

func TestGenerateDatasetIsReproducible(t *testing.T) {
	if testing.Short() {
		t.Skip("generates two million points")
	}

	first := GenerateDataset(DefaultSeed, DefaultCount, DefaultBounds)
	second := GenerateDataset(DefaultSeed, DefaultCount, DefaultBounds)

	require.Len(t, first, DefaultCount)
	require.Equal(t, first, second)
}

func TestGenerateDatasetStaysInBounds(t *testing.T) {
	points := GenerateDataset(DefaultSeed, 10000, DefaultBounds)
	for _, p := range points {
		require.True(t, p.Lat >= 35 && p.Lat < 45, p)
		require.True(t, p.Lon >= 125 && p.Lon < 135, p)
	}

	assert.NotEqual(t, points[:10], GenerateDataset(DefaultSeed+1, 10, DefaultBounds))
	assert.Equal(t, points[:10], GenerateDataset(DefaultSeed, 10, DefaultBounds))
}

func TestLargeRegionKeyRangeCountsAtLeastBoundingBox(t *testing.T) {
	h := newHarness(t, GenerateDataset(7, 20000, WorldBounds))
	large, err := PresetByName("large")
	require.NoError(t, err)

	c, err := h.CompareAll(context.Background(), large.Box)
	require.NoError(t, err)

	assert.Positive(t, c.BoundingBoxCount)
	assert.GreaterOrEqual(t, c.KeyRangeCount, c.BoundingBoxCount)
	assert.Positive(t, c.FalsePositives)
	assert.Equal(t, 1, c.Ranges)
}

func TestCompareAllReportsDivergence(t *testing.T) {
	h := newHarness(t, []models.Location{
		{Lat: 30, Lon: -130},
		{Lat: 45, Lon: -120},
		{Lat: 0, Lon: 179},
	})

	c, err := h.CompareAll(context.Background(), models.NewBoundingBox(30, -130, 45, -120))
	require.NoError(t, err)
	assert.Equal(t, 2, c.BoundingBoxCount)
	assert.Equal(t, 3, c.KeyRangeCount)
	assert.Equal(t, uint64(1), c.FalsePositives)
	assert.Equal(t, uint64(0), c.FalseNegatives)
}

func TestCompareDoesNotChangeData(t *testing.T) {
	ctx := context.Background()
	svc := locations.New(memory.New(), locations.DefaultConfig())
	h := NewHarness(svc)
	_, err := h.Load(ctx, GenerateDataset(DefaultSeed, 5000, DefaultBounds))
	require.NoError(t, err)

	box := models.NewBoundingBox(38, 127, 40, 130)
	first, err := h.CompareAll(ctx, box)
	require.NoError(t, err)
	second, err := h.CompareAll(ctx, box)
	require.NoError(t, err)

	assert.Equal(t, first.KeyRangeCount, second.KeyRangeCount)
	assert.Equal(t, first.BoundingBoxCount, second.BoundingBoxCount)

	count, err := svc.Index().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), count)
}

func TestExactHarnessHasNoDivergence(t *testing.T) {
	ctx := context.Background()
	svc := locations.New(memory.New(), locations.DefaultConfig())
	h := NewHarness(svc, locations.WithRefine(true))
	_, err := h.Load(ctx, GenerateDataset(11, 5000, WorldBounds))
	require.NoError(t, err)

	for _, p := range Presets {
		c, err := h.CompareAll(ctx, p.Box)
		require.NoError(t, err, p.Name)
		assert.Equal(t, c.BoundingBoxCount, c.KeyRangeCount, p.Name)
		assert.Zero(t, c.FalsePositives, p.Name)
		assert.Zero(t, c.FalseNegatives, p.Name)
	}
}

func TestRunQueries(t *testing.T) {
	h := newHarness(t, GenerateDataset(DefaultSeed, 2000, DefaultBounds))

	res := h.RunQueries(context.Background(), ThroughputConfig{
		Strategy:   locations.StrategyBoundingBox,
		NumQueries: 50,
		Workers:    4,
		Bounds:     DefaultBounds,
		BoxSize:    1,
		Seed:       1,
	})
	assert.Equal(t, 50, res.TotalQueries)
	assert.Zero(t, res.Failed)
	assert.Positive(t, res.TotalResults)
	assert.LessOrEqual(t, res.MinDuration, res.MaxDuration)
}

func TestPresetByName(t *testing.T) {
	p, err := PresetByName("medium")
	require.NoError(t, err)
	assert.Equal(t, models.NewBoundingBox(37.0, -123.0, 38.0, -122.0), p.Box)

	_, err = PresetByName("huge")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestSaveAndLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.snap")
	points := GenerateDataset(DefaultSeed, 1000, DefaultBounds)

	require.NoError(t, SaveDataset(path, points))
	loaded, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, points, loaded)
}
