// Package storetest holds the behaviour every store.RangeIndex must share,
// written as a suite that adapter packages run against their own engine.
package storetest

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

var (
	SanFrancisco = models.Location{Lat: 37.7749, Lon: -122.4194}
	LosAngeles   = models.Location{Lat: 34.0522, Lon: -118.2437}
	NewYork      = models.Location{Lat: 40.7128, Lon: -74.0060}
	Tokyo        = models.Location{Lat: 35.6762, Lon: 139.6503}

	Cities = []models.Location{SanFrancisco, LosAngeles, NewYork, Tokyo}
)

// Factory returns an empty index. The suite closes it when the subtest ends.
type Factory func(t *testing.T) store.RangeIndex

// Run executes the contract suite against indexes built by newIndex.
func Run(t *testing.T, newIndex Factory) {
	open := func(t *testing.T) store.RangeIndex {
		idx := newIndex(t)
		t.Cleanup(func() { idx.Close() })
		return idx
	}

	t.Run("InsertAssignsIDAndKey", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)

		stored, err := idx.Insert(ctx, SanFrancisco)
		require.NoError(t, err)
		assert.Positive(t, stored.ID)
		assert.Equal(t, SanFrancisco, stored.Location)
		assert.Equal(t, mustKey(t, SanFrancisco), stored.CellID)

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("InsertRejectsInvalidLocation", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)

		_, err := idx.Insert(ctx, models.Location{Lat: 91, Lon: 0})
		require.ErrorIs(t, err, errs.ErrInvalidArgument)
		field, _ := errs.Field(err)
		assert.Equal(t, "latitude", field)

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("InsertBatchIsAllOrNothing", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)

		_, err := idx.InsertBatch(ctx, []models.Location{SanFrancisco, {Lat: 0, Lon: 181}})
		require.ErrorIs(t, err, errs.ErrInvalidArgument)

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		stored, err := idx.InsertBatch(ctx, Cities)
		require.NoError(t, err)
		require.Len(t, stored, len(Cities))
		for i, s := range stored {
			assert.Equal(t, Cities[i], s.Location)
			assert.Equal(t, mustKey(t, Cities[i]), s.CellID)
			if i > 0 {
				assert.Greater(t, s.ID, stored[i-1].ID)
			}
		}

		count, err = idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(Cities)), count)
	})

	t.Run("ScanRangeAroundPointFindsOnlyThatPoint", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)
		_, err := idx.InsertBatch(ctx, Cities)
		require.NoError(t, err)

		sf := mustKey(t, SanFrancisco)
		found, err := idx.ScanRange(ctx, cell.Range{Min: sf.Prev(), Max: sf.Next()}, models.Page{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, SanFrancisco, found[0].Location)
	})

	t.Run("ScanRangeOrdersByKeyThenID", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)
		stored, err := idx.InsertBatch(ctx, append(slices.Clone(Cities), SanFrancisco))
		require.NoError(t, err)

		want := slices.Clone(stored)
		slices.SortFunc(want, compareByKey)

		found, err := idx.ScanRange(ctx, everything(), models.Page{})
		require.NoError(t, err)
		assert.Equal(t, want, found)

		page, err := idx.ScanRange(ctx, everything(), models.Page{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, want[1:3], page)

		tail, err := idx.ScanRange(ctx, everything(), models.Page{Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, want[4:], tail)
	})

	t.Run("ScanRangeWithoutMatchesIsEmpty", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)
		_, err := idx.InsertBatch(ctx, Cities)
		require.NoError(t, err)

		sf := mustKey(t, SanFrancisco)
		found, err := idx.ScanRange(ctx, cell.Range{Min: sf.Next(), Max: sf.Next()}, models.Page{})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("ScanBoundingBoxOrdersByID", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)
		stored, err := idx.InsertBatch(ctx, Cities)
		require.NoError(t, err)

		california := models.NewBoundingBox(32.0, -125.0, 42.0, -114.0)
		found, err := idx.ScanBoundingBox(ctx, california, models.Page{})
		require.NoError(t, err)
		assert.Equal(t, stored[:2], found)

		page, err := idx.ScanBoundingBox(ctx, california, models.Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, stored[1:2], page)

		point := models.NewBoundingBox(Tokyo.Lat, Tokyo.Lon, Tokyo.Lat, Tokyo.Lon)
		found, err = idx.ScanBoundingBox(ctx, point, models.Page{})
		require.NoError(t, err)
		assert.Equal(t, stored[3:4], found)

		empty, err := idx.ScanBoundingBox(ctx, models.NewBoundingBox(-10, -10, 10, 10), models.Page{})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ScanBoundingBoxAcrossAntimeridian", func(t *testing.T) {
		ctx := context.Background()
		idx := open(t)
		stored, err := idx.InsertBatch(ctx, []models.Location{
			{Lat: -17.7, Lon: 179.9},
			{Lat: -17.7, Lon: -179.9},
			{Lat: -17.7, Lon: 0},
		})
		require.NoError(t, err)

		found, err := idx.ScanBoundingBox(ctx, models.NewBoundingBox(-20, 170, -10, -170), models.Page{})
		require.NoError(t, err)
		assert.Equal(t, stored[:2], found)
	})

	t.Run("ScanBoundingBoxRejectsInvalidBox", func(t *testing.T) {
		idx := open(t)
		_, err := idx.ScanBoundingBox(context.Background(), models.NewBoundingBox(10, 0, -10, 5), models.Page{})
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	})
}

func mustKey(t *testing.T, loc models.Location) cell.ID {
	t.Helper()
	id, err := loc.CellID()
	require.NoError(t, err)
	return id
}

func everything() cell.Range {
	return cell.Range{Min: cell.FromFace(0).RangeMin(), Max: cell.FromFace(cell.NumFaces - 1).RangeMax()}
}

func compareByKey(a, b models.StoredLocation) int {
	switch {
	case a.CellID < b.CellID:
		return -1
	case a.CellID > b.CellID:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
