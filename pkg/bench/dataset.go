package bench

import (
	"fmt"
	"math/rand"

	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/snapshot"
)

const (
	DefaultSeed  = 1234
	DefaultCount = 1_000_000
)

// Bounds is the rectangle random points are drawn from.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

var (
	// DefaultBounds is the 10x10 degree square the reference dataset uses.
	DefaultBounds = Bounds{MinLat: 35, MaxLat: 45, MinLon: 125, MaxLon: 135}
	WorldBounds   = Bounds{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
)

// GenerateDataset draws count points uniformly from b. The result depends
// only on the arguments.
func GenerateDataset(seed int64, count int, b Bounds) []models.Location {
	r := rand.New(rand.NewSource(seed))

	points := make([]models.Location, count)
	for i := range points {
		lat := b.MinLat + r.Float64()*(b.MaxLat-b.MinLat)
		lon := b.MinLon + r.Float64()*(b.MaxLon-b.MinLon)
		points[i] = models.Location{Lat: lat, Lon: lon}
	}
	return points
}

// SaveDataset writes points to a compressed snapshot file.
func SaveDataset(filename string, points []models.Location) error {
	if err := snapshot.SaveToFile(filename, points); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// LoadDataset reads a dataset written by SaveDataset.
func LoadDataset(filename string) ([]models.Location, error) {
	var points []models.Location
	if err := snapshot.LoadFromFile(filename, &points); err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return points, nil
}
