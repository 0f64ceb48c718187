// Package geo holds the bounding-box predicate used as ground truth for key
// range lookups, and the conversion of point+radius queries to boxes.
package geo

import (
	"math"

	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

const earthRadiusKm = 6371.0

// Matches reports whether loc lies inside box, edges included.
func Matches(loc models.Location, box models.BoundingBox) bool {
	if loc.Lat < box.BottomLeft.Lat || loc.Lat > box.TopRight.Lat {
		return false
	}
	if box.WrapsAntimeridian() {
		return loc.Lon >= box.BottomLeft.Lon || loc.Lon <= box.TopRight.Lon
	}
	return loc.Lon >= box.BottomLeft.Lon && loc.Lon <= box.TopRight.Lon
}

// Filter keeps the candidates that match box, in their original order.
// The input slice is reused.
func Filter(candidates []models.StoredLocation, box models.BoundingBox) []models.StoredLocation {
	out := candidates[:0]
	for _, c := range candidates {
		if Matches(c.Location, box) {
			out = append(out, c)
		}
	}
	return out
}

// RadiusBox returns a box enclosing the circle of radiusKm around center.
// Longitude span widens with latitude; near a pole the box spans every
// longitude. The result wraps across the antimeridian when needed.
func RadiusBox(center models.Location, radiusKm float64) (models.BoundingBox, error) {
	if err := center.Validate(); err != nil {
		return models.BoundingBox{}, err
	}
	if radiusKm < 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return models.BoundingBox{}, errs.InvalidArgument("radius", "%v is not a finite non-negative distance", radiusKm)
	}

	// Convert radius to degrees (approximation)
	deg := (radiusKm / earthRadiusKm) * (180 / math.Pi)

	minLat := math.Max(center.Lat-deg, -90)
	maxLat := math.Min(center.Lat+deg, 90)
	if minLat == -90 || maxLat == 90 {
		return models.NewBoundingBox(minLat, -180, maxLat, 180), nil
	}

	cosLat := math.Min(math.Cos(minLat*math.Pi/180), math.Cos(maxLat*math.Pi/180))
	dLon := deg / cosLat
	if dLon >= 180 {
		return models.NewBoundingBox(minLat, -180, maxLat, 180), nil
	}

	minLon := normalizeLon(center.Lon - dLon)
	maxLon := normalizeLon(center.Lon + dLon)
	return models.NewBoundingBox(minLat, minLon, maxLat, maxLon), nil
}

func normalizeLon(lon float64) float64 {
	switch {
	case lon < -180:
		return lon + 360
	case lon > 180:
		return lon - 360
	}
	return lon
}
