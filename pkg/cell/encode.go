package cell

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/kass/go-geo-cellindex/pkg/errs"
)

// LatLng is a position in degrees.
type LatLng struct {
	Lat float64
	Lon float64
}

// FromDegrees encodes a latitude/longitude pair into its leaf key.
// It fails with errs.ErrInvalidArgument when a coordinate is out of range or
// not finite.
func FromDegrees(lat, lon float64) (ID, error) {
	if err := Validate(lat, lon); err != nil {
		return 0, err
	}
	return ID(s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))), nil
}

// Validate checks that lat and lon describe a point on the globe.
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return errs.InvalidArgument("latitude", "%v is not finite", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return errs.InvalidArgument("longitude", "%v is not finite", lon)
	}
	if lat < -90 || lat > 90 {
		return errs.InvalidArgument("latitude", "%v outside [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return errs.InvalidArgument("longitude", "%v outside [-180, 180]", lon)
	}
	return nil
}
