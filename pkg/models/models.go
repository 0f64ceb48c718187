package models

import (
	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
)

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports an errs.ErrInvalidArgument naming the offending field
func (l Location) Validate() error {
	return cell.Validate(l.Lat, l.Lon)
}

// CellID encodes the location into its leaf cell key
func (l Location) CellID() (cell.ID, error) {
	return cell.FromDegrees(l.Lat, l.Lon)
}

// StoredLocation is a location as persisted by a storage engine. ID is
// assigned by the engine; CellID never changes after ingest.
type StoredLocation struct {
	ID       int64    `json:"id"`
	Location Location `json:"location"`
	CellID   cell.ID  `json:"cellKey"`
}

// BoundingBox represents a rectangular area defined by two corners.
// A box whose BottomLeft longitude is greater than its TopRight longitude
// wraps across the antimeridian.
type BoundingBox struct {
	BottomLeft Location `json:"bottomLeft"`
	TopRight   Location `json:"topRight"`
}

// NewBoundingBox builds a box from its latitude and longitude intervals
func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) BoundingBox {
	return BoundingBox{
		BottomLeft: Location{Lat: minLat, Lon: minLon},
		TopRight:   Location{Lat: maxLat, Lon: maxLon},
	}
}

// Validate checks both corners and rejects boxes whose latitude interval is
// empty. Longitude inversion is legal and means the box wraps.
func (b BoundingBox) Validate() error {
	if err := b.BottomLeft.Validate(); err != nil {
		return err
	}
	if err := b.TopRight.Validate(); err != nil {
		return err
	}
	if b.BottomLeft.Lat > b.TopRight.Lat {
		return errs.InvalidArgument("latitude", "min %v greater than max %v", b.BottomLeft.Lat, b.TopRight.Lat)
	}
	return nil
}

// WrapsAntimeridian reports whether the longitude interval crosses ±180
func (b BoundingBox) WrapsAntimeridian() bool {
	return b.BottomLeft.Lon > b.TopRight.Lon
}

// Split returns the box itself, or its two halves on either side of the
// antimeridian when it wraps.
func (b BoundingBox) Split() []BoundingBox {
	if !b.WrapsAntimeridian() {
		return []BoundingBox{b}
	}
	return []BoundingBox{
		NewBoundingBox(b.BottomLeft.Lat, b.BottomLeft.Lon, b.TopRight.Lat, 180),
		NewBoundingBox(b.BottomLeft.Lat, -180, b.TopRight.Lat, b.TopRight.Lon),
	}
}

// Page selects a window of an ordered result. Limit <= 0 means no limit.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Validate rejects negative offsets
func (p Page) Validate() error {
	if p.Offset < 0 {
		return errs.InvalidArgument("offset", "%d is negative", p.Offset)
	}
	return nil
}

// Paginate slices items according to the page
func Paginate[T any](items []T, p Page) []T {
	if p.Offset >= len(items) {
		return items[:0]
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}
