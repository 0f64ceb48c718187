package memory

import (
	"context"

	"github.com/dhconnelly/rtreego"
	"golang.org/x/sync/errgroup"

	"github.com/kass/go-geo-cellindex/pkg/geo"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialLocation wraps a stored location to implement rtreego.Spatial
type spatialLocation struct {
	models.StoredLocation
	rect *rtreego.Rect
}

func (s *spatialLocation) Bounds() *rtreego.Rect {
	return s.rect
}

// areaIndex is an R-tree split into longitude bands. Box scans search the
// bands they touch concurrently.
type areaIndex struct {
	partitions []*rtreego.Rtree
	bands      []models.BoundingBox
}

func newAreaIndex(numPartitions int) *areaIndex {
	if numPartitions <= 0 {
		numPartitions = 1
	}

	a := &areaIndex{
		partitions: make([]*rtreego.Rtree, numPartitions),
		bands:      make([]models.BoundingBox, numPartitions),
	}

	lonRange := 360.0 / float64(numPartitions)
	for i := range a.partitions {
		a.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)

		minLon := -180.0 + float64(i)*lonRange
		maxLon := minLon + lonRange
		if i == numPartitions-1 {
			maxLon = 180.0
		}
		a.bands[i] = models.NewBoundingBox(-90, minLon, 90, maxLon)
	}
	return a
}

func (a *areaIndex) partitionOf(lon float64) int {
	idx := int((lon + 180.0) / (360.0 / float64(len(a.partitions))))
	return min(max(idx, 0), len(a.partitions)-1)
}

func (a *areaIndex) insert(loc models.StoredLocation) {
	p := rtreego.Point{loc.Location.Lat, loc.Location.Lon}
	a.partitions[a.partitionOf(loc.Location.Lon)].Insert(&spatialLocation{
		StoredLocation: loc,
		rect:           p.ToRect(tolerance),
	})
}

// search returns every location matching box, in no particular order. A
// location is reported once even if both halves of a wrapping box reach it.
func (a *areaIndex) search(ctx context.Context, box models.BoundingBox) ([]models.StoredLocation, error) {
	results := make([][]models.StoredLocation, len(a.partitions))
	g, ctx := errgroup.WithContext(ctx)

	for idx := range a.partitions {
		parts := a.relevantParts(idx, box)
		if len(parts) == 0 {
			continue
		}

		g.Go(func() error {
			seen := map[int64]struct{}{}
			for _, part := range parts {
				if err := ctx.Err(); err != nil {
					return err
				}

				bounds, err := rtreego.NewRect(
					rtreego.Point{part.BottomLeft.Lat - tolerance, part.BottomLeft.Lon - tolerance},
					[]float64{
						part.TopRight.Lat - part.BottomLeft.Lat + 2*tolerance,
						part.TopRight.Lon - part.BottomLeft.Lon + 2*tolerance,
					},
				)
				if err != nil {
					return err
				}

				for _, item := range a.partitions[idx].SearchIntersect(bounds) {
					sl, ok := item.(*spatialLocation)
					if !ok || !geo.Matches(sl.Location, box) {
						continue
					}
					if _, dup := seen[sl.ID]; dup {
						continue
					}
					seen[sl.ID] = struct{}{}
					results[idx] = append(results[idx], sl.StoredLocation)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.StoredLocation
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// relevantParts returns the non-wrapping pieces of box that overlap the band
// of partition idx.
func (a *areaIndex) relevantParts(idx int, box models.BoundingBox) []models.BoundingBox {
	band := a.bands[idx]
	var parts []models.BoundingBox
	for _, part := range box.Split() {
		if part.BottomLeft.Lon <= band.TopRight.Lon+tolerance &&
			part.TopRight.Lon >= band.BottomLeft.Lon-tolerance {
			parts = append(parts, part)
		}
	}
	return parts
}

func (a *areaIndex) clear() {
	for i := range a.partitions {
		a.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
}
