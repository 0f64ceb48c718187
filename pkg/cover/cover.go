// Package cover turns a query region into key ranges of the cell index.
//
// Two policies are available. PolicySimple encodes the two corners of the box
// and scans everything between them: one range, cheap to compute, but it can
// both miss points (when a face edge or a curve fold crosses the box) and
// return points outside the box. PolicyExact runs an s2.RegionCoverer over
// the box and never misses a point inside it; over-coverage shrinks as the
// range budget grows.
package cover

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

// Policy selects the covering algorithm.
type Policy int

const (
	// PolicySimple is the single range between the two corner keys.
	PolicySimple Policy = iota
	// PolicyExact is the s2 region covering.
	PolicyExact
)

func (p Policy) String() string {
	switch p {
	case PolicySimple:
		return "simple"
	case PolicyExact:
		return "exact"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "simple" or "exact".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return PolicySimple, nil
	case "exact":
		return PolicyExact, nil
	}
	return 0, errs.InvalidArgument("policy", "unknown policy %q", s)
}

// DefaultMaxRanges bounds the number of ranges produced when the caller
// has no opinion.
const DefaultMaxRanges = 8

// Covering is a sorted set of disjoint, non-adjacent key ranges.
type Covering []cell.Range

// Contains reports whether id falls inside one of the ranges.
func (c Covering) Contains(id cell.ID) bool {
	i := sort.Search(len(c), func(i int) bool { return c[i].Max >= id })
	return i < len(c) && c[i].Contains(id)
}

func (c Covering) String() string {
	parts := make([]string, len(c))
	for i, r := range c {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

// Coverer computes coverings. The zero value uses PolicySimple. A Coverer
// holds no mutable state and is safe for concurrent use.
type Coverer struct {
	Policy Policy
	// MaxLevel caps the refinement depth of PolicyExact. Zero means
	// cell.MaxLevel.
	MaxLevel int
}

// New returns a Coverer for the given policy.
func New(policy Policy) *Coverer {
	return &Coverer{Policy: policy}
}

// Cover returns at most maxRanges key ranges for box. Boxes wrapping the
// antimeridian are split internally.
func (c *Coverer) Cover(box models.BoundingBox, maxRanges int) (Covering, error) {
	if maxRanges <= 0 {
		return nil, errs.InvalidArgument("maxRanges", "%d must be positive", maxRanges)
	}
	if err := box.Validate(); err != nil {
		return nil, err
	}

	if c.Policy == PolicyExact {
		return coalesce(c.exact(rectOf(box), maxRanges), maxRanges), nil
	}

	var ranges []cell.Range
	for _, part := range box.Split() {
		ranges = append(ranges, simple(part))
	}
	return coalesce(Merge(ranges), maxRanges), nil
}

func simple(box models.BoundingBox) cell.Range {
	lo, _ := box.BottomLeft.CellID()
	hi, _ := box.TopRight.CellID()
	if lo > hi {
		lo, hi = hi, lo
	}
	return cell.Range{Min: lo, Max: hi}
}

func (c *Coverer) maxLevel() int {
	if c.MaxLevel <= 0 || c.MaxLevel > cell.MaxLevel {
		return cell.MaxLevel
	}
	return c.MaxLevel
}

// maxCellsSteps bounds how many times exact doubles the cell budget past
// maxRanges. Neighbouring cells often merge into one range, so more cells
// than ranges usually fit.
const maxCellsSteps = 4

// maxCells caps the cell budget handed to the region coverer.
const maxCells = 1 << 12

// exact asks the region coverer for progressively finer coverings and keeps
// the finest one whose merged ranges still fit in maxRanges. The first
// attempt may exceed the budget when the box touches more faces than
// maxRanges; Cover coalesces it.
func (c *Coverer) exact(rect s2.Rect, maxRanges int) Covering {
	var best Covering
	for i, n := 0, min(maxRanges, maxCells); i < maxCellsSteps && n <= maxCells; i, n = i+1, n*2 {
		rc := &s2.RegionCoverer{MaxLevel: c.maxLevel(), LevelMod: 1, MaxCells: n}
		merged := Merge(rangesOf(rc.Covering(rect)))
		if best != nil && len(merged) > maxRanges {
			break
		}
		best = merged
	}
	return best
}

func rangesOf(cells s2.CellUnion) []cell.Range {
	out := make([]cell.Range, len(cells))
	for i, id := range cells {
		out[i] = cell.RangeOf(cell.ID(id))
	}
	return out
}

// rectOf converts box to an s2 rectangle. A box whose west edge lies east of
// its east edge wraps the antimeridian, which s1.Interval models directly.
func rectOf(box models.BoundingBox) s2.Rect {
	lo := s2.LatLngFromDegrees(box.BottomLeft.Lat, box.BottomLeft.Lon)
	hi := s2.LatLngFromDegrees(box.TopRight.Lat, box.TopRight.Lon)
	return s2.Rect{
		Lat: r1.Interval{Lo: lo.Lat.Radians(), Hi: hi.Lat.Radians()},
		Lng: s1.IntervalFromEndpoints(lo.Lng.Radians(), hi.Lng.Radians()),
	}
}

// Merge sorts ranges and joins the ones that overlap or touch. Leaf keys are
// odd, so ranges whose ends are two apart leave no key uncovered between them.
func Merge(ranges []cell.Range) Covering {
	if len(ranges) == 0 {
		return Covering{}
	}
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b cell.Range) int {
		switch {
		case a.Min < b.Min:
			return -1
		case a.Min > b.Min:
			return 1
		}
		return 0
	})

	out := Covering{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Min <= last.Max+2 {
			last.Max = max(last.Max, r.Max)
			continue
		}
		out = append(out, r)
	}
	return out
}

// coalesce joins the ranges separated by the smallest gaps until at most n
// remain. Joining only ever adds keys.
func coalesce(c Covering, n int) Covering {
	for len(c) > n {
		best := 0
		for i := 1; i < len(c)-1; i++ {
			if c[i+1].Min-c[i].Max < c[best+1].Min-c[best].Max {
				best = i
			}
		}
		c[best].Max = c[best+1].Max
		c = slices.Delete(c, best+1, best+2)
	}
	return c
}
