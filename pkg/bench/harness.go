// Package bench compares key-range lookups with bounding-box filtering over
// a reproducible dataset.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

// Preset is a named query region.
type Preset struct {
	Name string
	Box  models.BoundingBox
}

var Presets = []Preset{
	{Name: "small", Box: models.NewBoundingBox(37.7740, -122.4200, 37.7750, -122.4190)},
	{Name: "medium", Box: models.NewBoundingBox(37.0, -123.0, 38.0, -122.0)},
	{Name: "large", Box: models.NewBoundingBox(30.0, -130.0, 45.0, -120.0)},
}

func PresetByName(name string) (Preset, error) {
	for _, p := range Presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, errs.InvalidArgument("preset", "unknown preset %q", name)
}

// Measurement is the outcome of one strategy on one region.
type Measurement struct {
	Strategy locations.Strategy
	Count    int
	Elapsed  time.Duration
	Ranges   int

	ids *roaring64.Bitmap
}

// Comparison reports both strategies on the same region. FalsePositives are
// locations returned by the key-range lookup but outside the region;
// FalseNegatives are locations inside the region it missed.
type Comparison struct {
	KeyRangeMs       float64 `json:"keyRangeMs"`
	BoundingBoxMs    float64 `json:"boundingBoxMs"`
	KeyRangeCount    int     `json:"keyRangeCount"`
	BoundingBoxCount int     `json:"boundingBoxCount"`
	Ranges           int     `json:"ranges"`
	FalsePositives   uint64  `json:"falsePositives"`
	FalseNegatives   uint64  `json:"falseNegatives"`
}

type Harness struct {
	svc  *locations.Service
	opts []locations.QueryOption
}

// NewHarness runs key-range lookups with opts. Without options it uses the
// two-corner range and no refinement, the plain lookup being measured.
func NewHarness(svc *locations.Service, opts ...locations.QueryOption) *Harness {
	if len(opts) == 0 {
		opts = []locations.QueryOption{
			locations.WithPolicy(cover.PolicySimple),
			locations.WithRefine(false),
		}
	}
	return &Harness{svc: svc, opts: opts}
}

// Load ingests points in chunks.
func (h *Harness) Load(ctx context.Context, points []models.Location) (int, error) {
	return h.svc.Load(ctx, points)
}

// Compare runs a single strategy against box and times it.
func (h *Harness) Compare(ctx context.Context, box models.BoundingBox, strategy locations.Strategy) (Measurement, error) {
	var opts []locations.QueryOption
	if strategy == locations.StrategyKeyRange {
		opts = h.opts
	}

	start := time.Now()
	res, err := h.svc.QueryByRegion(ctx, box, strategy, models.Page{}, opts...)
	elapsed := time.Since(start)
	if err != nil {
		return Measurement{}, fmt.Errorf("%s query failed: %w", strategy, err)
	}

	ids := roaring64.New()
	for _, p := range res.Points {
		ids.Add(uint64(p.ID))
	}

	return Measurement{
		Strategy: strategy,
		Count:    res.Count,
		Elapsed:  elapsed,
		Ranges:   len(res.Ranges),
		ids:      ids,
	}, nil
}

// CompareAll runs both strategies on box, one after the other, against the
// same data.
func (h *Harness) CompareAll(ctx context.Context, box models.BoundingBox) (Comparison, error) {
	bbox, err := h.Compare(ctx, box, locations.StrategyBoundingBox)
	if err != nil {
		return Comparison{}, err
	}
	keyRange, err := h.Compare(ctx, box, locations.StrategyKeyRange)
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{
		KeyRangeMs:       millis(keyRange.Elapsed),
		BoundingBoxMs:    millis(bbox.Elapsed),
		KeyRangeCount:    keyRange.Count,
		BoundingBoxCount: bbox.Count,
		Ranges:           keyRange.Ranges,
		FalsePositives:   roaring64.AndNot(keyRange.ids, bbox.ids).GetCardinality(),
		FalseNegatives:   roaring64.AndNot(bbox.ids, keyRange.ids).GetCardinality(),
	}

	log := logging.GetLoggerFromContext(ctx)
	log.Info().
		Float64("keyRangeMs", c.KeyRangeMs).
		Float64("boundingBoxMs", c.BoundingBoxMs).
		Int("keyRangeCount", c.KeyRangeCount).
		Int("boundingBoxCount", c.BoundingBoxCount).
		Uint64("falsePositives", c.FalsePositives).
		Uint64("falseNegatives", c.FalseNegatives).
		Msg("region compared")

	return c, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
