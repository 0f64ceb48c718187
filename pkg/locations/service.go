// Package locations is the entry point for storing points and querying them
// by region, either through cell key ranges or through a plain bounding-box
// filter.
package locations

import (
	"context"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/geo"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/metrics"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store"
)

// DefaultChunkSize is how many points Load commits per transaction.
const DefaultChunkSize = 10000

// Config holds the defaults applied to every query.
type Config struct {
	ChunkSize       int          `yaml:"chunkSize"`
	ScanParallelism int          `yaml:"scanParallelism"`
	Policy          cover.Policy `yaml:"-"`
	MaxLevel        int          `yaml:"maxLevel"`
	MaxRanges       int          `yaml:"maxRanges"`
	Refine          bool         `yaml:"refine"`
}

// DefaultConfig uses the exact covering and refines candidates, so key-range
// and bounding-box queries return the same locations.
func DefaultConfig() Config {
	return Config{
		ChunkSize:       DefaultChunkSize,
		ScanParallelism: 8,
		Policy:          cover.PolicyExact,
		MaxRanges:       cover.DefaultMaxRanges,
		Refine:          true,
	}
}

// QueryResult is one page of a region query.
type QueryResult struct {
	Points []models.StoredLocation `json:"points"`
	Count  int                     `json:"count"`
	// Ranges is the covering that was scanned. It is empty for bounding-box
	// queries.
	Ranges cover.Covering `json:"-"`
}

// Service ingests points and answers region queries over a RangeIndex.
type Service struct {
	index store.RangeIndex
	cfg   Config
}

// New returns a Service over index. Zero config fields take their defaults.
func New(index store.RangeIndex, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ScanParallelism <= 0 {
		cfg.ScanParallelism = def.ScanParallelism
	}
	if cfg.MaxRanges <= 0 {
		cfg.MaxRanges = def.MaxRanges
	}
	return &Service{index: index, cfg: cfg}
}

// Index returns the storage engine behind the service.
func (s *Service) Index() store.RangeIndex {
	return s.index
}

// InsertPoint validates, encodes and stores a single point.
func (s *Service) InsertPoint(ctx context.Context, lat, lon float64) (models.StoredLocation, error) {
	stored, err := s.index.Insert(ctx, models.Location{Lat: lat, Lon: lon})
	if err != nil {
		return models.StoredLocation{}, err
	}

	metrics.LocationsIngestedTotal.Inc()
	log := logging.GetLoggerFromContext(ctx)
	log.Debug().
		Int64("id", stored.ID).
		Str("cellKey", stored.CellID.String()).
		Msg("location stored")

	return stored, nil
}

// Load stores points in chunks, each committed atomically. On failure it
// returns the number of points stored by the chunks that completed.
func (s *Service) Load(ctx context.Context, points []models.Location) (int, error) {
	log := logging.GetLoggerFromContext(ctx)
	start := time.Now()
	loaded := 0

	for i, chunk := range lo.Chunk(points, s.cfg.ChunkSize) {
		if _, err := s.index.InsertBatch(ctx, chunk); err != nil {
			log.Error().Err(err).Int("chunk", i).Int("loaded", loaded).Msg("failed to store chunk")
			return loaded, err
		}
		loaded += len(chunk)
		metrics.LocationsIngestedTotal.Add(float64(len(chunk)))
		log.Debug().Int("chunk", i).Int("loaded", loaded).Msg("chunk stored")
	}

	log.Info().Int("count", loaded).Dur("elapsed", time.Since(start)).Msg("locations loaded")
	return loaded, nil
}

// QueryByRegion returns one page of the locations in box.
//
// With StrategyKeyRange the box is covered with key ranges which are scanned
// concurrently and concatenated in key order. Unless refinement is switched
// off the candidates are then filtered against the box.
// StrategyBoundingBox results are ordered by id.
func (s *Service) QueryByRegion(ctx context.Context, box models.BoundingBox, strategy Strategy, page models.Page, opts ...QueryOption) (QueryResult, error) {
	start := time.Now()
	metrics.QueriesTotal.WithLabelValues(string(strategy)).Inc()

	res, err := s.queryByRegion(ctx, box, strategy, page, opts...)
	if err != nil {
		metrics.QueryFailuresTotal.WithLabelValues(string(strategy)).Inc()
		return QueryResult{}, err
	}

	elapsed := time.Since(start)
	metrics.QueryDurationMs.WithLabelValues(string(strategy)).Observe(float64(elapsed.Microseconds()) / 1000)
	log := logging.GetLoggerFromContext(ctx)
	log.Debug().
		Str("strategy", string(strategy)).
		Int("count", res.Count).
		Int("ranges", len(res.Ranges)).
		Dur("elapsed", elapsed).
		Msg("region query")

	return res, nil
}

func (s *Service) queryByRegion(ctx context.Context, box models.BoundingBox, strategy Strategy, page models.Page, opts ...QueryOption) (QueryResult, error) {
	if err := box.Validate(); err != nil {
		return QueryResult{}, err
	}
	if err := page.Validate(); err != nil {
		return QueryResult{}, err
	}

	switch strategy {
	case StrategyBoundingBox:
		points, err := s.index.ScanBoundingBox(ctx, box, page)
		if err != nil {
			return QueryResult{}, err
		}
		return QueryResult{Points: points, Count: len(points)}, nil
	case StrategyKeyRange:
		return s.queryByKeyRange(ctx, box, page, opts...)
	}

	_, err := ParseStrategy(string(strategy))
	return QueryResult{}, err
}

func (s *Service) queryByKeyRange(ctx context.Context, box models.BoundingBox, page models.Page, opts ...QueryOption) (QueryResult, error) {
	o := queryOptions{
		policy:    s.cfg.Policy,
		maxLevel:  s.cfg.MaxLevel,
		maxRanges: s.cfg.MaxRanges,
		refine:    s.cfg.Refine,
	}
	for _, opt := range opts {
		opt(&o)
	}

	coverer := &cover.Coverer{Policy: o.policy, MaxLevel: o.maxLevel}
	ranges, err := coverer.Cover(box, o.maxRanges)
	if err != nil {
		return QueryResult{}, err
	}
	metrics.CoveringRanges.Observe(float64(len(ranges)))

	// A single range without refinement pages in storage.
	if len(ranges) == 1 && !o.refine {
		points, err := s.index.ScanRange(ctx, ranges[0], page)
		if err != nil {
			return QueryResult{}, err
		}
		metrics.CandidatesScanned.Observe(float64(len(points)))
		return QueryResult{Points: points, Count: len(points), Ranges: ranges}, nil
	}

	candidates, err := s.scanRanges(ctx, ranges)
	if err != nil {
		return QueryResult{}, err
	}
	metrics.CandidatesScanned.Observe(float64(len(candidates)))

	if o.refine {
		candidates = geo.Filter(candidates, box)
	}
	points := models.Paginate(candidates, page)
	return QueryResult{Points: points, Count: len(points), Ranges: ranges}, nil
}

// scanRanges reads every range concurrently and concatenates the results in
// range order.
func (s *Service) scanRanges(ctx context.Context, ranges cover.Covering) ([]models.StoredLocation, error) {
	results := make([][]models.StoredLocation, len(ranges))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ScanParallelism)
	for i, r := range ranges {
		g.Go(func() error {
			points, err := s.index.ScanRange(ctx, r, models.Page{})
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.Flatten(results), nil
}

// QueryNeighbors returns the locations stored in the leaf cell of (lat, lon)
// and in the two leaf cells next to it along the curve.
func (s *Service) QueryNeighbors(ctx context.Context, lat, lon float64, page models.Page) ([]models.StoredLocation, error) {
	key, err := cell.FromDegrees(lat, lon)
	if err != nil {
		return nil, err
	}
	return s.index.ScanRange(ctx, cell.Range{Min: key.Prev(), Max: key.Next()}, page)
}

// QueryByRadius runs QueryByRegion on the box enclosing the circle of
// radiusKm around center. Results are not filtered by distance.
func (s *Service) QueryByRadius(ctx context.Context, center models.Location, radiusKm float64, strategy Strategy, page models.Page, opts ...QueryOption) (QueryResult, error) {
	box, err := geo.RadiusBox(center, radiusKm)
	if err != nil {
		return QueryResult{}, err
	}
	return s.QueryByRegion(ctx, box, strategy, page, opts...)
}
