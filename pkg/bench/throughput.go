package bench

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

// ThroughputConfig describes a run of random square queries.
type ThroughputConfig struct {
	Strategy   locations.Strategy
	NumQueries int
	Workers    int
	Bounds     Bounds
	BoxSize    float64 // degrees
	Seed       int64
}

type ThroughputResult struct {
	Strategy      locations.Strategy
	TotalQueries  int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// RunQueries issues cfg.NumQueries random box queries from cfg.Workers
// goroutines. Worker w draws its boxes from a source seeded with
// cfg.Seed+w.
func (h *Harness) RunQueries(ctx context.Context, cfg ThroughputConfig) ThroughputResult {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	var (
		totalResults int64
		failed       int64
		minDuration  = time.Hour
		maxDuration  time.Duration
		durations    []time.Duration
		mu           sync.Mutex
	)

	var opts []locations.QueryOption
	if cfg.Strategy == locations.StrategyKeyRange {
		opts = h.opts
	}

	startTime := time.Now()

	queryCh := make(chan int, cfg.NumQueries)
	var wg sync.WaitGroup

	wg.Add(cfg.Workers)
	for w := 0; w < cfg.Workers; w++ {
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(cfg.Seed + int64(w)))

			for range queryCh {
				lat := cfg.Bounds.MinLat + r.Float64()*max(cfg.Bounds.MaxLat-cfg.Bounds.MinLat-cfg.BoxSize, 0)
				lon := cfg.Bounds.MinLon + r.Float64()*max(cfg.Bounds.MaxLon-cfg.Bounds.MinLon-cfg.BoxSize, 0)
				box := models.NewBoundingBox(lat, lon, min(lat+cfg.BoxSize, 90), min(lon+cfg.BoxSize, 180))

				queryStart := time.Now()
				res, err := h.svc.QueryByRegion(ctx, box, cfg.Strategy, models.Page{}, opts...)
				queryDuration := time.Since(queryStart)

				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&totalResults, int64(res.Count))

				mu.Lock()
				durations = append(durations, queryDuration)
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}(w)
	}

	for i := 0; i < cfg.NumQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	result := ThroughputResult{
		Strategy:      cfg.Strategy,
		TotalQueries:  cfg.NumQueries,
		Failed:        failed,
		TotalDuration: totalDuration,
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults,
	}

	if n := len(durations); n > 0 {
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		result.AvgDuration = sum / time.Duration(n)
		result.AvgResults = float64(totalResults) / float64(n)
	} else {
		result.MinDuration = 0
	}
	if totalDuration > 0 {
		result.QueriesPerSec = float64(cfg.NumQueries) / totalDuration.Seconds()
	}
	return result
}
