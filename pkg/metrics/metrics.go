package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoindex_queries_total",
		Help: "Total number of region queries by strategy",
	}, []string{"strategy"})
	QueryFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoindex_query_failures_total",
		Help: "Total number of failed region queries by strategy",
	}, []string{"strategy"})
	QueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoindex_query_duration_ms",
		Help:    "Region query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"strategy"})
	CandidatesScanned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoindex_keyrange_candidates",
		Help:    "Locations returned by key-range scans before refinement",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	CoveringRanges = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoindex_covering_ranges",
		Help:    "Number of key ranges per covering",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})
	LocationsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoindex_locations_ingested_total",
		Help: "Total number of locations written",
	})
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryFailuresTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(CandidatesScanned)
	prometheus.MustRegister(CoveringRanges)
	prometheus.MustRegister(LocationsIngestedTotal)
}

// Handler exposes the registered metrics for scraping
func Handler() http.Handler { return promhttp.Handler() }
