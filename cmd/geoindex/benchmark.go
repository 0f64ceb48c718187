package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/bench"
	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
)

var (
	benchRegion  regionFlags
	exactHarness bool
	numQueries   int
	numWorkers   int
	boxSize      float64
	jsonOutput   bool
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Compare key-range lookups with bounding-box filtering",
	Long: `Run both strategies on the preset regions (or on one given region) and
report timings, counts and the points on which they disagree. With --queries
it instead measures throughput on random boxes.`,
	RunE: runBenchmark,
}

func init() {
	benchRegion.register(benchmarkCmd)
	benchmarkCmd.Flags().BoolVar(&exactHarness, "exact", false, "Use the exact covering with refinement instead of the two-corner range")
	benchmarkCmd.Flags().IntVarP(&numQueries, "queries", "q", 0, "Number of random queries for a throughput run")
	benchmarkCmd.Flags().IntVarP(&numWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchmarkCmd.Flags().Float64Var(&boxSize, "box-size", 0.5, "Side of the random query boxes in degrees")
	benchmarkCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log := logging.GetLoggerFromContext(ctx)

	svc, idx, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	n, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn().Msg("index is empty, run load first")
	}

	var h *bench.Harness
	if exactHarness {
		h = bench.NewHarness(svc, locations.WithPolicy(cover.PolicyExact), locations.WithRefine(true))
	} else {
		h = bench.NewHarness(svc)
	}

	if numQueries > 0 {
		return runThroughput(ctx, cmd, h)
	}

	presets := bench.Presets
	if benchRegion.preset != "" || cmd.Flags().Changed("min-lat") {
		box, err := benchRegion.box(cmd)
		if err != nil {
			return err
		}
		presets = []bench.Preset{{Name: "custom", Box: box}}
	}

	results := make(map[string]bench.Comparison, len(presets))
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tKEYRANGE MS\tBBOX MS\tKEYRANGE\tBBOX\tRANGES\tFALSE+\tFALSE-")
	for _, p := range presets {
		c, err := h.CompareAll(ctx, p.Box)
		if err != nil {
			return err
		}
		results[p.Name] = c
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%d\t%d\t%d\t%d\t%d\n", p.Name,
			c.KeyRangeMs, c.BoundingBoxMs, c.KeyRangeCount, c.BoundingBoxCount,
			c.Ranges, c.FalsePositives, c.FalseNegatives)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return tw.Flush()
}

func runThroughput(ctx context.Context, cmd *cobra.Command, h *bench.Harness) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running %d queries of %.2f degrees using %d workers...\n", numQueries, boxSize, numWorkers)

	for _, strategy := range []locations.Strategy{locations.StrategyKeyRange, locations.StrategyBoundingBox} {
		r := h.RunQueries(ctx, bench.ThroughputConfig{
			Strategy:   strategy,
			NumQueries: numQueries,
			Workers:    numWorkers,
			Bounds:     bench.DefaultBounds,
			BoxSize:    boxSize,
			Seed:       bench.DefaultSeed,
		})

		fmt.Fprintf(out, "\n%s:\n", r.Strategy)
		fmt.Fprintf(out, "  Total queries: %d (%d failed)\n", r.TotalQueries, r.Failed)
		fmt.Fprintf(out, "  Total time: %v\n", r.TotalDuration)
		fmt.Fprintf(out, "  Queries per second: %.0f\n", r.QueriesPerSec)
		fmt.Fprintf(out, "  Average query time: %v (min %v, max %v)\n", r.AvgDuration, r.MinDuration, r.MaxDuration)
		fmt.Fprintf(out, "  Average results per query: %.1f\n", r.AvgResults)
	}
	return nil
}
