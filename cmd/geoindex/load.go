package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/bench"
	"github.com/kass/go-geo-cellindex/pkg/config"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

var (
	numPoints   int
	seed        int64
	datasetFile string
	worldwide   bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the seeded dataset into the index",
	Long: `Generate reproducible random points, or read them from a dataset file,
and store them in chunks.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().IntVarP(&numPoints, "points", "p", 0, "Number of points to generate (default from config)")
	loadCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default from config)")
	loadCmd.Flags().StringVar(&datasetFile, "dataset", "", "Read points from this dataset file, or write the generated points to it when it does not exist")
	loadCmd.Flags().BoolVar(&worldwide, "world", false, "Draw points from the whole globe instead of the reference square")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log := logging.GetLoggerFromContext(ctx)

	points, err := dataset(cmd, cfg)
	if err != nil {
		return err
	}

	svc, idx, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	if cfg.Storage.Driver == config.DriverMemory && cfg.Storage.Snapshot == "" {
		log.Warn().Msg("memory storage without --snapshot, loaded points are discarded on exit")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loading %d points into %s storage...\n", len(points), cfg.Storage.Driver)

	start := time.Now()
	n, err := svc.Load(ctx, points)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("loaded %d points before failing: %w", n, err)
	}

	total, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d points in %v\n", n, elapsed)
	fmt.Fprintf(out, "Points per second: %.0f\n", float64(n)/elapsed.Seconds())
	fmt.Fprintf(out, "Index now holds %d points\n", total)
	return nil
}

func dataset(cmd *cobra.Command, cfg config.Config) ([]models.Location, error) {
	if datasetFile != "" {
		if points, err := bench.LoadDataset(datasetFile); err == nil {
			return points, nil
		}
	}

	count := cfg.Dataset.Count
	if numPoints > 0 {
		count = numPoints
	}
	s := cfg.Dataset.Seed
	if cmd.Flags().Changed("seed") {
		s = seed
	}
	b := bench.DefaultBounds
	if worldwide {
		b = bench.WorldBounds
	}

	points := bench.GenerateDataset(s, count, b)
	if datasetFile != "" {
		if err := bench.SaveDataset(datasetFile, points); err != nil {
			return nil, err
		}
	}
	return points, nil
}
