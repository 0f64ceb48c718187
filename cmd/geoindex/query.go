package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

var (
	queryRegion   regionFlags
	strategyName  string
	policyName    string
	maxRanges     int
	refine        bool
	limit, offset int
	centerLat     float64
	centerLon     float64
	radiusKm      float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Find the points inside a region",
	Long: `Run one region query, either by bounding box or by center and radius,
with the key-range or the bounding-box strategy.`,
	RunE: runQuery,
}

func init() {
	queryRegion.register(queryCmd)
	queryCmd.Flags().StringVarP(&strategyName, "strategy", "s", "keyrange", "keyrange or bbox")
	queryCmd.Flags().StringVar(&policyName, "policy", "", "Covering policy: simple or exact (default from config)")
	queryCmd.Flags().IntVar(&maxRanges, "max-ranges", 0, "Upper bound on covering ranges (default from config)")
	queryCmd.Flags().BoolVar(&refine, "refine", true, "Drop key-range candidates outside the region")
	queryCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum points to print, 0 for all")
	queryCmd.Flags().IntVar(&offset, "offset", 0, "Points to skip")
	queryCmd.Flags().Float64Var(&centerLat, "lat", 0, "Center latitude of a radius query")
	queryCmd.Flags().Float64Var(&centerLon, "lon", 0, "Center longitude of a radius query")
	queryCmd.Flags().Float64VarP(&radiusKm, "radius", "r", 0, "Radius in km; switches to a radius query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	log := logging.GetLoggerFromContext(ctx)

	strategy, err := locations.ParseStrategy(strategyName)
	if err != nil {
		return err
	}
	opts, err := queryOptions(cmd)
	if err != nil {
		return err
	}
	page := models.Page{Limit: limit, Offset: offset}

	svc, idx, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	start := time.Now()
	var res locations.QueryResult
	if cmd.Flags().Changed("radius") {
		res, err = svc.QueryByRadius(ctx, models.Location{Lat: centerLat, Lon: centerLon}, radiusKm, strategy, page, opts...)
	} else {
		box, berr := queryRegion.box(cmd)
		if berr != nil {
			return berr
		}
		res, err = svc.QueryByRegion(ctx, box, strategy, page, opts...)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Strategy: %s\n", strategy)
	if len(res.Ranges) > 0 {
		fmt.Fprintf(out, "Ranges (%d): %s\n", len(res.Ranges), res.Ranges)
	}
	fmt.Fprintf(out, "Found %d points in %v\n", res.Count, elapsed)
	for _, p := range res.Points {
		fmt.Fprintf(out, "  %8d  %11.6f %11.6f  %s\n", p.ID, p.Location.Lat, p.Location.Lon, p.CellID)
	}
	return nil
}

func queryOptions(cmd *cobra.Command) ([]locations.QueryOption, error) {
	var opts []locations.QueryOption
	if policyName != "" {
		p, err := cover.ParsePolicy(policyName)
		if err != nil {
			return nil, err
		}
		opts = append(opts, locations.WithPolicy(p))
	}
	if cmd.Flags().Changed("max-ranges") {
		opts = append(opts, locations.WithMaxRanges(maxRanges))
	}
	if cmd.Flags().Changed("refine") {
		opts = append(opts, locations.WithRefine(refine))
	}
	return opts, nil
}
