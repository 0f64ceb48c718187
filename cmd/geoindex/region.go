package main

import (
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/bench"
	"github.com/kass/go-geo-cellindex/pkg/errs"
	"github.com/kass/go-geo-cellindex/pkg/models"
)

// regionFlags are shared by the commands that take a query region.
type regionFlags struct {
	minLat, minLon, maxLat, maxLon float64
	preset                         string
}

func (f *regionFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.minLat, "min-lat", 0, "South edge")
	cmd.Flags().Float64Var(&f.minLon, "min-lon", 0, "West edge; greater than --max-lon wraps the antimeridian")
	cmd.Flags().Float64Var(&f.maxLat, "max-lat", 0, "North edge")
	cmd.Flags().Float64Var(&f.maxLon, "max-lon", 0, "East edge")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Named region: small, medium or large")
}

func (f *regionFlags) box(cmd *cobra.Command) (models.BoundingBox, error) {
	if f.preset != "" {
		p, err := bench.PresetByName(f.preset)
		return p.Box, err
	}
	for _, name := range []string{"min-lat", "min-lon", "max-lat", "max-lon"} {
		if !cmd.Flags().Changed(name) {
			return models.BoundingBox{}, errs.InvalidArgument(name, "required without --preset")
		}
	}
	box := models.NewBoundingBox(f.minLat, f.minLon, f.maxLat, f.maxLon)
	return box, box.Validate()
}
