package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/cell"
	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/errs"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [--] LAT LON",
	Short: "Print the cell key of a point",
	Args:  cobra.ExactArgs(2),
	RunE:  runEncode,
}

var (
	coverRegion    regionFlags
	coverPolicy    string
	coverMaxRanges int
	coverMaxLevel  int
)

var coverCmd = &cobra.Command{
	Use:   "cover",
	Short: "Print the key ranges covering a region",
	RunE:  runCover,
}

func init() {
	coverRegion.register(coverCmd)
	coverCmd.Flags().StringVar(&coverPolicy, "policy", "exact", "simple or exact")
	coverCmd.Flags().IntVar(&coverMaxRanges, "max-ranges", cover.DefaultMaxRanges, "Upper bound on the number of ranges")
	coverCmd.Flags().IntVar(&coverMaxLevel, "max-level", 0, "Deepest refinement level, 0 for leaf cells")
}

func runEncode(cmd *cobra.Command, args []string) error {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return errs.InvalidArgument("latitude", "%q is not a number", args[0])
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return errs.InvalidArgument("longitude", "%q is not a number", args[1])
	}

	key, err := cell.FromDegrees(lat, lon)
	if err != nil {
		return err
	}

	center := key.LatLng()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key:    %d\n", uint64(key))
	fmt.Fprintf(out, "token:  %s\n", key)
	fmt.Fprintf(out, "face:   %d\n", key.Face())
	fmt.Fprintf(out, "level:  %d\n", key.Level())
	fmt.Fprintf(out, "center: %.9f %.9f\n", center.Lat, center.Lon)
	fmt.Fprintf(out, "prev:   %d\n", uint64(key.Prev()))
	fmt.Fprintf(out, "next:   %d\n", uint64(key.Next()))
	return nil
}

func runCover(cmd *cobra.Command, args []string) error {
	policy, err := cover.ParsePolicy(coverPolicy)
	if err != nil {
		return err
	}
	box, err := coverRegion.box(cmd)
	if err != nil {
		return err
	}

	c := &cover.Coverer{Policy: policy, MaxLevel: coverMaxLevel}
	cov, err := c.Cover(box, coverMaxRanges)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range cov {
		fmt.Fprintf(out, "%d\t%d\t%s\n", uint64(r.Min), uint64(r.Max), r)
	}
	return nil
}
