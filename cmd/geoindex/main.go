package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/config"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/store"
	"github.com/kass/go-geo-cellindex/pkg/store/factory"
)

const (
	serviceName    = "geoindex"
	serviceVersion = "0.3.0"
)

var (
	configFile string
	storage    string
	dsn        string
	snapshot   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "geoindex",
	Short: "Cell-key geographic index",
	Long: `Stores points under sortable cell keys and answers region queries with
key-range scans, side by side with a plain bounding-box filter.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&storage, "storage", "", "Storage driver (memory, postgres, gorm-sqlite, gorm-postgres, redis)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database connection string")
	rootCmd.PersistentFlags().StringVarP(&snapshot, "snapshot", "f", "", "Snapshot file of the memory driver")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(loadCmd, queryCmd, benchmarkCmd, encodeCmd, coverCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies the persistent flags on top of it
// and attaches a logger to the command context.
func setup(cmd *cobra.Command) (context.Context, config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, config.Config{}, err
	}

	if storage != "" {
		cfg.Storage.Driver = storage
	}
	if dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if snapshot != "" {
		cfg.Storage.Snapshot = snapshot
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, _ = logging.NewLogger(ctx, serviceName, serviceVersion, cfg.Log)
	return ctx, cfg, nil
}

func openService(ctx context.Context, cfg config.Config) (*locations.Service, store.RangeIndex, error) {
	svcCfg, err := cfg.Locations()
	if err != nil {
		return nil, nil, err
	}
	idx, err := factory.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	return locations.New(idx, svcCfg), idx, nil
}
