package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-cellindex/pkg/bench"
	"github.com/kass/go-geo-cellindex/pkg/config"
	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/locations"
	"github.com/kass/go-geo-cellindex/pkg/logging"
	"github.com/kass/go-geo-cellindex/pkg/models"
	"github.com/kass/go-geo-cellindex/pkg/store/factory"
)

var (
	configFile string
	numPoints  int
	exact      bool
)

var rootCmd = &cobra.Command{
	Use:          "demo",
	Short:        "Load the seeded dataset and compare both strategies on the preset regions",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().IntVarP(&numPoints, "points", "p", 0, "Number of points (default from config)")
	rootCmd.Flags().BoolVar(&exact, "exact", false, "Use the exact covering with refinement for key-range lookups")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if numPoints > 0 {
		cfg.Dataset.Count = numPoints
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if interactive {
		// The TUI owns the terminal; keep log lines out of it.
		cfg.Log.Level = zerolog.Disabled.String()
	}

	ctx, _ := logging.NewLogger(cmd.Context(), "demo", "0.3.0", cfg.Log)

	svcCfg, err := cfg.Locations()
	if err != nil {
		return err
	}
	idx, err := factory.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	svc := locations.New(idx, svcCfg)
	d := &demo{
		svc:    svc,
		points: bench.GenerateDataset(cfg.Dataset.Seed, cfg.Dataset.Count, bench.DefaultBounds),
		chunk:  svcCfg.ChunkSize,
	}
	if exact {
		d.harness = bench.NewHarness(svc, locations.WithPolicy(cover.PolicyExact), locations.WithRefine(true))
	} else {
		d.harness = bench.NewHarness(svc)
	}

	if !interactive {
		d.send = printPlain
		d.run(ctx)
		return nil
	}

	program := tea.NewProgram(initialModel(len(d.points)))
	d.send = program.Send
	go d.run(ctx)

	final, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}

// demo loads the dataset and runs every preset, reporting through send.
type demo struct {
	svc     *locations.Service
	harness *bench.Harness
	points  []models.Location
	chunk   int
	send    func(tea.Msg)
}

func (d *demo) run(ctx context.Context) {
	start := time.Now()
	loaded := 0
	for _, chunk := range lo.Chunk(d.points, d.chunk) {
		n, err := d.svc.Load(ctx, chunk)
		loaded += n
		if err != nil {
			d.send(errMsg{err})
			return
		}
		d.send(progressMsg(float64(loaded) / float64(len(d.points))))
	}
	d.send(loadDoneMsg{points: loaded, elapsed: time.Since(start)})

	for _, p := range bench.Presets {
		d.send(presetStartedMsg(p.Name))
		c, err := d.harness.CompareAll(ctx, p.Box)
		if err != nil {
			d.send(errMsg{err})
			return
		}
		d.send(presetDoneMsg{preset: p, cmp: c})
	}
	d.send(doneMsg{})
}
