package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fibertrack/internal/config"
	"github.com/banshee-data/fibertrack/internal/monitoring"
	"github.com/banshee-data/fibertrack/internal/storage/sqlite"
	"github.com/banshee-data/fibertrack/internal/tracto"
	"github.com/banshee-data/fibertrack/internal/version"
	"github.com/banshee-data/fibertrack/internal/volio"
	"github.com/banshee-data/fibertrack/internal/vtkio"
)

func main() {
	volumePath := flag.String("volume", "", "Path to input volume header JSON (required)")
	maskPath := flag.String("mask", "", "Path to tracking mask header JSON (optional)")
	seedMaskPath := flag.String("seeds", "", "Path to seed mask header JSON (defaults to -mask, else every voxel)")
	configPath := flag.String("config", "", "Path to tracking parameter overlay JSON")
	outPath := flag.String("out", "streamlines.vtk", "Output VTK polydata path")
	dbPath := flag.String("db", "", "Optional SQLite database to record the run in")
	predictorName := flag.String("predictor", "field", "Predictor to use: field or constant")
	withScalars := flag.Bool("scalars", false, "Write per-point probabilities into the VTK output")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fibertrack %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *volumePath == "" {
		fmt.Fprintln(os.Stderr, "fibertrack: -volume is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *volumePath, *maskPath, *seedMaskPath, *configPath, *outPath, *dbPath, *predictorName, *withScalars); err != nil {
		fmt.Fprintf(os.Stderr, "fibertrack: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, volumePath, maskPath, seedMaskPath, configPath, outPath, dbPath, predictorName string, withScalars bool) error {
	vol, err := volio.LoadVolume(volumePath)
	if err != nil {
		return err
	}

	cfg := tracto.DefaultTrackerConfig()
	if configPath != "" {
		overlay, err := config.LoadTrackingOverlay(configPath)
		if err != nil {
			return err
		}
		cfg = overlay.Apply(cfg)
	}

	var opts []tracto.TrackerOption
	var mask *tracto.Mask
	if maskPath != "" {
		mask, err = volio.LoadMask(maskPath)
		if err != nil {
			return err
		}
		opts = append(opts, tracto.WithMask(mask))
	}
	opts = append(opts, tracto.WithProgressLogging(10))

	pred, err := buildPredictor(predictorName, vol, cfg)
	if err != nil {
		return err
	}

	seeds, err := buildSeeds(vol, mask, seedMaskPath)
	if err != nil {
		return err
	}
	monitoring.Logf("tracking %d seeds on %dx%dx%d volume", len(seeds), vol.NX, vol.NY, vol.NZ)

	tracker, err := tracto.NewTracker(cfg, vol, pred, opts...)
	if err != nil {
		return err
	}
	res, err := tracker.Run(ctx, seeds)
	if err != nil {
		return err
	}

	stats := res.LengthStats()
	monitoring.Logf("kept %d/%d streamlines (mean length %.1f, p50 %.1f, p95 %.1f)",
		stats.Count, len(seeds), stats.Mean, stats.P50, stats.P95)
	for cause, n := range res.Tally {
		monitoring.Logf("termination %s: %d", cause, n)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()
	if withScalars {
		if res.Annotations == nil {
			return fmt.Errorf("-scalars requires a predictor that emits probabilities")
		}
		err = vtkio.WriteStreamlinesWithScalars(f, res.Streamlines, res.Annotations)
	} else {
		err = vtkio.WriteStreamlines(f, res.Streamlines)
	}
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	monitoring.Logf("wrote %s", outPath)

	if dbPath != "" {
		store, err := sqlite.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.SaveRun(cfg, len(seeds), res)
		if err != nil {
			return err
		}
		monitoring.Logf("recorded run %s in %s", runID, dbPath)
	}
	return nil
}

// buildPredictor selects a model adapter. Only the synthetic adapters
// ship with the binary; inference-backed adapters plug in through the
// tracto.Predictor interface.
func buildPredictor(name string, vol *tracto.Volume, cfg tracto.TrackerConfig) (tracto.Predictor, error) {
	switch name {
	case "field":
		if vol.Channels < 4 {
			return nil, fmt.Errorf("field predictor needs at least 4 channels, volume has %d", vol.Channels)
		}
		return &tracto.FieldPredictor{Depth: cfg.WindowDepth, Width: vol.Channels, WithProb: true}, nil
	case "constant":
		return &tracto.ConstantPredictor{
			Dir:      r3.Vec{X: 1},
			Prob:     1,
			InputLen: cfg.WindowDepth * vol.Channels,
			WithProb: true,
		}, nil
	default:
		return nil, fmt.Errorf("unknown predictor %q", name)
	}
}

func buildSeeds(vol *tracto.Volume, mask *tracto.Mask, seedMaskPath string) ([]r3.Vec, error) {
	if seedMaskPath != "" {
		sm, err := volio.LoadMask(seedMaskPath)
		if err != nil {
			return nil, err
		}
		return tracto.SeedsFromMask(vol, sm), nil
	}
	if mask != nil {
		return tracto.SeedsFromMask(vol, mask), nil
	}
	full := make([]uint8, vol.NX*vol.NY*vol.NZ)
	for i := range full {
		full[i] = 1
	}
	m, err := tracto.NewMask(vol, full)
	if err != nil {
		return nil, err
	}
	return tracto.SeedsFromMask(vol, m), nil
}
