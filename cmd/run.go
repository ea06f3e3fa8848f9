package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datasciencecampus/transport-network-performance/internal/aggregate"
	"github.com/datasciencecampus/transport-network-performance/internal/assemble"
	"github.com/datasciencecampus/transport-network-performance/internal/engine"
	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/reachability"
	"github.com/datasciencecampus/transport-network-performance/internal/store"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
	"github.com/datasciencecampus/transport-network-performance/pkg/routing"
)

var (
	runRaster      string
	runName        string
	runSeedX       float64
	runSeedY       float64
	runDepartStart string
	runDepartEvery time.Duration
	runDepartCount int
	runOutDir      string
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the transport performance surface for an area",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		departures, err := buildDepartures()
		if err != nil {
			return err
		}

		grid, err := loadGrid(runRaster)
		if err != nil {
			return err
		}
		zap.L().Info("population raster loaded",
			zap.Int("cells", grid.NumCells()),
			zap.Float64("population", grid.TotalPopulation()),
		)

		mask, boundaries, err := delineate(grid, model.Coord{X: runSeedX, Y: runSeedY})
		if err != nil {
			return err
		}
		zap.L().Info("urban centre delineated",
			zap.Int("core_cells", mask.CoreLen()),
			zap.Int("total_cells", mask.Len()),
		)

		params := reachability.Params{
			TimeBudgetMinutes: cfg.Metric.TimeBudgetMinutes,
			SpeedKMH:          cfg.Metric.SpeedKMH,
			DistanceCapKM:     cfg.Metric.DistanceCapKM,
		}
		estimator, err := reachability.New(grid, mask, params)
		if err != nil {
			return err
		}

		client, err := initRouting(estimator)
		if err != nil {
			return err
		}

		st, err := initRunStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		eng, err := engine.New(client, estimator, st, engine.Config{
			Workers:           cfg.Run.Workers,
			CoverageTolerance: cfg.Run.CoverageTolerance,
		})
		if err != nil {
			return err
		}

		result, err := eng.Run(ctx, runName, runParams(departures), departures)
		if err != nil {
			return eris.Wrap(err, "performance run")
		}

		if err := writeOutputs(runOutDir, runName, grid, mask, boundaries, result); err != nil {
			return err
		}

		summary := engine.Summarize(result)
		summary.CoreCells = mask.CoreLen()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func buildDepartures() ([]time.Time, error) {
	start, err := time.Parse(time.RFC3339, runDepartStart)
	if err != nil {
		return nil, eris.Wrapf(err, "parse departure start %q", runDepartStart)
	}
	if runDepartCount < 1 {
		return nil, eris.Wrap(model.ErrConfiguration, "departure count must be >= 1")
	}

	departures := make([]time.Time, runDepartCount)
	for i := range departures {
		departures[i] = start.Add(time.Duration(i) * runDepartEvery)
	}
	return departures, nil
}

func runParams(departures []time.Time) model.RunParams {
	return model.RunParams{
		Area:              runName,
		ResolutionMeters:  cfg.Grid.ResolutionMeters,
		TimeBudgetMinutes: cfg.Metric.TimeBudgetMinutes,
		SpeedKMH:          cfg.Metric.SpeedKMH,
		DistanceCapKM:     cfg.Metric.DistanceCapKM,
		BufferMeters:      cfg.Delineate.BufferMeters,
		Departures:        departures,
	}
}

// initRouting picks the matrix source: a directory of pre-computed CSV
// matrices, or the live routing service.
func initRouting(est *reachability.Estimator) (routing.Client, error) {
	if cfg.Routing.MatrixDir != "" {
		return routing.LoadDir(cfg.Routing.MatrixDir)
	}

	origins := est.Origins()
	return routing.NewService(
		cfg.Routing.BaseURL,
		origins,
		origins,
		cfg.Metric.TimeBudgetMinutes,
		routing.WithRateLimit(cfg.Routing.RPS),
	), nil
}

func initRunStore(ctx context.Context) (store.Store, error) {
	if runNoStore {
		return nil, nil
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func writeOutputs(outDir, name string, grid *model.Grid, mask *urbancentre.Mask, boundaries *urbancentre.Boundaries, result *engine.Result) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrap(err, "create output dir")
	}

	surface, err := assemble.BuildSurface(grid, mask, result.Records, assemble.SurfaceOptions{
		IncludeSamples: true,
		IncludeMinMax:  true,
	})
	if err != nil {
		return err
	}
	for _, band := range surface.Bands {
		path := filepath.Join(outDir, "performance_"+band.Name+".asc")
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create raster %s", path)
		}
		if err := assemble.WriteASCIIGrid(f, grid, band.Values, assemble.NoData); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close raster %s", path)
		}
	}

	csvPath := filepath.Join(outDir, "performance.csv")
	cf, err := os.Create(csvPath)
	if err != nil {
		return eris.Wrapf(err, "create csv %s", csvPath)
	}
	defer cf.Close()
	if err := assemble.WriteCSV(cf, grid, mask, result.Records); err != nil {
		return err
	}

	summary := engine.Summarize(result)
	summary.CoreCells = mask.CoreLen()
	if err := assemble.WriteXLSX(filepath.Join(outDir, "performance.xlsx"), grid, mask, result.Records, summary); err != nil {
		return err
	}

	if summary.DefinedCells > 0 {
		stats, err := aggregate.Describe(grid, mask, result.Records, aggregate.StatsOptions{Name: name})
		if err != nil {
			return err
		}
		statsJSON, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal summary stats")
		}
		if err := os.WriteFile(filepath.Join(outDir, "stats.json"), statsJSON, 0o644); err != nil {
			return eris.Wrap(err, "write summary stats")
		}
	} else {
		zap.L().Warn("no defined cells, skipping stats.json")
	}

	if err := assemble.WriteCellShapefile(filepath.Join(outDir, "cells.shp"), grid, mask, result.Records); err != nil {
		return err
	}
	return assemble.WriteBoundaryShapefile(filepath.Join(outDir, "boundaries.shp"), boundaries)
}

func init() {
	runCmd.Flags().StringVar(&runRaster, "raster", "", "population raster (ESRI ASCII grid, required)")
	runCmd.Flags().StringVar(&runName, "name", "", "run name (required)")
	runCmd.Flags().Float64Var(&runSeedX, "seed-x", 0, "urban centre seed X coordinate (required)")
	runCmd.Flags().Float64Var(&runSeedY, "seed-y", 0, "urban centre seed Y coordinate (required)")
	runCmd.Flags().StringVar(&runDepartStart, "depart-start", "", "first departure time, RFC 3339 (required)")
	runCmd.Flags().DurationVar(&runDepartEvery, "depart-every", 20*time.Minute, "interval between departure samples")
	runCmd.Flags().IntVar(&runDepartCount, "depart-count", 12, "number of departure samples")
	runCmd.Flags().StringVar(&runOutDir, "out", "out", "output directory")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "skip run persistence")
	_ = runCmd.MarkFlagRequired("raster")
	_ = runCmd.MarkFlagRequired("name")
	_ = runCmd.MarkFlagRequired("seed-x")
	_ = runCmd.MarkFlagRequired("seed-y")
	_ = runCmd.MarkFlagRequired("depart-start")
	rootCmd.AddCommand(runCmd)
}
