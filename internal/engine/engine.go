// Package engine orchestrates a full performance run: it fetches one
// travel time matrix per departure sample, folds each into the
// aggregator, and reports the resulting performance surface.
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datasciencecampus/transport-network-performance/internal/aggregate"
	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/reachability"
	"github.com/datasciencecampus/transport-network-performance/internal/store"
	"github.com/datasciencecampus/transport-network-performance/pkg/routing"
)

// Config tunes the run loop.
type Config struct {
	// Workers caps concurrent matrix fetches.
	Workers int
	// CoverageTolerance is the fraction of departure samples allowed to
	// fail before the aggregate is rejected. 0.25 means a run survives
	// losing up to a quarter of its samples.
	CoverageTolerance float64
}

// Result is the outcome of a completed run.
type Result struct {
	RunID            string
	Records          []model.PerformanceRecord
	SamplesRequested int
	SamplesUsed      int
	SamplesFailed    int
}

// Engine drives the per-departure estimate loop.
type Engine struct {
	client    routing.Client
	estimator *reachability.Estimator
	store     store.Store // optional, nil disables persistence
	cfg       Config
}

// New creates an Engine. st may be nil when persistence is not wanted.
func New(client routing.Client, estimator *reachability.Estimator, st store.Store, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, eris.Wrap(model.ErrConfiguration, "engine: nil routing client")
	}
	if estimator == nil {
		return nil, eris.Wrap(model.ErrConfiguration, "engine: nil estimator")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CoverageTolerance < 0 || cfg.CoverageTolerance >= 1 {
		return nil, eris.Wrapf(model.ErrConfiguration, "engine: coverage tolerance %v outside [0, 1)", cfg.CoverageTolerance)
	}
	return &Engine{client: client, estimator: estimator, store: st, cfg: cfg}, nil
}

// Run estimates reachability for every departure and aggregates the
// per-sample ratios into one performance record per origin cell.
//
// A departure whose matrix fetch fails is logged and skipped; the run
// only errors when the failed fraction exceeds the coverage tolerance.
// Inconsistent data (a sample naming cells the grid does not have)
// aborts immediately.
func (e *Engine) Run(ctx context.Context, name string, params model.RunParams, departures []time.Time) (*Result, error) {
	if len(departures) == 0 {
		return nil, eris.Wrap(model.ErrConfiguration, "engine: no departure samples")
	}

	log := zap.L().With(zap.String("run", name), zap.Int("departures", len(departures)))
	log.Info("engine: starting run")
	start := time.Now()

	var run *model.Run
	if e.store != nil {
		var err error
		run, err = e.store.CreateRun(ctx, name, params)
		if err != nil {
			return nil, eris.Wrap(err, "engine: create run")
		}
		if err := e.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
			log.Warn("engine: failed to update run status", zap.Error(err))
		}
	}

	result, err := e.estimateAll(ctx, log, departures)
	if err != nil {
		if run != nil {
			if stErr := e.store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); stErr != nil {
				log.Warn("engine: failed to mark run failed", zap.Error(stErr))
			}
		}
		return nil, err
	}

	if run != nil {
		result.RunID = run.ID
		if err := e.persist(ctx, run.ID, result); err != nil {
			return nil, err
		}
	}

	log.Info("engine: run complete",
		zap.Int("samples_used", result.SamplesUsed),
		zap.Int("samples_failed", result.SamplesFailed),
		zap.Int("cells", len(result.Records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (e *Engine) estimateAll(ctx context.Context, log *zap.Logger, departures []time.Time) (*Result, error) {
	acc := aggregate.NewAccumulator(e.estimator.Origins())
	var accMu sync.Mutex
	var used, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, dep := range departures {
		dep := dep
		g.Go(func() error {
			sample, err := e.client.Matrix(gctx, dep)
			if err != nil {
				if eris.Is(err, model.ErrDataConsistency) || gctx.Err() != nil {
					return err
				}
				log.Warn("engine: departure sample failed",
					zap.Time("departure", dep),
					zap.Error(err))
				atomic.AddInt64(&failed, 1)
				return nil // keep the other departures going
			}

			results, err := e.estimator.Estimate(sample)
			if err != nil {
				return eris.Wrapf(err, "engine: estimate departure %s", dep.Format(time.RFC3339))
			}

			accMu.Lock()
			acc.Add(results)
			accMu.Unlock()
			atomic.AddInt64(&used, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	requested := len(departures)
	failedFrac := float64(failed) / float64(requested)
	if failedFrac > e.cfg.CoverageTolerance {
		return nil, eris.Wrapf(model.ErrInsufficientSampleCoverage,
			"engine: %d of %d departure samples failed (tolerance %.0f%%)",
			failed, requested, e.cfg.CoverageTolerance*100)
	}

	return &Result{
		Records:          acc.Records(),
		SamplesRequested: requested,
		SamplesUsed:      int(used),
		SamplesFailed:    int(failed),
	}, nil
}

func (e *Engine) persist(ctx context.Context, runID string, result *Result) error {
	grid := e.estimator.Grid()
	for i := range result.Records {
		geomBytes, err := grid.CellEWKB(result.Records[i].CellID)
		if err != nil {
			return eris.Wrap(err, "engine: encode cell geometry")
		}
		result.Records[i].Geom = geomBytes
	}

	if err := e.store.SavePerformance(ctx, runID, result.Records); err != nil {
		return eris.Wrap(err, "engine: save performance")
	}

	summary := Summarize(result)
	if err := e.store.UpdateRunSummary(ctx, runID, summary); err != nil {
		return eris.Wrap(err, "engine: update run summary")
	}
	return nil
}

// Summarize derives the headline run figures from a result. CoreCells is
// left zero; callers that hold the delineation mask fill it in.
func Summarize(result *Result) *model.RunSummary {
	summary := &model.RunSummary{
		Cells:            len(result.Records),
		SamplesRequested: result.SamplesRequested,
		SamplesUsed:      result.SamplesUsed,
		SamplesFailed:    result.SamplesFailed,
	}

	var defined []float64
	for _, rec := range result.Records {
		if rec.Defined {
			defined = append(defined, rec.Value)
		}
	}
	summary.DefinedCells = len(defined)
	if len(defined) > 0 {
		min, max := defined[0], defined[0]
		for _, v := range defined {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		summary.Min = min
		summary.Max = max
		summary.Median = median(defined)
	}
	return summary
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
