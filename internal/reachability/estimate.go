// Package reachability converts one travel time sample into per-origin
// accessible and proximal population sums.
package reachability

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
)

// Params configures the estimator.
type Params struct {
	// TimeBudgetMinutes is the travel time cutoff, inclusive.
	TimeBudgetMinutes float64

	// SpeedKMH is the idealized straight-line speed defining the proximal
	// radius (budget x speed).
	SpeedKMH float64

	// DistanceCapKM optionally overrides the derived proximal radius with a
	// fixed centroid distance cutoff in kilometres. Zero means derive from
	// budget and speed.
	DistanceCapKM float64
}

// RadiusMeters returns the proximal distance cutoff.
func (p Params) RadiusMeters() float64 {
	if p.DistanceCapKM > 0 {
		return p.DistanceCapKM * 1000
	}
	return p.TimeBudgetMinutes * p.SpeedKMH * 1000 / 60
}

// Estimator computes reachability results for every origin cell in the
// urban centre mask. Proximal neighbour sets are pure geometry, identical
// across samples, so they are computed once at construction and shared.
// The estimator is safe for concurrent Estimate calls.
type Estimator struct {
	grid   *model.Grid
	mask   *urbancentre.Mask
	params Params

	// neighbours[i] lists the destination cells within the proximal radius
	// of origin i (over the full cell set, not just the mask). proximal[i]
	// is their population sum, including the origin itself.
	origins    []int
	neighbours map[int][]int
	proximal   map[int]float64
}

// New builds an estimator for the given grid, mask and parameters.
func New(grid *model.Grid, mask *urbancentre.Mask, params Params) (*Estimator, error) {
	if params.TimeBudgetMinutes <= 0 {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"reachability: time budget %v minutes", params.TimeBudgetMinutes)
	}
	if params.SpeedKMH <= 0 && params.DistanceCapKM <= 0 {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"reachability: no proximal radius (speed %v km/h, cap %v km)",
			params.SpeedKMH, params.DistanceCapKM)
	}

	e := &Estimator{
		grid:       grid,
		mask:       mask,
		params:     params,
		origins:    mask.IDs(),
		neighbours: make(map[int][]int, mask.Len()),
		proximal:   make(map[int]float64, mask.Len()),
	}
	e.precompute()
	return e, nil
}

// Grid returns the population grid the estimator was built over.
func (e *Estimator) Grid() *model.Grid { return e.grid }

// precompute fills the proximal neighbour sets by scanning the cell window
// covering the radius around each origin. Zero-population destinations are
// kept: they contribute nothing today but stay correct if populations are
// corrected upstream.
func (e *Estimator) precompute() {
	radius := e.params.RadiusMeters()
	span := int(radius/e.grid.Resolution()) + 1

	for _, origin := range e.origins {
		cell := e.grid.Cell(origin)
		var (
			ids []int
			pop float64
		)
		for dr := -span; dr <= span; dr++ {
			for dc := -span; dc <= span; dc++ {
				n := e.grid.CellAt(cell.Row+dr, cell.Col+dc)
				if n == nil {
					continue
				}
				if e.grid.CentroidDistance(origin, n.ID) <= radius {
					ids = append(ids, n.ID)
					pop += n.Population
				}
			}
		}
		e.neighbours[origin] = ids
		e.proximal[origin] = pop
	}

	zap.L().Debug("proximal neighbour sets computed",
		zap.String("component", "reachability"),
		zap.Int("origins", len(e.origins)),
		zap.Float64("radius_m", radius),
	)
}

// Origins returns the origin cell ids the estimator covers, ascending.
func (e *Estimator) Origins() []int { return e.origins }

// ProximalPopulation returns the geometric population sum for an origin.
func (e *Estimator) ProximalPopulation(origin int) float64 { return e.proximal[origin] }

// Estimate produces one ReachabilityResult per origin cell for a single
// sample. Accessible population counts destinations that are both within
// the travel time budget and within the proximal radius, so the ratio is
// bounded by the geometric baseline. Missing matrix entries are
// unreachable; self-travel defaults to zero minutes.
func (e *Estimator) Estimate(sample *model.TravelTimeSample) ([]model.ReachabilityResult, error) {
	if err := sample.Validate(e.grid); err != nil {
		return nil, err
	}

	budget := e.params.TimeBudgetMinutes
	results := make([]model.ReachabilityResult, 0, len(e.origins))
	for _, origin := range e.origins {
		var accessible float64
		for _, dest := range e.neighbours[origin] {
			if sample.Get(origin, dest).Within(budget) {
				accessible += e.grid.Cell(dest).Population
			}
		}
		results = append(results, model.ReachabilityResult{
			Origin:     origin,
			Accessible: accessible,
			Proximal:   e.proximal[origin],
		})
	}
	return results, nil
}
