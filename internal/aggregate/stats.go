package aggregate

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
)

// SummaryStats are descriptive statistics over the defined cells of a
// performance surface, for reporting alongside the per-cell output.
type SummaryStats struct {
	Name       string  `json:"name,omitempty"`
	Country    string  `json:"country,omitempty"`
	AreaKM2    float64 `json:"area_km2"`
	Population float64 `json:"population"`
	Defined    int     `json:"defined_cells"`
	Undefined  int     `json:"undefined_cells"`
	Min        float64 `json:"min"`
	Q25        float64 `json:"q25"`
	Median     float64 `json:"median"`
	Q75        float64 `json:"q75"`
	Max        float64 `json:"max"`
}

// StatsOptions labels the summary.
type StatsOptions struct {
	Name    string
	Country string
}

// Describe computes summary statistics over the defined records of the
// urban centre core. Buffer-halo origins exist to keep reachability honest
// at the boundary and are excluded from the headline figures, as are area
// and population, which likewise cover the pre-buffer core.
func Describe(grid *model.Grid, mask *urbancentre.Mask, records []model.PerformanceRecord, opts StatsOptions) (*SummaryStats, error) {
	var values []float64
	undefined := 0
	for _, r := range records {
		if !mask.InCore(r.CellID) {
			continue
		}
		if r.Defined {
			values = append(values, r.Value)
		} else {
			undefined++
		}
	}
	if len(values) == 0 {
		return nil, eris.New("aggregate: no defined cells to describe")
	}
	sort.Float64s(values)

	var pop float64
	core := 0
	for _, id := range mask.IDs() {
		if mask.InCore(id) {
			pop += grid.Cell(id).Population
			core++
		}
	}
	cellArea := grid.Resolution() * grid.Resolution()

	return &SummaryStats{
		Name:       opts.Name,
		Country:    opts.Country,
		AreaKM2:    float64(core) * cellArea / 1e6,
		Population: math.Round(pop),
		Defined:    len(values),
		Undefined:  undefined,
		Min:        values[0],
		Q25:        quantile(values, 0.25),
		Median:     quantile(values, 0.5),
		Q75:        quantile(values, 0.75),
		Max:        values[len(values)-1],
	}, nil
}

// quantile interpolates linearly between order statistics, the same
// convention as numpy's default percentile.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
