// Package aggregate folds per-sample reachability results across the
// departure time ensemble into one performance record per origin cell.
package aggregate

import (
	"sort"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

type cellAcc struct {
	sum   float64
	count int
	min   float64
	max   float64
}

// Accumulator reduces reachability results into per-cell running
// statistics. The reduction is a commutative, associative fold (running
// sum + count), so the final records do not depend on the order samples
// arrive in. Accumulator is not safe for concurrent use; callers merging
// from multiple workers must serialize Add.
type Accumulator struct {
	cells map[int]*cellAcc
}

// NewAccumulator creates an accumulator covering the given origin cells.
// Cells that never receive a defined sample stay undefined in the output.
func NewAccumulator(origins []int) *Accumulator {
	cells := make(map[int]*cellAcc, len(origins))
	for _, id := range origins {
		cells[id] = &cellAcc{}
	}
	return &Accumulator{cells: cells}
}

// Add folds one sample's results into the running statistics. Results for
// origins outside the configured cell set are ignored. Samples with no
// denominator (zero proximal population) are skipped, not counted as zero.
func (a *Accumulator) Add(results []model.ReachabilityResult) {
	for _, r := range results {
		acc, ok := a.cells[r.Origin]
		if !ok {
			continue
		}
		pct, ok := r.Ratio()
		if !ok {
			continue
		}
		if acc.count == 0 || pct < acc.min {
			acc.min = pct
		}
		if acc.count == 0 || pct > acc.max {
			acc.max = pct
		}
		acc.sum += pct
		acc.count++
	}
}

// Records returns one performance record per origin cell, ascending by
// cell id. The representative value is the mean of per-sample ratios, so
// each departure minute carries equal weight regardless of population
// scale. Cells with no defined samples are marked undefined, never zero.
func (a *Accumulator) Records() []model.PerformanceRecord {
	records := make([]model.PerformanceRecord, 0, len(a.cells))
	for id, acc := range a.cells {
		rec := model.PerformanceRecord{CellID: id}
		if acc.count > 0 {
			rec.Defined = true
			rec.Value = acc.sum / float64(acc.count)
			rec.Samples = acc.count
			rec.Min = acc.min
			rec.Max = acc.max
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CellID < records[j].CellID })
	return records
}
