// Package assemble turns the aggregated performance records into the
// published artefacts: raster surfaces, tables, and shapefiles.
package assemble

import (
	"github.com/rotisserie/eris"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
)

// NoData marks cells outside the urban centre or without a defined
// performance value in exported rasters.
const NoData = -9999.0

// Band is one full-grid raster layer in row-major order.
type Band struct {
	Name   string
	Values []float64
}

// Surface is the rasterized performance output. The performance band is
// always present; samples, min and max are optional.
type Surface struct {
	Grid  *model.Grid
	Bands []Band
}

// SurfaceOptions selects the optional bands.
type SurfaceOptions struct {
	IncludeSamples bool
	IncludeMinMax  bool
}

// Band returns the named band, or nil.
func (s *Surface) Band(name string) *Band {
	for i := range s.Bands {
		if s.Bands[i].Name == name {
			return &s.Bands[i]
		}
	}
	return nil
}

// BuildSurface rasterizes performance records over the full grid. Cells
// outside the mask, and in-mask cells whose value is undefined, hold
// NoData in every band.
func BuildSurface(grid *model.Grid, mask *urbancentre.Mask, records []model.PerformanceRecord, opts SurfaceOptions) (*Surface, error) {
	if grid == nil || mask == nil {
		return nil, eris.Wrap(model.ErrConfiguration, "assemble: nil grid or mask")
	}

	byID := make(map[int]model.PerformanceRecord, len(records))
	for _, rec := range records {
		if rec.CellID < 0 || rec.CellID >= grid.NumCells() {
			return nil, eris.Wrapf(model.ErrDataConsistency, "assemble: record for unknown cell %d", rec.CellID)
		}
		byID[rec.CellID] = rec
	}

	n := grid.NumCells()
	perf := fill(n, NoData)
	var samples, min, max []float64
	if opts.IncludeSamples {
		samples = fill(n, NoData)
	}
	if opts.IncludeMinMax {
		min = fill(n, NoData)
		max = fill(n, NoData)
	}

	for id, rec := range byID {
		if !mask.Contains(id) {
			continue
		}
		if opts.IncludeSamples {
			samples[id] = float64(rec.Samples)
		}
		if !rec.Defined {
			continue
		}
		perf[id] = rec.Value
		if opts.IncludeMinMax {
			min[id] = rec.Min
			max[id] = rec.Max
		}
	}

	s := &Surface{Grid: grid, Bands: []Band{{Name: "performance", Values: perf}}}
	if opts.IncludeSamples {
		s.Bands = append(s.Bands, Band{Name: "samples", Values: samples})
	}
	if opts.IncludeMinMax {
		s.Bands = append(s.Bands,
			Band{Name: "min", Values: min},
			Band{Name: "max", Values: max},
		)
	}
	return s, nil
}

func fill(n int, v float64) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return vals
}
