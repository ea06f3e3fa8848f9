// Package urbancentre delineates the contiguous set of population cells
// forming an urban centre, following the Eurostat degree-of-urbanisation
// approach: dense cells clustered by adjacency, gap-filled, then buffered.
package urbancentre

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// Params controls urban centre delineation.
type Params struct {
	// CellThreshold is the minimum population for a cell to join the dense
	// core, inclusive.
	CellThreshold float64

	// ClusterPopThreshold is the minimum total population of the delineated
	// region. A seed whose cluster falls below it is not an urban centre.
	// Zero disables the check.
	ClusterPopThreshold float64

	// FillThreshold is the number of in-region neighbours (out of 8) an
	// excluded cell needs before gap filling admits it. Must be between 5
	// and 8. Zero disables gap filling.
	FillThreshold int

	// BufferMeters grows the region outward by a fixed halo so reachability
	// near the boundary is not truncated. Converted to whole cells, rounded
	// outward.
	BufferMeters float64

	// Seed is a projected coordinate inside the intended urban centre.
	Seed model.Coord

	// Extent restricts the flood fill. The zero value means the full grid.
	Extent model.Bounds
}

// Mask is the delineated urban centre: the in-scope cell id set plus the
// pre-buffer core. Read-only after creation.
type Mask struct {
	cells map[int]bool
	core  map[int]bool
	ids   []int
}

// Contains reports whether the cell is in scope (core or buffer halo).
func (m *Mask) Contains(id int) bool { return m.cells[id] }

// InCore reports whether the cell was admitted before buffering.
func (m *Mask) InCore(id int) bool { return m.core[id] }

// IDs returns the in-scope cell ids in ascending order. Callers must not
// mutate the returned slice.
func (m *Mask) IDs() []int { return m.ids }

// Len returns the number of in-scope cells.
func (m *Mask) Len() int { return len(m.cells) }

// CoreLen returns the number of pre-buffer cells.
func (m *Mask) CoreLen() int { return len(m.core) }

// Delineate derives the urban centre mask from the population grid. The
// region is the maximal 8-connected set of cells at or above the density
// threshold containing the seed, grown by gap filling and a buffer halo.
// The result is unique for given inputs: a flood fill from a single seed
// over a binary predicate needs no tie-breaking.
func Delineate(grid *model.Grid, p Params) (*Mask, error) {
	log := zap.L().With(zap.String("component", "urbancentre"))

	extent := p.Extent
	if extent == (model.Bounds{}) {
		extent = grid.Bounds()
	}

	seed := grid.CellAtCoord(p.Seed)
	if seed == nil {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"urbancentre: seed (%v, %v) outside the population grid", p.Seed.X, p.Seed.Y)
	}
	if !extent.Contains(seed.Centroid) {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"urbancentre: seed cell %d outside the bounding extent", seed.ID)
	}
	if seed.Population < p.CellThreshold {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"urbancentre: seed cell %d population %v below threshold %v",
			seed.ID, seed.Population, p.CellThreshold)
	}
	if p.FillThreshold != 0 && (p.FillThreshold < 5 || p.FillThreshold > 8) {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"urbancentre: fill threshold %d not in [5, 8]", p.FillThreshold)
	}
	if p.BufferMeters < 0 {
		return nil, eris.Wrapf(model.ErrConfiguration,
			"urbancentre: negative buffer %v", p.BufferMeters)
	}

	inExtent := func(c *model.Cell) bool {
		return c != nil && extent.Contains(c.Centroid)
	}

	core := floodFill(grid, seed, p.CellThreshold, inExtent)

	if p.ClusterPopThreshold > 0 {
		var pop float64
		for id := range core {
			pop += grid.Cell(id).Population
		}
		if pop < p.ClusterPopThreshold {
			return nil, eris.Wrapf(model.ErrConfiguration,
				"urbancentre: cluster population %v below threshold %v",
				pop, p.ClusterPopThreshold)
		}
	}

	if p.FillThreshold > 0 {
		filled := fillGaps(grid, core, p.FillThreshold, inExtent)
		log.Debug("gap filling complete",
			zap.Int("before", len(core)),
			zap.Int("after", len(filled)),
		)
		core = filled
	}

	cells := core
	if p.BufferMeters > 0 {
		radius := int(p.BufferMeters / grid.Resolution())
		if float64(radius)*grid.Resolution() < p.BufferMeters {
			radius++ // round outward
		}
		cells = dilate(grid, core, radius)
	}

	m := &Mask{cells: cells, core: core, ids: sortedIDs(cells)}
	log.Info("urban centre delineated",
		zap.Int("core_cells", len(core)),
		zap.Int("total_cells", len(cells)),
		zap.Int("seed_cell", seed.ID),
	)
	return m, nil
}

// floodFill grows the 8-connected region of above-threshold cells from the
// seed, visiting only cells inside the extent.
func floodFill(grid *model.Grid, seed *model.Cell, threshold float64, inExtent func(*model.Cell) bool) map[int]bool {
	region := map[int]bool{seed.ID: true}
	frontier := []*model.Cell{seed}

	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				n := grid.CellAt(cur.Row+dr, cur.Col+dc)
				if !inExtent(n) || region[n.ID] || n.Population < threshold {
					continue
				}
				region[n.ID] = true
				frontier = append(frontier, n)
			}
		}
	}
	return region
}

// fillGaps admits excluded cells surrounded by the region, iterating a 3x3
// neighbour count until a fixpoint. Admitted cells ignore the density
// threshold, smoothing holes inside the urban fabric.
func fillGaps(grid *model.Grid, region map[int]bool, threshold int, inExtent func(*model.Cell) bool) map[int]bool {
	filled := make(map[int]bool, len(region))
	for id := range region {
		filled[id] = true
	}

	for {
		var added []int
		for id := range filled {
			cell := grid.Cell(id)
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					n := grid.CellAt(cell.Row+dr, cell.Col+dc)
					if !inExtent(n) || filled[n.ID] {
						continue
					}
					if neighbourCount(grid, filled, n) >= threshold {
						added = append(added, n.ID)
					}
				}
			}
		}
		if len(added) == 0 {
			return filled
		}
		for _, id := range added {
			filled[id] = true
		}
	}
}

func neighbourCount(grid *model.Grid, region map[int]bool, cell *model.Cell) int {
	count := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if n := grid.CellAt(cell.Row+dr, cell.Col+dc); n != nil && region[n.ID] {
				count++
			}
		}
	}
	return count
}

// dilate adds every cell within radius cells (Euclidean, on grid offsets)
// of the region. The halo ignores the density threshold and the extent: the
// buffer exists precisely to keep boundary cells' surroundings in scope.
func dilate(grid *model.Grid, region map[int]bool, radius int) map[int]bool {
	out := make(map[int]bool, len(region))
	for id := range region {
		out[id] = true
	}
	r2 := radius * radius
	for id := range region {
		cell := grid.Cell(id)
		for dr := -radius; dr <= radius; dr++ {
			for dc := -radius; dc <= radius; dc++ {
				if dr*dr+dc*dc > r2 {
					continue
				}
				if n := grid.CellAt(cell.Row+dr, cell.Col+dc); n != nil {
					out[n.ID] = true
				}
			}
		}
	}
	return out
}

func sortedIDs(set map[int]bool) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
