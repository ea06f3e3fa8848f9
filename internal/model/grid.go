package model

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// Coord is a projected coordinate in metric units (x east, y north).
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned extent in projected coordinates.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Contains reports whether the point lies inside the extent (inclusive).
func (b Bounds) Contains(c Coord) bool {
	return c.X >= b.MinX && c.X <= b.MaxX && c.Y >= b.MinY && c.Y <= b.MaxY
}

// Cell is one population grid cell. Cells are created once by NewGrid and
// never mutated afterward; urban centre membership lives in the Mask, not
// here, so downstream components share a single read-only cell set.
type Cell struct {
	ID         int     `json:"id"`
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	Centroid   Coord   `json:"centroid"`
	Population float64 `json:"population"`
}

// Grid is a rectangular population raster with uniform resolution. The
// origin is the top-left corner of the top-left cell; rows increase
// southward, matching raster row order.
type Grid struct {
	rows       int
	cols       int
	resolution float64
	origin     Coord
	cells      []Cell
}

// NewGrid creates a grid of rows x cols cells with zero population.
func NewGrid(rows, cols int, resolution float64, origin Coord) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, eris.Wrapf(ErrConfiguration, "model: grid dimensions %dx%d", rows, cols)
	}
	if resolution <= 0 {
		return nil, eris.Wrapf(ErrConfiguration, "model: grid resolution %v", resolution)
	}

	g := &Grid{
		rows:       rows,
		cols:       cols,
		resolution: resolution,
		origin:     origin,
		cells:      make([]Cell, rows*cols),
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := r*cols + c
			g.cells[id] = Cell{
				ID:  id,
				Row: r,
				Col: c,
				Centroid: Coord{
					X: origin.X + (float64(c)+0.5)*resolution,
					Y: origin.Y - (float64(r)+0.5)*resolution,
				},
			}
		}
	}
	return g, nil
}

// Rows returns the number of grid rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of grid columns.
func (g *Grid) Cols() int { return g.cols }

// Resolution returns the cell size in metres.
func (g *Grid) Resolution() float64 { return g.resolution }

// Origin returns the top-left corner of the raster.
func (g *Grid) Origin() Coord { return g.origin }

// NumCells returns the total cell count.
func (g *Grid) NumCells() int { return len(g.cells) }

// Cell returns the cell with the given id, or nil if out of range.
func (g *Grid) Cell(id int) *Cell {
	if id < 0 || id >= len(g.cells) {
		return nil
	}
	return &g.cells[id]
}

// CellAt returns the cell at (row, col), or nil if out of range.
func (g *Grid) CellAt(row, col int) *Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	return &g.cells[row*g.cols+col]
}

// CellAtCoord returns the cell containing the given projected coordinate,
// or nil if it falls outside the raster.
func (g *Grid) CellAtCoord(c Coord) *Cell {
	col := int(math.Floor((c.X - g.origin.X) / g.resolution))
	row := int(math.Floor((g.origin.Y - c.Y) / g.resolution))
	return g.CellAt(row, col)
}

// SetPopulation loads a row-major population band onto the grid. Negative
// values are rejected; NaN values (raster nodata) are clipped to zero.
func (g *Grid) SetPopulation(values []float64) error {
	if len(values) != len(g.cells) {
		return eris.Wrapf(ErrConfiguration, "model: population band has %d values, grid has %d cells",
			len(values), len(g.cells))
	}

	clipped := 0
	for i, v := range values {
		if math.IsNaN(v) {
			g.cells[i].Population = 0
			clipped++
			continue
		}
		if v < 0 {
			return eris.Wrapf(ErrConfiguration, "model: negative population %v at cell %d", v, i)
		}
		g.cells[i].Population = v
	}
	if clipped > 0 {
		zap.L().Debug("clipped nodata population cells",
			zap.String("component", "model.grid"),
			zap.Int("cells", clipped),
		)
	}
	return nil
}

// RoundPopulation rounds every cell population to the nearest integer.
// Useful when fractional estimates from resampled rasters should be
// presented as whole persons.
func (g *Grid) RoundPopulation() {
	for i := range g.cells {
		g.cells[i].Population = math.Round(g.cells[i].Population)
	}
}

// ThresholdPopulation zeroes every cell whose population is strictly below
// min, mirroring the noise floor applied to resampled population rasters.
func (g *Grid) ThresholdPopulation(min float64) {
	for i := range g.cells {
		if g.cells[i].Population < min {
			g.cells[i].Population = 0
		}
	}
}

// TotalPopulation returns the population sum over all cells.
func (g *Grid) TotalPopulation() float64 {
	var total float64
	for i := range g.cells {
		total += g.cells[i].Population
	}
	return total
}

// CentroidDistance returns the Euclidean distance in metres between the
// centroids of two cells.
func (g *Grid) CentroidDistance(a, b int) float64 {
	ca, cb := g.cells[a].Centroid, g.cells[b].Centroid
	dx, dy := ca.X-cb.X, ca.Y-cb.Y
	return math.Hypot(dx, dy)
}

// Bounds returns the full raster extent.
func (g *Grid) Bounds() Bounds {
	return Bounds{
		MinX: g.origin.X,
		MinY: g.origin.Y - float64(g.rows)*g.resolution,
		MaxX: g.origin.X + float64(g.cols)*g.resolution,
		MaxY: g.origin.Y,
	}
}

// CellPolygon returns the square footprint of a cell as a go-geom polygon,
// ring wound counter-clockwise.
func (g *Grid) CellPolygon(id int) *geom.Polygon {
	cell := g.Cell(id)
	if cell == nil {
		return nil
	}
	half := g.resolution / 2
	cx, cy := cell.Centroid.X, cell.Centroid.Y
	return geom.NewPolygonFlat(geom.XY, []float64{
		cx - half, cy - half,
		cx + half, cy - half,
		cx + half, cy + half,
		cx - half, cy + half,
		cx - half, cy - half,
	}, []int{10})
}

// CellEWKB returns the cell footprint encoded as EWKB, little endian.
func (g *Grid) CellEWKB(id int) ([]byte, error) {
	poly := g.CellPolygon(id)
	if poly == nil {
		return nil, eris.Wrapf(ErrDataConsistency, "model: unknown cell %d", id)
	}
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "model: encode cell %d", id)
	}
	return data, nil
}
