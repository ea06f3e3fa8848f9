package urbancentre

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// Boundaries holds the vectorized delineation outputs: the urban centre
// itself, the buffered region, and the buffered region's envelope.
type Boundaries struct {
	UrbanCentre *geom.MultiPolygon
	Buffered    *geom.MultiPolygon
	BBox        *geom.Polygon
}

// Vectorize dissolves the mask's cell squares into boundary polygons.
func Vectorize(grid *model.Grid, mask *Mask) (*Boundaries, error) {
	core, err := dissolve(grid, mask.core)
	if err != nil {
		return nil, err
	}
	buffered, err := dissolve(grid, mask.cells)
	if err != nil {
		return nil, err
	}

	b := buffered.Bounds()
	bbox := geom.NewPolygonFlat(geom.XY, []float64{
		b.Min(0), b.Min(1),
		b.Max(0), b.Min(1),
		b.Max(0), b.Max(1),
		b.Min(0), b.Max(1),
		b.Min(0), b.Min(1),
	}, []int{10})

	return &Boundaries{UrbanCentre: core, Buffered: buffered, BBox: bbox}, nil
}

type corner struct{ row, col int }

type edge struct{ from, to corner }

// dissolve unions a set of grid cell squares into a multipolygon by edge
// cancellation: every cell side without an in-set neighbour is a boundary
// edge, and the directed edges stitch into rings. Outer rings come out
// counter-clockwise, holes clockwise.
func dissolve(grid *model.Grid, cells map[int]bool) (*geom.MultiPolygon, error) {
	edges := boundaryEdges(grid, cells)
	rings := stitchRings(edges)

	type shell struct {
		ring  []corner
		holes [][]corner
	}
	var shells []shell
	var holes [][]corner

	for _, ring := range rings {
		if signedArea(ring) > 0 {
			shells = append(shells, shell{ring: ring})
		} else {
			holes = append(holes, ring)
		}
	}

	// Assign each hole to the shell that contains it.
	for _, h := range holes {
		placed := false
		for i := range shells {
			if ringContains(shells[i].ring, h[0]) {
				shells[i].holes = append(shells[i].holes, h)
				placed = true
				break
			}
		}
		if !placed {
			return nil, eris.New("urbancentre: hole ring outside every shell")
		}
	}

	// Deterministic polygon order.
	sort.Slice(shells, func(i, j int) bool {
		a, b := shells[i].ring[0], shells[j].ring[0]
		if a.row != b.row {
			return a.row < b.row
		}
		return a.col < b.col
	})

	mp := geom.NewMultiPolygon(geom.XY)
	for _, s := range shells {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(toRing(grid, s.ring)); err != nil {
			return nil, eris.Wrap(err, "urbancentre: push shell ring")
		}
		for _, h := range s.holes {
			if err := poly.Push(toRing(grid, h)); err != nil {
				return nil, eris.Wrap(err, "urbancentre: push hole ring")
			}
		}
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrap(err, "urbancentre: push polygon")
		}
	}
	return mp, nil
}

// boundaryEdges emits one directed edge per exposed cell side, oriented
// counter-clockwise around the cell in projected space (y up).
func boundaryEdges(grid *model.Grid, cells map[int]bool) []edge {
	in := func(r, c int) bool {
		n := grid.CellAt(r, c)
		return n != nil && cells[n.ID]
	}

	var edges []edge
	for id := range cells {
		cell := grid.Cell(id)
		r, c := cell.Row, cell.Col
		if !in(r+1, c) { // south side, eastward
			edges = append(edges, edge{corner{r + 1, c}, corner{r + 1, c + 1}})
		}
		if !in(r, c+1) { // east side, northward
			edges = append(edges, edge{corner{r + 1, c + 1}, corner{r, c + 1}})
		}
		if !in(r-1, c) { // north side, westward
			edges = append(edges, edge{corner{r, c + 1}, corner{r, c}})
		}
		if !in(r, c-1) { // west side, southward
			edges = append(edges, edge{corner{r, c}, corner{r + 1, c}})
		}
	}
	return edges
}

// stitchRings chains directed edges into closed rings. Where two regions
// touch only at a corner the vertex has two outgoing edges; taking the
// leftmost turn keeps each ring simple.
func stitchRings(edges []edge) [][]corner {
	outgoing := make(map[corner][]edge)
	for _, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], e)
	}
	used := make(map[edge]bool, len(edges))

	// Deterministic traversal order.
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.from != b.from {
			if a.from.row != b.from.row {
				return a.from.row < b.from.row
			}
			return a.from.col < b.from.col
		}
		if a.to.row != b.to.row {
			return a.to.row < b.to.row
		}
		return a.to.col < b.to.col
	})

	var rings [][]corner
	for _, start := range edges {
		if used[start] {
			continue
		}
		ring := []corner{start.from}
		cur := start
		for {
			used[cur] = true
			ring = append(ring, cur.to)
			if cur.to == start.from {
				break
			}
			next := pickNext(outgoing[cur.to], cur, used)
			if next == (edge{}) {
				break // degenerate input, drop the partial ring
			}
			cur = next
		}
		if len(ring) >= 4 && ring[0] == ring[len(ring)-1] {
			rings = append(rings, ring)
		}
	}
	return rings
}

// pickNext chooses the unused outgoing edge turning most sharply left
// relative to the incoming direction.
func pickNext(candidates []edge, incoming edge, used map[edge]bool) edge {
	inDr := incoming.to.row - incoming.from.row
	inDc := incoming.to.col - incoming.from.col

	best := edge{}
	bestTurn := -3
	for _, cand := range candidates {
		if used[cand] {
			continue
		}
		dr := cand.to.row - cand.from.row
		dc := cand.to.col - cand.from.col
		// Cross product of incoming x outgoing in (col, -row) space: positive
		// is a left turn in projected coordinates (y up).
		turn := inDc*(-dr) - (-inDr)*dc
		if turn > bestTurn {
			bestTurn = turn
			best = cand
		}
	}
	return best
}

// signedArea is positive for counter-clockwise rings in projected space.
func signedArea(ring []corner) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		// Shoelace on (col, -row), matching the projected orientation.
		x1, y1 := float64(ring[i].col), -float64(ring[i].row)
		x2, y2 := float64(ring[i+1].col), -float64(ring[i+1].row)
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}

// ringContains tests a corner against a ring by ray casting on the grid
// corner lattice, offset half a step so the probe never sits on an edge.
func ringContains(ring []corner, pt corner) bool {
	x, y := float64(pt.col)+0.25, float64(pt.row)+0.25
	inside := false
	for i := 0; i < len(ring)-1; i++ {
		x1, y1 := float64(ring[i].col), float64(ring[i].row)
		x2, y2 := float64(ring[i+1].col), float64(ring[i+1].row)
		if (y1 > y) != (y2 > y) && x < x1+(y-y1)/(y2-y1)*(x2-x1) {
			inside = !inside
		}
	}
	return inside
}

func toRing(grid *model.Grid, ring []corner) *geom.LinearRing {
	origin := grid.Origin()
	res := grid.Resolution()
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat,
			origin.X+float64(c.col)*res,
			origin.Y-float64(c.row)*res,
		)
	}
	return geom.NewLinearRingFlat(geom.XY, flat)
}
