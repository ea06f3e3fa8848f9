package assemble

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
)

var cellFields = []shp.Field{
	shp.NumberField("CELL_ID", 10),
	shp.NumberField("CORE", 1),
	shp.FloatField("POP", 19, 6),
	shp.FloatField("PERF", 19, 6),
	shp.NumberField("SAMPLES", 10),
	shp.FloatField("MIN", 19, 6),
	shp.FloatField("MAX", 19, 6),
}

// WriteCellShapefile writes one square polygon per masked cell with its
// population and aggregated performance as attributes. Undefined
// performance is written as NoData.
func WriteCellShapefile(path string, grid *model.Grid, mask *urbancentre.Mask, records []model.PerformanceRecord) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "assemble: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields(cellFields)

	row := 0
	for _, rec := range records {
		if !mask.Contains(rec.CellID) {
			continue
		}
		cell := grid.Cell(rec.CellID)
		if cell == nil {
			return eris.Wrapf(model.ErrDataConsistency, "assemble: record for unknown cell %d", rec.CellID)
		}

		w.Write(polygonFromGeom(grid.CellPolygon(rec.CellID)))

		perf, min, max := NoData, NoData, NoData
		if rec.Defined {
			perf, min, max = rec.Value, rec.Min, rec.Max
		}
		attrs := []any{rec.CellID, boolAttr(mask.InCore(rec.CellID)), cell.Population, perf, rec.Samples, min, max}
		for i, v := range attrs {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "assemble: write attribute %d for cell %d", i, rec.CellID)
			}
		}
		row++
	}

	return nil
}

// WriteBoundaryShapefile writes the urban centre and buffered boundaries
// as two multipart polygon features.
func WriteBoundaryShapefile(path string, boundaries *urbancentre.Boundaries) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "assemble: create shapefile %s", path)
	}
	defer w.Close()

	w.SetFields([]shp.Field{shp.StringField("NAME", 24)})

	features := []struct {
		name string
		mp   *geom.MultiPolygon
	}{
		{"urban_centre", boundaries.UrbanCentre},
		{"buffered", boundaries.Buffered},
	}

	row := 0
	for _, feat := range features {
		if feat.mp == nil || feat.mp.NumPolygons() == 0 {
			continue
		}
		w.Write(multiPolygonToShape(feat.mp))
		if err := w.WriteAttribute(row, 0, feat.name); err != nil {
			return eris.Wrapf(err, "assemble: write name for %s", feat.name)
		}
		row++
	}

	return nil
}

func boolAttr(b bool) int {
	if b {
		return 1
	}
	return 0
}

// polygonFromGeom converts a single-ring polygon to a shapefile shape.
func polygonFromGeom(p *geom.Polygon) *shp.Polygon {
	return newShpPolygon([][]shp.Point{ringPoints(p.LinearRing(0))})
}

// multiPolygonToShape flattens a multipolygon into one multipart
// shapefile polygon, shells and holes alike becoming parts.
func multiPolygonToShape(mp *geom.MultiPolygon) *shp.Polygon {
	var rings [][]shp.Point
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			rings = append(rings, ringPoints(poly.LinearRing(j)))
		}
	}
	return newShpPolygon(rings)
}

// ringPoints extracts a ring reversed, since shapefiles wind shells
// clockwise where the geometry layer winds them counter-clockwise.
func ringPoints(ring *geom.LinearRing) []shp.Point {
	coords := ring.Coords()
	pts := make([]shp.Point, 0, len(coords))
	for i := len(coords) - 1; i >= 0; i-- {
		pts = append(pts, shp.Point{X: coords[i][0], Y: coords[i][1]})
	}
	return pts
}

func newShpPolygon(rings [][]shp.Point) *shp.Polygon {
	p := &shp.Polygon{
		Box: shp.Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)},
	}
	for _, ring := range rings {
		p.Parts = append(p.Parts, p.NumPoints)
		p.NumParts++
		p.NumPoints += int32(len(ring))
		p.Points = append(p.Points, ring...)
		for _, pt := range ring {
			p.Box.MinX = math.Min(p.Box.MinX, pt.X)
			p.Box.MinY = math.Min(p.Box.MinY, pt.Y)
			p.Box.MaxX = math.Max(p.Box.MaxX, pt.X)
			p.Box.MaxY = math.Max(p.Box.MaxY, pt.Y)
		}
	}
	return p
}
