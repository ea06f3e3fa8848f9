package assemble

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// WriteASCIIGrid writes one band as an ESRI ASCII grid. values must be
// row-major with the same length as the grid.
func WriteASCIIGrid(w io.Writer, grid *model.Grid, values []float64, noData float64) error {
	if len(values) != grid.NumCells() {
		return eris.Wrapf(model.ErrConfiguration, "assemble: band has %d values, grid has %d cells", len(values), grid.NumCells())
	}

	bw := bufio.NewWriter(w)
	origin := grid.Origin()
	yll := origin.Y - float64(grid.Rows())*grid.Resolution()

	fmt.Fprintf(bw, "ncols %d\n", grid.Cols())
	fmt.Fprintf(bw, "nrows %d\n", grid.Rows())
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(origin.X))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(yll))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(grid.Resolution()))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(noData))

	for r := 0; r < grid.Rows(); r++ {
		for c := 0; c < grid.Cols(); c++ {
			if c > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatFloat(values[r*grid.Cols()+c]))
		}
		bw.WriteByte('\n')
	}

	return eris.Wrap(bw.Flush(), "assemble: write ascii grid")
}

// Raster holds a parsed ESRI ASCII grid before it becomes a Grid.
type Raster struct {
	Rows, Cols int
	CellSize   float64
	Origin     model.Coord // top-left corner
	NoData     float64
	Values     []float64 // row-major, NoData entries replaced with 0
}

// Grid converts the raster into a population grid.
func (r *Raster) Grid() (*model.Grid, error) {
	g, err := model.NewGrid(r.Rows, r.Cols, r.CellSize, r.Origin)
	if err != nil {
		return nil, err
	}
	if err := g.SetPopulation(r.Values); err != nil {
		return nil, err
	}
	return g, nil
}

// ReadASCIIGrid parses an ESRI ASCII grid, the interchange format most
// population rasters ship in once converted from GeoTIFF.
func ReadASCIIGrid(r io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	header := map[string]float64{}
	var values []float64

	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		// Header lines are "key value" pairs with a non-numeric key.
		if len(fields) == 2 && len(values) == 0 {
			if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
				key := strings.ToLower(fields[0])
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, eris.Wrapf(model.ErrDataConsistency, "assemble: bad header line %q", sc.Text())
				}
				header[key] = v
				continue
			}
		}

		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, eris.Wrapf(model.ErrDataConsistency, "assemble: bad raster value %q", f)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "assemble: read ascii grid")
	}

	for _, key := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, eris.Wrapf(model.ErrDataConsistency, "assemble: ascii grid missing %s header", key)
		}
	}

	rows := int(header["nrows"])
	cols := int(header["ncols"])
	if rows <= 0 || cols <= 0 {
		return nil, eris.Wrap(model.ErrDataConsistency, "assemble: ascii grid has empty extent")
	}
	if len(values) != rows*cols {
		return nil, eris.Wrapf(model.ErrDataConsistency, "assemble: ascii grid has %d values, expected %d", len(values), rows*cols)
	}

	noData := NoData
	if v, ok := header["nodata_value"]; ok {
		noData = v
	}
	for i, v := range values {
		if v == noData {
			values[i] = 0
		}
	}

	cellSize := header["cellsize"]
	return &Raster{
		Rows:     rows,
		Cols:     cols,
		CellSize: cellSize,
		Origin: model.Coord{
			X: header["xllcorner"],
			Y: header["yllcorner"] + float64(rows)*cellSize,
		},
		NoData: noData,
		Values: values,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
