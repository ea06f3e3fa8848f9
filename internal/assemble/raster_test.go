package assemble

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

func TestWriteASCIIGrid(t *testing.T) {
	g, err := model.NewGrid(2, 3, 200, model.Coord{X: 1000, Y: 5400})
	require.NoError(t, err)

	values := []float64{1, 2, NoData, 4.5, 5, 6}
	var buf bytes.Buffer
	require.NoError(t, WriteASCIIGrid(&buf, g, values, NoData))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "ncols 3", lines[0])
	assert.Equal(t, "nrows 2", lines[1])
	assert.Equal(t, "xllcorner 1000", lines[2])
	// yllcorner = top minus 2 rows of 200m.
	assert.Equal(t, "yllcorner 5000", lines[3])
	assert.Equal(t, "cellsize 200", lines[4])
	assert.Equal(t, "NODATA_value -9999", lines[5])
	assert.Equal(t, "1 2 -9999", lines[6])
	assert.Equal(t, "4.5 5 6", lines[7])
}

func TestWriteASCIIGrid_LengthMismatch(t *testing.T) {
	g, err := model.NewGrid(2, 2, 1, model.Coord{X: 0, Y: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = WriteASCIIGrid(&buf, g, []float64{1, 2, 3}, NoData)
	require.Error(t, err)
}

const sampleGrid = `ncols 3
nrows 2
xllcorner 1000
yllcorner 5000
cellsize 200
NODATA_value -1
10 20 30
-1 50 60
`

func TestReadASCIIGrid(t *testing.T) {
	r, err := ReadASCIIGrid(strings.NewReader(sampleGrid))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Rows)
	assert.Equal(t, 3, r.Cols)
	assert.Equal(t, 200.0, r.CellSize)
	// Origin is the top-left corner: yll plus the full grid height.
	assert.Equal(t, model.Coord{X: 1000, Y: 5400}, r.Origin)
	// NoData entries become zero population.
	assert.Equal(t, []float64{10, 20, 30, 0, 50, 60}, r.Values)

	g, err := r.Grid()
	require.NoError(t, err)
	assert.Equal(t, 170.0, g.TotalPopulation())
	assert.Equal(t, model.Coord{X: 1100, Y: 5300}, g.Cell(0).Centroid)
}

func TestReadASCIIGrid_MissingHeader(t *testing.T) {
	_, err := ReadASCIIGrid(strings.NewReader("ncols 2\nnrows 2\n1 2 3 4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestReadASCIIGrid_ValueCountMismatch(t *testing.T) {
	in := `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 1
1 2 3
`
	_, err := ReadASCIIGrid(strings.NewReader(in))
	require.Error(t, err)
}
