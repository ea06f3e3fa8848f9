package urbancentre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// testGrid builds a rows x cols grid at 1m resolution with the given
// row-major population band.
func testGrid(t *testing.T, rows, cols int, pop []float64) *model.Grid {
	t.Helper()
	g, err := model.NewGrid(rows, cols, 1, model.Coord{X: 0, Y: float64(rows)})
	require.NoError(t, err)
	require.NoError(t, g.SetPopulation(pop))
	return g
}

func uniform(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDelineate_UniformGridAllCells(t *testing.T) {
	// 3x3 grid, uniform population 100, seed at centre, threshold 50,
	// no buffer: the urban centre is all 9 cells.
	g := testGrid(t, 3, 3, uniform(9, 100))

	m, err := Delineate(g, Params{
		CellThreshold: 50,
		Seed:          model.Coord{X: 1.5, Y: 1.5},
	})
	require.NoError(t, err)

	assert.Equal(t, 9, m.Len())
	assert.Equal(t, 9, m.CoreLen())
	for id := 0; id < 9; id++ {
		assert.True(t, m.Contains(id), "cell %d", id)
	}
}

func TestDelineate_PopulationPreserved(t *testing.T) {
	pop := []float64{10, 200, 30, 400, 500, 60, 70, 800, 90}
	g := testGrid(t, 3, 3, pop)

	_, err := Delineate(g, Params{
		CellThreshold: 100,
		Seed:          model.Coord{X: 1.5, Y: 1.5},
	})
	require.NoError(t, err)

	// Delineation only derives membership; stored populations are untouched.
	for i, want := range pop {
		assert.Equal(t, want, g.Cell(i).Population, "cell %d", i)
	}
}

func TestDelineate_SeedBelowThreshold(t *testing.T) {
	g := testGrid(t, 3, 3, uniform(9, 100))

	_, err := Delineate(g, Params{
		CellThreshold: 500,
		Seed:          model.Coord{X: 1.5, Y: 1.5},
	})
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestDelineate_SeedOutsideGrid(t *testing.T) {
	g := testGrid(t, 3, 3, uniform(9, 100))

	_, err := Delineate(g, Params{
		CellThreshold: 50,
		Seed:          model.Coord{X: -5, Y: 1.5},
	})
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestDelineate_SeedOutsideExtent(t *testing.T) {
	g := testGrid(t, 3, 3, uniform(9, 100))

	_, err := Delineate(g, Params{
		CellThreshold: 50,
		Seed:          model.Coord{X: 2.5, Y: 0.5},
		Extent:        model.Bounds{MinX: 0, MinY: 2, MaxX: 2, MaxY: 3},
	})
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestDelineate_SingleCellRegionIsValid(t *testing.T) {
	// Only the centre cell is dense. A single-cell region succeeds.
	pop := uniform(9, 10)
	pop[4] = 1000
	g := testGrid(t, 3, 3, pop)

	m, err := Delineate(g, Params{
		CellThreshold: 500,
		Seed:          model.Coord{X: 1.5, Y: 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains(4))
}

func TestDelineate_DiagonalConnectivity(t *testing.T) {
	// Dense cells on the main diagonal only: 8-connectivity joins them.
	pop := uniform(9, 0)
	pop[0], pop[4], pop[8] = 100, 100, 100
	g := testGrid(t, 3, 3, pop)

	m, err := Delineate(g, Params{
		CellThreshold: 50,
		Seed:          model.Coord{X: 1.5, Y: 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Contains(0))
	assert.True(t, m.Contains(8))
}

func TestDelineate_DisconnectedClusterExcluded(t *testing.T) {
	// Two dense blobs separated by an empty column on a 3x5 grid; only the
	// seed's blob is delineated.
	pop := []float64{
		100, 100, 0, 100, 100,
		100, 100, 0, 100, 100,
		100, 100, 0, 100, 100,
	}
	g := testGrid(t, 3, 5, pop)

	m, err := Delineate(g, Params{
		CellThreshold: 50,
		Seed:          model.Coord{X: 0.5, Y: 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, m.Len())
	assert.False(t, m.Contains(3))
	assert.False(t, m.Contains(13))
}

func TestDelineate_ClusterPopulationThreshold(t *testing.T) {
	g := testGrid(t, 3, 3, uniform(9, 100))

	_, err := Delineate(g, Params{
		CellThreshold:       50,
		ClusterPopThreshold: 5000, // total is 900
		Seed:                model.Coord{X: 1.5, Y: 1.5},
	})
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestDelineate_GapFilling(t *testing.T) {
	// Dense ring with an empty centre: the centre has 8 in-region
	// neighbours and is filled regardless of its own population.
	pop := uniform(9, 100)
	pop[4] = 0
	g := testGrid(t, 3, 3, pop)

	m, err := Delineate(g, Params{
		CellThreshold: 50,
		FillThreshold: 5,
		Seed:          model.Coord{X: 0.5, Y: 2.5},
	})
	require.NoError(t, err)
	assert.True(t, m.Contains(4))
	assert.Equal(t, 9, m.Len())
}

func TestDelineate_GapFillThresholdValidated(t *testing.T) {
	g := testGrid(t, 3, 3, uniform(9, 100))

	for _, bad := range []int{1, 4, 9} {
		_, err := Delineate(g, Params{
			CellThreshold: 50,
			FillThreshold: bad,
			Seed:          model.Coord{X: 1.5, Y: 1.5},
		})
		require.ErrorIs(t, err, model.ErrConfiguration, "threshold %d", bad)
	}
}

func TestDelineate_BufferSuperset(t *testing.T) {
	// Single dense cell at the centre of a 5x5 grid; a one-cell buffer
	// admits the surrounding halo regardless of density.
	pop := uniform(25, 0)
	pop[12] = 1000
	g := testGrid(t, 5, 5, pop)

	m, err := Delineate(g, Params{
		CellThreshold: 500,
		BufferMeters:  1,
		Seed:          model.Coord{X: 2.5, Y: 2.5},
	})
	require.NoError(t, err)

	// Buffered set is a strict superset of the core.
	assert.Equal(t, 1, m.CoreLen())
	assert.Greater(t, m.Len(), m.CoreLen())
	for _, id := range []int{6, 7, 8, 11, 13, 16, 17, 18} {
		assert.True(t, m.Contains(id), "halo cell %d", id)
	}
	// Halo cells are not core.
	assert.False(t, m.InCore(7))
	assert.True(t, m.InCore(12))
}

func TestDelineate_BufferRoundsOutward(t *testing.T) {
	// 250m buffer on a 100m grid rounds out to 3 cells.
	pop := uniform(81, 0)
	pop[40] = 1000
	g, err := model.NewGrid(9, 9, 100, model.Coord{X: 0, Y: 900})
	require.NoError(t, err)
	require.NoError(t, g.SetPopulation(pop))

	m, err := Delineate(g, Params{
		CellThreshold: 500,
		BufferMeters:  250,
		Seed:          model.Coord{X: 450, Y: 450},
	})
	require.NoError(t, err)

	// Cell three columns east (offset 3,0) must be included.
	assert.True(t, m.Contains(43))
	// Offset (2,2) is within a Euclidean radius of 3 (sqrt(8) < 3).
	assert.True(t, m.Contains(6*9+6))
	// Cell at offset (3,3) is outside a Euclidean radius of 3.
	assert.False(t, m.Contains(7*9+7))
}

func TestDelineate_Deterministic(t *testing.T) {
	pop := uniform(25, 100)
	pop[7] = 0
	g := testGrid(t, 5, 5, pop)

	p := Params{
		CellThreshold: 50,
		BufferMeters:  1,
		Seed:          model.Coord{X: 2.5, Y: 2.5},
	}
	a, err := Delineate(g, p)
	require.NoError(t, err)
	b, err := Delineate(g, p)
	require.NoError(t, err)
	assert.Equal(t, a.IDs(), b.IDs())
}
