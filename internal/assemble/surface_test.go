package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
	"github.com/datasciencecampus/transport-network-performance/internal/urbancentre"
)

// fixture builds a 3x3 grid with population on the left two columns
// only, so the mask excludes the right column.
func fixture(t *testing.T) (*model.Grid, *urbancentre.Mask) {
	t.Helper()
	g, err := model.NewGrid(3, 3, 1, model.Coord{X: 0, Y: 3})
	require.NoError(t, err)

	pop := []float64{
		100, 100, 0,
		100, 100, 0,
		100, 100, 0,
	}
	require.NoError(t, g.SetPopulation(pop))

	m, err := urbancentre.Delineate(g, urbancentre.Params{
		CellThreshold: 50,
		Seed:          model.Coord{X: 0.5, Y: 2.5},
	})
	require.NoError(t, err)
	require.Equal(t, 6, m.Len())
	return g, m
}

func TestBuildSurface_MaskAndUndefined(t *testing.T) {
	g, m := fixture(t)

	records := []model.PerformanceRecord{
		{CellID: 0, Defined: true, Value: 55.5, Samples: 4, Min: 40, Max: 70},
		{CellID: 1, Defined: false, Samples: 0},
		{CellID: 2, Defined: true, Value: 99, Samples: 4}, // outside mask
	}

	s, err := BuildSurface(g, m, records, SurfaceOptions{})
	require.NoError(t, err)
	require.Len(t, s.Bands, 1)

	perf := s.Band("performance")
	require.NotNil(t, perf)
	require.Len(t, perf.Values, 9)

	assert.Equal(t, 55.5, perf.Values[0])
	assert.Equal(t, NoData, perf.Values[1]) // in mask, undefined
	assert.Equal(t, NoData, perf.Values[2]) // outside mask
	assert.Equal(t, NoData, perf.Values[4]) // no record
}

func TestBuildSurface_OptionalBands(t *testing.T) {
	g, m := fixture(t)

	records := []model.PerformanceRecord{
		{CellID: 3, Defined: true, Value: 42, Samples: 7, Min: 30, Max: 50},
		{CellID: 4, Defined: false, Samples: 7},
	}

	s, err := BuildSurface(g, m, records, SurfaceOptions{IncludeSamples: true, IncludeMinMax: true})
	require.NoError(t, err)
	require.Len(t, s.Bands, 4)

	assert.Equal(t, 7.0, s.Band("samples").Values[3])
	// Samples band reports even where the value stays undefined.
	assert.Equal(t, 7.0, s.Band("samples").Values[4])
	assert.Equal(t, 30.0, s.Band("min").Values[3])
	assert.Equal(t, NoData, s.Band("min").Values[4])
	assert.Equal(t, 50.0, s.Band("max").Values[3])
}

func TestBuildSurface_UnknownCell(t *testing.T) {
	g, m := fixture(t)

	_, err := BuildSurface(g, m, []model.PerformanceRecord{{CellID: 99}}, SurfaceOptions{})
	require.Error(t, err)
}
