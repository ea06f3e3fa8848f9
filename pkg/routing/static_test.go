package routing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

func TestStatic_AddAndMatrix(t *testing.T) {
	s := NewStatic()
	sample := model.NewTravelTimeSample(departure)
	sample.SetMinutes(0, 1, 10)
	s.Add(sample)

	got, err := s.Matrix(context.Background(), departure)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	_, err = s.Matrix(context.Background(), departure.Add(time.Hour))
	require.Error(t, err)
}

func TestStatic_Fail(t *testing.T) {
	s := NewStatic()
	wantErr := errors.New("routing timed out")
	s.Fail(departure, wantErr)

	_, err := s.Matrix(context.Background(), departure)
	require.ErrorIs(t, err, wantErr)
}

func TestStatic_DeparturesSorted(t *testing.T) {
	s := NewStatic()
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		s.Add(model.NewTravelTimeSample(departure.Add(offset)))
	}

	deps := s.Departures()
	require.Len(t, deps, 3)
	assert.True(t, deps[0].Before(deps[1]) && deps[1].Before(deps[2]))
}

func TestReadMatrixCSV(t *testing.T) {
	sample, err := readMatrix(strings.NewReader(
		"from_id,to_id,travel_time\n"+
			"0,1,12.5\n"+
			"0,2,\n"+
			"0,3,NA\n"+
			"0,4,-1\n"+
			"1,0,45\n",
	), departure)
	require.NoError(t, err)

	min, ok := sample.Get(0, 1).Minutes()
	require.True(t, ok)
	assert.Equal(t, 12.5, min)

	// Blank, NA, and negative entries are all unreachable.
	for _, d := range []int{2, 3, 4} {
		assert.False(t, sample.Get(0, d).Within(1e9), "destination %d", d)
	}
	assert.True(t, sample.Get(1, 0).Within(45))
}

func TestReadMatrixCSV_BadRow(t *testing.T) {
	_, err := readMatrix(strings.NewReader("0,1,abc\n"), departure)
	require.Error(t, err)

	_, err = readMatrix(strings.NewReader("x,1,5\n0,y,5\n"), departure)
	require.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("20230808T0800.csv", "from_id,to_id,travel_time\n0,1,5\n")
	write("20230808T0815.csv", "from_id,to_id,travel_time\n0,1,7\n")
	write("notes.txt", "ignored")

	s, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, s.Departures(), 2)

	sample, err := s.Matrix(context.Background(), time.Date(2023, 8, 8, 8, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	min, ok := sample.Get(0, 1).Minutes()
	require.True(t, ok)
	assert.Equal(t, 7.0, min)
}

func TestLoadDir_BadFilename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "matrix.csv"), []byte("0,1,5\n"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
}
