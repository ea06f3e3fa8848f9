package routing

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// departureLayout names matrix CSV files by departure time, e.g.
// 20230808T0800.csv.
const departureLayout = "20060102T1504"

// Static serves pre-computed samples from memory. Backs tests and runs
// over matrices exported by an offline routing stage.
type Static struct {
	samples map[time.Time]*staticEntry
}

type staticEntry struct {
	sample *model.TravelTimeSample
	err    error
}

// NewStatic creates an empty static client.
func NewStatic() *Static {
	return &Static{samples: make(map[time.Time]*staticEntry)}
}

// Add registers a sample for its departure time.
func (s *Static) Add(sample *model.TravelTimeSample) {
	s.samples[sample.Departure] = &staticEntry{sample: sample}
}

// Fail registers a failure for a departure time, for exercising the
// engine's sample-loss tolerance.
func (s *Static) Fail(departure time.Time, err error) {
	s.samples[departure] = &staticEntry{err: err}
}

// Departures returns the registered departure times in ascending order.
func (s *Static) Departures() []time.Time {
	out := make([]time.Time, 0, len(s.samples))
	for dep := range s.samples {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Matrix returns the registered sample for the departure.
func (s *Static) Matrix(_ context.Context, departure time.Time) (*model.TravelTimeSample, error) {
	entry, ok := s.samples[departure]
	if !ok {
		return nil, eris.Errorf("routing: no matrix for departure %s", departure.Format(time.RFC3339))
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.sample, nil
}

// LoadDir builds a Static client from a directory of matrix CSV files.
// Each file is named by its departure time (20060102T1504.csv) and holds
// from_id,to_id,travel_time rows after one header line, minutes as
// decimals. An empty, "NA" or negative travel_time marks the pair
// unreachable.
func LoadDir(dir string) (*Static, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "routing: read matrix dir %s", dir)
	}

	s := NewStatic()
	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		departure, err := time.Parse(departureLayout, strings.TrimSuffix(name, ".csv"))
		if err != nil {
			return nil, eris.Wrapf(err, "routing: matrix filename %s is not a departure time", name)
		}
		sample, err := ReadMatrixCSV(filepath.Join(dir, name), departure)
		if err != nil {
			return nil, err
		}
		s.Add(sample)
		loaded++
	}
	if loaded == 0 {
		return nil, eris.Errorf("routing: no matrix files found in %s", dir)
	}
	return s, nil
}

// ReadMatrixCSV parses one travel time matrix file.
func ReadMatrixCSV(path string, departure time.Time) (*model.TravelTimeSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "routing: open matrix %s", path)
	}
	defer func() { _ = f.Close() }()

	sample, err := readMatrix(f, departure)
	if err != nil {
		return nil, eris.Wrapf(err, "routing: parse matrix %s", path)
	}
	return sample, nil
}

func readMatrix(r io.Reader, departure time.Time) (*model.TravelTimeSample, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	sample := model.NewTravelTimeSample(departure)
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read record")
		}
		line++
		if len(rec) < 3 {
			return nil, eris.Errorf("line %d: expected 3 columns, got %d", line, len(rec))
		}
		if line == 1 && !isNumeric(rec[0]) {
			continue // header
		}

		from, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, eris.Wrapf(err, "line %d: from_id", line)
		}
		to, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, eris.Wrapf(err, "line %d: to_id", line)
		}

		raw := strings.TrimSpace(rec[2])
		if raw == "" || strings.EqualFold(raw, "na") {
			sample.Set(from, to, model.Unreachable())
			continue
		}
		minutes, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "line %d: travel_time", line)
		}
		if minutes < 0 {
			sample.Set(from, to, model.Unreachable())
			continue
		}
		sample.SetMinutes(from, to, minutes)
	}
	return sample, nil
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}
