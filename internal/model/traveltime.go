package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// TravelTime is a tagged travel duration. The zero value is unreachable, so
// a missing matrix entry and an explicit unreachable marker behave
// identically.
type TravelTime struct {
	minutes   float64
	reachable bool
}

// Reachable returns a travel time of the given duration in minutes.
func Reachable(minutes float64) TravelTime {
	return TravelTime{minutes: minutes, reachable: true}
}

// Unreachable returns the explicit unreachable marker.
func Unreachable() TravelTime {
	return TravelTime{}
}

// Minutes returns the duration and whether the destination is reachable at
// all. The duration is only meaningful when ok is true.
func (t TravelTime) Minutes() (minutes float64, ok bool) {
	return t.minutes, t.reachable
}

// Within reports whether the destination is reachable within the budget,
// inclusive of the cutoff.
func (t TravelTime) Within(budgetMinutes float64) bool {
	return t.reachable && t.minutes <= budgetMinutes
}

type odKey struct {
	origin, destination int
}

// TravelTimeSample is one full origin-destination travel time matrix for a
// single departure timestamp. Entries are sparse: absent pairs are
// unreachable.
type TravelTimeSample struct {
	Departure time.Time
	times     map[odKey]TravelTime
}

// NewTravelTimeSample creates an empty sample for the given departure time.
func NewTravelTimeSample(departure time.Time) *TravelTimeSample {
	return &TravelTimeSample{
		Departure: departure,
		times:     make(map[odKey]TravelTime),
	}
}

// Set records the travel time for an origin-destination pair.
func (s *TravelTimeSample) Set(origin, destination int, t TravelTime) {
	s.times[odKey{origin, destination}] = t
}

// SetMinutes records a reachable pair with the given duration.
func (s *TravelTimeSample) SetMinutes(origin, destination int, minutes float64) {
	s.Set(origin, destination, Reachable(minutes))
}

// Get returns the travel time for an origin-destination pair. A cell always
// reaches itself at duration zero unless the matrix carries an explicit
// same-cell entry. Any other absent pair is unreachable.
func (s *TravelTimeSample) Get(origin, destination int) TravelTime {
	if t, ok := s.times[odKey{origin, destination}]; ok {
		return t
	}
	if origin == destination {
		return Reachable(0)
	}
	return Unreachable()
}

// Len returns the number of explicit matrix entries.
func (s *TravelTimeSample) Len() int {
	return len(s.times)
}

// Validate checks every referenced cell id against the grid's cell universe.
// A sample that references unknown cells means the routing and population
// inputs disagree, which is fatal for the run.
func (s *TravelTimeSample) Validate(g *Grid) error {
	for k := range s.times {
		if g.Cell(k.origin) == nil {
			return eris.Wrapf(ErrDataConsistency,
				"model: sample %s references unknown origin cell %d",
				s.Departure.Format(time.RFC3339), k.origin)
		}
		if g.Cell(k.destination) == nil {
			return eris.Wrapf(ErrDataConsistency,
				"model: sample %s references unknown destination cell %d",
				s.Departure.Format(time.RFC3339), k.destination)
		}
	}
	return nil
}
