package model

import "github.com/rotisserie/eris"

// Fatal error categories for an analysis run. Callers match with eris.Is.
var (
	// ErrConfiguration indicates an invalid seed/threshold/extent combination
	// detected before any routing work begins.
	ErrConfiguration = eris.New("invalid configuration")

	// ErrDataConsistency indicates a travel time sample references cells that
	// do not exist in the population grid. The routing and population inputs
	// disagree about the cell universe, so the run cannot continue.
	ErrDataConsistency = eris.New("inconsistent input data")

	// ErrInsufficientSampleCoverage indicates too many departure time samples
	// failed, so an aggregate over the survivors would be unreliable.
	ErrInsufficientSampleCoverage = eris.New("insufficient sample coverage")
)
