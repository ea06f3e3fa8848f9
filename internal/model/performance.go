package model

// ReachabilityResult holds the per-origin sums for one departure time
// sample. It is ephemeral: produced by the estimator, folded into the
// aggregator, then discarded.
type ReachabilityResult struct {
	Origin     int
	Accessible float64
	Proximal   float64
}

// Ratio returns the transport performance for this sample as a percentage
// (100 = the network matches the idealized baseline). ok is false when the
// proximal population is zero and the ratio is undefined.
func (r ReachabilityResult) Ratio() (pct float64, ok bool) {
	if r.Proximal <= 0 {
		return 0, false
	}
	return r.Accessible / r.Proximal * 100, true
}

// PerformanceRecord is the aggregated statistic for one origin cell.
// Undefined records (no sample ever had a proximal population) keep
// Defined false and carry no numeric value.
type PerformanceRecord struct {
	CellID  int     `json:"cell_id"`
	Defined bool    `json:"defined"`
	Value   float64 `json:"value"`   // mean of per-sample ratios, percent
	Samples int     `json:"samples"` // samples contributing to the mean
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`

	// Geom is the cell footprint as EWKB, attached when the record is
	// persisted so the surface stays queryable with spatial tooling.
	// Omitted from JSON payloads.
	Geom []byte `json:"-"`
}
