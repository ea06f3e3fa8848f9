package model

import "time"

// RunStatus tracks an analysis run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams captures the inputs that produced a performance surface, so a
// stored run can be interpreted without the original config file.
type RunParams struct {
	Area              string      `json:"area"`
	Country           string      `json:"country,omitempty"`
	ResolutionMeters  float64     `json:"resolution_meters"`
	TimeBudgetMinutes float64     `json:"time_budget_minutes"`
	SpeedKMH          float64     `json:"speed_kmh"`
	DistanceCapKM     float64     `json:"distance_cap_km,omitempty"`
	BufferMeters      float64     `json:"buffer_meters"`
	Departures        []time.Time `json:"departures,omitempty"`
}

// RunSummary holds the headline figures of a completed run.
type RunSummary struct {
	Cells            int     `json:"cells"`
	CoreCells        int     `json:"core_cells"`
	SamplesRequested int     `json:"samples_requested"`
	SamplesUsed      int     `json:"samples_used"`
	SamplesFailed    int     `json:"samples_failed"`
	DefinedCells     int     `json:"defined_cells"`
	Min              float64 `json:"min"`
	Median           float64 `json:"median"`
	Max              float64 `json:"max"`
}

// Run is one execution of the performance pipeline against an area.
type Run struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    RunStatus   `json:"status"`
	Params    RunParams   `json:"params"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
