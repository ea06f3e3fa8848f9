// Package store persists analysis runs and their performance surfaces.
// Two implementations exist: SQLite for single-machine use and
// PostgreSQL for shared deployments.
package store

import (
	"context"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Area   string          `json:"area,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the performance pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, name string, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunSummary(ctx context.Context, runID string, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Performance surfaces. SavePerformance replaces any records already
	// stored for the run.
	SavePerformance(ctx context.Context, runID string, records []model.PerformanceRecord) error
	GetPerformance(ctx context.Context, runID string) ([]model.PerformanceRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
