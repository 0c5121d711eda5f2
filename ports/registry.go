package ports

import (
	"context"

	"govariant/domain/core"
	"govariant/domain/model"
	"govariant/domain/run"
)

// RunRecord is a training run with the evaluation report of every candidate.
type RunRecord struct {
	Manifest run.Manifest
	Reports  []model.EvaluationReport
}

// ModelRegistry tracks training runs and the models they published.
type ModelRegistry interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id core.RunID) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]run.Manifest, error)
	// LatestHandle returns the most recently published model for a schema.
	LatestHandle(ctx context.Context, schemaVersion string) (core.ModelHandle, error)
}
