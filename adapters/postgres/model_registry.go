package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"govariant/domain/core"
	"govariant/domain/model"
	"govariant/domain/run"
	"govariant/ports"

	"github.com/jmoiron/sqlx"
)

// modelRegistry implements ports.ModelRegistry over any sqlx driver that
// understands the migration schema. Queries are written with '?' and
// rebound for the connected driver.
type modelRegistry struct {
	db *sqlx.DB
}

// NewModelRegistry creates a SQL-backed model registry
func NewModelRegistry(db *sqlx.DB) ports.ModelRegistry {
	return &modelRegistry{db: db}
}

type runRow struct {
	RunID           string    `db:"run_id"`
	SchemaVersion   string    `db:"schema_version"`
	Seed            int64     `db:"seed"`
	TestFraction    float64   `db:"test_fraction"`
	Threshold       float64   `db:"threshold"`
	TrainSize       int       `db:"train_size"`
	TestSize        int       `db:"test_size"`
	Excluded        int       `db:"excluded"`
	SelectedKind    string    `db:"selected_kind"`
	ModelHandle     string    `db:"model_handle"`
	DataHash        string    `db:"data_hash"`
	Fingerprint     string    `db:"fingerprint"`
	FingerprintJSON string    `db:"fingerprint_json"`
	CreatedAt       time.Time `db:"created_at"`
}

const runColumns = `run_id, schema_version, seed, test_fraction, threshold, train_size, test_size,
	excluded, selected_kind, model_handle, data_hash, fingerprint, fingerprint_json, created_at`

func (row runRow) manifest() (run.Manifest, error) {
	var fp run.Fingerprint
	if err := json.Unmarshal([]byte(row.FingerprintJSON), &fp); err != nil {
		return run.Manifest{}, fmt.Errorf("failed to unmarshal fingerprint of run %s: %w", row.RunID, err)
	}
	return run.Manifest{
		RunID:         core.RunID(row.RunID),
		SchemaVersion: row.SchemaVersion,
		Seed:          row.Seed,
		TestFraction:  row.TestFraction,
		Threshold:     row.Threshold,
		TrainSize:     row.TrainSize,
		TestSize:      row.TestSize,
		Excluded:      row.Excluded,
		SelectedKind:  model.Kind(row.SelectedKind),
		ModelHandle:   core.ModelHandle(row.ModelHandle),
		Fingerprint:   fp,
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func nullableMetric(m model.MetricValue) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m.Value, Valid: m.Defined}
}

// RecordRun stores the manifest and every candidate report in one transaction.
func (r *modelRegistry) RecordRun(ctx context.Context, rec ports.RunRecord) error {
	m := rec.Manifest
	if err := m.Validate(); err != nil {
		return err
	}
	fpJSON, err := json.Marshal(m.Fingerprint)
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO training_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), m.RunID.String(), m.SchemaVersion, m.Seed, m.TestFraction, m.Threshold, m.TrainSize, m.TestSize,
		m.Excluded, string(m.SelectedKind), m.ModelHandle.String(), m.Fingerprint.DataHash.String(),
		m.Fingerprint.Fingerprint.String(), string(fpJSON), m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert training run %s: %w", m.RunID, err)
	}

	for i, report := range rec.Reports {
		body, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal %s report: %w", report.Kind, err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO evaluation_reports (run_id, kind, position, roc_auc, pr_auc, report)
			VALUES (?, ?, ?, ?, ?, ?)
		`), m.RunID.String(), string(report.Kind), i, nullableMetric(report.ROCAUC), nullableMetric(report.PRAUC), string(body))
		if err != nil {
			return fmt.Errorf("failed to insert %s report: %w", report.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit training run %s: %w", m.RunID, err)
	}
	return nil
}

// GetRun retrieves a run with its reports in recorded order
func (r *modelRegistry) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+runColumns+` FROM training_runs WHERE run_id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	manifest, err := row.manifest()
	if err != nil {
		return nil, err
	}

	var bodies []string
	err = r.db.SelectContext(ctx, &bodies, r.db.Rebind(`
		SELECT report FROM evaluation_reports WHERE run_id = ? ORDER BY position
	`), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation reports: %w", err)
	}

	reports := make([]model.EvaluationReport, 0, len(bodies))
	for _, body := range bodies {
		var report model.EvaluationReport
		if err := json.Unmarshal([]byte(body), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation report: %w", err)
		}
		reports = append(reports, report)
	}

	return &ports.RunRecord{Manifest: manifest, Reports: reports}, nil
}

// ListRuns returns manifests newest first. A non-positive limit returns all runs.
func (r *modelRegistry) ListRuns(ctx context.Context, limit int) ([]run.Manifest, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs ORDER BY created_at DESC, run_id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}

	manifests := make([]run.Manifest, 0, len(rows))
	for _, row := range rows {
		m, err := row.manifest()
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// LatestHandle returns the model published by the most recent run for schemaVersion
func (r *modelRegistry) LatestHandle(ctx context.Context, schemaVersion string) (core.ModelHandle, error) {
	var handle string
	err := r.db.GetContext(ctx, &handle, r.db.Rebind(`
		SELECT model_handle FROM training_runs
		WHERE schema_version = ? AND model_handle <> ''
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1
	`), schemaVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: no published model for schema %s", core.ErrModelNotFound, schemaVersion)
		}
		return "", fmt.Errorf("failed to get latest model handle: %w", err)
	}
	return core.ModelHandle(handle), nil
}
