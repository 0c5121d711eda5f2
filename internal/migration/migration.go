package migration

import (
	"context"

	"govariant/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles the registry schema. Statements stick to the
// subset of SQL shared by postgres and sqlite3 so tests can run in memory.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every step is
// idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSchemaMigrationsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create schema_migrations table")
	}

	if err := r.createTrainingRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create training_runs table")
	}

	if err := r.createEvaluationReportsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create evaluation_reports table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.Wrap(err, "failed to record migration version")
	}

	return nil
}

// Applied reports whether this runner's version has been recorded.
func (r *MigrationRunner) Applied(ctx context.Context, db *sqlx.DB) (bool, error) {
	var n int
	err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), r.version)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MigrationRunner) createSchemaMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createTrainingRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS training_runs (
			run_id TEXT PRIMARY KEY,
			schema_version TEXT NOT NULL,
			seed BIGINT NOT NULL,
			test_fraction DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			train_size INTEGER NOT NULL,
			test_size INTEGER NOT NULL,
			excluded INTEGER NOT NULL DEFAULT 0,
			selected_kind TEXT NOT NULL DEFAULT '',
			model_handle TEXT NOT NULL DEFAULT '',
			data_hash TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			fingerprint_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createEvaluationReportsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS evaluation_reports (
			run_id TEXT NOT NULL REFERENCES training_runs(run_id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			position INTEGER NOT NULL,
			roc_auc DOUBLE PRECISION,
			pr_auc DOUBLE PRECISION,
			report TEXT NOT NULL,
			PRIMARY KEY (run_id, kind)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_training_runs_created_at ON training_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_training_runs_schema ON training_runs(schema_version, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_training_runs_fingerprint ON training_runs(fingerprint)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	applied, err := r.Applied(ctx, db)
	if err != nil || applied {
		return err
	}
	_, err = db.ExecContext(ctx,
		db.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`),
		r.version)
	return err
}
