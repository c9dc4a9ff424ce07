// Package store persists pipeline reports to SQLite so downstream
// consumers (dashboards, APIs) can query past runs instead of scraping
// CSV files.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/flowlevel/flowlevel/pipeline"
)

// Store wraps the SQLite connection holding report runs.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one persisted pipeline run.
type Run struct {
	ID          int64
	CreatedAt   string
	Config      pipeline.Config
	BestValLoss float64
	Rows        []pipeline.ReportRow
}

// Open opens (creating if needed) the report database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) createSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	latent_dim INTEGER NOT NULL,
	epochs INTEGER NOT NULL,
	batch_size INTEGER NOT NULL,
	validation_split REAL NOT NULL,
	seed INTEGER NOT NULL,
	best_val_loss REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS report_rows (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	segment TEXT NOT NULL,
	cluster_id INTEGER NOT NULL,
	category TEXT NOT NULL,
	avg_raw_traffic REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_rows_run ON report_rows(run_id);
`
	if _, err := s.db.ExecContext(context.Background(), schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveRun inserts a run and all of its report rows in one transaction
// and returns the new run id.
func (s *Store) SaveRun(ctx context.Context, cfg pipeline.Config, report *pipeline.Report) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (latent_dim, epochs, batch_size, validation_split, seed, best_val_loss)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cfg.LatentDim, cfg.Epochs, cfg.BatchSize, cfg.ValidationSplit, cfg.Seed, report.BestValLoss)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_rows (run_id, segment, cluster_id, category, avg_raw_traffic)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range report.Rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Segment, row.ClusterID, row.Category, row.AvgRawTraffic); err != nil {
			return 0, fmt.Errorf("insert row for segment %s: %w", row.Segment, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// LatestRun returns the most recent persisted run, or sql.ErrNoRows if
// the store is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, latent_dim, epochs, batch_size, validation_split, seed, best_val_loss
		 FROM runs ORDER BY id DESC LIMIT 1`).
		Scan(&run.ID, &run.CreatedAt, &run.Config.LatentDim, &run.Config.Epochs,
			&run.Config.BatchSize, &run.Config.ValidationSplit, &run.Config.Seed, &run.BestValLoss)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT segment, cluster_id, category, avg_raw_traffic
		 FROM report_rows WHERE run_id = ? ORDER BY rowid`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query report rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r pipeline.ReportRow
		if err := rows.Scan(&r.Segment, &r.ClusterID, &r.Category, &r.AvgRawTraffic); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		run.Rows = append(run.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return run, nil
}
