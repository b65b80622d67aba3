// Package history persists run outcomes in a local SQLite database.
//
// The database lives under generated/ next to the run report, one row
// per run plus one row per step. It answers the questions a report file
// per run cannot: "when did this branch last pass", "how often is the
// Windows test step tolerated-failing", "is the build getting slower".
//
// History is strictly best-effort from the orchestrator's point of
// view: a run must never fail because its bookkeeping did.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mmr-tortoise/cirun/internal/model"
	"github.com/mmr-tortoise/cirun/internal/report"
)

// Store wraps the SQLite connection and provides run-history access.
type Store struct {
	conn *sql.DB
}

// Open creates (or opens) the history database at the given path,
// creating parent directories and running migrations as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// migrate creates the schema. Statements are idempotent so opening an
// existing database is a no-op.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			toolchain_home TEXT NOT NULL,
			outcome TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, migration := range migrations {
		if _, err := tx.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to run history migration: %w", err)
		}
	}
	return tx.Commit()
}

// RecordRun inserts a finished run and its steps atomically.
func (s *Store) RecordRun(ctx context.Context, r *report.Report) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, platform, toolchain_home, outcome, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Platform.String(), r.ToolchainHome, r.Outcome, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	for i, step := range r.Steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, seq, name, status, detail, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.RunID, i, step.Name, step.Status.String(), step.Detail, step.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert step %q for run %s: %w", step.Name, r.RunID, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of `cirun history` output.
type RunSummary struct {
	RunID         string         `json:"runId"`
	Platform      model.Platform `json:"platform"`
	ToolchainHome string         `json:"toolchainHome"`
	Outcome       string         `json:"outcome"`
	StartedAt     time.Time      `json:"startedAt"`
	FinishedAt    time.Time      `json:"finishedAt"`

	// ToleratedSteps counts steps that failed but were tolerated —
	// the signal a plain pass/fail outcome hides.
	ToleratedSteps int `json:"toleratedSteps"`
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT r.id, r.platform, r.toolchain_home, r.outcome, r.started_at, r.finished_at,
		        (SELECT COUNT(*) FROM steps st WHERE st.run_id = r.id AND st.status = 'tolerated')
		 FROM runs r
		 ORDER BY r.started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		var platform string
		if err := rows.Scan(&summary.RunID, &platform, &summary.ToolchainHome,
			&summary.Outcome, &summary.StartedAt, &summary.FinishedAt,
			&summary.ToleratedSteps); err != nil {
			return nil, fmt.Errorf("failed to scan run history row: %w", err)
		}
		summary.Platform = model.Platform(platform)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	return summaries, nil
}

// Steps returns the recorded steps for a run, in execution order.
func (s *Store) Steps(ctx context.Context, runID string) ([]model.StepResult, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT name, status, detail, duration_ms
		 FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []model.StepResult
	for rows.Next() {
		var step model.StepResult
		var status string
		var detail sql.NullString
		var durationMs int64
		if err := rows.Scan(&step.Name, &status, &detail, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}
		step.Status = model.StepStatus(status)
		step.Detail = detail.String
		step.Duration = time.Duration(durationMs) * time.Millisecond
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}
	return steps, nil
}
