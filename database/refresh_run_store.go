// database/refresh_run_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gewnthar/coviddash/models"
)

const createRefreshRunsTable = `
	CREATE TABLE IF NOT EXISTS refresh_runs (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		trigger_kind  VARCHAR(16)  NOT NULL,
		status        VARCHAR(16)  NOT NULL,
		started_at    DATETIME(3)  NOT NULL,
		finished_at   DATETIME(3)  NOT NULL,
		countries     INT          NOT NULL DEFAULT 0,
		dates         INT          NOT NULL DEFAULT 0,
		last_date     DATE         NULL,
		error_message TEXT         NULL,
		KEY idx_refresh_runs_started_at (started_at)
	)
`

// RefreshRunStore persists the refresh audit trail. Only run metadata is stored; the
// dataset itself stays in memory.
type RefreshRunStore struct {
	db *sql.DB
}

func NewRefreshRunStore(db *sql.DB) *RefreshRunStore {
	return &RefreshRunStore{db: db}
}

// EnsureSchema creates the refresh_runs table when it does not exist yet.
func (s *RefreshRunStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	if _, err := s.db.ExecContext(ctx, createRefreshRunsTable); err != nil {
		return fmt.Errorf("failed to create refresh_runs table: %w", err)
	}
	return nil
}

// RecordRefresh inserts one refresh attempt.
func (s *RefreshRunStore) RecordRefresh(ctx context.Context, run models.RefreshRun) error {
	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	var lastDate sql.NullTime
	if run.LastDate != nil {
		lastDate = sql.NullTime{Time: *run.LastDate, Valid: true}
	}
	var errMsg sql.NullString
	if run.Error != "" {
		errMsg = sql.NullString{String: run.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_runs (
			id, trigger_kind, status, started_at, finished_at,
			countries, dates, last_date, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, string(run.Trigger), string(run.Status), run.StartedAt, run.FinishedAt,
		run.Countries, run.Dates, lastDate, errMsg,
	)
	if err != nil {
		log.Printf("ERROR Database: Failed to record refresh run '%s': %v", run.ID, err)
		return fmt.Errorf("failed to record refresh run %s: %w", run.ID, err)
	}
	return nil
}

// ListRefreshRuns returns the most recent refresh attempts, newest first.
func (s *RefreshRunStore) ListRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_kind, status, started_at, finished_at,
		       countries, dates, last_date, error_message
		FROM refresh_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh_runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RefreshRun
	for rows.Next() {
		var r models.RefreshRun
		var trigger, status string
		var lastDate sql.NullTime
		var errMsg sql.NullString

		if err := rows.Scan(
			&r.ID, &trigger, &status, &r.StartedAt, &r.FinishedAt,
			&r.Countries, &r.Dates, &lastDate, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan refresh_runs row: %w", err)
		}
		r.Trigger = models.RefreshTrigger(trigger)
		r.Status = models.RefreshStatus(status)
		if lastDate.Valid {
			r.LastDate = &lastDate.Time
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refresh_runs rows: %w", err)
	}
	return runs, nil
}
