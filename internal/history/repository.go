// Package history keeps the record of finished dispatch runs in the
// dispatch_runs table.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/infrastructure/database"
)

// ErrNotFound is returned when a run ID has no record.
var ErrNotFound = errors.New("history: run not found")

// Run is one recorded dispatch run.
type Run struct {
	ID     string          `json:"id"`
	Source string          `json:"source"` // api, cli
	Label  string          `json:"label,omitempty"`
	Status dispatch.Status `json:"status"`

	Requests    int `json:"requests"`
	FramesTotal int `json:"frames_total"`
	FramesSent  int `json:"frames_sent"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`

	Results []dispatch.EntryResult `json:"results,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// FromOutcome converts a dispatch outcome into a history record.
func FromOutcome(o *dispatch.Outcome, source, label string) *Run {
	return &Run{
		ID:          o.RunID,
		Source:      source,
		Label:       label,
		Status:      o.Status,
		Requests:    o.Requests,
		FramesTotal: o.FramesTotal,
		FramesSent:  o.FramesSent,
		Succeeded:   o.Succeeded,
		Failed:      o.Failed,
		Skipped:     o.Skipped,
		Results:     o.Results,
		StartedAt:   o.StartedAt,
		CompletedAt: o.CompletedAt,
		Duration:    o.Duration,
	}
}

// Filter controls which runs to return.
type Filter struct {
	Status dispatch.Status // optional
	Source string          // optional
	Since  time.Time       // optional: runs started at or after
	Limit  int             // default 50, max 200
	Offset int
}

// ListResult contains a page of runs. Results are omitted from listed runs.
type ListResult struct {
	Runs   []Run `json:"runs"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Repository defines the interface for run history operations.
type Repository interface {
	Record(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// SQLiteRepository stores run history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new run history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a finished run.
func (r *SQLiteRepository) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("recording run: missing id")
	}

	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshalling run results: %w", err)
	}

	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = database.FormatTime(run.CompletedAt)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO dispatch_runs (id, source, label, status, requests, frames_total, frames_sent,
			succeeded, failed, skipped, results, started_at, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, database.NullString(run.Label), string(run.Status),
		run.Requests, run.FramesTotal, run.FramesSent,
		run.Succeeded, run.Failed, run.Skipped,
		string(results),
		database.FormatTime(run.StartedAt), completedAt,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Get returns the run with the given ID, including its per-entry results.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source, label, status, requests, frames_total, frames_sent,
			succeeded, failed, skipped, results, started_at, completed_at, duration_ms
		 FROM dispatch_runs WHERE id = ?`, id)

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns runs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit, filter.Offset = database.Page(filter.Limit, filter.Offset, defaultLimit, maxLimit)

	where := new(database.Where).
		Eq("status", string(filter.Status)).
		Eq("source", filter.Source).
		After("started_at", filter.Since)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM dispatch_runs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	if err := r.db.QueryRowContext(ctx, countQuery, where.Args()...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, source, label, status, requests, frames_total, frames_sent,
			succeeded, failed, skipped, NULL, started_at, completed_at, duration_ms
		 FROM dispatch_runs %s ORDER BY started_at DESC LIMIT ? OFFSET ?`, where)

	rows, err := r.db.QueryContext(ctx, query, where.Args(filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return &ListResult{Runs: runs, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner, withResults bool) (*Run, error) {
	var (
		run                    Run
		status                 string
		label, results, doneAt sql.NullString
		startedAt              string
		durationMS             sql.NullInt64
	)
	if err := s.Scan(&run.ID, &run.Source, &label, &status,
		&run.Requests, &run.FramesTotal, &run.FramesSent,
		&run.Succeeded, &run.Failed, &run.Skipped,
		&results, &startedAt, &doneAt, &durationMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Label = label.String
	run.Status = dispatch.Status(status)
	run.Duration = time.Duration(durationMS.Int64) * time.Millisecond

	var err error
	if run.StartedAt, err = database.ParseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	if doneAt.Valid {
		if run.CompletedAt, err = database.ParseTime(doneAt.String); err != nil {
			return nil, fmt.Errorf("parsing completed_at %q: %w", doneAt.String, err)
		}
	}
	if withResults && results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &run.Results); err != nil {
			return nil, fmt.Errorf("decoding run results: %w", err)
		}
	}
	return &run, nil
}

