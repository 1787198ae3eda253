package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/scanctl/internal/infrastructure/database"
	"github.com/nerrad567/scanctl/internal/registry"
)

// DefaultRetain is how many snapshot rows SQLite keeps by default.
const DefaultRetain = 20

// SQLite persists registry snapshots in the registry_snapshots table.
// The table is created by the embedded migrations.
type SQLite struct {
	db     *sql.DB
	retain int
	now    func() time.Time
}

// NewSQLite creates a store on db, keeping the newest retain snapshots
// (DefaultRetain if retain < 1).
func NewSQLite(db *sql.DB, retain int) *SQLite {
	if retain < 1 {
		retain = DefaultRetain
	}
	return &SQLite{
		db:     db,
		retain: retain,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Load returns the newest snapshot, or an empty one if the table is empty.
func (s *SQLite) Load(ctx context.Context) (*registry.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM registry_snapshots ORDER BY version DESC LIMIT 1",
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return decode([]byte(data))
}

// Save appends snap and prunes rows beyond the retention count.
func (s *SQLite) Save(ctx context.Context, snap *registry.Snapshot) error {
	now := s.now()
	data, err := encode(snap, now)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO registry_snapshots (data, controllers, saved_at) VALUES (?, ?, ?)",
		string(data), len(snap.Controllers), database.FormatTime(now),
	); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM registry_snapshots WHERE version NOT IN (
			SELECT version FROM registry_snapshots ORDER BY version DESC LIMIT ?
		)`, s.retain,
	); err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Revision describes one retained snapshot row.
type Revision struct {
	Version     int64     `json:"version"`
	Controllers int       `json:"controllers"`
	SavedAt     time.Time `json:"saved_at"`
}

// Revisions lists retained snapshots, newest first.
func (s *SQLite) Revisions(ctx context.Context) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT version, controllers, saved_at FROM registry_snapshots ORDER BY version DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var (
			r       Revision
			savedAt string
		)
		if err := rows.Scan(&r.Version, &r.Controllers, &savedAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		if r.SavedAt, err = database.ParseTime(savedAt); err != nil {
			return nil, fmt.Errorf("revision %d saved_at: %w", r.Version, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return out, nil
}
