// Package audit records operator actions in the audit_logs table and
// queries them back for the console's activity view.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/scanctl/internal/infrastructure/database"
)

// Actions recorded by the console.
const (
	ActionRegister   = "register"
	ActionUnregister = "unregister"
	ActionUpdate     = "update"
	ActionAssociate  = "associate"
	ActionDispatch   = "dispatch"
	ActionCancel     = "cancel"
	ActionMacroSave  = "macro_save"
	ActionMacroApply = "macro_apply"
	ActionMacroMove  = "macro_rename"
	ActionMacroDrop  = "macro_delete"
)

// Entity types recorded by the console.
const (
	EntityController = "controller"
	EntityUnit       = "unit"
	EntityMacro      = "macro"
	EntityRun        = "run"
	EntityOperator   = "operator"
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Operator   string         `json:"operator,omitempty"`
	Source     string         `json:"source"` // api, cli
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Operator   string
	Source     string
	Since      time.Time // inclusive
	Until      time.Time // exclusive
	Limit      int       // default 50, max 200
	Offset     int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository records and lists audit entries.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

const (
	defaultLimit = 50
	maxLimit     = 200

	auditColumns = "id, action, entity_type, entity_id, operator, source, details, created_at"
)

// SQLiteRepository keeps the audit trail in the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create stores log, filling in ID and CreatedAt when unset.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	details, err := encodeDetails(log.Details)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO audit_logs ("+auditColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		log.ID, log.Action, log.EntityType,
		database.NullString(log.EntityID), database.NullString(log.Operator),
		log.Source, details, database.FormatTime(log.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting audit log %s: %w", log.Action, err)
	}
	return nil
}

// List returns one page of entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit, filter.Offset = database.Page(filter.Limit, filter.Offset, defaultLimit, maxLimit)

	where := new(database.Where).
		Eq("action", filter.Action).
		Eq("entity_type", filter.EntityType).
		Eq("entity_id", filter.EntityID).
		Eq("operator", filter.Operator).
		Eq("source", filter.Source).
		After("created_at", filter.Since).
		Before("created_at", filter.Until)

	result := &ListResult{Logs: []AuditLog{}, Limit: filter.Limit, Offset: filter.Offset}

	//nolint:gosec // WHERE holds only code-defined columns; values are bound
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_logs "+where.String(), where.Args()...,
	).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	//nolint:gosec // WHERE holds only code-defined columns; values are bound
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_logs "+where.String()+
			" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		where.Args(filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result.Logs = append(result.Logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}
	return result, nil
}

// Prune deletes entries created before cutoff and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM audit_logs WHERE created_at < ?", database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning audit logs: %w", err)
	}
	return res.RowsAffected()
}

func encodeDetails(details map[string]any) (any, error) {
	if details == nil {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshalling audit details: %w", err)
	}
	return string(b), nil
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var (
		entry              AuditLog
		entityID, operator sql.NullString
		details            sql.NullString
		createdAt          string
	)
	if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType,
		&entityID, &operator, &entry.Source, &details, &createdAt); err != nil {
		return entry, fmt.Errorf("scanning audit log: %w", err)
	}

	entry.EntityID = entityID.String
	entry.Operator = operator.String
	if details.String != "" {
		// Undecodable details are dropped rather than failing the page.
		_ = json.Unmarshal([]byte(details.String), &entry.Details) //nolint:errcheck // see above
	}

	t, err := database.ParseTime(createdAt)
	if err != nil {
		return entry, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
	}
	entry.CreatedAt = t
	return entry, nil
}
