package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// OperatorRepository defines the interface for operator account persistence.
type OperatorRepository interface {
	Create(ctx context.Context, op *Operator) error
	GetByID(ctx context.Context, id string) (*Operator, error)
	GetByUsername(ctx context.Context, username string) (*Operator, error)
	List(ctx context.Context) ([]Operator, error)
	Update(ctx context.Context, op *Operator) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteOperatorRepository implements OperatorRepository using SQLite.
type SQLiteOperatorRepository struct {
	db *sql.DB
}

// NewOperatorRepository creates a new SQLite-backed operator repository.
func NewOperatorRepository(db *sql.DB) *SQLiteOperatorRepository {
	return &SQLiteOperatorRepository{db: db}
}

const operatorColumns = "id, username, display_name, password_hash, role, is_active, created_by, created_at, updated_at"

// Create inserts a new operator account. The ID is generated if empty.
func (r *SQLiteOperatorRepository) Create(ctx context.Context, op *Operator) error {
	if op.ID == "" {
		op.ID = "op-" + uuid.NewString()[:8]
	}
	if op.Role == "" {
		op.Role = RoleOperator
	}
	if !IsValidRole(op.Role) {
		return fmt.Errorf("creating operator: unknown role %q", op.Role)
	}

	now := time.Now().UTC().Truncate(time.Second)
	op.CreatedAt = now
	op.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operators (`+operatorColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.Username, op.DisplayName, op.PasswordHash, string(op.Role),
		boolToInt(op.IsActive), nullString(op.CreatedBy),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating operator: %w", err)
	}
	return nil
}

// GetByID retrieves an operator by ID.
func (r *SQLiteOperatorRepository) GetByID(ctx context.Context, id string) (*Operator, error) {
	return scanOperator(r.db.QueryRowContext(ctx, "SELECT "+operatorColumns+" FROM operators WHERE id = ?", id))
}

// GetByUsername retrieves an operator by username.
func (r *SQLiteOperatorRepository) GetByUsername(ctx context.Context, username string) (*Operator, error) {
	return scanOperator(r.db.QueryRowContext(ctx, "SELECT "+operatorColumns+" FROM operators WHERE username = ?", username))
}

// List returns all operators ordered by creation date.
func (r *SQLiteOperatorRepository) List(ctx context.Context) ([]Operator, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+operatorColumns+" FROM operators ORDER BY created_at ASC, username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing operators: %w", err)
	}
	defer rows.Close()

	ops := []Operator{}
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operators: %w", err)
	}
	return ops, nil
}

// Update modifies an operator's mutable fields (display_name, role, is_active).
func (r *SQLiteOperatorRepository) Update(ctx context.Context, op *Operator) error {
	if !IsValidRole(op.Role) {
		return fmt.Errorf("updating operator: unknown role %q", op.Role)
	}
	now := time.Now().UTC().Truncate(time.Second)
	op.UpdatedAt = now

	result, err := r.db.ExecContext(ctx,
		`UPDATE operators SET display_name = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		op.DisplayName, string(op.Role), boolToInt(op.IsActive), now.Format(time.RFC3339), op.ID,
	)
	if err != nil {
		return fmt.Errorf("updating operator: %w", err)
	}
	return requireRow(result)
}

// UpdatePassword changes an operator's password hash.
func (r *SQLiteOperatorRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE operators SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRow(result)
}

// Delete removes an operator account by ID.
func (r *SQLiteOperatorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM operators WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting operator: %w", err)
	}
	return requireRow(result)
}

// Count returns the total number of operator accounts.
func (r *SQLiteOperatorRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return count, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanOperator(s scanner) (*Operator, error) {
	var (
		op                   Operator
		role                 string
		isActive             int
		createdBy            sql.NullString
		createdAt, updatedAt string
	)

	err := s.Scan(&op.ID, &op.Username, &op.DisplayName, &op.PasswordHash,
		&role, &isActive, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("scanning operator: %w", err)
	}

	op.Role = Role(role)
	op.IsActive = isActive != 0
	op.CreatedBy = createdBy.String
	op.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	op.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &op, nil
}

func requireRow(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrOperatorNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
