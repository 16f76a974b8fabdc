// Package repository contains data access logic for class sessions and
// their reservations. Times are stored as UTC DATETIME columns and scanned
// into time.Time (the DSN enables parseTime).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-class-booking/internal/model"
)

// ClassSessionRepo manages read access to class sessions.
type ClassSessionRepo struct {
	db *sql.DB
}

// NewClassSessionRepo constructs a ClassSessionRepo with the given DB handle.
func NewClassSessionRepo(db *sql.DB) *ClassSessionRepo {
	return &ClassSessionRepo{db: db}
}

const classColumns = `id, title, location, capacity, starts_at, ends_at, is_cancelled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (*model.ClassSession, error) {
	var s model.ClassSession
	err := row.Scan(&s.ID, &s.Title, &s.Location, &s.Capacity, &s.StartsAt, &s.EndsAt,
		&s.IsCancelled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a class session by its ID. It returns ErrClassNotFound
// if there is no matching row.
func (r *ClassSessionRepo) GetByID(ctx context.Context, id uint64) (*model.ClassSession, error) {
	const q = `SELECT ` + classColumns + ` FROM class_sessions WHERE id = ?`
	s, err := scanClass(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	return s, err
}

// GetByIDForUpdateTx loads a class session and takes a row lock on it for
// the remainder of the transaction. Every reservation write for the session
// goes through this lock, so capacity checks and inserts are serialized.
func (r *ClassSessionRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ClassSession, error) {
	const q = `SELECT ` + classColumns + ` FROM class_sessions WHERE id = ? FOR UPDATE`
	s, err := scanClass(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	return s, err
}

// ListOverlapping returns sessions whose [starts_at, ends_at) interval
// overlaps the half-open window [from, to), ordered by start time.
func (r *ClassSessionRepo) ListOverlapping(ctx context.Context, from, to time.Time) ([]model.ClassSession, error) {
	const q = `SELECT ` + classColumns + `
               FROM class_sessions
               WHERE starts_at < ? AND ends_at > ?
               ORDER BY starts_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassSession, 0)
	for rows.Next() {
		s, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
