package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/gym-class-booking/internal/model"
)

// ReservationRepo provides create/read/delete operations for the
// class_reservations ledger. A reservation row links one client to one
// class session; the table carries a unique index on
// (class_session_id, client_id).
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, class_session_id, client_id, created_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	if err := row.Scan(&res.ID, &res.ClassSessionID, &res.ClientID, &res.CreatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID and created_at on res. A
// unique key violation is reported as ErrDuplicateReservation.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO class_reservations (class_session_id, client_id) VALUES (?, ?)`
	result, err := tx.ExecContext(ctx, q, res.ClassSessionID, res.ClientID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateReservation
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the row to pick up the DB default for created_at
	const sel = `SELECT ` + reservationColumns + ` FROM class_reservations WHERE id = ?`
	row, err := scanReservation(tx.QueryRowContext(ctx, sel, uint64(id)))
	if err != nil {
		return err
	}
	*res = *row
	return nil
}

// GetByIDTx loads a reservation by ID. The read does not lock; writers lock
// the owning class row instead, and DeleteTx reports a row that vanished in
// between as ErrReservationNotFound.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM class_reservations WHERE id = ?`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

// GetByClassAndClientTx returns the reservation a client holds for a class,
// or ErrReservationNotFound.
func (r *ReservationRepo) GetByClassAndClientTx(ctx context.Context, tx *sql.Tx, classID, clientID uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
               FROM class_reservations
               WHERE class_session_id = ? AND client_id = ?
               LIMIT 1`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, classID, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

// DeleteTx removes a reservation. ErrReservationNotFound is returned when
// no row was affected, e.g. when a concurrent request deleted it first.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM class_reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// CountByClassTx counts reservations for a class inside a transaction.
func (r *ReservationRepo) CountByClassTx(ctx context.Context, tx *sql.Tx, classID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM class_reservations WHERE class_session_id = ?`, classID).Scan(&n)
	return n, err
}

// CountByClasses returns the live reservation count for each of the given
// classes. Classes without reservations are absent from the map.
func (r *ReservationRepo) CountByClasses(ctx context.Context, classIDs []uint64) (map[uint64]int, error) {
	out := make(map[uint64]int, len(classIDs))
	if len(classIDs) == 0 {
		return out, nil
	}
	q := `SELECT class_session_id, COUNT(*)
          FROM class_reservations
          WHERE class_session_id IN (` + placeholders(len(classIDs)) + `)
          GROUP BY class_session_id`
	rows, err := r.db.QueryContext(ctx, q, idArgs(classIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// ReservedByClient maps class ID to reservation ID for every class in
// classIDs that the client currently holds a reservation for.
func (r *ReservationRepo) ReservedByClient(ctx context.Context, clientID uint64, classIDs []uint64) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64)
	if len(classIDs) == 0 {
		return out, nil
	}
	q := `SELECT class_session_id, id
          FROM class_reservations
          WHERE client_id = ? AND class_session_id IN (` + placeholders(len(classIDs)) + `)`
	args := append([]any{clientID}, idArgs(classIDs)...)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var classID, resID uint64
		if err := rows.Scan(&classID, &resID); err != nil {
			return nil, err
		}
		out[classID] = resID
	}
	return out, rows.Err()
}

// ListByClass returns the participants of a class ordered by reservation time.
func (r *ReservationRepo) ListByClass(ctx context.Context, classID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + `
               FROM class_reservations
               WHERE class_session_id = ?
               ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
