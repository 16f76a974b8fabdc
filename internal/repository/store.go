package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-class-booking/internal/model"
)

// Queries is the set of operations available inside a store transaction.
// The reservation manager performs every reserve and cancel through it.
type Queries interface {
	LockClass(ctx context.Context, classID uint64) (*model.ClassSession, error)
	GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error)
	FindReservation(ctx context.Context, classID, clientID uint64) (*model.Reservation, error)
	CountReservations(ctx context.Context, classID uint64) (int, error)
	CreateReservation(ctx context.Context, res *model.Reservation) error
	DeleteReservation(ctx context.Context, reservationID uint64) error
}

// Store bundles the class and reservation repositories behind a single
// handle and provides transactional access for writers.
type Store struct {
	db           *sql.DB
	Classes      *ClassSessionRepo
	Reservations *ReservationRepo
}

// NewStore constructs a Store over the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Classes:      NewClassSessionRepo(db),
		Reservations: NewReservationRepo(db),
	}
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise. READ COMMITTED makes every count
// inside fn see rows committed before the class lock was granted.
func (s *Store) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&txQueries{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetClass loads a class session outside of any transaction.
func (s *Store) GetClass(ctx context.Context, classID uint64) (*model.ClassSession, error) {
	return s.Classes.GetByID(ctx, classID)
}

// ListClasses returns sessions overlapping [from, to) ordered by start time.
func (s *Store) ListClasses(ctx context.Context, from, to time.Time) ([]model.ClassSession, error) {
	return s.Classes.ListOverlapping(ctx, from, to)
}

// CountReservationsByClass counts reservations for several classes at once.
func (s *Store) CountReservationsByClass(ctx context.Context, classIDs []uint64) (map[uint64]int, error) {
	return s.Reservations.CountByClasses(ctx, classIDs)
}

// ReservationsOfClient maps class ID to the client's reservation ID.
func (s *Store) ReservationsOfClient(ctx context.Context, clientID uint64, classIDs []uint64) (map[uint64]uint64, error) {
	return s.Reservations.ReservedByClient(ctx, clientID, classIDs)
}

// ListParticipants returns the reservations held for a class.
func (s *Store) ListParticipants(ctx context.Context, classID uint64) ([]model.Reservation, error) {
	return s.Reservations.ListByClass(ctx, classID)
}

// txQueries binds the repositories to a single *sql.Tx.
type txQueries struct {
	tx    *sql.Tx
	store *Store
}

func (q *txQueries) LockClass(ctx context.Context, classID uint64) (*model.ClassSession, error) {
	return q.store.Classes.GetByIDForUpdateTx(ctx, q.tx, classID)
}

func (q *txQueries) GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	return q.store.Reservations.GetByIDTx(ctx, q.tx, reservationID)
}

func (q *txQueries) FindReservation(ctx context.Context, classID, clientID uint64) (*model.Reservation, error) {
	return q.store.Reservations.GetByClassAndClientTx(ctx, q.tx, classID, clientID)
}

func (q *txQueries) CountReservations(ctx context.Context, classID uint64) (int, error) {
	return q.store.Reservations.CountByClassTx(ctx, q.tx, classID)
}

func (q *txQueries) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return q.store.Reservations.CreateTx(ctx, q.tx, res)
}

func (q *txQueries) DeleteReservation(ctx context.Context, reservationID uint64) error {
	return q.store.Reservations.DeleteTx(ctx, q.tx, reservationID)
}
