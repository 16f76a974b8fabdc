// Package service implements the class reservation state machine. A client
// moves from NONE to RESERVED by reserving before the class starts and while
// seats remain, and back to NONE by cancelling before the class starts. Once
// a class has started neither transition is accepted.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/gym-class-booking/internal/metrics"
	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	"github.com/iliyamo/gym-class-booking/internal/repository"
)

// Store is the persistence the manager relies on. Writes go through WithTx;
// reads are plain queries that always hit the ledger.
type Store interface {
	WithTx(ctx context.Context, fn func(q repository.Queries) error) error
	GetClass(ctx context.Context, classID uint64) (*model.ClassSession, error)
	ListClasses(ctx context.Context, from, to time.Time) ([]model.ClassSession, error)
	CountReservationsByClass(ctx context.Context, classIDs []uint64) (map[uint64]int, error)
	ReservationsOfClient(ctx context.Context, clientID uint64, classIDs []uint64) (map[uint64]uint64, error)
	ListParticipants(ctx context.Context, classID uint64) ([]model.Reservation, error)
}

// EventPublisher receives reservation lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Occupancy is the live seat accounting of a class.
type Occupancy struct {
	Capacity      int
	ReservedCount int
	WaitlistCount int
}

// Available returns the number of free seats, never negative.
func (o Occupancy) Available() int {
	if o.ReservedCount >= o.Capacity {
		return 0
	}
	return o.Capacity - o.ReservedCount
}

// ReserveResult is returned by a successful Reserve. Created is false when
// the client already held a reservation and the existing one was returned.
type ReserveResult struct {
	ReservationID uint64
	ClassID       uint64
	Occupancy     Occupancy
	UserStatus    model.UserStatus
	Created       bool
}

// CancelResult is returned by a successful cancellation.
type CancelResult struct {
	ReservationID uint64
	ClassID       uint64
	Status        string
	Occupancy     Occupancy
	UserStatus    model.UserStatus
}

// ClassSummary is a class with its live occupancy. UserStatus and
// ReservationID are only set when the caller supplied a client.
type ClassSummary struct {
	Class         model.ClassSession
	Occupancy     Occupancy
	UserStatus    model.UserStatus
	ReservationID uint64
}

// ClassDetail adds the participant list to a ClassSummary.
type ClassDetail struct {
	ClassSummary
	Participants []model.Reservation
}

// StatusCancelled is the status reported by a successful cancellation.
const StatusCancelled = "cancelled"

const publishTimeout = 3 * time.Second

// ReservationManager decides whether reserve and cancel requests succeed,
// mutates the reservation ledger and recomputes occupancy from it.
type ReservationManager struct {
	store  Store
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a ReservationManager.
type Option func(*ReservationManager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *ReservationManager) { m.now = now }
}

// NewReservationManager builds a manager. events may be nil, in which case
// no events are published.
func NewReservationManager(store Store, events EventPublisher, logger *zap.Logger, opts ...Option) *ReservationManager {
	if store == nil {
		panic("nil store passed to NewReservationManager")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ReservationManager{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("gym-class-booking/service"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reserve books a seat in classID for clientID. Repeating the call returns
// the existing reservation unchanged. When the class is full the request is
// rejected with ErrClassFull, or ErrWaitlistUnavailable if the client asked
// to be waitlisted; nothing is queued.
func (m *ReservationManager) Reserve(ctx context.Context, classID, clientID uint64, wantsWaitlist bool) (*ReserveResult, error) {
	ctx, span := m.tracer.Start(ctx, "ReservationManager.Reserve", trace.WithAttributes(
		attribute.Int64("class.id", int64(classID)),
		attribute.Int64("client.id", int64(clientID)),
		attribute.Bool("reservation.waitlist", wantsWaitlist),
	))
	defer span.End()

	var (
		result ReserveResult
		class  *model.ClassSession
	)
	err := m.store.WithTx(ctx, func(q repository.Queries) error {
		cls, err := q.LockClass(ctx, classID)
		if err != nil {
			return translate(err, "load class")
		}
		class = cls

		if cls.HasStarted(m.now()) {
			return ErrReservationsClosed
		}

		existing, err := q.FindReservation(ctx, classID, clientID)
		switch {
		case err == nil:
			return m.fillReserved(ctx, q, cls, existing, false, &result)
		case !errors.Is(err, repository.ErrReservationNotFound):
			return fmt.Errorf("find reservation: %w", err)
		}

		if cls.IsCancelled {
			return ErrClassCancelled
		}

		count, err := q.CountReservations(ctx, classID)
		if err != nil {
			return fmt.Errorf("count reservations: %w", err)
		}
		if count >= cls.Capacity {
			if wantsWaitlist {
				return ErrWaitlistUnavailable
			}
			return ErrClassFull
		}

		res := &model.Reservation{ClassSessionID: classID, ClientID: clientID}
		if err := q.CreateReservation(ctx, res); err != nil {
			if !errors.Is(err, repository.ErrDuplicateReservation) {
				return fmt.Errorf("create reservation: %w", err)
			}
			existing, err := q.FindReservation(ctx, classID, clientID)
			if err != nil {
				return fmt.Errorf("find reservation after duplicate: %w", err)
			}
			return m.fillReserved(ctx, q, cls, existing, false, &result)
		}
		return m.fillReserved(ctx, q, cls, res, true, &result)
	})
	metrics.ObserveReservation("reserve", outcome(err))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if result.Created {
		m.logger.Info("reservation created",
			zap.Uint64("reservation_id", result.ReservationID),
			zap.Uint64("class_id", classID),
			zap.Uint64("client_id", clientID),
			zap.Int("reserved_count", result.Occupancy.ReservedCount),
			zap.Int("capacity", result.Occupancy.Capacity),
		)
		m.publish(ctx, queue.EventReservationCreated, class, result.ReservationID, clientID, result.Occupancy)
	}
	return &result, nil
}

// fillReserved recounts the ledger and populates out for a client holding res.
func (m *ReservationManager) fillReserved(ctx context.Context, q repository.Queries, cls *model.ClassSession, res *model.Reservation, created bool, out *ReserveResult) error {
	count, err := q.CountReservations(ctx, cls.ID)
	if err != nil {
		return fmt.Errorf("count reservations: %w", err)
	}
	*out = ReserveResult{
		ReservationID: res.ID,
		ClassID:       cls.ID,
		Occupancy:     Occupancy{Capacity: cls.Capacity, ReservedCount: count},
		UserStatus:    model.UserStatusReserved,
		Created:       created,
	}
	return nil
}

// CancelByID cancels the reservation with the given ID on behalf of clientID.
func (m *ReservationManager) CancelByID(ctx context.Context, reservationID, clientID uint64) (*CancelResult, error) {
	ctx, span := m.tracer.Start(ctx, "ReservationManager.CancelByID", trace.WithAttributes(
		attribute.Int64("reservation.id", int64(reservationID)),
		attribute.Int64("client.id", int64(clientID)),
	))
	defer span.End()
	return m.cancel(ctx, span, clientID, func(q repository.Queries) (*model.Reservation, error) {
		return q.GetReservation(ctx, reservationID)
	})
}

// CancelCurrent cancels the reservation clientID holds for classID.
func (m *ReservationManager) CancelCurrent(ctx context.Context, classID, clientID uint64) (*CancelResult, error) {
	ctx, span := m.tracer.Start(ctx, "ReservationManager.CancelCurrent", trace.WithAttributes(
		attribute.Int64("class.id", int64(classID)),
		attribute.Int64("client.id", int64(clientID)),
	))
	defer span.End()
	return m.cancel(ctx, span, clientID, func(q repository.Queries) (*model.Reservation, error) {
		return q.FindReservation(ctx, classID, clientID)
	})
}

func (m *ReservationManager) cancel(ctx context.Context, span trace.Span, clientID uint64, resolve func(q repository.Queries) (*model.Reservation, error)) (*CancelResult, error) {
	var (
		result CancelResult
		class  *model.ClassSession
	)
	err := m.store.WithTx(ctx, func(q repository.Queries) error {
		res, err := resolve(q)
		if err != nil {
			return translate(err, "load reservation")
		}
		if res.ClientID != clientID {
			return ErrForbidden
		}

		cls, err := q.LockClass(ctx, res.ClassSessionID)
		if err != nil {
			return translate(err, "load class")
		}
		class = cls
		if cls.HasStarted(m.now()) {
			return ErrCancellationCutoffPassed
		}

		if err := q.DeleteReservation(ctx, res.ID); err != nil {
			return translate(err, "delete reservation")
		}
		count, err := q.CountReservations(ctx, cls.ID)
		if err != nil {
			return fmt.Errorf("count reservations: %w", err)
		}
		result = CancelResult{
			ReservationID: res.ID,
			ClassID:       cls.ID,
			Status:        StatusCancelled,
			Occupancy:     Occupancy{Capacity: cls.Capacity, ReservedCount: count},
			UserStatus:    model.UserStatusNone,
		}
		return nil
	})
	metrics.ObserveReservation("cancel", outcome(err))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	m.logger.Info("reservation cancelled",
		zap.Uint64("reservation_id", result.ReservationID),
		zap.Uint64("class_id", result.ClassID),
		zap.Uint64("client_id", clientID),
		zap.Int("reserved_count", result.Occupancy.ReservedCount),
	)
	m.publish(ctx, queue.EventReservationCancelled, class, result.ReservationID, clientID, result.Occupancy)
	return &result, nil
}

// ListClasses returns the classes overlapping [from, to) ordered by start
// time. When clientID is non-nil each entry carries that client's status.
func (m *ReservationManager) ListClasses(ctx context.Context, from, to time.Time, clientID *uint64) ([]ClassSummary, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: 'to' must be after 'from'", ErrValidation)
	}
	classes, err := m.store.ListClasses(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	ids := make([]uint64, 0, len(classes))
	for _, cls := range classes {
		ids = append(ids, cls.ID)
	}
	counts, err := m.store.CountReservationsByClass(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	var mine map[uint64]uint64
	if clientID != nil {
		mine, err = m.store.ReservationsOfClient(ctx, *clientID, ids)
		if err != nil {
			return nil, fmt.Errorf("load client reservations: %w", err)
		}
	}

	out := make([]ClassSummary, 0, len(classes))
	for _, cls := range classes {
		sum := ClassSummary{
			Class:     cls,
			Occupancy: Occupancy{Capacity: cls.Capacity, ReservedCount: counts[cls.ID]},
		}
		if clientID != nil {
			sum.UserStatus = model.UserStatusNone
			if resID, ok := mine[cls.ID]; ok {
				sum.UserStatus = model.UserStatusReserved
				sum.ReservationID = resID
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetClass returns one class with its participants. The reserved count is
// the number of participant rows read.
func (m *ReservationManager) GetClass(ctx context.Context, classID uint64, clientID *uint64) (*ClassDetail, error) {
	cls, err := m.store.GetClass(ctx, classID)
	if err != nil {
		return nil, translate(err, "load class")
	}
	participants, err := m.store.ListParticipants(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	detail := &ClassDetail{
		ClassSummary: ClassSummary{
			Class:     *cls,
			Occupancy: Occupancy{Capacity: cls.Capacity, ReservedCount: len(participants)},
		},
		Participants: participants,
	}
	if clientID != nil {
		detail.UserStatus = model.UserStatusNone
		for _, p := range participants {
			if p.ClientID == *clientID {
				detail.UserStatus = model.UserStatusReserved
				detail.ReservationID = p.ID
				break
			}
		}
	}
	return detail, nil
}

// publish emits a lifecycle event. Failures are logged and never change
// the outcome of the request that triggered them.
func (m *ReservationManager) publish(ctx context.Context, typ queue.EventType, cls *model.ClassSession, reservationID, clientID uint64, occ Occupancy) {
	if m.events == nil || cls == nil {
		return
	}
	ev := queue.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: reservationID,
		ClassID:       cls.ID,
		ClientID:      clientID,
		ClassTitle:    cls.Title,
		StartsAt:      cls.StartsAt.UTC().Format(time.RFC3339),
		ReservedCount: occ.ReservedCount,
		Capacity:      occ.Capacity,
		OccurredAt:    m.now().UTC().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.events.Publish(pctx, ev); err != nil {
		m.logger.Warn("publish reservation event failed",
			zap.String("event_type", string(typ)),
			zap.Uint64("reservation_id", reservationID),
			zap.Error(err),
		)
	}
}

// translate maps repository sentinels onto service errors and wraps
// anything else with op.
func translate(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrClassNotFound):
		return ErrClassNotFound
	case errors.Is(err, repository.ErrReservationNotFound):
		return ErrReservationNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.SetAttributes(attribute.String("reservation.outcome", outcome(err)))
	if outcome(err) == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
