package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	"github.com/iliyamo/gym-class-booking/internal/repository"
)

// fakeStore is an in-memory Store. WithTx holds a single mutex for the
// whole callback, which mirrors the per-class row lock of the MySQL store,
// and restores the previous state when the callback fails.
type fakeStore struct {
	mu           sync.Mutex
	classes      map[uint64]model.ClassSession
	reservations map[uint64]model.Reservation
	nextID       uint64
	now          func() time.Time

	failCount error
}

func newFakeStore(now func() time.Time, classes ...model.ClassSession) *fakeStore {
	s := &fakeStore{
		classes:      make(map[uint64]model.ClassSession),
		reservations: make(map[uint64]model.Reservation),
		now:          now,
	}
	for _, c := range classes {
		s.classes[c.ID] = c
	}
	return s
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uint64]model.Reservation, len(s.reservations))
	for k, v := range s.reservations {
		saved[k] = v
	}
	savedID := s.nextID
	if err := fn(fakeQueries{s}); err != nil {
		s.reservations = saved
		s.nextID = savedID
		return err
	}
	return nil
}

// seed inserts a reservation directly, bypassing the manager.
func (s *fakeStore) seed(classID, clientID uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.reservations[s.nextID] = model.Reservation{ID: s.nextID, ClassSessionID: classID, ClientID: clientID, CreatedAt: s.now()}
	return s.nextID
}

// rows counts ledger rows for a class.
func (s *fakeStore) rows(classID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(classID)
}

func (s *fakeStore) countLocked(classID uint64) int {
	n := 0
	for _, r := range s.reservations {
		if r.ClassSessionID == classID {
			n++
		}
	}
	return n
}

func (s *fakeStore) GetClass(ctx context.Context, classID uint64) (*model.ClassSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[classID]
	if !ok {
		return nil, repository.ErrClassNotFound
	}
	return &c, nil
}

func (s *fakeStore) ListClasses(ctx context.Context, from, to time.Time) ([]model.ClassSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ClassSession, 0)
	for _, c := range s.classes {
		if c.Overlaps(from, to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (s *fakeStore) CountReservationsByClass(ctx context.Context, classIDs []uint64) (map[uint64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCount != nil {
		return nil, s.failCount
	}
	out := make(map[uint64]int)
	for _, id := range classIDs {
		if n := s.countLocked(id); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (s *fakeStore) ReservationsOfClient(ctx context.Context, clientID uint64, classIDs []uint64) (map[uint64]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uint64]bool, len(classIDs))
	for _, id := range classIDs {
		want[id] = true
	}
	out := make(map[uint64]uint64)
	for _, r := range s.reservations {
		if r.ClientID == clientID && want[r.ClassSessionID] {
			out[r.ClassSessionID] = r.ID
		}
	}
	return out, nil
}

func (s *fakeStore) ListParticipants(ctx context.Context, classID uint64) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if r.ClassSessionID == classID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeQueries runs with fakeStore.mu already held.
type fakeQueries struct{ s *fakeStore }

func (q fakeQueries) LockClass(ctx context.Context, classID uint64) (*model.ClassSession, error) {
	c, ok := q.s.classes[classID]
	if !ok {
		return nil, repository.ErrClassNotFound
	}
	return &c, nil
}

func (q fakeQueries) GetReservation(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	r, ok := q.s.reservations[reservationID]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &r, nil
}

func (q fakeQueries) FindReservation(ctx context.Context, classID, clientID uint64) (*model.Reservation, error) {
	for _, r := range q.s.reservations {
		if r.ClassSessionID == classID && r.ClientID == clientID {
			r := r
			return &r, nil
		}
	}
	return nil, repository.ErrReservationNotFound
}

func (q fakeQueries) CountReservations(ctx context.Context, classID uint64) (int, error) {
	if q.s.failCount != nil {
		return 0, q.s.failCount
	}
	return q.s.countLocked(classID), nil
}

func (q fakeQueries) CreateReservation(ctx context.Context, res *model.Reservation) error {
	for _, r := range q.s.reservations {
		if r.ClassSessionID == res.ClassSessionID && r.ClientID == res.ClientID {
			return repository.ErrDuplicateReservation
		}
	}
	q.s.nextID++
	res.ID = q.s.nextID
	res.CreatedAt = q.s.now()
	q.s.reservations[res.ID] = *res
	return nil
}

func (q fakeQueries) DeleteReservation(ctx context.Context, reservationID uint64) error {
	if _, ok := q.s.reservations[reservationID]; !ok {
		return repository.ErrReservationNotFound
	}
	delete(q.s.reservations, reservationID)
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) published() []queue.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReservationEvent(nil), p.events...)
}

var errStoreDown = errors.New("store down")
