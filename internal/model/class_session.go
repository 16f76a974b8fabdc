package model

import "time"

// ClassSession represents a scheduled class instance at the gym.  Sessions
// are created and edited by administrative tooling; the booking flow only
// reads them.
type ClassSession struct {
	ID          uint64    // class_sessions.id
	Title       string    // class_sessions.title
	Location    string    // class_sessions.location
	Capacity    int       // class_sessions.capacity
	StartsAt    time.Time // class_sessions.starts_at
	EndsAt      time.Time // class_sessions.ends_at
	IsCancelled bool      // class_sessions.is_cancelled
	CreatedAt   time.Time // class_sessions.created_at
	UpdatedAt   time.Time // class_sessions.updated_at
}

// HasStarted reports whether the session start time has been reached at now.
// Once started, neither reservations nor cancellations are accepted.
func (s ClassSession) HasStarted(now time.Time) bool {
	return !now.Before(s.StartsAt)
}

// Overlaps reports whether the session's [StartsAt, EndsAt) interval
// intersects the half-open window [from, to).
func (s ClassSession) Overlaps(from, to time.Time) bool {
	return s.StartsAt.Before(to) && s.EndsAt.After(from)
}
