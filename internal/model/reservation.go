package model

import "time"

// Reservation records a client's claim on one seat of a class session.
// Rows are created by a successful reservation and deleted on
// cancellation; they are never updated in place.
type Reservation struct {
	ID             uint64    // class_reservations.id
	ClassSessionID uint64    // class_reservations.class_session_id
	ClientID       uint64    // class_reservations.client_id
	CreatedAt      time.Time // class_reservations.created_at
}

// UserStatus describes a client's relationship to a session as reported
// in API responses.
type UserStatus string

const (
	UserStatusNone     UserStatus = "none"
	UserStatusReserved UserStatus = "reserved"

	// UserStatusWaitlisted is not produced yet: there is no waitlist ledger.
	UserStatusWaitlisted UserStatus = "waitlisted"
)
