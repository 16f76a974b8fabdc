package handler

import (
	"context"
	"time"

	"github.com/iliyamo/gym-class-booking/internal/service"
)

// ClassService is the booking behaviour the HTTP layer needs.  It is
// satisfied by *service.ReservationManager.
type ClassService interface {
	Reserve(ctx context.Context, classID, clientID uint64, wantsWaitlist bool) (*service.ReserveResult, error)
	CancelByID(ctx context.Context, reservationID, clientID uint64) (*service.CancelResult, error)
	CancelCurrent(ctx context.Context, classID, clientID uint64) (*service.CancelResult, error)
	ListClasses(ctx context.Context, from, to time.Time, clientID *uint64) ([]service.ClassSummary, error)
	GetClass(ctx context.Context, classID uint64, clientID *uint64) (*service.ClassDetail, error)
}

var _ ClassService = (*service.ReservationManager)(nil)
