package service

import "errors"

var (
	ErrClassNotFound       = errors.New("class not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

var (
	ErrForbidden = errors.New("reservation belongs to another client")
)

var (
	ErrClassFull           = errors.New("class is full")
	ErrWaitlistUnavailable = errors.New("waitlist is not available for this class")
	ErrClassCancelled      = errors.New("class has been cancelled")
)

var (
	ErrReservationsClosed       = errors.New("reservations are closed for this class")
	ErrCancellationCutoffPassed = errors.New("cancellation cutoff has passed")
)

var (
	ErrValidation = errors.New("validation error")
)

// outcome maps an operation result onto a short metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrClassNotFound), errors.Is(err, ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrClassFull):
		return "full"
	case errors.Is(err, ErrWaitlistUnavailable):
		return "waitlist_unavailable"
	case errors.Is(err, ErrClassCancelled):
		return "class_cancelled"
	case errors.Is(err, ErrReservationsClosed), errors.Is(err, ErrCancellationCutoffPassed):
		return "cutoff_passed"
	default:
		return "error"
	}
}
