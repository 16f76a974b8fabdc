package repository

// Sentinel errors shared by the repositories.  Higher layers such as the
// reservation manager match on these instead of inspecting driver errors.

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrClassNotFound indicates that a class session was not located in the DB.
var ErrClassNotFound = errors.New("class not found")

// ErrReservationNotFound indicates that no matching reservation row exists.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrDuplicateReservation is returned when the unique index on
// (class_session_id, client_id) rejects an insert.
var ErrDuplicateReservation = errors.New("reservation already exists")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
