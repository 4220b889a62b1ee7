package store

import (
	"database/sql"
	"errors"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrStoreUnavailable matches any failure to reach the backing database.
	// Pipelines abort the batch on it after retries are exhausted.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by run updates that match no row.
	ErrNotFound = errors.New("not found")
)

// UnavailableError carries the operation that could not reach the store.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Op + ": " + ErrStoreUnavailable.Error() + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is matches ErrStoreUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

// classify converts connection-level failures into *UnavailableError and
// returns every other error unchanged.
func classify(op string, err error) error {
	if err == nil || !unavailable(err) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

func unavailable(err error) bool {
	if errors.Is(err, ErrStoreUnavailable) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P01..57P03: admin shutdown.
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:4] == "57P0")
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return true
		}
		return false
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
