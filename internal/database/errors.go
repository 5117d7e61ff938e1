package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrIdentityNotFound is returned when an identity ID does not exist
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrDuplicateContact is returned when the contact unique constraint rejects an insert
	ErrDuplicateContact = errors.New("contact already enrolled")
	// ErrStorageUnavailable is returned when the store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsConnectionError reports whether err means the database could not be reached,
// as opposed to a query or constraint failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// StorageError wraps a backend error with an operation name. Connection failures
// are additionally marked with ErrStorageUnavailable; context cancellation is passed through.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
