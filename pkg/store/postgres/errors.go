package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorCode classifies a store failure independently of the underlying
// driver, so callers (the reconciler, the fetcher) can branch on cause
// without importing pgconn.
type ErrorCode int

const (
	ErrUnknown ErrorCode = iota
	ErrNotFound
	ErrAlreadyExists
	ErrConstraintViolation
	ErrSerializationFailure
	ErrConnection
	ErrIO
)

// StoreError wraps a store failure with an ErrorCode and the operation
// that failed.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Detail    string
	Operation string
}

func (e *StoreError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("storepg: %s: %s (%s)", e.Operation, e.Message, e.Detail)
	}
	return fmt.Sprintf("storepg: %s: %s", e.Operation, e.Message)
}

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrNotFound
}

// IsAlreadyExists reports whether err is a StoreError with code
// ErrAlreadyExists (a unique-constraint violation).
func IsAlreadyExists(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrAlreadyExists
}

// IsConstraintViolation reports whether err is a StoreError with code
// ErrConstraintViolation (a foreign-key, not-null, or check-constraint
// failure).
func IsConstraintViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrConstraintViolation
}

// IsSerializationFailure reports whether err is a retryable transaction
// conflict (serialization failure or deadlock).
func IsSerializationFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrSerializationFailure
}

// mapPgError maps a pgx/Postgres error to a StoreError. nil in, nil out.
func mapPgError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &StoreError{Code: ErrNotFound, Message: "not found", Operation: operation}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgErrorCode(pgErr, operation)
	}

	return &StoreError{Code: ErrIO, Message: err.Error(), Operation: operation}
}

// mapPgErrorCode maps a PostgreSQL SQLSTATE to a StoreError. Reference:
// https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapPgErrorCode(pgErr *pgconn.PgError, operation string) error {
	switch pgErr.Code {
	case "23505": // unique_violation
		return &StoreError{Code: ErrAlreadyExists, Message: "already exists", Detail: pgErr.ConstraintName, Operation: operation}
	case "23503": // foreign_key_violation
		return &StoreError{Code: ErrConstraintViolation, Message: "referenced row not found", Detail: pgErr.ConstraintName, Operation: operation}
	case "23502", "23514": // not_null_violation, check_violation
		return &StoreError{Code: ErrConstraintViolation, Message: "constraint violation", Detail: pgErr.Message, Operation: operation}
	case "40001": // serialization_failure
		return &StoreError{Code: ErrSerializationFailure, Message: "serialization failure, retry", Operation: operation}
	case "40P01": // deadlock_detected
		return &StoreError{Code: ErrSerializationFailure, Message: "deadlock detected, retry", Operation: operation}
	case "08000", "08003", "08006": // connection errors
		return &StoreError{Code: ErrConnection, Message: "connection error", Detail: pgErr.Message, Operation: operation}
	default:
		return &StoreError{Code: ErrIO, Message: fmt.Sprintf("[%s] %s", pgErr.Code, pgErr.Message), Operation: operation}
	}
}
