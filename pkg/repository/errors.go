package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTooManyRows reports a statement expected to touch one row that touched more.
var ErrTooManyRows = errors.New("more than one row affected")

// PostgreSQL error codes the receipt store cares about.
const (
	CodeUniqueViolation  = "23505"
	CodeRaiseException   = "P0001"
	CodeSerialization    = "40001"
	CodeDeadlockDetected = "40P01"
	CodeLockNotAvailable = "55P03"
)

// Code returns the SQLSTATE of a PostgreSQL error, or "" for any other error.
func Code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// MapError translates sql.ErrNoRows to notFoundErr and unique violations to
// duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFoundErr
	case Code(err) == CodeUniqueViolation:
		return duplicateErr
	default:
		return err
	}
}

// Transient reports whether err is a concurrency failure worth retrying.
func Transient(err error) bool {
	switch Code(err) {
	case CodeSerialization, CodeDeadlockDetected, CodeLockNotAvailable:
		return true
	}
	return false
}
