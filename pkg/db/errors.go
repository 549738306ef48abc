package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	sqliteUniqueViolation  = "UNIQUE constraint failed"
)

// IsUniqueViolation reports whether the provided error references a unique
// constraint violation on Postgres or sqlite. When constraintName is provided,
// Postgres errors must also name that constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, sqliteUniqueViolation) {
		// sqlite names the columns, not the index.
		return true
	}
	unique := pgCode(err) == pgUniqueViolation || strings.Contains(msg, "duplicate key value")
	if !unique {
		return false
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return true
}

// IsRetryable reports whether a transaction failed for a reason that a fresh
// attempt can resolve.
func IsRetryable(err error) bool {
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

func pgCode(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
