// Package pgutils classifies database constraint failures independently of
// the driver that raised them.
package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
)

// IsUniqueViolation reports a unique constraint violation from Postgres
// (23505) or SQLite (SQLITE_CONSTRAINT_UNIQUE / PRIMARYKEY).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return hasCode(err, CodeUniqueViolation) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports a foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return hasCode(err, CodeForeignKeyViolation)
}

// IsNotNullViolation reports a not-null violation (23502).
func IsNotNullViolation(err error) bool {
	return hasCode(err, CodeNotNullViolation)
}

// IsCheckViolation reports a check constraint violation (23514).
func IsCheckViolation(err error) bool {
	return hasCode(err, CodeCheckViolation)
}

// hasCode prefers the structured pgx error and falls back to the message
// text for errors that crossed a database/sql boundary as plain strings.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return containsErrorCode(err, code)
}

func containsErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return errStr != "" && (strings.Contains(errStr, code) || strings.Contains(errStr, "SQLSTATE "+code))
}
