// Package sqlgraph classifies database errors raised while an aggregate
// change is written.
package sqlgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ConstraintKind names the violated constraint family.
type ConstraintKind string

// Constraint kinds.
const (
	Unique     ConstraintKind = "unique"
	ForeignKey ConstraintKind = "foreign key"
	Check      ConstraintKind = "check"
)

// ConstraintError wraps a driver error that resulted from a constraint violation.
type ConstraintError struct {
	Kind ConstraintKind
	Err  error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("sqlgraph: %s constraint failed: %v", e.Kind, e.Err)
}

// Unwrap returns the driver error.
func (e *ConstraintError) Unwrap() error { return e.Err }

// WrapConstraint returns err wrapped in a *ConstraintError when it is a
// constraint violation, and err unchanged otherwise.
func WrapConstraint(err error) error {
	var ce *ConstraintError
	switch {
	case err == nil, errors.As(err, &ce):
		return err
	case IsUniqueConstraintError(err):
		return &ConstraintError{Kind: Unique, Err: err}
	case IsForeignKeyConstraintError(err):
		return &ConstraintError{Kind: ForeignKey, Err: err}
	case IsCheckConstraintError(err):
		return &ConstraintError{Kind: Check, Err: err}
	default:
		return err
	}
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlState extracts the SQLSTATE code from lib/pq and pgx errors.
func sqlState(err error) (string, bool) {
	if e, ok := asError[*pgconn.PgError](err); ok {
		return e.Code, true
	}
	if e, ok := asError[*pq.Error](err); ok {
		return string(e.Code), true
	}
	return "", false
}

// mysqlNumber extracts the MySQL error number.
func mysqlNumber(err error) (uint16, bool) {
	if e, ok := asError[*mysql.MySQLError](err); ok {
		return e.Number, true
	}
	return 0, false
}

func matches(err error, state string, numbers []uint16, fallback ...string) bool {
	if err == nil {
		return false
	}
	if s, ok := sqlState(err); ok {
		return s == state
	}
	if n, ok := mysqlNumber(err); ok {
		for _, m := range numbers {
			if n == m {
				return true
			}
		}
		return false
	}
	// SQLite drivers expose no structured codes.
	return containsAny(err.Error(), fallback...)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return matches(err, pgUniqueViolation, []uint16{mysqlDuplicateEntry},
		"Error 1062",
		"violates unique constraint",
		"UNIQUE constraint failed",
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return matches(err, pgForeignKeyViolation, []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		"Error 1451",
		"Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return matches(err, pgCheckViolation, []uint16{mysqlCheckConstraintViolate},
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
	)
}

// asError attempts to extract an error of type T from the error chain.
func asError[T error](err error) (T, bool) {
	var target T
	if errors.As(err, &target) {
		return target, true
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
