package aggstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/aggstore/access"
	"github.com/syssam/aggstore/dialect/sql/sqlgraph"
	"github.com/syssam/aggstore/schema"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested aggregate does not exist.
	ErrNotFound = errors.New("aggstore: aggregate not found")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("aggstore: cannot start a transaction within a transaction")

	// ErrOptimisticLock matches optimistic lock failures.
	ErrOptimisticLock = access.ErrOptimisticLock
)

// NotFoundError represents an error when an aggregate is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("aggstore: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("aggstore: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// IsOptimisticLockFailure reports whether a save or delete found the row
// missing or changed concurrently.
func IsOptimisticLockFailure(err error) bool {
	return access.IsOptimisticLock(err)
}

// IsExecutionError reports whether a planned action failed.
func IsExecutionError(err error) bool {
	return access.IsExecutionError(err)
}

// IsMappingError reports whether err reports a mismatch between Go values
// and the registered schema.
func IsMappingError(err error) bool {
	return schema.IsMappingError(err)
}

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	return sqlgraph.IsConstraintError(err)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("aggstore: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "aggstore: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("aggstore: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a load error with additional context.
type QueryError struct {
	Entity string // Aggregate root type being loaded
	Op     string // Operation (e.g., "find by id", "count")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("aggstore: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("aggstore: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a save or delete error with additional context.
type MutationError struct {
	Entity string // Aggregate root type being written
	Op     string // Operation (e.g., "save", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("aggstore: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
