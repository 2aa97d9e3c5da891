package access

import (
	"errors"
	"fmt"

	"github.com/syssam/aggstore/change"
)

// ErrOptimisticLock matches every *OptimisticLockError.
var ErrOptimisticLock = errors.New("access: optimistic lock failure")

// OptimisticLockError is returned when an update or versioned delete
// matched no row: the row is gone or was changed concurrently.
type OptimisticLockError struct {
	Index  int
	Action change.Action
	Entity string
	ID     any
}

// Error implements the error interface.
func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("access: optimistic lock failure: %s with id %v was not found or has a newer version (action %d: %s)",
		e.Entity, e.ID, e.Index, e.Action)
}

// Is allows errors.Is(err, ErrOptimisticLock).
func (e *OptimisticLockError) Is(err error) bool { return err == ErrOptimisticLock }

// IsOptimisticLock reports whether err is an optimistic lock failure.
func IsOptimisticLock(err error) bool {
	return errors.Is(err, ErrOptimisticLock)
}

// ExecutionError wraps the failure of one action. Actions after Index were
// not executed.
type ExecutionError struct {
	Index  int
	Action change.Action
	Err    error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("access: execute action %d %s: %v", e.Index, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionError reports whether err is, or wraps, an *ExecutionError.
func IsExecutionError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}
