package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Error reports a value that cannot be converted.
type Error struct {
	Value  any
	Target string
	Err    error
}

// Error returns the error string.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("convert: %v (%T) to %s: %v", e.Value, e.Value, e.Target, e.Err)
	}
	return fmt.Sprintf("convert: %v (%T) to %s", e.Value, e.Value, e.Target)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// ColumnError reports a column missing from a result row. Available lists
// the columns the row has.
type ColumnError struct {
	Column    string
	Available []string
}

// Error returns the error string.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("convert: column %q not found in result (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// IsColumnError reports whether err is a *ColumnError.
func IsColumnError(err error) bool {
	var e *ColumnError
	return errors.As(err, &e)
}
