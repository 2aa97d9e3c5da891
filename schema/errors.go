package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrMapping matches every *MappingError.
	ErrMapping = errors.New("schema: mapping error")
	// ErrInvalidConfiguration reports an inconsistent entity or association
	// declaration, such as ordered retrieval without a key column.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotRegistered reports a Go type without a registered description.
	ErrNotRegistered = errors.New("type is not registered")
	// ErrNoIdentifier reports an operation that requires an identifier on an
	// identity-less entity.
	ErrNoIdentifier = errors.New("entity has no identifier")
)

// MappingError reports a mismatch between Go values and the registered
// schema. It is fatal for the operation that raised it.
type MappingError struct {
	Entity   string
	Property string
	Err      error
}

// Error returns the error string.
func (e *MappingError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("schema: %s.%s: %v", e.Entity, e.Property, e.Err)
	}
	return fmt.Sprintf("schema: %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ErrMapping).
func (e *MappingError) Is(err error) bool { return err == ErrMapping }

// NoIdentifier returns the mapping error raised when op needs an identifier
// that e does not declare.
func NoIdentifier(e *Entity, op string) error {
	return &MappingError{Entity: e.Name, Err: fmt.Errorf("%s: %w", op, ErrNoIdentifier)}
}

// IsMappingError reports whether err is a *MappingError.
func IsMappingError(err error) bool {
	var e *MappingError
	return errors.As(err, &e)
}
