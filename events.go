package aggstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/aggstore/change"
	"github.com/syssam/aggstore/schema"
)

// EventType identifies the point of an operation an event is raised at.
type EventType uint

// Event types. Before events abort the operation when a listener fails.
const (
	// BeforeConvert is raised before identifiers are generated and the
	// aggregate is planned.
	BeforeConvert EventType = 1 << iota
	BeforeSave
	AfterSave
	BeforeDelete
	AfterDelete
	// AfterLoad is raised once per materialized aggregate root.
	AfterLoad
)

var eventNames = []string{
	"BeforeConvert",
	"BeforeSave",
	"AfterSave",
	"BeforeDelete",
	"AfterDelete",
	"AfterLoad",
}

// Is reports whether t shares a bit with o.
func (t EventType) Is(o EventType) bool { return t&o != 0 }

// String returns the names of the event types in t joined by "|".
func (t EventType) String() string {
	var names []string
	for i, name := range eventNames {
		if t&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("EventType(%d)", uint(t))
	}
	return strings.Join(names, "|")
}

// Event describes one step of a save, delete or load.
type Event struct {
	Type EventType
	// Entity is the aggregate root type.
	Entity *schema.Entity
	// ID is the root identifier. It is nil for new aggregates before the
	// save and for DeleteAll.
	ID any
	// Value is the root instance, nil for deletes by id.
	Value any
	// Actions is a copy of the planned actions of saves and deletes.
	Actions []change.Action
}

// Listener receives events of a Template.
type Listener interface {
	OnEvent(context.Context, Event) error
}

// ListenerFunc adapts an ordinary function to a Listener.
type ListenerFunc func(context.Context, Event) error

// OnEvent calls f(ctx, e).
func (f ListenerFunc) OnEvent(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// On returns a Listener calling l only for the given event types.
func On(types EventType, l Listener) Listener {
	return ListenerFunc(func(ctx context.Context, e Event) error {
		if e.Type.Is(types) {
			return l.OnEvent(ctx, e)
		}
		return nil
	})
}

// emit delivers e to every listener in registration order and stops at the
// first failure.
func (t *Template) emit(ctx context.Context, e Event) error {
	for _, l := range t.listeners {
		if err := l.OnEvent(ctx, e); err != nil {
			return fmt.Errorf("aggstore: %s listener: %w", e.Type, err)
		}
	}
	return nil
}
