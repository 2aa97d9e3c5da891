package convert

import (
	"context"

	"github.com/syssam/aggstore/schema"
)

// Segment is one materialized ancestor on an ObjectPath.
type Segment struct {
	// Object is the instance, nil while an entity built by a constructor
	// is still being resolved.
	Object any
	Entity *schema.Entity
	// ID is the identifier value, nil for identity-less entities.
	ID any
	// Key is the list index or map key of Object within its parent.
	Key any
	// Path is the path from the aggregate root to Object.
	Path schema.Path
}

// ObjectPath is the chain of ancestors of the entity being materialized,
// outermost first. It is immutable.
type ObjectPath struct {
	segments []Segment
}

// Push returns the path with s appended.
func (p ObjectPath) Push(s Segment) ObjectPath {
	segs := make([]Segment, len(p.segments), len(p.segments)+1)
	copy(segs, p.segments)
	return ObjectPath{segments: append(segs, s)}
}

// Len returns the number of segments.
func (p ObjectPath) Len() int { return len(p.segments) }

// Segments returns a copy of the segments, outermost first.
func (p ObjectPath) Segments() []Segment {
	return append([]Segment(nil), p.segments...)
}

// Leaf returns the innermost segment.
func (p ObjectPath) Leaf() (Segment, bool) {
	if len(p.segments) == 0 {
		return Segment{}, false
	}
	return p.segments[len(p.segments)-1], true
}

// RelationResolver loads the associations that cannot be read from the
// current row.
type RelationResolver interface {
	// FindAllByPath returns the entities stored at path (an association path
	// from the aggregate root) that belong to the innermost entity of
	// parent. Lists come back ordered by index, maps keyed.
	FindAllByPath(ctx context.Context, parent ObjectPath, path schema.Path) ([]schema.Element, error)
}
