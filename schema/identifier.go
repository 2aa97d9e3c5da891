package schema

import "reflect"

// IdentifierPart is one column/value pair of an Identifier.
type IdentifierPart struct {
	// Name is the column name.
	Name  string
	Value any
	// TargetType is the Go type the value is converted from when written.
	TargetType reflect.Type
}

// Identifier is an ordered, immutable list of column/value pairs. It carries
// the back-reference to the parent row and the qualifiers of nested
// collections. The zero value is the empty identifier.
type Identifier struct {
	parts []IdentifierPart
}

// IdentifierOf returns an identifier with a single part.
func IdentifierOf(name string, value any, typ reflect.Type) Identifier {
	return Identifier{parts: []IdentifierPart{{Name: name, Value: value, TargetType: typ}}}
}

// WithPart returns a copy with the part appended, or replacing an existing
// part of the same name in place.
func (i Identifier) WithPart(name string, value any, typ reflect.Type) Identifier {
	parts := make([]IdentifierPart, len(i.parts), len(i.parts)+1)
	copy(parts, i.parts)
	for j := range parts {
		if parts[j].Name == name {
			parts[j] = IdentifierPart{Name: name, Value: value, TargetType: typ}
			return Identifier{parts: parts}
		}
	}
	return Identifier{parts: append(parts, IdentifierPart{Name: name, Value: value, TargetType: typ})}
}

// Parts returns a copy of the parts in order.
func (i Identifier) Parts() []IdentifierPart {
	return append([]IdentifierPart(nil), i.parts...)
}

// Len returns the number of parts.
func (i Identifier) Len() int { return len(i.parts) }

// Names returns the part names in order.
func (i Identifier) Names() []string {
	names := make([]string, len(i.parts))
	for j, p := range i.parts {
		names[j] = p.Name
	}
	return names
}

// ToMap returns the parts as a name to value map.
func (i Identifier) ToMap() map[string]any {
	m := make(map[string]any, len(i.parts))
	for _, p := range i.parts {
		m[p.Name] = p.Value
	}
	return m
}
