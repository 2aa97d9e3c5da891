package schema

import (
	"fmt"
	"reflect"
)

// Kind classifies a property.
type Kind uint8

// Property kinds.
const (
	KindScalar Kind = iota
	// KindEmbedded flattens a value object into the owner's table.
	KindEmbedded
	// KindReference is a single-valued association stored in its own table.
	KindReference
	// KindList is an ordered collection qualified by its index.
	KindList
	// KindSet is an unordered collection.
	KindSet
	// KindMap is a collection qualified by its key.
	KindMap
)

var kindNames = [...]string{
	KindScalar:    "scalar",
	KindEmbedded:  "embedded",
	KindReference: "reference",
	KindList:      "list",
	KindSet:       "set",
	KindMap:       "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsAssociation reports whether values of the kind live in their own table.
func (k Kind) IsAssociation() bool { return k >= KindReference }

// IsCollection reports whether the kind holds many elements.
func (k Kind) IsCollection() bool { return k >= KindList }

// IsQualified reports whether elements carry a position (index or key).
func (k Kind) IsQualified() bool { return k == KindList || k == KindMap }

// Element is one member of a collection property. Key is the list index,
// the map key, or nil for sets. Value holds a pointer to the element entity.
type Element struct {
	Key   any
	Value any
}

// Property describes one property of an entity type. The exported fields
// are filled in by the field and edge builders; names are resolved when the
// owning entity is registered.
type Property struct {
	Name string
	Kind Kind
	// Type is the Go type of a scalar value, or the struct type of an
	// embedded value or association element.
	Type reflect.Type
	// KeyType is the type of list indexes and map keys.
	KeyType reflect.Type

	// Column overrides the column name of scalars.
	Column string
	// KeyColumn overrides the qualifier column of lists and maps.
	KeyColumn string
	// BackReference overrides the column holding the parent id.
	BackReference string
	// Prefix is prepended to the columns of an embedded value.
	Prefix string

	ID      bool
	Version bool
	// Generator produces identifier values for new entities.
	Generator func() any

	// Get returns the property value. Associations return nil when unset,
	// embedded values return a pointer into the entity.
	Get func(entity any) any
	// Set assigns a value produced by Read, Collect or a nested entity.
	Set func(entity, value any) error
	// Elements lists the members of a collection property.
	Elements func(entity any) []Element
	// Collect builds the collection value (slice or map) from elements.
	Collect func(elements []Element) (any, error)

	owner  *Entity
	target *Entity
	column string
}

// ColumnName returns the resolved column name of a scalar property.
func (p *Property) ColumnName() string { return p.column }

// Owner returns the entity type that declares the property.
func (p *Property) Owner() *Entity { return p.owner }

// Target returns the entity type of an embedded value or association.
func (p *Property) Target() *Entity { return p.target }

// IsAssociation is shorthand for p.Kind.IsAssociation().
func (p *Property) IsAssociation() bool { return p.Kind.IsAssociation() }

func (p *Property) String() string {
	if p.owner != nil {
		return p.owner.Name + "." + p.Name
	}
	return p.Name
}

// Args holds resolved property values passed to an entity constructor,
// keyed by property name.
type Args map[string]any

// Arg returns the named argument converted to V, or the zero value.
func Arg[V any](args Args, name string) V {
	v, _ := args[name].(V)
	return v
}

// Entity describes an entity type (EntityDescription). Values are
// handled as pointers to the described struct type.
type Entity struct {
	Name string
	// Type is the struct type. Entities are handled as pointers to it.
	Type reflect.Type
	// Table overrides the table name.
	Table      string
	Properties []*Property
	// New returns a pointer to a new zero value.
	New func() any
	// Construct, when set, builds the entity from all resolved property
	// values instead of populating a zero value.
	Construct func(Args) (any, error)

	table   string
	id      *Property
	version *Property
	naming  NamingStrategy
	paths   []Path
}

// Define starts the description of entity type T.
func Define[T any](props ...*Property) *Entity {
	t := reflect.TypeFor[T]()
	return &Entity{
		Name:       t.Name(),
		Type:       t,
		Properties: props,
		New:        func() any { return new(T) },
	}
}

// WithTable sets an explicit table name.
func (e *Entity) WithTable(name string) *Entity {
	e.Table = name
	return e
}

// Constructor registers fn as the constructor of immutable entity type T.
func Constructor[T any](e *Entity, fn func(Args) (*T, error)) *Entity {
	e.Construct = func(a Args) (any, error) { return fn(a) }
	return e
}

// TableName returns the resolved table name.
func (e *Entity) TableName() string { return e.table }

// ID returns the identifier property, or nil for identity-less entities.
func (e *Entity) ID() *Property { return e.id }

// HasID reports whether the entity declares an identifier.
func (e *Entity) HasID() bool { return e.id != nil }

// Version returns the version property used for optimistic locking, or nil.
func (e *Entity) Version() *Property { return e.version }

// Property returns the property with the given name, or nil.
func (e *Entity) Property(name string) *Property {
	for _, p := range e.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Paths returns every association path reachable from e, depth first in
// declaration order. Embedded values are walked through.
func (e *Entity) Paths() []Path { return e.paths }

// IDOf returns the identifier value of v, or nil when the entity has no
// identifier or it is unset.
func (e *Entity) IDOf(v any) any {
	if e.id == nil || v == nil {
		return nil
	}
	id := e.id.Get(v)
	if IsZero(id) {
		return nil
	}
	return id
}

// IsNew reports whether v has not been persisted yet: its identifier is
// nil or the zero value of a scalar.
func (e *Entity) IsNew(v any) bool {
	return e.IDOf(v) == nil
}

func (e *Entity) String() string { return e.Name }

// Column is a physical column of an entity's table, produced by a scalar
// property possibly nested in embedded values.
type Column struct {
	// Name is the full column name, including embedded prefixes.
	Name     string
	Property *Property
	// Embedded is the chain of embedded properties leading to Property.
	Embedded []*Property
}

// ValueOf extracts the column value from an entity. A nil embedded value
// yields nil.
func (c Column) ValueOf(entity any) any {
	v := entity
	for _, p := range c.Embedded {
		if v = p.Get(v); v == nil {
			return nil
		}
	}
	return c.Property.Get(v)
}

// Columns returns the columns of e's table in declaration order, with
// embedded values flattened. Association properties contribute nothing.
func (e *Entity) Columns() []Column {
	var cols []Column
	e.appendColumns(&cols, "", nil)
	return cols
}

func (e *Entity) appendColumns(cols *[]Column, prefix string, chain []*Property) {
	for _, p := range e.Properties {
		switch p.Kind {
		case KindScalar:
			*cols = append(*cols, Column{
				Name:     prefix + p.column,
				Property: p,
				Embedded: chain,
			})
		case KindEmbedded:
			next := append(append([]*Property(nil), chain...), p)
			p.target.appendColumns(cols, prefix+p.Prefix, next)
		}
	}
}

// IsZero reports whether v is nil or the zero value of its type.
func IsZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}
