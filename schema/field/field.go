package field

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/syssam/aggstore/schema"
)

// Option configures a scalar property.
type Option func(*schema.Property)

// Column sets an explicit column name.
func Column(name string) Option {
	return func(p *schema.Property) {
		p.Column = name
	}
}

// GeneratedBy assigns identifiers produced by fn to new entities before
// they are saved.
func GeneratedBy[V any](fn func() V) Option {
	return func(p *schema.Property) {
		p.Generator = func() any { return fn() }
	}
}

// UUID generates random (version 4) UUIDs. The property type must be uuid.UUID.
func UUID() Option {
	return GeneratedBy(uuid.New)
}

// ULID generates lexically sortable ULID strings. The property type must be string.
func ULID() Option {
	return GeneratedBy(func() string { return ulid.Make().String() })
}

// Value describes a scalar property of E stored in a column.
func Value[E, V any](name string, ptr func(*E) *V, opts ...Option) *schema.Property {
	p := &schema.Property{
		Name: name,
		Kind: schema.KindScalar,
		Type: reflect.TypeFor[V](),
		Get: func(e any) any {
			return *ptr(e.(*E))
		},
		Set: func(e, v any) error {
			dst := ptr(e.(*E))
			if v == nil {
				var zero V
				*dst = zero
				return nil
			}
			tv, ok := v.(V)
			if !ok {
				return fmt.Errorf("field %q: cannot assign %T to %s", name, v, reflect.TypeFor[V]())
			}
			*dst = tv
			return nil
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID describes the identifier property of E.
func ID[E, V any](name string, ptr func(*E) *V, opts ...Option) *schema.Property {
	p := Value(name, ptr, opts...)
	p.ID = true
	return p
}

// Integer is the constraint of version properties.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Version describes the version property of E used for optimistic locking.
func Version[E any, V Integer](name string, ptr func(*E) *V, opts ...Option) *schema.Property {
	p := Value(name, ptr, opts...)
	p.Version = true
	return p
}
