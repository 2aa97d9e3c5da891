package edge

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/syssam/aggstore/schema"
)

// Option configures an embedded value or association.
type Option func(*schema.Property)

// Prefix sets the column prefix of an embedded value.
func Prefix(prefix string) Option {
	return func(p *schema.Property) {
		p.Prefix = prefix
	}
}

// KeyColumn sets the column holding list indexes or map keys.
func KeyColumn(name string) Option {
	return func(p *schema.Property) {
		p.KeyColumn = name
	}
}

// BackReference sets the column referencing the parent row.
func BackReference(name string) Option {
	return func(p *schema.Property) {
		p.BackReference = name
	}
}

func apply(p *schema.Property, opts []Option) *schema.Property {
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func assign[C any](name string, v any) (*C, error) {
	if v == nil {
		return nil, nil
	}
	c, ok := v.(*C)
	if !ok {
		return nil, fmt.Errorf("edge %q: cannot assign %T to %s", name, v, reflect.TypeFor[*C]())
	}
	return c, nil
}

// Embedded describes a value object of type C flattened into E's table.
func Embedded[E, C any](name string, ptr func(*E) *C, opts ...Option) *schema.Property {
	return apply(&schema.Property{
		Name: name,
		Kind: schema.KindEmbedded,
		Type: reflect.TypeFor[C](),
		Get: func(e any) any {
			return ptr(e.(*E))
		},
		Set: func(e, v any) error {
			c, err := assign[C](name, v)
			if err != nil {
				return err
			}
			dst := ptr(e.(*E))
			if c == nil {
				var zero C
				*dst = zero
				return nil
			}
			*dst = *c
			return nil
		},
	}, opts)
}

// Reference describes a single-valued association from E to C.
func Reference[E, C any](name string, ptr func(*E) **C, opts ...Option) *schema.Property {
	return apply(&schema.Property{
		Name: name,
		Kind: schema.KindReference,
		Type: reflect.TypeFor[C](),
		Get: func(e any) any {
			if c := *ptr(e.(*E)); c != nil {
				return c
			}
			return nil
		},
		Set: func(e, v any) error {
			c, err := assign[C](name, v)
			if err != nil {
				return err
			}
			*ptr(e.(*E)) = c
			return nil
		},
	}, opts)
}

// sliceElements skips nil elements. Indexes are dense so that a list reads
// back with the positions it was stored with.
func sliceElements[E, C any](ptr func(*E) *[]*C, indexed bool) func(any) []schema.Element {
	return func(e any) []schema.Element {
		s := *ptr(e.(*E))
		elems := make([]schema.Element, 0, len(s))
		for _, c := range s {
			if c == nil {
				continue
			}
			el := schema.Element{Value: c}
			if indexed {
				el.Key = len(elems)
			}
			elems = append(elems, el)
		}
		return elems
	}
}

func collectSlice[C any](name string, indexed bool) func([]schema.Element) (any, error) {
	return func(elems []schema.Element) (any, error) {
		if indexed {
			elems = slices.Clone(elems)
			slices.SortStableFunc(elems, func(a, b schema.Element) int {
				ai, _ := a.Key.(int)
				bi, _ := b.Key.(int)
				return cmp.Compare(ai, bi)
			})
		}
		s := make([]*C, 0, len(elems))
		for _, el := range elems {
			c, err := assign[C](name, el.Value)
			if err != nil {
				return nil, err
			}
			s = append(s, c)
		}
		return s, nil
	}
}

func setSlice[E, C any](name string, ptr func(*E) *[]*C) func(e, v any) error {
	return func(e, v any) error {
		dst := ptr(e.(*E))
		if v == nil {
			*dst = nil
			return nil
		}
		s, ok := v.([]*C)
		if !ok {
			return fmt.Errorf("edge %q: cannot assign %T to %s", name, v, reflect.TypeFor[[]*C]())
		}
		*dst = s
		return nil
	}
}

// List describes an ordered collection of C. Elements are stored with
// their index.
func List[E, C any](name string, ptr func(*E) *[]*C, opts ...Option) *schema.Property {
	return apply(&schema.Property{
		Name:     name,
		Kind:     schema.KindList,
		Type:     reflect.TypeFor[C](),
		KeyType:  reflect.TypeFor[int](),
		Get:      func(e any) any { return *ptr(e.(*E)) },
		Set:      setSlice(name, ptr),
		Elements: sliceElements(ptr, true),
		Collect:  collectSlice[C](name, true),
	}, opts)
}

// Set describes an unordered collection of C.
func Set[E, C any](name string, ptr func(*E) *[]*C, opts ...Option) *schema.Property {
	return apply(&schema.Property{
		Name:     name,
		Kind:     schema.KindSet,
		Type:     reflect.TypeFor[C](),
		Get:      func(e any) any { return *ptr(e.(*E)) },
		Set:      setSlice(name, ptr),
		Elements: sliceElements(ptr, false),
		Collect:  collectSlice[C](name, false),
	}, opts)
}

// Map describes a collection of C keyed by K. Elements are listed in key
// order.
func Map[E any, K cmp.Ordered, C any](name string, ptr func(*E) *map[K]*C, opts ...Option) *schema.Property {
	return apply(&schema.Property{
		Name:    name,
		Kind:    schema.KindMap,
		Type:    reflect.TypeFor[C](),
		KeyType: reflect.TypeFor[K](),
		Get:     func(e any) any { return *ptr(e.(*E)) },
		Set: func(e, v any) error {
			dst := ptr(e.(*E))
			if v == nil {
				*dst = nil
				return nil
			}
			m, ok := v.(map[K]*C)
			if !ok {
				return fmt.Errorf("edge %q: cannot assign %T to %s", name, v, reflect.TypeFor[map[K]*C]())
			}
			*dst = m
			return nil
		},
		Elements: func(e any) []schema.Element {
			m := *ptr(e.(*E))
			keys := make([]K, 0, len(m))
			for k, c := range m {
				if c != nil {
					keys = append(keys, k)
				}
			}
			slices.Sort(keys)
			elems := make([]schema.Element, len(keys))
			for i, k := range keys {
				elems[i] = schema.Element{Key: k, Value: m[k]}
			}
			return elems
		},
		Collect: func(elems []schema.Element) (any, error) {
			m := make(map[K]*C, len(elems))
			for _, el := range elems {
				k, ok := el.Key.(K)
				if !ok {
					return nil, fmt.Errorf("edge %q: key %v (%T) is not a %s", name, el.Key, el.Key, reflect.TypeFor[K]())
				}
				c, err := assign[C](name, el.Value)
				if err != nil {
					return nil, err
				}
				m[k] = c
			}
			return m, nil
		},
	}, opts)
}
