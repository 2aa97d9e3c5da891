package convert

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/syssam/aggstore/schema"
)

// Materializer builds entities from result rows. Embedded values and
// single-valued associations joined into the query are read from the same
// row through prefixed views; everything else is loaded through the
// RelationResolver.
type Materializer struct {
	conv     *Converter
	resolver RelationResolver
}

// NewMaterializer returns a Materializer converting values with conv and
// loading relations with r. r may be nil when the entities read have no
// association that needs a secondary query.
func NewMaterializer(conv *Converter, r RelationResolver) *Materializer {
	return &Materializer{conv: conv, resolver: r}
}

// scope locates the entity being read.
type scope struct {
	parent ObjectPath
	// abs is the path from the aggregate root.
	abs schema.Path
	// rel is the path from the entity the query selects, which decides
	// what was joined.
	rel schema.Path
	key any
}

// Read materializes an entity of type e selected by the row.
func (m *Materializer) Read(ctx context.Context, e *schema.Entity, row Row) (any, error) {
	root := schema.RootPath(e)
	return m.read(ctx, e, row, scope{abs: root, rel: root})
}

// ReadElement materializes an entity stored at path below parent, from a
// row selected for e. key is its list index or map key.
func (m *Materializer) ReadElement(ctx context.Context, e *schema.Entity, row Row, parent ObjectPath, path schema.Path, key any) (any, error) {
	return m.read(ctx, e, row, scope{parent: parent, abs: path, rel: schema.RootPath(e), key: key})
}

func (m *Materializer) read(ctx context.Context, e *schema.Entity, row Row, s scope) (any, error) {
	var id any
	if idp := e.ID(); idp != nil {
		v, err := m.scalar(row, idp.ColumnName(), idp)
		if err != nil {
			return nil, err
		}
		if !schema.IsZero(v) {
			id = v
		}
		if id != nil {
			for _, seg := range s.parent.segments {
				if seg.Object != nil && seg.Entity == e && reflect.DeepEqual(seg.ID, id) {
					return seg.Object, nil
				}
			}
		}
	}
	var (
		obj  any
		args schema.Args
	)
	if e.Construct != nil {
		args = make(schema.Args, len(e.Properties))
	} else {
		obj = e.New()
	}
	set := func(p *schema.Property, v any) error {
		if args != nil {
			args[p.Name] = v
			return nil
		}
		if err := p.Set(obj, v); err != nil {
			return &schema.MappingError{Entity: e.Name, Property: p.Name, Err: err}
		}
		return nil
	}
	if idp := e.ID(); idp != nil {
		v := id
		if v == nil {
			v = reflect.Zero(idp.Type).Interface()
		}
		if err := set(idp, v); err != nil {
			return nil, err
		}
	}
	here := s.parent.Push(Segment{Object: obj, Entity: e, ID: id, Key: s.key, Path: s.abs})
	if err := m.readProperties(ctx, e, row, s, here, set); err != nil {
		return nil, err
	}
	if args == nil {
		return obj, nil
	}
	v, err := e.Construct(args)
	if err != nil {
		return nil, &schema.MappingError{Entity: e.Name, Err: fmt.Errorf("constructor: %w", err)}
	}
	return v, nil
}

func (m *Materializer) readProperties(ctx context.Context, e *schema.Entity, row Row, s scope, here ObjectPath, set func(*schema.Property, any) error) error {
	for _, p := range e.Properties {
		if p.ID {
			continue
		}
		var (
			v   any
			err error
		)
		switch {
		case p.Kind == schema.KindScalar:
			v, err = m.scalar(row, p.ColumnName(), p)
		case p.Kind == schema.KindEmbedded:
			v, err = m.readEmbedded(ctx, p, Prefixed(row, p.Prefix), scope{
				parent: here,
				abs:    s.abs.Extend(p),
				rel:    s.rel.Extend(p),
			})
		case p.Kind == schema.KindReference:
			v, err = m.readReference(ctx, p, row, here, s)
		default:
			v, err = m.readCollection(ctx, p, here, s.abs.Extend(p))
		}
		if err != nil {
			return err
		}
		if err := set(p, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Materializer) scalar(row Row, column string, p *schema.Property) (any, error) {
	raw, err := row.Value(column)
	if err != nil {
		return nil, err
	}
	v, err := m.conv.Read(raw, p.Type)
	if err != nil {
		return nil, &schema.MappingError{Entity: p.Owner().Name, Property: p.Name, Err: err}
	}
	return v, nil
}

// readEmbedded reads a value object flattened into the owner's row. It has
// no segment of its own; associations below it hang off the owner.
func (m *Materializer) readEmbedded(ctx context.Context, p *schema.Property, row Row, s scope) (any, error) {
	e := p.Target()
	if e.Construct != nil {
		args := make(schema.Args, len(e.Properties))
		err := m.readProperties(ctx, e, row, s, s.parent, func(p *schema.Property, v any) error {
			args[p.Name] = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		v, err := e.Construct(args)
		if err != nil {
			return nil, &schema.MappingError{Entity: e.Name, Err: fmt.Errorf("constructor: %w", err)}
		}
		return v, nil
	}
	obj := e.New()
	err := m.readProperties(ctx, e, row, s, s.parent, func(p *schema.Property, v any) error {
		if err := p.Set(obj, v); err != nil {
			return &schema.MappingError{Entity: e.Name, Property: p.Name, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (m *Materializer) readReference(ctx context.Context, p *schema.Property, row Row, here ObjectPath, s scope) (any, error) {
	rel, abs := s.rel.Extend(p), s.abs.Extend(p)
	if !rel.IsJoinable() {
		elems, err := m.resolve(ctx, here, abs)
		if err != nil || len(elems) == 0 {
			return nil, err
		}
		return elems[0].Value, nil
	}
	view := Prefixed(row, p.Name+"_")
	target := p.Target()
	presence := rel.ReverseColumn()
	if target.HasID() {
		presence = target.ID().ColumnName()
	}
	raw, err := view.Value(presence)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return m.read(ctx, target, view, scope{parent: here, abs: abs, rel: rel})
}

func (m *Materializer) readCollection(ctx context.Context, p *schema.Property, here ObjectPath, abs schema.Path) (any, error) {
	elems, err := m.resolve(ctx, here, abs)
	if err != nil {
		return nil, err
	}
	v, err := p.Collect(elems)
	if err != nil {
		return nil, &schema.MappingError{Entity: p.Owner().Name, Property: p.Name, Err: err}
	}
	return v, nil
}

var errNoResolver = errors.New("convert: association needs a relation resolver")

func (m *Materializer) resolve(ctx context.Context, here ObjectPath, abs schema.Path) ([]schema.Element, error) {
	if m.resolver == nil {
		return nil, fmt.Errorf("%w: %s", errNoResolver, abs)
	}
	return m.resolver.FindAllByPath(ctx, here, abs)
}
