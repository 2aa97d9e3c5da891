package schema

import (
	"fmt"
	"reflect"
	"sync"
)

// Model is the registry of entity descriptions. It is safe for concurrent
// reads once registration is done.
type Model struct {
	naming NamingStrategy

	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
}

// Option configures a Model.
type Option func(*Model)

// WithNamingStrategy sets the naming strategy used to resolve table and
// column names.
func WithNamingStrategy(n NamingStrategy) Option {
	return func(m *Model) {
		m.naming = n
	}
}

// NewModel returns an empty model.
func NewModel(opts ...Option) *Model {
	m := &Model{
		naming:   DefaultNaming{},
		entities: make(map[reflect.Type]*Entity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Naming returns the model's naming strategy.
func (m *Model) Naming() NamingStrategy { return m.naming }

// Register resolves and validates the given entity definitions. Definitions
// are copied, so one definition can be registered with several models.
// Association targets must be registered in the same call or earlier.
func (m *Model) Register(defs ...*Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	added := make([]*Entity, 0, len(defs))
	for _, def := range defs {
		if def.Type == nil || def.New == nil {
			return &MappingError{Entity: def.Name, Err: fmt.Errorf("%w: entity is not created by schema.Define", ErrInvalidConfiguration)}
		}
		if _, ok := m.entities[def.Type]; ok {
			return &MappingError{Entity: def.Name, Err: fmt.Errorf("%w: entity registered twice", ErrInvalidConfiguration)}
		}
		e := cloneEntity(def, m.naming)
		m.entities[e.Type] = e
		added = append(added, e)
	}
	rollback := func(err error) error {
		for _, e := range added {
			delete(m.entities, e.Type)
		}
		return err
	}
	for _, e := range added {
		if err := m.resolve(e); err != nil {
			return rollback(err)
		}
	}
	for _, e := range added {
		if err := checkCycles(e, nil); err != nil {
			return rollback(err)
		}
	}
	for _, e := range added {
		e.paths = collectPaths(RootPath(e), e, nil)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (m *Model) MustRegister(defs ...*Entity) *Model {
	if err := m.Register(defs...); err != nil {
		panic(err)
	}
	return m
}

// Describe returns the description of the given Go type. Pointer types are
// dereferenced.
func (m *Model) Describe(t reflect.Type) (*Entity, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	m.mu.RLock()
	e, ok := m.entities[t]
	m.mu.RUnlock()
	if !ok {
		return nil, &MappingError{Entity: typeName(t), Err: ErrNotRegistered}
	}
	return e, nil
}

// DescribeValue returns the description of v's dynamic type.
func (m *Model) DescribeValue(v any) (*Entity, error) {
	return m.Describe(reflect.TypeOf(v))
}

// Of returns the description of T.
func Of[T any](m *Model) (*Entity, error) {
	return m.Describe(reflect.TypeFor[T]())
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func cloneEntity(def *Entity, naming NamingStrategy) *Entity {
	e := *def
	e.naming = naming
	e.Properties = make([]*Property, len(def.Properties))
	for i, p := range def.Properties {
		cp := *p
		cp.owner = &e
		e.Properties[i] = &cp
	}
	return &e
}

func (m *Model) resolve(e *Entity) error {
	fail := func(p *Property, format string, args ...any) error {
		err := &MappingError{Entity: e.Name, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfiguration}, args...)...)}
		if p != nil {
			err.Property = p.Name
		}
		return err
	}
	seen := make(map[string]bool, len(e.Properties))
	for _, p := range e.Properties {
		if p.Name == "" || p.Get == nil || p.Set == nil {
			return fail(p, "property %q is incomplete", p.Name)
		}
		if seen[p.Name] {
			return fail(p, "duplicate property %q", p.Name)
		}
		seen[p.Name] = true
		switch {
		case p.ID:
			if e.id != nil {
				return fail(p, "more than one identifier property (%s, %s)", e.id.Name, p.Name)
			}
			e.id = p
		case p.Version:
			if e.version != nil {
				return fail(p, "more than one version property (%s, %s)", e.version.Name, p.Name)
			}
			e.version = p
		}
		if p.Kind == KindScalar {
			p.column = p.Column
			if p.column == "" {
				p.column = e.naming.ColumnName(p)
			}
			continue
		}
		target, ok := m.entities[p.Type]
		if !ok {
			return fail(p, "type %s of property %q is not registered", typeName(p.Type), p.Name)
		}
		p.target = target
		if p.Kind == KindEmbedded && target.hasIDProperty() {
			return fail(p, "embedded type %s declares an identifier", target.Name)
		}
		if p.Kind.IsCollection() && (p.Elements == nil || p.Collect == nil) {
			return fail(p, "collection %q has no element accessors", p.Name)
		}
		if p.Kind.IsQualified() && p.KeyType == nil {
			return fail(p, "%s %q has no key type", p.Kind, p.Name)
		}
	}
	e.table = e.Table
	if e.table == "" {
		e.table = e.naming.TableName(e)
	}
	return nil
}

func (e *Entity) hasIDProperty() bool {
	if e.id != nil {
		return true
	}
	for _, p := range e.Properties {
		if p.ID {
			return true
		}
	}
	return false
}

// checkCycles rejects entity types that reach themselves through
// associations or embedded values; aggregates are trees.
func checkCycles(e *Entity, stack []*Entity) error {
	for _, s := range stack {
		if s == e {
			return &MappingError{Entity: stack[0].Name, Err: fmt.Errorf("%w: type %s reaches itself", ErrInvalidConfiguration, e.Name)}
		}
	}
	stack = append(stack, e)
	for _, p := range e.Properties {
		if p.target != nil {
			if err := checkCycles(p.target, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

func collectPaths(base Path, e *Entity, paths []Path) []Path {
	for _, p := range e.Properties {
		switch {
		case p.Kind == KindEmbedded:
			paths = collectPaths(base.Extend(p), p.target, paths)
		case p.Kind.IsAssociation():
			child := base.Extend(p)
			paths = append(paths, child)
			paths = collectPaths(child, p.target, paths)
		}
	}
	return paths
}
