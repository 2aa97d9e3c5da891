package access

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/sqlgen"
)

// Strategy is the data access the interpreter and the template run on.
// Entities are passed together with their registered description.
type Strategy interface {
	convert.RelationResolver

	// Insert inserts v with the parent identifier columns and returns the
	// generated identifier, or nil when the database generated none.
	Insert(ctx context.Context, e *schema.Entity, v any, parent schema.Identifier) (any, error)
	// Update updates v by identifier and reports whether a row matched.
	Update(ctx context.Context, e *schema.Entity, v any) (bool, error)
	// UpdateWithVersion is like Update but matches the previous version.
	UpdateWithVersion(ctx context.Context, e *schema.Entity, v, previous any) (bool, error)
	Delete(ctx context.Context, e *schema.Entity, id any) error
	// DeleteWithVersion deletes the row with id and the previous version and
	// reports whether a row matched.
	DeleteWithVersion(ctx context.Context, e *schema.Entity, id, previous any) (bool, error)
	// DeleteByPath deletes the rows at p of the aggregate rootID.
	DeleteByPath(ctx context.Context, rootID any, p schema.Path) error
	DeleteAll(ctx context.Context, e *schema.Entity) error
	// DeleteAllByPath deletes the rows at p of every aggregate.
	DeleteAllByPath(ctx context.Context, p schema.Path) error

	// FindByID returns the aggregate with id, or nil when there is none.
	FindByID(ctx context.Context, e *schema.Entity, id any) (any, error)
	FindAll(ctx context.Context, e *schema.Entity) ([]any, error)
	FindAllByID(ctx context.Context, e *schema.Entity, ids []any) ([]any, error)
	FindAllPage(ctx context.Context, e *schema.Entity, limit, offset int64) ([]any, error)
	Count(ctx context.Context, e *schema.Entity) (int64, error)
	ExistsByID(ctx context.Context, e *schema.Entity, id any) (bool, error)
}

// DefaultStrategy implements Strategy with the statements of a
// sqlgen.Source, executed through Operations. It resolves collections for
// its own materializer.
type DefaultStrategy struct {
	ops  Operations
	src  *sqlgen.Source
	conv *convert.Converter
	mat  *convert.Materializer
}

// NewStrategy returns a DefaultStrategy.
func NewStrategy(ops Operations, src *sqlgen.Source, conv *convert.Converter) *DefaultStrategy {
	s := &DefaultStrategy{ops: ops, src: src, conv: conv}
	s.mat = convert.NewMaterializer(conv, s)
	return s
}

// Materializer returns the materializer reading the strategy's results.
func (s *DefaultStrategy) Materializer() *convert.Materializer { return s.mat }

func (s *DefaultStrategy) write(e *schema.Entity, prop string, v any) (any, error) {
	w, err := s.conv.Write(v)
	if err != nil {
		return nil, &schema.MappingError{Entity: e.Name, Property: prop, Err: err}
	}
	return w, nil
}

// columnParams binds every column of v to the parameter named after it.
// The identifier column is skipped when skipID is set.
func (s *DefaultStrategy) columnParams(e *schema.Entity, v any, skipID bool) ([]string, map[string]any, error) {
	var (
		columns []string
		params  = make(map[string]any)
	)
	for _, c := range e.Columns() {
		if skipID && c.Property == e.ID() {
			continue
		}
		w, err := s.write(e, c.Property.Name, c.ValueOf(v))
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, c.Name)
		params[c.Name] = w
	}
	return columns, params, nil
}

// Insert implements Strategy.
func (s *DefaultStrategy) Insert(ctx context.Context, e *schema.Entity, v any, parent schema.Identifier) (any, error) {
	generated := e.HasID() && e.IsNew(v)
	columns, params, err := s.columnParams(e, v, generated)
	if err != nil {
		return nil, err
	}
	for _, part := range parent.Parts() {
		w, err := s.write(e, part.Name, part.Value)
		if err != nil {
			return nil, err
		}
		if _, ok := params[part.Name]; !ok {
			columns = append(columns, part.Name)
		}
		params[part.Name] = w
	}
	g := s.src.For(e)
	if !generated {
		_, _, err := s.ops.Insert(ctx, g.Insert(columns), params, "")
		return nil, err
	}
	key := e.ID().ColumnName()
	query := g.Insert(columns)
	if s.src.Dialect().ReturnsGeneratedKeys() {
		query = g.InsertReturning(columns, key)
	}
	_, raw, err := s.ops.Insert(ctx, query, params, key)
	if err != nil || raw == nil {
		return nil, err
	}
	id, err := s.conv.Read(raw, e.ID().Type)
	if err != nil {
		return nil, &schema.MappingError{Entity: e.Name, Property: e.ID().Name, Err: err}
	}
	return id, nil
}

// Update implements Strategy. Versioned entities are matched on their
// current version.
func (s *DefaultStrategy) Update(ctx context.Context, e *schema.Entity, v any) (bool, error) {
	var previous any
	if ver := e.Version(); ver != nil {
		previous = ver.Get(v)
	}
	return s.update(ctx, e, v, previous)
}

// UpdateWithVersion implements Strategy.
func (s *DefaultStrategy) UpdateWithVersion(ctx context.Context, e *schema.Entity, v, previous any) (bool, error) {
	if e.Version() == nil {
		return false, &schema.MappingError{Entity: e.Name, Err: fmt.Errorf("%w: entity has no version property", schema.ErrInvalidConfiguration)}
	}
	return s.update(ctx, e, v, previous)
}

func (s *DefaultStrategy) update(ctx context.Context, e *schema.Entity, v, previous any) (bool, error) {
	query, err := s.src.For(e).Update()
	if err != nil {
		return false, err
	}
	_, params, err := s.columnParams(e, v, false)
	if err != nil {
		return false, err
	}
	if params[sqlgen.IDParam], err = s.write(e, e.ID().Name, e.ID().Get(v)); err != nil {
		return false, err
	}
	if ver := e.Version(); ver != nil {
		if params[sqlgen.PreviousVersionParam], err = s.write(e, ver.Name, previous); err != nil {
			return false, err
		}
	}
	n, err := s.ops.Update(ctx, query, params)
	return n > 0, err
}

// Delete implements Strategy.
func (s *DefaultStrategy) Delete(ctx context.Context, e *schema.Entity, id any) error {
	query, err := s.src.For(e).DeleteByID()
	if err != nil {
		return err
	}
	params, err := s.idParams(e, id)
	if err != nil {
		return err
	}
	_, err = s.ops.Update(ctx, query, params)
	return err
}

// DeleteWithVersion implements Strategy.
func (s *DefaultStrategy) DeleteWithVersion(ctx context.Context, e *schema.Entity, id, previous any) (bool, error) {
	query, err := s.src.For(e).DeleteByIDAndVersion()
	if err != nil {
		return false, err
	}
	params, err := s.idParams(e, id)
	if err != nil {
		return false, err
	}
	if params[sqlgen.PreviousVersionParam], err = s.write(e, e.Version().Name, previous); err != nil {
		return false, err
	}
	n, err := s.ops.Update(ctx, query, params)
	return n > 0, err
}

// DeleteByPath implements Strategy.
func (s *DefaultStrategy) DeleteByPath(ctx context.Context, rootID any, p schema.Path) error {
	root := p.Root()
	query, err := s.src.For(root).DeleteByPath(p)
	if err != nil {
		return err
	}
	w, err := s.write(root, root.ID().Name, rootID)
	if err != nil {
		return err
	}
	_, err = s.ops.Update(ctx, query, map[string]any{sqlgen.RootIDParam: w})
	return err
}

// DeleteAll implements Strategy.
func (s *DefaultStrategy) DeleteAll(ctx context.Context, e *schema.Entity) error {
	return s.DeleteAllByPath(ctx, schema.RootPath(e))
}

// DeleteAllByPath implements Strategy.
func (s *DefaultStrategy) DeleteAllByPath(ctx context.Context, p schema.Path) error {
	_, err := s.ops.Update(ctx, s.src.For(p.Root()).DeleteAll(p), nil)
	return err
}

func (s *DefaultStrategy) idParams(e *schema.Entity, id any) (map[string]any, error) {
	if !e.HasID() {
		return nil, schema.NoIdentifier(e, "access")
	}
	w, err := s.write(e, e.ID().Name, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{sqlgen.IDParam: w}, nil
}

// FindByID implements Strategy.
func (s *DefaultStrategy) FindByID(ctx context.Context, e *schema.Entity, id any) (any, error) {
	query, err := s.src.For(e).FindOne()
	if err != nil {
		return nil, err
	}
	params, err := s.idParams(e, id)
	if err != nil {
		return nil, err
	}
	all, err := s.query(ctx, e, query, params)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// FindAll implements Strategy.
func (s *DefaultStrategy) FindAll(ctx context.Context, e *schema.Entity) ([]any, error) {
	return s.query(ctx, e, s.src.For(e).FindAll(), nil)
}

// FindAllByID implements Strategy. No statement runs for an empty list.
func (s *DefaultStrategy) FindAllByID(ctx context.Context, e *schema.Entity, ids []any) ([]any, error) {
	query, err := s.src.For(e).FindAllInList()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	list := make([]any, len(ids))
	for i, id := range ids {
		if list[i], err = s.write(e, e.ID().Name, id); err != nil {
			return nil, err
		}
	}
	return s.query(ctx, e, query, map[string]any{sqlgen.IDsParam: list})
}

// FindAllPage implements Strategy.
func (s *DefaultStrategy) FindAllPage(ctx context.Context, e *schema.Entity, limit, offset int64) ([]any, error) {
	return s.query(ctx, e, s.src.For(e).FindAllPage(limit, offset), nil)
}

func (s *DefaultStrategy) query(ctx context.Context, e *schema.Entity, query string, params map[string]any) ([]any, error) {
	var all []any
	err := s.ops.Query(ctx, query, params, func(r convert.Row) error {
		v, err := s.mat.Read(ctx, e, r)
		if err != nil {
			return err
		}
		all = append(all, v)
		return nil
	})
	return all, err
}

// Count implements Strategy.
func (s *DefaultStrategy) Count(ctx context.Context, e *schema.Entity) (int64, error) {
	return s.scalarInt(ctx, s.src.For(e).Count(), nil)
}

// ExistsByID implements Strategy.
func (s *DefaultStrategy) ExistsByID(ctx context.Context, e *schema.Entity, id any) (bool, error) {
	query, err := s.src.For(e).Exists()
	if err != nil {
		return false, err
	}
	params, err := s.idParams(e, id)
	if err != nil {
		return false, err
	}
	n, err := s.scalarInt(ctx, query, params)
	return n > 0, err
}

func (s *DefaultStrategy) scalarInt(ctx context.Context, query string, params map[string]any) (int64, error) {
	raw, err := s.ops.QueryScalar(ctx, query, params)
	if err != nil {
		return 0, err
	}
	n, err := s.conv.Read(raw, reflect.TypeFor[int64]())
	if err != nil {
		return 0, fmt.Errorf("access: count: %w", err)
	}
	return n.(int64), nil
}

// FindAllByPath implements convert.RelationResolver. The parent
// identifier binds the back-reference to the nearest ancestor with an
// identifier and the keys of the identity-less ancestors in between.
func (s *DefaultStrategy) FindAllByPath(ctx context.Context, parent convert.ObjectPath, p schema.Path) ([]schema.Element, error) {
	leaf := p.Leaf()
	if leaf == nil || !leaf.IsAssociation() {
		return nil, fmt.Errorf("access: find all by path: %q is not an association", p)
	}
	ident, err := parentIdentifier(parent, p)
	if err != nil {
		return nil, err
	}
	target := p.Entity()
	key := p.KeyColumn()
	query, err := s.src.For(target).FindAllByProperty(ident, key, leaf.Kind == schema.KindList)
	if err != nil {
		return nil, err
	}
	params := make(map[string]any, ident.Len())
	for _, part := range ident.Parts() {
		if params[part.Name], err = s.write(target, part.Name, part.Value); err != nil {
			return nil, err
		}
	}
	var elems []schema.Element
	err = s.ops.Query(ctx, query, params, func(r convert.Row) error {
		var k any
		if key != "" {
			raw, err := r.Value(key)
			if err != nil {
				return err
			}
			if k, err = s.conv.Read(raw, leaf.KeyType); err != nil {
				return &schema.MappingError{Entity: leaf.Owner().Name, Property: leaf.Name, Err: err}
			}
		}
		v, err := s.mat.ReadElement(ctx, target, r, parent, p, k)
		if err != nil {
			return err
		}
		elems = append(elems, schema.Element{Key: k, Value: v})
		return nil
	})
	return elems, err
}

func parentIdentifier(parent convert.ObjectPath, p schema.Path) (schema.Identifier, error) {
	segs := parent.Segments()
	var quals []schema.IdentifierPart
	for _, seg := range slices.Backward(segs) {
		if seg.Entity.HasID() {
			if seg.ID == nil {
				return schema.Identifier{}, fmt.Errorf("access: find all by path: %s has no identifier value", seg.Entity)
			}
			ident := schema.IdentifierOf(p.ReverseColumn(), seg.ID, seg.Entity.ID().Type)
			for _, q := range slices.Backward(quals) {
				ident = ident.WithPart(q.Name, q.Value, q.TargetType)
			}
			return ident, nil
		}
		if seg.Path.IsQualified() {
			quals = append(quals, schema.IdentifierPart{
				Name:       seg.Path.KeyColumn(),
				Value:      seg.Key,
				TargetType: seg.Path.Leaf().KeyType,
			})
		}
	}
	return schema.Identifier{}, fmt.Errorf("access: find all by path: no ancestor of %q has an identifier", p)
}

var _ Strategy = (*DefaultStrategy)(nil)
