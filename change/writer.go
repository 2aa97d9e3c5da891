package change

import (
	"cmp"
	"slices"

	"github.com/syssam/aggstore/schema"
)

// Writer plans the actions that persist or remove an aggregate. It performs
// no I/O; the only errors it returns are mapping errors.
type Writer struct {
	model *schema.Model
}

// NewWriter returns a Writer for aggregates registered in m.
func NewWriter(m *schema.Model) *Writer {
	return &Writer{model: m}
}

// Plan plans saving v. The aggregate is inserted when old is nil or v has no
// identifier value yet, and updated otherwise. Updates replace every
// association: all child rows are deleted and the current ones reinserted.
func (w *Writer) Plan(old, v any) (*AggregateChange, error) {
	e, err := w.model.DescribeValue(v)
	if err != nil {
		return nil, err
	}
	if old == nil || e.IsNew(v) {
		return w.planInsert(e, v), nil
	}
	return w.planUpdate(e, v)
}

// PlanInsert plans inserting v regardless of its identifier value.
func (w *Writer) PlanInsert(v any) (*AggregateChange, error) {
	e, err := w.model.DescribeValue(v)
	if err != nil {
		return nil, err
	}
	return w.planInsert(e, v), nil
}

// PlanUpdate plans updating v in place.
func (w *Writer) PlanUpdate(v any) (*AggregateChange, error) {
	e, err := w.model.DescribeValue(v)
	if err != nil {
		return nil, err
	}
	return w.planUpdate(e, v)
}

func (w *Writer) planInsert(e *schema.Entity, v any) *AggregateChange {
	c := &AggregateChange{Op: OpInsert, Type: e, Entity: v}
	root := c.Add(&InsertRoot{Type: e, Entity: v})
	insertReferenced(c, root, schema.RootPath(e), e, v)
	return c
}

func (w *Writer) planUpdate(e *schema.Entity, v any) (*AggregateChange, error) {
	id := e.IDOf(v)
	if id == nil {
		return nil, schema.NoIdentifier(e, "update")
	}
	c := &AggregateChange{Op: OpUpdate, Type: e, Entity: v}
	for _, p := range deepestFirst(e) {
		c.Add(&Delete{RootID: id, Path: p})
	}
	root := c.Add(&UpdateRoot{Type: e, Entity: v, PreviousVersion: versionOf(e, v)})
	insertReferenced(c, root, schema.RootPath(e), e, v)
	return c, nil
}

// PlanDelete plans removing the aggregate of type e with the given
// identifier. v is the root instance if known and supplies the expected
// version of versioned entities.
func (w *Writer) PlanDelete(e *schema.Entity, id, v any) (*AggregateChange, error) {
	if !e.HasID() {
		return nil, schema.NoIdentifier(e, "delete")
	}
	if schema.IsZero(id) {
		return nil, schema.NoIdentifier(e, "delete")
	}
	c := &AggregateChange{Op: OpDelete, Type: e, Entity: v}
	for _, p := range deepestFirst(e) {
		c.Add(&Delete{RootID: id, Path: p})
	}
	c.Add(&DeleteRoot{Type: e, ID: id, Entity: v, PreviousVersion: versionOf(e, v)})
	return c, nil
}

// PlanDeleteAll plans removing every aggregate of type e.
func (w *Writer) PlanDeleteAll(e *schema.Entity) *AggregateChange {
	c := &AggregateChange{Op: OpDeleteAll, Type: e}
	for _, p := range deepestFirst(e) {
		c.Add(&DeleteAll{Path: p})
	}
	c.Add(&DeleteAllRoot{Type: e})
	return c
}

func versionOf(e *schema.Entity, v any) any {
	if v == nil || e.Version() == nil {
		return nil
	}
	return e.Version().Get(v)
}

// deepestFirst orders the association paths of e by descending length,
// keeping declaration order among paths of the same length.
func deepestFirst(e *schema.Entity) []schema.Path {
	paths := slices.Clone(e.Paths())
	slices.SortStableFunc(paths, func(a, b schema.Path) int {
		return cmp.Compare(b.Len(), a.Len())
	})
	return paths
}

// insertReferenced appends Insert actions for everything v references,
// depth first in declaration order. Embedded values are walked with the
// owner's action as parent.
func insertReferenced(c *AggregateChange, parent int, base schema.Path, e *schema.Entity, v any) {
	for _, p := range e.Properties {
		switch {
		case p.Kind == schema.KindEmbedded:
			insertReferenced(c, parent, base.Extend(p), p.Target(), p.Get(v))
		case p.Kind == schema.KindReference:
			if child := p.Get(v); child != nil {
				insertElement(c, parent, base.Extend(p), child, nil)
			}
		case p.Kind.IsCollection():
			path := base.Extend(p)
			for _, el := range p.Elements(v) {
				insertElement(c, parent, path, el.Value, el.Key)
			}
		}
	}
}

func insertElement(c *AggregateChange, parent int, path schema.Path, v, key any) {
	idx := c.Add(&Insert{Entity: v, Path: path, DependsOn: parent, Qualifier: key})
	insertReferenced(c, idx, path, path.Entity(), v)
}
