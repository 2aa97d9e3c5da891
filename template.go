package aggstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/aggstore/access"
	"github.com/syssam/aggstore/change"
	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/sqlgen"
)

// Template saves, loads and deletes aggregates registered in a schema.Model.
// Each write runs in its own transaction unless the template is bound to one
// by WithTx. A Template is safe for concurrent use; templates passed to
// WithTx callbacks are not.
type Template struct {
	drv       dialect.Driver
	dialect   dialect.Dialect
	model     *schema.Model
	conv      *convert.Converter
	source    *sqlgen.Source
	writer    *change.Writer
	strategy  *access.DefaultStrategy
	interp    *access.Interpreter
	listeners []Listener
	log       *slog.Logger
	inTx      bool
}

// Option configures a Template.
type Option func(*Template)

// WithDialect overrides the dialect derived from the driver name.
func WithDialect(d dialect.Dialect) Option {
	return func(t *Template) {
		t.dialect = d
	}
}

// WithConverter sets the value converter. Custom and enum conversions must
// be registered on it before the template is used.
func WithConverter(c *convert.Converter) Option {
	return func(t *Template) {
		t.conv = c
	}
}

// WithListener registers listeners for save, delete and load events.
func WithListener(ls ...Listener) Option {
	return func(t *Template) {
		t.listeners = append(t.listeners, ls...)
	}
}

// WithLogger sets the logger of the template and its interpreter.
func WithLogger(l *slog.Logger) Option {
	return func(t *Template) {
		t.log = l
	}
}

// NewTemplate returns a Template writing through drv. The dialect is looked
// up from drv.Dialect() unless WithDialect is given.
func NewTemplate(drv dialect.Driver, m *schema.Model, opts ...Option) (*Template, error) {
	t := &Template{drv: drv, model: m, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.dialect == nil {
		d, err := dialect.Get(drv.Dialect())
		if err != nil {
			return nil, err
		}
		t.dialect = d
	}
	if t.conv == nil {
		var copts []convert.Option
		if t.dialect.Name() == dialect.Postgres {
			copts = append(copts, convert.PostgresArrays())
		}
		t.conv = convert.New(copts...)
	}
	t.source = sqlgen.NewSource(t.dialect)
	t.writer = change.NewWriter(m)
	t.bind(drv)
	return t, nil
}

// bind points the data access of t at conn.
func (t *Template) bind(conn dialect.ExecQuerier) {
	ops := access.NewNamedOperations(conn, t.dialect)
	t.strategy = access.NewStrategy(ops, t.source, t.conv)
	t.interp = access.NewInterpreter(t.strategy, t.log)
}

// Model returns the schema model of the template.
func (t *Template) Model() *schema.Model { return t.model }

// Dialect returns the dialect statements are generated for.
func (t *Template) Dialect() dialect.Dialect { return t.dialect }

// WithTx runs fn with a template bound to a new transaction. The
// transaction is committed when fn returns nil and rolled back otherwise.
func (t *Template) WithTx(ctx context.Context, fn func(tx *Template) error) error {
	if t.inTx {
		return ErrTxStarted
	}
	tx, err := t.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("aggstore: starting a transaction: %w", err)
	}
	txt := *t
	txt.inTx = true
	txt.bind(tx)
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(&txt); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return NewAggregateError(err, &RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("aggstore: committing transaction: %w", err)
	}
	return nil
}

// atomic runs fn in the current transaction, or in a new one.
func (t *Template) atomic(ctx context.Context, fn func(*Template) error) error {
	if t.inTx {
		return fn(t)
	}
	return t.WithTx(ctx, fn)
}

// Save inserts v when its identifier is unset and updates it otherwise.
// Identifier generators run for every new entity of the aggregate.
func (t *Template) Save(ctx context.Context, v any) error {
	return t.save(ctx, v, func(e *schema.Entity) bool { return e.IsNew(v) })
}

// Insert inserts v even when its identifier is set.
func (t *Template) Insert(ctx context.Context, v any) error {
	return t.save(ctx, v, func(*schema.Entity) bool { return true })
}

// Update updates v, replacing all of its associations.
func (t *Template) Update(ctx context.Context, v any) error {
	return t.save(ctx, v, func(*schema.Entity) bool { return false })
}

func (t *Template) save(ctx context.Context, v any, isNew func(*schema.Entity) bool) error {
	e, err := t.model.DescribeValue(v)
	if err != nil {
		return err
	}
	if err := t.emit(ctx, Event{Type: BeforeConvert, Entity: e, ID: e.IDOf(v), Value: v}); err != nil {
		return err
	}
	insert := isNew(e)
	if err := generateIDs(e, v); err != nil {
		return err
	}
	var c *change.AggregateChange
	if insert {
		c, err = t.writer.PlanInsert(v)
	} else {
		c, err = t.writer.PlanUpdate(v)
	}
	if err != nil {
		return err
	}
	return t.execute(ctx, c, BeforeSave, AfterSave, "save")
}

// Delete deletes the aggregate v. Versioned roots are only deleted when
// the stored version still matches.
func (t *Template) Delete(ctx context.Context, v any) error {
	e, err := t.model.DescribeValue(v)
	if err != nil {
		return err
	}
	id := e.IDOf(v)
	if id == nil {
		return schema.NoIdentifier(e, "delete")
	}
	c, err := t.writer.PlanDelete(e, id, v)
	if err != nil {
		return err
	}
	return t.execute(ctx, c, BeforeDelete, AfterDelete, "delete")
}

// DeleteByID deletes the aggregate of type e with the given identifier
// without a version check. Deleting an absent aggregate is not an error.
func (t *Template) DeleteByID(ctx context.Context, e *schema.Entity, id any) error {
	c, err := t.writer.PlanDelete(e, id, nil)
	if err != nil {
		return err
	}
	return t.execute(ctx, c, BeforeDelete, AfterDelete, "delete")
}

// DeleteAll deletes every aggregate of type e.
func (t *Template) DeleteAll(ctx context.Context, e *schema.Entity) error {
	return t.execute(ctx, t.writer.PlanDeleteAll(e), BeforeDelete, AfterDelete, "delete all")
}

// execute runs c atomically between its before and after events.
func (t *Template) execute(ctx context.Context, c *change.AggregateChange, before, after EventType, op string) error {
	ev := Event{
		Type:    before,
		Entity:  c.Type,
		ID:      changeID(c),
		Value:   c.Entity,
		Actions: c.Snapshot(),
	}
	if err := t.emit(ctx, ev); err != nil {
		return err
	}
	err := t.atomic(ctx, func(tx *Template) error {
		return tx.interp.Execute(ctx, c)
	})
	if err != nil {
		return NewMutationError(c.Type.Name, op, err)
	}
	t.log.DebugContext(ctx, "aggregate written", "entity", c.Type.Name, "op", c.Op.String(), "actions", c.Len())
	ev.Type, ev.ID, ev.Actions = after, changeID(c), c.Snapshot()
	return t.emit(ctx, ev)
}

func changeID(c *change.AggregateChange) any {
	for _, a := range c.Actions {
		switch a := a.(type) {
		case *change.InsertRoot:
			if a.GeneratedID != nil {
				return a.GeneratedID
			}
		case *change.DeleteRoot:
			return a.ID
		}
	}
	if c.Entity == nil {
		return nil
	}
	return c.Type.IDOf(c.Entity)
}

// generateIDs assigns generated identifiers to the new entities of the
// aggregate rooted at v.
func generateIDs(e *schema.Entity, v any) error {
	if e.HasID() && e.ID().Generator != nil && e.IsNew(v) {
		if err := e.ID().Set(v, e.ID().Generator()); err != nil {
			return &schema.MappingError{Entity: e.Name, Property: e.ID().Name, Err: err}
		}
	}
	for _, p := range e.Properties {
		switch {
		case p.Kind == schema.KindEmbedded, p.Kind == schema.KindReference:
			if child := p.Get(v); !schema.IsZero(child) {
				if err := generateIDs(p.Target(), child); err != nil {
					return err
				}
			}
		case p.Kind.IsCollection():
			for _, el := range p.Elements(v) {
				if err := generateIDs(p.Target(), el.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// FindByID loads the aggregate of type e with the given identifier. It
// returns nil and no error when the aggregate does not exist.
func (t *Template) FindByID(ctx context.Context, e *schema.Entity, id any) (any, error) {
	v, err := t.strategy.FindByID(ctx, e, id)
	if err != nil {
		return nil, NewQueryError(e.Name, "find by id", err)
	}
	if v == nil {
		return nil, nil
	}
	if err := t.loaded(ctx, e, v); err != nil {
		return nil, err
	}
	return v, nil
}

// FindAll loads every aggregate of type e.
func (t *Template) FindAll(ctx context.Context, e *schema.Entity) ([]any, error) {
	all, err := t.strategy.FindAll(ctx, e)
	return t.loadedAll(ctx, e, "find all", all, err)
}

// FindAllByID loads the aggregates with the given identifiers. Absent
// identifiers are skipped.
func (t *Template) FindAllByID(ctx context.Context, e *schema.Entity, ids ...any) ([]any, error) {
	all, err := t.strategy.FindAllByID(ctx, e, ids)
	return t.loadedAll(ctx, e, "find all by id", all, err)
}

// FindAllPage loads at most limit aggregates after skipping offset, in
// identifier order. A negative limit loads the rest.
func (t *Template) FindAllPage(ctx context.Context, e *schema.Entity, limit, offset int64) ([]any, error) {
	all, err := t.strategy.FindAllPage(ctx, e, limit, offset)
	return t.loadedAll(ctx, e, "find all page", all, err)
}

// Count returns the number of aggregates of type e.
func (t *Template) Count(ctx context.Context, e *schema.Entity) (int64, error) {
	n, err := t.strategy.Count(ctx, e)
	if err != nil {
		return 0, NewQueryError(e.Name, "count", err)
	}
	return n, nil
}

// ExistsByID reports whether the aggregate with the given identifier exists.
func (t *Template) ExistsByID(ctx context.Context, e *schema.Entity, id any) (bool, error) {
	ok, err := t.strategy.ExistsByID(ctx, e, id)
	if err != nil {
		return false, NewQueryError(e.Name, "exists by id", err)
	}
	return ok, nil
}

func (t *Template) loadedAll(ctx context.Context, e *schema.Entity, op string, all []any, err error) ([]any, error) {
	if err != nil {
		return nil, NewQueryError(e.Name, op, err)
	}
	for _, v := range all {
		if err := t.loaded(ctx, e, v); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (t *Template) loaded(ctx context.Context, e *schema.Entity, v any) error {
	if len(t.listeners) == 0 {
		return nil
	}
	return t.emit(ctx, Event{Type: AfterLoad, Entity: e, ID: e.IDOf(v), Value: v})
}
