package access

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/syssam/aggstore/change"
	"github.com/syssam/aggstore/dialect/sql"
	"github.com/syssam/aggstore/dialect/sql/sqlgraph"
	"github.com/syssam/aggstore/schema"
)

// Interpreter executes the actions of an AggregateChange in order.
type Interpreter struct {
	strategy Strategy
	log      *slog.Logger
}

// NewInterpreter returns an Interpreter running on s. A nil logger logs to
// slog.Default().
func NewInterpreter(s Strategy, log *slog.Logger) *Interpreter {
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter{strategy: s, log: log}
}

// Execute runs every action of c. It stops at the first failure: an update
// or versioned delete matching no row returns an *OptimisticLockError, any
// other failure an *ExecutionError. Generated identifiers are stored on the
// actions and on the entities.
func (in *Interpreter) Execute(ctx context.Context, c *change.AggregateChange) error {
	for i, a := range c.Actions {
		in.log.DebugContext(ctx, "execute action", "index", i, "action", a.String())
		matched, err := in.execute(sql.WithAction(ctx, change.KindOf(a)), c, a)
		if err != nil {
			return &ExecutionError{Index: i, Action: a, Err: sqlgraph.WrapConstraint(err)}
		}
		if !matched {
			e := change.PathOf(a).Entity()
			return &OptimisticLockError{Index: i, Action: a, Entity: e.Name, ID: idOf(a)}
		}
	}
	return nil
}

func idOf(a change.Action) any {
	switch a := a.(type) {
	case *change.UpdateRoot:
		return a.Type.IDOf(a.Entity)
	case *change.Update:
		return a.Path.Entity().IDOf(a.Entity)
	case *change.DeleteRoot:
		return a.ID
	default:
		return nil
	}
}

// execute runs a and reports whether the rows it must match were found.
func (in *Interpreter) execute(ctx context.Context, c *change.AggregateChange, a change.Action) (bool, error) {
	switch a := a.(type) {
	case *change.InsertRoot:
		id, err := in.insert(ctx, a.Type, a.Entity, schema.Identifier{})
		if err != nil {
			return false, err
		}
		a.GeneratedID = id
		return true, nil
	case *change.Insert:
		ident, err := insertIdentifier(c, a)
		if err != nil {
			return false, err
		}
		id, err := in.insert(ctx, a.Path.Entity(), a.Entity, ident)
		if err != nil {
			return false, err
		}
		a.GeneratedID = id
		return true, nil
	case *change.UpdateRoot:
		return in.updateRoot(ctx, a)
	case *change.Update:
		return in.strategy.Update(ctx, a.Path.Entity(), a.Entity)
	case *change.Delete:
		return true, in.strategy.DeleteByPath(ctx, a.RootID, a.Path)
	case *change.DeleteAll:
		return true, in.strategy.DeleteAllByPath(ctx, a.Path)
	case *change.DeleteRoot:
		if a.Type.Version() != nil && a.PreviousVersion != nil {
			return in.strategy.DeleteWithVersion(ctx, a.Type, a.ID, a.PreviousVersion)
		}
		return true, in.strategy.Delete(ctx, a.Type, a.ID)
	case *change.DeleteAllRoot:
		return true, in.strategy.DeleteAll(ctx, a.Type)
	default:
		return false, fmt.Errorf("access: unexpected action %T", a)
	}
}

// insert inserts v, starting versioned entities at their first version,
// and writes a generated identifier back to v.
func (in *Interpreter) insert(ctx context.Context, e *schema.Entity, v any, parent schema.Identifier) (any, error) {
	if ver := e.Version(); ver != nil && schema.IsZero(ver.Get(v)) {
		first, err := nextVersion(ver.Get(v))
		if err != nil {
			return nil, &schema.MappingError{Entity: e.Name, Property: ver.Name, Err: err}
		}
		if err := ver.Set(v, first); err != nil {
			return nil, &schema.MappingError{Entity: e.Name, Property: ver.Name, Err: err}
		}
	}
	id, err := in.strategy.Insert(ctx, e, v, parent)
	if err != nil || id == nil {
		return nil, err
	}
	if err := e.ID().Set(v, id); err != nil {
		return nil, &schema.MappingError{Entity: e.Name, Property: e.ID().Name, Err: err}
	}
	return id, nil
}

// updateRoot updates the root row. Versioned roots are written with the
// next version; the previous one is restored when the update fails.
func (in *Interpreter) updateRoot(ctx context.Context, a *change.UpdateRoot) (bool, error) {
	ver := a.Type.Version()
	if ver == nil {
		return in.strategy.Update(ctx, a.Type, a.Entity)
	}
	next, err := nextVersion(a.PreviousVersion)
	if err != nil {
		return false, &schema.MappingError{Entity: a.Type.Name, Property: ver.Name, Err: err}
	}
	if err := ver.Set(a.Entity, next); err != nil {
		return false, &schema.MappingError{Entity: a.Type.Name, Property: ver.Name, Err: err}
	}
	ok, err := in.strategy.UpdateWithVersion(ctx, a.Type, a.Entity, a.PreviousVersion)
	if err != nil || !ok {
		if rerr := ver.Set(a.Entity, a.PreviousVersion); rerr != nil {
			in.log.WarnContext(ctx, "restore version", "entity", a.Type.Name, "error", rerr)
		}
	}
	return ok, err
}

// insertIdentifier folds the DependsOn chain of a into the identifier of
// its parent row: the back-reference to the nearest ancestor with an
// identifier, followed by the qualifiers of the identity-less ancestors in
// between, outermost first, and the qualifier of a itself.
func insertIdentifier(c *change.AggregateChange, a *change.Insert) (schema.Identifier, error) {
	var quals []schema.IdentifierPart
	cur := a
	for {
		parent := c.Parent(cur)
		e, v, generated := insertTarget(parent)
		if e == nil {
			return schema.Identifier{}, fmt.Errorf("access: %s depends on %s, which inserts or updates no entity", a, parent)
		}
		if e.HasID() {
			id := generated
			if id == nil {
				id = e.IDOf(v)
			}
			if id == nil {
				return schema.Identifier{}, fmt.Errorf("access: %s: parent %s has no identifier value", a, e)
			}
			ident := schema.IdentifierOf(a.Path.ReverseColumn(), id, e.ID().Type)
			for i := len(quals) - 1; i >= 0; i-- {
				ident = ident.WithPart(quals[i].Name, quals[i].Value, quals[i].TargetType)
			}
			if a.Path.IsQualified() {
				ident = ident.WithPart(a.Path.KeyColumn(), a.Qualifier, a.Path.Leaf().KeyType)
			}
			return ident, nil
		}
		p, ok := parent.(*change.Insert)
		if !ok {
			return schema.Identifier{}, schema.NoIdentifier(e, "access: insert "+a.Path.String())
		}
		if p.Path.IsQualified() {
			quals = append(quals, schema.IdentifierPart{
				Name:       p.Path.KeyColumn(),
				Value:      p.Qualifier,
				TargetType: p.Path.Leaf().KeyType,
			})
		}
		cur = p
	}
}

// insertTarget returns the entity written by a parent action, its instance
// and its generated identifier.
func insertTarget(a change.Action) (*schema.Entity, any, any) {
	switch a := a.(type) {
	case *change.InsertRoot:
		return a.Type, a.Entity, a.GeneratedID
	case *change.Insert:
		return a.Path.Entity(), a.Entity, a.GeneratedID
	case *change.UpdateRoot:
		return a.Type, a.Entity, nil
	case *change.Update:
		return a.Path.Entity(), a.Entity, nil
	default:
		return nil, nil, nil
	}
}

// nextVersion returns v+1 in v's integer type. nil counts as zero of int64.
func nextVersion(v any) (any, error) {
	if v == nil {
		return int64(1), nil
	}
	rv := reflect.ValueOf(v)
	next := reflect.New(rv.Type()).Elem()
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		next.SetInt(rv.Int() + 1)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		next.SetUint(rv.Uint() + 1)
	default:
		return nil, fmt.Errorf("version of type %T is not an integer", v)
	}
	return next.Interface(), nil
}
