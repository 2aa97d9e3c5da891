package change

import (
	"fmt"
	"strings"

	"github.com/syssam/aggstore/schema"
)

// Op is the operation an AggregateChange performs.
type Op uint

// Operations.
const (
	OpInsert Op = 1 << iota
	OpUpdate
	OpDelete
	OpDeleteAll
)

// OpSave matches inserts and updates.
const OpSave = OpInsert | OpUpdate

// Is reports whether o matches any of the given operations.
func (i Op) Is(o Op) bool { return i&o != 0 }

var opNames = map[Op]string{
	OpInsert:    "OpInsert",
	OpUpdate:    "OpUpdate",
	OpDelete:    "OpDelete",
	OpDeleteAll: "OpDeleteAll",
}

func (i Op) String() string {
	if s, ok := opNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", uint(i))
}

// Action is one write operation planned for an aggregate. The set of
// actions is closed: *InsertRoot, *Insert, *UpdateRoot, *Update, *Delete,
// *DeleteAll, *DeleteRoot and *DeleteAllRoot.
type Action interface {
	fmt.Stringer
	action()
}

type (
	// InsertRoot inserts the aggregate root.
	InsertRoot struct {
		Type   *schema.Entity
		Entity any
		// GeneratedID is set by the interpreter.
		GeneratedID any
	}

	// Insert inserts one entity reachable from the root through Path.
	Insert struct {
		Entity any
		Path   schema.Path
		// DependsOn is the index of the action that inserts or updates the
		// parent entity.
		DependsOn int
		// Qualifier is the element's list index or map key, nil for sets
		// and single-valued associations.
		Qualifier any
		// GeneratedID is set by the interpreter.
		GeneratedID any
	}

	// UpdateRoot updates the aggregate root row.
	UpdateRoot struct {
		Type   *schema.Entity
		Entity any
		// PreviousVersion is the version the row is expected to have; nil
		// for unversioned entities.
		PreviousVersion any
	}

	// Update updates a non-root entity by its own identifier.
	Update struct {
		Entity any
		Path   schema.Path
	}

	// Delete removes the rows at Path belonging to one aggregate.
	Delete struct {
		RootID any
		Path   schema.Path
	}

	// DeleteAll removes the rows at Path for every aggregate of the type.
	DeleteAll struct {
		Path schema.Path
	}

	// DeleteRoot removes the aggregate root row.
	DeleteRoot struct {
		Type *schema.Entity
		ID   any
		// Entity is the root instance when known; it may be nil.
		Entity          any
		PreviousVersion any
	}

	// DeleteAllRoot removes every root row of the type.
	DeleteAllRoot struct {
		Type *schema.Entity
	}
)

func (*InsertRoot) action()    {}
func (*Insert) action()        {}
func (*UpdateRoot) action()    {}
func (*Update) action()        {}
func (*Delete) action()        {}
func (*DeleteAll) action()     {}
func (*DeleteRoot) action()    {}
func (*DeleteAllRoot) action() {}

func (a *InsertRoot) String() string { return "InsertRoot(" + a.Type.Name + ")" }

func (a *Insert) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Insert(%s, %s", a.Path, a.Path.Entity().Name)
	if a.Qualifier != nil {
		fmt.Fprintf(&sb, ", key=%v", a.Qualifier)
	}
	fmt.Fprintf(&sb, ", dependsOn=%d)", a.DependsOn)
	return sb.String()
}

func (a *UpdateRoot) String() string { return "UpdateRoot(" + a.Type.Name + ")" }

func (a *Update) String() string { return fmt.Sprintf("Update(%s, %s)", a.Path, a.Path.Entity().Name) }

func (a *Delete) String() string { return fmt.Sprintf("Delete(%s, root=%v)", a.Path, a.RootID) }

func (a *DeleteAll) String() string { return fmt.Sprintf("DeleteAll(%s)", a.Path) }

func (a *DeleteRoot) String() string { return fmt.Sprintf("DeleteRoot(%s, id=%v)", a.Type.Name, a.ID) }

func (a *DeleteAllRoot) String() string { return "DeleteAllRoot(" + a.Type.Name + ")" }

// KindOf returns the name of the action type, such as "InsertRoot".
func KindOf(a Action) string {
	switch a.(type) {
	case *InsertRoot:
		return "InsertRoot"
	case *Insert:
		return "Insert"
	case *UpdateRoot:
		return "UpdateRoot"
	case *Update:
		return "Update"
	case *Delete:
		return "Delete"
	case *DeleteAll:
		return "DeleteAll"
	case *DeleteRoot:
		return "DeleteRoot"
	case *DeleteAllRoot:
		return "DeleteAllRoot"
	default:
		return fmt.Sprintf("%T", a)
	}
}

// PathOf returns the path an action operates on. Root actions return the
// empty path of their type.
func PathOf(a Action) schema.Path {
	switch a := a.(type) {
	case *InsertRoot:
		return schema.RootPath(a.Type)
	case *Insert:
		return a.Path
	case *UpdateRoot:
		return schema.RootPath(a.Type)
	case *Update:
		return a.Path
	case *Delete:
		return a.Path
	case *DeleteAll:
		return a.Path
	case *DeleteRoot:
		return schema.RootPath(a.Type)
	case *DeleteAllRoot:
		return schema.RootPath(a.Type)
	default:
		panic(fmt.Sprintf("change: unexpected action %T", a))
	}
}

// AggregateChange is the ordered action sequence of one save or delete
// call. Actions reference each other by index into Actions.
type AggregateChange struct {
	Op   Op
	Type *schema.Entity
	// Entity is the root instance, nil for delete-all and deletes by id.
	Entity  any
	Actions []Action
}

// Add appends a and returns its index.
func (c *AggregateChange) Add(a Action) int {
	c.Actions = append(c.Actions, a)
	return len(c.Actions) - 1
}

// Len returns the number of actions.
func (c *AggregateChange) Len() int { return len(c.Actions) }

// Parent returns the action an Insert depends on.
func (c *AggregateChange) Parent(a *Insert) Action {
	return c.Actions[a.DependsOn]
}

// Snapshot returns a copy of the action list.
func (c *AggregateChange) Snapshot() []Action {
	return append([]Action(nil), c.Actions...)
}
