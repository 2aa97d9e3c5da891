package sqlgen

import (
	"fmt"

	"github.com/syssam/aggstore/dialect/sql"
	"github.com/syssam/aggstore/schema"
)

// Named parameters bound by statements that are not column writes.
const (
	IDParam              = "id"
	IDsParam             = "ids"
	RootIDParam          = "root_id"
	PreviousVersionParam = "previous_version"
)

// Generator renders the statements of one entity type. Statements that do
// not depend on arguments are rendered once; a Generator is immutable and
// safe for concurrent use.
type Generator struct {
	entity *schema.Entity
	b      *sql.DialectBuilder

	findAll       string
	findOne       string
	findAllInList string
	update        string
	deleteByID    string
	deleteVersion string
	count         string
	exists        string
}

func newGenerator(e *schema.Entity, b *sql.DialectBuilder) *Generator {
	g := &Generator{entity: e, b: b}
	g.findAll = g.selectAll().String()
	g.count = b.Select(sql.Raw("COUNT(*)")).From(e.TableName()).String()
	if id := e.ID(); id != nil {
		table, col := e.TableName(), id.ColumnName()
		g.findOne = g.selectAll().Where(sql.EQ(sql.C(col).Of(table), IDParam)).String()
		g.findAllInList = g.selectAll().Where(sql.In(sql.C(col).Of(table), IDsParam)).String()
		g.update = g.renderUpdate()
		g.deleteByID = b.Delete(table).Where(sql.EQ(sql.C(col), IDParam)).String()
		g.exists = b.Select(sql.Raw("COUNT(*)")).From(table).Where(sql.EQ(sql.C(col), IDParam)).String()
		if v := e.Version(); v != nil {
			g.deleteVersion = b.Delete(table).Where(sql.And(
				sql.EQ(sql.C(col), IDParam),
				sql.EQ(sql.C(v.ColumnName()), PreviousVersionParam),
			)).String()
		}
	}
	return g
}

// Entity returns the entity type the statements are rendered for.
func (g *Generator) Entity() *schema.Entity { return g.entity }

func (g *Generator) requireID(op string) error {
	if g.entity.HasID() {
		return nil
	}
	return schema.NoIdentifier(g.entity, "sqlgen: "+op)
}

// selectAll returns a selector over the entity's columns and every
// single-valued association that can be joined.
func (g *Generator) selectAll() *sql.Selector {
	e := g.entity
	table := e.TableName()
	s := g.b.Select().From(table)
	for _, c := range e.Columns() {
		s.AppendSelect(sql.C(c.Name).Of(table).As(c.Name))
	}
	for _, p := range e.Paths() {
		if !p.IsJoinable() {
			continue
		}
		alias, prefix := p.TableAlias(), p.ColumnPrefix()
		target := p.Entity()
		for _, c := range target.Columns() {
			s.AppendSelect(sql.C(c.Name).Of(alias).As(prefix + c.Name))
		}
		if !target.HasID() {
			rev := p.ReverseColumn()
			s.AppendSelect(sql.C(rev).Of(alias).As(prefix + rev))
		}
		parent := p.IDDefiningParent()
		s.LeftJoin(target.TableName(), alias,
			sql.C(p.ReverseColumn()).Of(alias),
			sql.C(parent.Entity().ID().ColumnName()).Of(parent.TableAlias()),
		)
	}
	return s
}

// Insert returns the INSERT statement for the given columns. Every column is
// bound to the parameter of the same name. An empty column list renders the
// dialect's default-values form.
func (g *Generator) Insert(columns []string) string {
	return g.b.Insert(g.entity.TableName()).Columns(columns...).String()
}

// InsertReturning is like Insert with a RETURNING clause for the key column.
func (g *Generator) InsertReturning(columns []string, key string) string {
	return g.b.Insert(g.entity.TableName()).Columns(columns...).Returning(key).String()
}

func (g *Generator) renderUpdate() string {
	e := g.entity
	id := e.ID().ColumnName()
	var set []string
	for _, c := range e.Columns() {
		if c.Name != id {
			set = append(set, c.Name)
		}
	}
	if len(set) == 0 {
		// Identifier-only rows still have to report the matched row.
		set = []string{id}
	}
	where := sql.EQ(sql.C(id), IDParam)
	if v := e.Version(); v != nil {
		where = sql.And(where, sql.EQ(sql.C(v.ColumnName()), PreviousVersionParam))
	}
	return g.b.Update(e.TableName()).Set(set...).Where(where).String()
}

// Update returns the UPDATE statement setting every non-identifier column,
// or the identifier itself when the entity has no other column. Versioned
// entities are additionally matched on PreviousVersionParam.
func (g *Generator) Update() (string, error) {
	if err := g.requireID("update"); err != nil {
		return "", err
	}
	return g.update, nil
}

// FindOne selects the entity with the identifier bound to IDParam.
func (g *Generator) FindOne() (string, error) {
	if err := g.requireID("find one"); err != nil {
		return "", err
	}
	return g.findOne, nil
}

// FindAll selects every entity of the type.
func (g *Generator) FindAll() string { return g.findAll }

// FindAllInList selects the entities whose identifiers are in IDsParam.
func (g *Generator) FindAllInList() (string, error) {
	if err := g.requireID("find all in list"); err != nil {
		return "", err
	}
	return g.findAllInList, nil
}

// FindAllPage selects one page of entities ordered by identifier. A negative
// limit selects everything after offset.
func (g *Generator) FindAllPage(limit, offset int64) string {
	s := g.selectAll()
	if id := g.entity.ID(); id != nil {
		s.OrderBy(sql.C(id.ColumnName()).Of(g.entity.TableName()))
	}
	return s.Page(limit, offset).String()
}

// FindAllByProperty selects the elements of a collection or reference whose
// parent columns match the identifier parts. keyColumn, when set, is
// selected under its own name; ordered sorts by it and requires it.
func (g *Generator) FindAllByProperty(parent schema.Identifier, keyColumn string, ordered bool) (string, error) {
	if ordered && keyColumn == "" {
		return "", &schema.MappingError{
			Entity: g.entity.Name,
			Err:    fmt.Errorf("%w: ordered retrieval requires a key column", schema.ErrInvalidConfiguration),
		}
	}
	table := g.entity.TableName()
	s := g.selectAll()
	preds := make([]*sql.Predicate, 0, parent.Len())
	for _, name := range parent.Names() {
		preds = append(preds, sql.EQ(sql.C(name).Of(table), name))
	}
	if len(preds) > 0 {
		s.Where(sql.And(preds...))
	}
	if keyColumn != "" {
		s.AppendSelect(sql.C(keyColumn).Of(table).As(keyColumn))
		if ordered {
			s.OrderBy(sql.C(keyColumn).Of(table))
		}
	}
	return s.String(), nil
}

// DeleteByID deletes the root row with the identifier bound to IDParam.
func (g *Generator) DeleteByID() (string, error) {
	if err := g.requireID("delete by id"); err != nil {
		return "", err
	}
	return g.deleteByID, nil
}

// DeleteByIDAndVersion is like DeleteByID but also matches
// PreviousVersionParam.
func (g *Generator) DeleteByIDAndVersion() (string, error) {
	if err := g.requireID("delete by id and version"); err != nil {
		return "", err
	}
	if g.deleteVersion == "" {
		return "", &schema.MappingError{
			Entity: g.entity.Name,
			Err:    fmt.Errorf("%w: entity has no version property", schema.ErrInvalidConfiguration),
		}
	}
	return g.deleteVersion, nil
}

// DeleteByPath deletes the rows at the end of path p that belong to the
// aggregate whose root identifier is bound to RootIDParam. Paths deeper
// than one id-defining level nest one sub-select per level.
func (g *Generator) DeleteByPath(p schema.Path) (string, error) {
	if err := g.requireID("delete by path"); err != nil {
		return "", err
	}
	return g.b.Delete(p.TableName()).Where(g.pathCondition(p, func(c *sql.ColumnRef) *sql.Predicate {
		return sql.EQ(c, RootIDParam)
	})).String(), nil
}

// DeleteAll deletes the rows at the end of path p for every aggregate of
// the type. The empty path deletes the root table.
func (g *Generator) DeleteAll(p schema.Path) string {
	if p.IsEmpty() {
		return g.b.Delete(g.entity.TableName()).String()
	}
	return g.b.Delete(p.TableName()).Where(g.pathCondition(p, sql.NotNull)).String()
}

func (g *Generator) pathCondition(p schema.Path, root func(*sql.ColumnRef) *sql.Predicate) *sql.Predicate {
	col := sql.C(p.ReverseColumn())
	parent := p.IDDefiningParent()
	if parent.IsEmpty() {
		return root(col)
	}
	sub := g.b.Select(sql.C(parent.Entity().ID().ColumnName())).
		From(parent.TableName()).
		Where(g.pathCondition(parent, root))
	return sql.InSelect(col, sub)
}

// Count counts the rows of the entity's table.
func (g *Generator) Count() string { return g.count }

// Exists counts the rows matching IDParam.
func (g *Generator) Exists() (string, error) {
	if err := g.requireID("exists"); err != nil {
		return "", err
	}
	return g.exists, nil
}
