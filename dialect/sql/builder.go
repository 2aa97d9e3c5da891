package sql

import (
	"strings"

	"github.com/syssam/aggstore/dialect"
)

// DialectBuilder creates statement builders that render identifiers with the
// dialect's IdentifierProcessing. Builders never inline values; conditions
// reference named parameters (":name") that are bound at execution time.
type DialectBuilder struct {
	d dialect.Dialect
}

// Dialect returns a DialectBuilder for the given dialect.
func Dialect(d dialect.Dialect) *DialectBuilder {
	return &DialectBuilder{d: d}
}

// Ident processes a single identifier.
func (b *DialectBuilder) Ident(name string) string {
	return b.d.IdentifierProcessing().Process(name)
}

// Select starts a SELECT statement.
func (b *DialectBuilder) Select(columns ...*ColumnRef) *Selector {
	return &Selector{b: b, columns: columns}
}

// Insert starts an INSERT statement.
func (b *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{b: b, table: table}
}

// Update starts an UPDATE statement.
func (b *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{b: b, table: table}
}

// Delete starts a DELETE statement.
func (b *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{b: b, table: table}
}

// ColumnRef is a column optionally qualified by a table (or table alias)
// and optionally aliased. A raw expression skips identifier processing.
type ColumnRef struct {
	table string
	name  string
	alias string
	raw   string
}

// C returns an unqualified column reference.
func C(name string) *ColumnRef { return &ColumnRef{name: name} }

// Raw returns a column expression rendered verbatim, such as COUNT(*).
func Raw(expr string) *ColumnRef { return &ColumnRef{raw: expr} }

// Of qualifies the column with a table name or alias.
func (c *ColumnRef) Of(table string) *ColumnRef {
	c.table = table
	return c
}

// As sets the column alias.
func (c *ColumnRef) As(alias string) *ColumnRef {
	c.alias = alias
	return c
}

func (c *ColumnRef) render(ip dialect.IdentifierProcessing, withAlias bool) string {
	var s string
	switch {
	case c.raw != "":
		s = c.raw
	case c.table != "":
		s = ip.Process(c.table) + "." + ip.Process(c.name)
	default:
		s = ip.Process(c.name)
	}
	if withAlias && c.alias != "" {
		s += " AS " + ip.Process(c.alias)
	}
	return s
}

// Predicate is a boolean SQL condition.
type Predicate struct {
	render func(dialect.IdentifierProcessing) string
}

// EQ renders "column = :param".
func EQ(c *ColumnRef, param string) *Predicate {
	return &Predicate{render: func(ip dialect.IdentifierProcessing) string {
		return c.render(ip, false) + " = :" + param
	}}
}

// NotNull renders "column IS NOT NULL".
func NotNull(c *ColumnRef) *Predicate {
	return &Predicate{render: func(ip dialect.IdentifierProcessing) string {
		return c.render(ip, false) + " IS NOT NULL"
	}}
}

// In renders "column IN (:param)". The parameter is expected to hold a
// slice, expanded at execution time.
func In(c *ColumnRef, param string) *Predicate {
	return &Predicate{render: func(ip dialect.IdentifierProcessing) string {
		return c.render(ip, false) + " IN (:" + param + ")"
	}}
}

// InSelect renders "column IN (SELECT ...)".
func InSelect(c *ColumnRef, s *Selector) *Predicate {
	return &Predicate{render: func(ip dialect.IdentifierProcessing) string {
		return c.render(ip, false) + " IN (" + s.String() + ")"
	}}
}

// And joins the predicates with AND. Nil predicates are skipped.
func And(preds ...*Predicate) *Predicate {
	return &Predicate{render: func(ip dialect.IdentifierProcessing) string {
		parts := make([]string, 0, len(preds))
		for _, p := range preds {
			if p != nil {
				parts = append(parts, p.render(ip))
			}
		}
		return strings.Join(parts, " AND ")
	}}
}

type join struct {
	table, alias string
	left, right  *ColumnRef
}

// Selector builds SELECT statements.
type Selector struct {
	b       *DialectBuilder
	columns []*ColumnRef
	table   string
	alias   string
	joins   []join
	where   *Predicate
	order   []*ColumnRef
	limit   int64
	offset  int64
	paged   bool
}

// From sets the source table.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// As sets the alias of the source table.
func (s *Selector) As(alias string) *Selector {
	s.alias = alias
	return s
}

// AppendSelect adds columns to the selection.
func (s *Selector) AppendSelect(columns ...*ColumnRef) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// LeftJoin adds "LEFT OUTER JOIN table alias ON left = right".
func (s *Selector) LeftJoin(table, alias string, left, right *ColumnRef) *Selector {
	s.joins = append(s.joins, join{table: table, alias: alias, left: left, right: right})
	return s
}

// Where sets the WHERE condition.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = p
	return s
}

// OrderBy appends ordering columns.
func (s *Selector) OrderBy(columns ...*ColumnRef) *Selector {
	s.order = append(s.order, columns...)
	return s
}

// Page sets limit and offset. A negative limit means no limit.
func (s *Selector) Page(limit, offset int64) *Selector {
	s.limit, s.offset, s.paged = limit, offset, true
	return s
}

// String renders the statement.
func (s *Selector) String() string {
	ip := s.b.d.IdentifierProcessing()
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, c := range s.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.render(ip, true))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(ip.Process(s.table))
	if s.alias != "" {
		sb.WriteString(" ")
		sb.WriteString(ip.Process(s.alias))
	}
	for _, j := range s.joins {
		sb.WriteString(" LEFT OUTER JOIN ")
		sb.WriteString(ip.Process(j.table))
		sb.WriteString(" ")
		sb.WriteString(ip.Process(j.alias))
		sb.WriteString(" ON ")
		sb.WriteString(j.left.render(ip, false))
		sb.WriteString(" = ")
		sb.WriteString(j.right.render(ip, false))
	}
	if s.where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.where.render(ip))
	}
	if len(s.order) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, c := range s.order {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.render(ip, false))
		}
	}
	if s.paged {
		if clause := s.b.d.LimitOffset(s.limit, s.offset); clause != "" {
			sb.WriteString(" ")
			sb.WriteString(clause)
		}
	}
	return sb.String()
}

// InsertBuilder builds INSERT statements. Every column is bound to the
// named parameter of the same name.
type InsertBuilder struct {
	b         *DialectBuilder
	table     string
	columns   []string
	returning string
}

// Columns appends the inserted columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Returning adds a RETURNING clause for the given column.
func (i *InsertBuilder) Returning(column string) *InsertBuilder {
	i.returning = column
	return i
}

// String renders the statement.
func (i *InsertBuilder) String() string {
	ip := i.b.d.IdentifierProcessing()
	var sb strings.Builder
	if len(i.columns) == 0 {
		sb.WriteString(i.b.d.EmptyInsert(ip.Process(i.table)))
	} else {
		sb.WriteString("INSERT INTO ")
		sb.WriteString(ip.Process(i.table))
		sb.WriteString(" (")
		for j, c := range i.columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ip.Process(c))
		}
		sb.WriteString(") VALUES (")
		for j, c := range i.columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(":")
			sb.WriteString(c)
		}
		sb.WriteString(")")
	}
	if i.returning != "" {
		sb.WriteString(" RETURNING ")
		sb.WriteString(ip.Process(i.returning))
	}
	return sb.String()
}

// UpdateBuilder builds UPDATE statements.
type UpdateBuilder struct {
	b       *DialectBuilder
	table   string
	columns []string
	where   *Predicate
}

// Set appends columns bound to the named parameter of the same name.
func (u *UpdateBuilder) Set(columns ...string) *UpdateBuilder {
	u.columns = append(u.columns, columns...)
	return u
}

// Where sets the WHERE condition.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	u.where = p
	return u
}

// String renders the statement.
func (u *UpdateBuilder) String() string {
	ip := u.b.d.IdentifierProcessing()
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(ip.Process(u.table))
	sb.WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ip.Process(c))
		sb.WriteString(" = :")
		sb.WriteString(c)
	}
	if u.where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(u.where.render(ip))
	}
	return sb.String()
}

// DeleteBuilder builds DELETE statements.
type DeleteBuilder struct {
	b     *DialectBuilder
	table string
	where *Predicate
}

// Where sets the WHERE condition.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	d.where = p
	return d
}

// String renders the statement.
func (d *DeleteBuilder) String() string {
	ip := d.b.d.IdentifierProcessing()
	s := "DELETE FROM " + ip.Process(d.table)
	if d.where != nil {
		s += " WHERE " + d.where.render(ip)
	}
	return s
}
