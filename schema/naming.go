package schema

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// NamingStrategy derives table and column names.
type NamingStrategy interface {
	// TableName returns the table of an entity type without explicit table.
	TableName(e *Entity) string
	// ColumnName returns the column of a scalar property without explicit column.
	ColumnName(p *Property) string
	// ReverseColumnName returns the column referencing the parent entity of
	// the rows at the end of the path.
	ReverseColumnName(p Path) string
	// KeyColumnName returns the column holding list indexes or map keys.
	KeyColumnName(p Path) string
}

// DefaultNaming snake-cases Go names. Back-references are named after the
// table of the id-defining parent, key columns after the owning table with
// a "_key" suffix.
type DefaultNaming struct {
	// PluralTables pluralizes table names.
	PluralTables bool
	// TablePrefix is prepended to every table name.
	TablePrefix string
}

// TableName implements NamingStrategy.
func (n DefaultNaming) TableName(e *Entity) string {
	name := inflect.Underscore(e.Name)
	if n.PluralTables {
		name = inflect.Pluralize(name)
	}
	return n.TablePrefix + name
}

// ColumnName implements NamingStrategy.
func (n DefaultNaming) ColumnName(p *Property) string {
	return strings.ToLower(inflect.Underscore(p.Name))
}

// ReverseColumnName implements NamingStrategy.
func (n DefaultNaming) ReverseColumnName(p Path) string {
	return p.IDDefiningParent().TableName()
}

// KeyColumnName implements NamingStrategy.
func (n DefaultNaming) KeyColumnName(p Path) string {
	return p.Parent().TableName() + "_key"
}
