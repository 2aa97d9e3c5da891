package convert

import (
	"strings"
)

// Row gives access to the columns of one result row.
type Row interface {
	// Value returns the value of the named column, or a *ColumnError when
	// the row has no such column.
	Value(column string) (any, error)
	// Columns returns the column names in result order.
	Columns() []string
}

// MapRow is a Row over a column list and its values. Lookups match column
// names exactly first, then ignoring case.
type MapRow struct {
	columns []string
	values  map[string]any
	folded  map[string]string
}

// NewRow returns a row over columns and values. The slices are copied.
func NewRow(columns []string, values []any) *MapRow {
	r := &MapRow{
		columns: append([]string(nil), columns...),
		values:  make(map[string]any, len(columns)),
		folded:  make(map[string]string, len(columns)),
	}
	for i, c := range columns {
		r.values[c] = values[i]
		if _, ok := r.folded[strings.ToLower(c)]; !ok {
			r.folded[strings.ToLower(c)] = c
		}
	}
	return r
}

// Value implements Row.
func (r *MapRow) Value(column string) (any, error) {
	if v, ok := r.values[column]; ok {
		return v, nil
	}
	if c, ok := r.folded[strings.ToLower(column)]; ok {
		return r.values[c], nil
	}
	return nil, &ColumnError{Column: column, Available: r.Columns()}
}

// Columns implements Row.
func (r *MapRow) Columns() []string {
	return append([]string(nil), r.columns...)
}

type prefixed struct {
	Row
	prefix string
}

// Prefixed returns a view of r in which column "name" reads r's column
// prefix+"name". An empty prefix returns r.
func Prefixed(r Row, prefix string) Row {
	if prefix == "" {
		return r
	}
	if p, ok := r.(prefixed); ok {
		return prefixed{Row: p.Row, prefix: p.prefix + prefix}
	}
	return prefixed{Row: r, prefix: prefix}
}

func (p prefixed) Value(column string) (any, error) {
	return p.Row.Value(p.prefix + column)
}

func (p prefixed) Columns() []string {
	var cols []string
	for _, c := range p.Row.Columns() {
		if len(c) >= len(p.prefix) && strings.EqualFold(c[:len(p.prefix)], p.prefix) {
			cols = append(cols, c[len(p.prefix):])
		}
	}
	return cols
}
