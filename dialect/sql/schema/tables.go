package schema

import (
	"fmt"
	"reflect"
	"time"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/dialect"
	aggschema "github.com/syssam/aggstore/schema"
)

var (
	int64Type   = reflect.TypeFor[int64]()
	float64Type = reflect.TypeFor[float64]()
	stringType  = reflect.TypeFor[string]()
	boolType    = reflect.TypeFor[bool]()
	bytesType   = reflect.TypeFor[[]byte]()
	timeType    = reflect.TypeFor[time.Time]()
)

// Tables returns the tables storing the aggregates rooted at the given
// entity types. Every table follows the tables it references.
//
// An entity's table holds its columns, the back-reference to the
// id-defining parent and one key column per list or map between the two.
// Tables shared by several paths get the union of the path columns, which
// are then nullable and carry no foreign key.
func Tables(name string, conv *convert.Converter, roots ...*aggschema.Entity) ([]*schema.Table, error) {
	if d, err := dialect.Get(name); err == nil {
		name = d.Name()
	}
	if conv == nil {
		conv = convert.New()
	}
	b := &builder{dialect: name, conv: conv, byName: make(map[string]*table)}
	for _, e := range roots {
		if err := b.aggregate(e); err != nil {
			return nil, err
		}
	}
	tables := make([]*schema.Table, 0, len(b.order))
	for _, t := range b.order {
		if t.uses > 1 {
			for _, c := range t.pathCols {
				c.Type.Null = true
			}
			t.T.ForeignKeys = nil
		}
		tables = append(tables, t.T)
	}
	return tables, nil
}

type table struct {
	T        *schema.Table
	uses     int
	pathCols []*schema.Column
}

func (t *table) column(name string) *schema.Column { return findColumn(t.T, name) }

type builder struct {
	dialect string
	conv    *convert.Converter
	order   []*table
	byName  map[string]*table
}

func (b *builder) aggregate(root *aggschema.Entity) error {
	if _, err := b.entity(root); err != nil {
		return err
	}
	for _, p := range root.Paths() {
		if err := b.path(p); err != nil {
			return err
		}
	}
	return nil
}

// entity returns the table of e, adding e's own columns.
func (b *builder) entity(e *aggschema.Entity) (*table, error) {
	t, ok := b.byName[e.TableName()]
	if !ok {
		t = &table{T: schema.NewTable(e.TableName())}
		b.byName[e.TableName()] = t
		b.order = append(b.order, t)
	}
	t.uses++
	for _, c := range e.Columns() {
		if t.column(c.Name) != nil {
			continue
		}
		null := c.Property.Type.Kind() == reflect.Pointer || len(c.Embedded) > 0
		if c.Property.ID || c.Property.Version {
			null = false
		}
		col, err := b.newColumn(e, c.Name, c.Property.Type, null)
		if err != nil {
			return nil, err
		}
		if c.Property.ID && c.Property.Generator == nil && b.conv.StoreType(c.Property.Type) == int64Type {
			col.AddAttrs(b.autoIncrement())
		}
		t.T.AddColumns(col)
		if c.Property.ID && t.T.PrimaryKey == nil {
			t.T.SetPrimaryKey(schema.NewPrimaryKey(col))
		}
	}
	return t, nil
}

// path adds the table of the entity at the end of p with its
// back-reference and key columns.
func (b *builder) path(p aggschema.Path) error {
	e := p.Entity()
	t, err := b.entity(e)
	if err != nil {
		return err
	}
	parent := p.IDDefiningParent()
	owner := parent.Entity()
	if !owner.HasID() {
		return aggschema.NoIdentifier(owner, "create table "+e.TableName())
	}
	id := owner.ID()
	back, err := b.pathColumn(t, e, p.ReverseColumn(), id.Type)
	if err != nil {
		return err
	}
	var qualified []aggschema.Path
	for q := p; q.Len() > parent.Len(); q = q.Parent() {
		if q.IsEntity() && q.IsQualified() {
			qualified = append(qualified, q)
		}
	}
	// Outermost qualifier first.
	for i := len(qualified) - 1; i >= 0; i-- {
		q := qualified[i]
		if _, err := b.pathColumn(t, e, q.KeyColumn(), q.Leaf().KeyType); err != nil {
			return err
		}
	}
	pt := b.byName[owner.TableName()]
	if ref := pt.column(id.ColumnName()); ref != nil && back != nil {
		fk := schema.NewForeignKey(fmt.Sprintf("%s_%s", e.TableName(), back.Name)).
			AddColumns(back).
			SetRefTable(pt.T).
			AddRefColumns(ref)
		t.T.AddForeignKeys(fk)
	}
	return nil
}

// pathColumn adds a NOT NULL column owned by a path. It returns nil when
// the column already exists.
func (b *builder) pathColumn(t *table, e *aggschema.Entity, name string, typ reflect.Type) (*schema.Column, error) {
	if t.column(name) != nil {
		return nil, nil
	}
	col, err := b.newColumn(e, name, typ, false)
	if err != nil {
		return nil, err
	}
	t.T.AddColumns(col)
	t.pathCols = append(t.pathCols, col)
	return col, nil
}

func (b *builder) newColumn(e *aggschema.Entity, name string, typ reflect.Type, null bool) (*schema.Column, error) {
	st := b.conv.StoreType(typ)
	if st == nil {
		return nil, &aggschema.MappingError{Entity: e.Name, Err: fmt.Errorf("%w: no column type for %s (%s)", aggschema.ErrInvalidConfiguration, name, typ)}
	}
	ct, err := b.columnType(st)
	if err != nil {
		return nil, &aggschema.MappingError{Entity: e.Name, Err: fmt.Errorf("%w: column %s: %w", aggschema.ErrInvalidConfiguration, name, err)}
	}
	return &schema.Column{Name: name, Type: &schema.ColumnType{Type: ct, Null: null}}, nil
}

func (b *builder) autoIncrement() schema.Attr {
	switch b.dialect {
	case dialect.MySQL:
		return &mysql.AutoIncrement{}
	case dialect.Postgres:
		return &postgres.Identity{Generation: "BY DEFAULT"}
	default:
		return &sqlite.AutoIncrement{}
	}
}

// columnType maps a store type to the column type of the dialect.
func (b *builder) columnType(t reflect.Type) (schema.Type, error) {
	switch t {
	case int64Type:
		if b.dialect == dialect.SQLite {
			return &schema.IntegerType{T: "integer"}, nil
		}
		return &schema.IntegerType{T: "bigint"}, nil
	case stringType:
		if b.dialect == dialect.MySQL {
			return &schema.StringType{T: "varchar", Size: 255}, nil
		}
		return &schema.StringType{T: "text"}, nil
	case boolType:
		if b.dialect == dialect.Postgres {
			return &schema.BoolType{T: "boolean"}, nil
		}
		return &schema.BoolType{T: "bool"}, nil
	case float64Type:
		switch b.dialect {
		case dialect.Postgres:
			return &schema.FloatType{T: "double precision"}, nil
		case dialect.MySQL:
			return &schema.FloatType{T: "double"}, nil
		}
		return &schema.FloatType{T: "real"}, nil
	case bytesType:
		if b.dialect == dialect.Postgres {
			return &schema.BinaryType{T: "bytea"}, nil
		}
		return &schema.BinaryType{T: "blob"}, nil
	case timeType:
		switch b.dialect {
		case dialect.Postgres:
			return &schema.TimeType{T: "timestamp with time zone"}, nil
		case dialect.MySQL:
			return &schema.TimeType{T: "timestamp"}, nil
		}
		return &schema.TimeType{T: "datetime"}, nil
	}
	if t.Kind() == reflect.Slice && b.dialect == dialect.Postgres {
		st := b.conv.StoreType(t.Elem())
		if st == nil || st.Kind() == reflect.Slice {
			return nil, fmt.Errorf("unsupported array element %s", t.Elem())
		}
		elem, err := b.columnType(st)
		if err != nil {
			return nil, err
		}
		return &postgres.ArrayType{Type: elem, T: typeName(elem) + "[]"}, nil
	}
	return nil, fmt.Errorf("unsupported store type %s", t)
}

func typeName(t schema.Type) string {
	switch t := t.(type) {
	case *schema.IntegerType:
		return t.T
	case *schema.StringType:
		return t.T
	case *schema.BoolType:
		return t.T
	case *schema.FloatType:
		return t.T
	case *schema.BinaryType:
		return t.T
	case *schema.TimeType:
		return t.T
	case *postgres.ArrayType:
		return t.T
	}
	return fmt.Sprintf("%T", t)
}
