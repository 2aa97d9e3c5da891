package schema

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqltool"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/aggstore"
	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/dialect/sql"
	"github.com/syssam/aggstore/internal/fixture"
	aggschema "github.com/syssam/aggstore/schema"
)

func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	drv, err := sql.Open(dialect.SQLite, "file:"+name+"?mode=memory&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func fixtureTables(t *testing.T, conv *convert.Converter) []*schema.Table {
	t.Helper()
	e, err := aggschema.Of[fixture.Order](fixture.Model())
	require.NoError(t, err)
	tables, err := Tables(dialect.SQLite, conv, e)
	require.NoError(t, err)
	return tables
}

func tableExists(t *testing.T, drv *sql.Driver, name string) bool {
	t.Helper()
	var n int
	err := drv.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

// TestMigrate_Create tests creating the tables of an aggregate and storing
// an aggregate in them.
func TestMigrate_Create(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	conv := convert.New()
	convert.RegisterEnum(conv, fixture.Placed, fixture.Shipped, fixture.Cancelled)
	tables := fixtureTables(t, conv)

	m, err := NewMigrate(drv)
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, tables...))
	for _, tbl := range tables {
		assert.True(t, tableExists(t, drv, tbl.Name), tbl.Name)
	}

	stmts, err := m.Plan(ctx, tables...)
	require.NoError(t, err)
	assert.Empty(t, stmts, "created tables need no changes")

	tpl, err := aggstore.NewTemplate(drv, fixture.Model(), aggstore.WithConverter(conv))
	require.NoError(t, err)
	orders, err := aggstore.NewRepository[fixture.Order](tpl)
	require.NoError(t, err)
	o := fixture.NewOrder()
	require.NoError(t, orders.Save(ctx, o))
	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Address, got.Address)
	assert.Equal(t, *o.Shipment, *got.Shipment)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "gift", got.Items[0].Notes[0].Text)
	assert.Equal(t, "blue", got.Tags["color"].Values[1].Value)
}

// TestMigrate_Plan tests that planning leaves the database untouched.
func TestMigrate_Plan(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	m, err := NewMigrate(drv)
	require.NoError(t, err)

	stmts, err := m.Plan(ctx, fixtureTables(t, nil)...)
	require.NoError(t, err)
	require.NotEmpty(t, stmts)
	all := strings.Join(stmts, "\n")
	assert.Contains(t, all, "CREATE TABLE `orders`")
	assert.Contains(t, all, "AUTOINCREMENT")
	assert.Contains(t, all, "CREATE TABLE `tag_value`")
	assert.False(t, tableExists(t, drv, "orders"))
}

// TestMigrate_DiffHook tests hooks rewriting the computed changes.
func TestMigrate_DiffHook(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	var seen []string
	m, err := NewMigrate(drv, WithDiffHook(func(next Differ) Differ {
		return DiffFunc(func(current, desired *schema.Schema) ([]schema.Change, error) {
			changes, err := next.Diff(current, desired)
			if err != nil {
				return nil, err
			}
			var kept []schema.Change
			for _, c := range changes {
				add, ok := c.(*schema.AddTable)
				if !ok {
					continue
				}
				seen = append(seen, add.T.Name)
				if add.T.Name == "orders" {
					kept = append(kept, c)
				}
			}
			return kept, nil
		})
	}))
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, fixtureTables(t, nil)[0]))
	assert.Equal(t, []string{"orders"}, seen)
	assert.True(t, tableExists(t, drv, "orders"))

	require.NoError(t, m.Create(ctx, fixtureTables(t, nil)...))
	assert.False(t, tableExists(t, drv, "shipment"), "hook dropped the change")
}

// TestMigrate_Unsafe tests that destructive changes are refused.
func TestMigrate_Unsafe(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	_, err := drv.DB().ExecContext(ctx, "CREATE TABLE `invoice` (`number` text NOT NULL, `orders` integer NOT NULL, `legacy` text NULL)")
	require.NoError(t, err)

	m, err := NewMigrate(drv)
	require.NoError(t, err)
	err = m.Create(ctx, fixtureTables(t, nil)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice.legacy: column will be dropped")
	assert.False(t, tableExists(t, drv, "orders"), "nothing applied")
}

// TestMigrate_NamedDiff tests writing migration files.
func TestMigrate_NamedDiff(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	p := t.TempDir()
	d, err := migrate.NewLocalDir(p)
	require.NoError(t, err)

	m, err := NewMigrate(drv, WithDir(d))
	require.NoError(t, err)
	require.NoError(t, m.NamedDiff(ctx, "init", fixtureTables(t, nil)...))
	files, err := filepath.Glob(filepath.Join(p, "*_init.up.sql"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.FileExists(t, filepath.Join(p, migrate.HashFileName))
	assert.False(t, tableExists(t, drv, "orders"))

	m, err = NewMigrate(drv)
	require.NoError(t, err)
	assert.Error(t, m.NamedDiff(ctx, "init", fixtureTables(t, nil)...), "no directory")
}

// TestMigrate_Formatter tests the default formatter of each directory type.
func TestMigrate_Formatter(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	var m *Atlas
	for _, tt := range []struct {
		dir migrate.Dir
		fmt migrate.Formatter
	}{
		{&migrate.LocalDir{}, sqltool.GolangMigrateFormatter},
		{&sqltool.GolangMigrateDir{}, sqltool.GolangMigrateFormatter},
		{&sqltool.GooseDir{}, sqltool.GooseFormatter},
		{&sqltool.DBMateDir{}, sqltool.DBMateFormatter},
		{&sqltool.FlywayDir{}, sqltool.FlywayFormatter},
		{&sqltool.LiquibaseDir{}, sqltool.LiquibaseFormatter},
		{struct{ migrate.Dir }{}, sqltool.GolangMigrateFormatter},
	} {
		m, err = NewMigrate(sql.OpenDB(dialect.SQLite, db), WithDir(tt.dir))
		require.NoError(t, err)
		require.Equal(t, tt.fmt, m.fmt)
	}

	m, err = NewMigrate(sql.OpenDB(dialect.SQLite, db), WithDir(&migrate.LocalDir{}), WithFormatter(migrate.DefaultFormatter))
	require.NoError(t, err)
	require.Equal(t, migrate.DefaultFormatter, m.fmt)
}

// TestMigrate_UnsupportedDialect tests drivers atlas cannot inspect.
func TestMigrate_UnsupportedDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	m, err := NewMigrate(sql.OpenDB("generic", db))
	require.NoError(t, err)
	err = m.Create(context.Background(), fixtureTables(t, nil)...)
	assert.ErrorContains(t, err, `unsupported dialect "generic"`)
	require.NoError(t, mock.ExpectationsWereMet())
}
