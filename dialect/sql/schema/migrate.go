package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
	"ariga.io/atlas/sql/sqltool"

	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/dialect/sql"
)

type (
	// Differ computes the changes turning the current schema into the
	// desired one.
	Differ interface {
		Diff(current, desired *schema.Schema) ([]schema.Change, error)
	}

	// DiffFunc allows using an ordinary function as a Differ.
	DiffFunc func(current, desired *schema.Schema) ([]schema.Change, error)

	// DiffHook wraps a Differ. Hooks can inspect or rewrite the changes
	// before they are planned.
	DiffHook func(Differ) Differ
)

// Diff calls f(current, desired).
func (f DiffFunc) Diff(current, desired *schema.Schema) ([]schema.Change, error) {
	return f(current, desired)
}

// MigrateOption configures an Atlas.
type MigrateOption func(*Atlas)

// WithSchemaName sets the database schema to inspect. The connection's
// current schema is used by default.
func WithSchemaName(name string) MigrateOption {
	return func(a *Atlas) {
		a.schema = name
	}
}

// WithDiffHook adds hooks around the schema differ.
func WithDiffHook(hooks ...DiffHook) MigrateOption {
	return func(a *Atlas) {
		a.hooks = append(a.hooks, hooks...)
	}
}

// WithDiffOptions passes options to the atlas differ.
func WithDiffOptions(opts ...schema.DiffOption) MigrateOption {
	return func(a *Atlas) {
		a.diffOpts = append(a.diffOpts, opts...)
	}
}

// WithValidation sets the options of the safety check run on every diff.
func WithValidation(opts ...ValidateOption) MigrateOption {
	return func(a *Atlas) {
		a.validate = append(a.validate, opts...)
	}
}

// WithDir sets the migration directory NamedDiff writes to.
func WithDir(dir migrate.Dir) MigrateOption {
	return func(a *Atlas) {
		a.dir = dir
	}
}

// WithFormatter sets the formatter of migration files. It defaults to the
// format matching the directory type.
func WithFormatter(fmt migrate.Formatter) MigrateOption {
	return func(a *Atlas) {
		a.fmt = fmt
	}
}

// WithLogger sets the logger reporting applied changes.
func WithLogger(l *slog.Logger) MigrateOption {
	return func(a *Atlas) {
		a.log = l
	}
}

// Atlas creates and migrates the tables of a model using atlas.
type Atlas struct {
	drv      *sql.Driver
	schema   string
	hooks    []DiffHook
	diffOpts []schema.DiffOption
	validate []ValidateOption
	dir      migrate.Dir
	fmt      migrate.Formatter
	log      *slog.Logger

	atlas migrate.Driver
}

// NewMigrate returns an Atlas operating on drv. The database is not
// contacted before the first diff.
func NewMigrate(drv *sql.Driver, opts ...MigrateOption) (*Atlas, error) {
	a := &Atlas{drv: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	if a.dir != nil && a.fmt == nil {
		switch a.dir.(type) {
		case *sqltool.GooseDir:
			a.fmt = sqltool.GooseFormatter
		case *sqltool.DBMateDir:
			a.fmt = sqltool.DBMateFormatter
		case *sqltool.FlywayDir:
			a.fmt = sqltool.FlywayFormatter
		case *sqltool.LiquibaseDir:
			a.fmt = sqltool.LiquibaseFormatter
		default:
			a.fmt = sqltool.GolangMigrateFormatter
		}
	}
	return a, nil
}

// Create brings the database in line with the given tables. Tables not in
// the list are left alone.
func (a *Atlas) Create(ctx context.Context, tables ...*schema.Table) error {
	drv, changes, err := a.changes(ctx, tables)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	if err := drv.ApplyChanges(ctx, changes); err != nil {
		return fmt.Errorf("schema: applying changes: %w", err)
	}
	a.log.InfoContext(ctx, "schema migrated", "changes", len(changes), "tables", len(tables))
	return nil
}

// Plan returns the statements Create would execute.
func (a *Atlas) Plan(ctx context.Context, tables ...*schema.Table) ([]string, error) {
	plan, err := a.plan(ctx, "aggstore", tables)
	if err != nil {
		return nil, err
	}
	stmts := make([]string, len(plan.Changes))
	for i, c := range plan.Changes {
		stmts[i] = c.Cmd
	}
	return stmts, nil
}

// NamedDiff writes the changes Create would apply as a new migration file
// in the directory set by WithDir. It returns migrate.ErrNoPlan when the
// database is up to date.
func (a *Atlas) NamedDiff(ctx context.Context, name string, tables ...*schema.Table) error {
	if a.dir == nil {
		return errors.New("schema: no migration directory configured")
	}
	if err := migrate.Validate(a.dir); err != nil {
		return fmt.Errorf("schema: validating migration directory: %w", err)
	}
	plan, err := a.plan(ctx, name, tables)
	if err != nil {
		return err
	}
	if len(plan.Changes) == 0 {
		return migrate.ErrNoPlan
	}
	return migrate.NewPlanner(a.atlas, a.dir, migrate.PlanFormat(a.fmt)).WritePlan(plan)
}

func (a *Atlas) plan(ctx context.Context, name string, tables []*schema.Table) (*migrate.Plan, error) {
	drv, changes, err := a.changes(ctx, tables)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return &migrate.Plan{Name: name}, nil
	}
	plan, err := drv.PlanChanges(ctx, name, changes)
	if err != nil {
		return nil, fmt.Errorf("schema: planning changes: %w", err)
	}
	return plan, nil
}

// changes inspects the tables in the database and diffs them against the
// desired ones.
func (a *Atlas) changes(ctx context.Context, tables []*schema.Table) (migrate.Driver, []schema.Change, error) {
	drv, err := a.open()
	if err != nil {
		return nil, nil, err
	}
	if result := ValidateSchema(tables); result.HasErrors() {
		return nil, nil, fmt.Errorf("schema: invalid tables:\n%s", result)
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	current, err := drv.InspectSchema(ctx, a.schema, &schema.InspectOptions{Tables: names})
	if err != nil {
		return nil, nil, fmt.Errorf("schema: inspecting %q: %w", a.schema, err)
	}
	desired := &schema.Schema{Name: current.Name, Attrs: current.Attrs}
	desired.AddTables(tables...)
	if result := ValidateDiff(current.Tables, tables, a.validate...); result.HasErrors() {
		return nil, nil, fmt.Errorf("schema: unsafe changes:\n%s", result)
	} else if result.HasWarnings() {
		a.log.WarnContext(ctx, "schema changes need attention", "warnings", result.String())
	}
	var differ Differ = DiffFunc(func(current, desired *schema.Schema) ([]schema.Change, error) {
		return drv.SchemaDiff(current, desired, a.diffOpts...)
	})
	for i := len(a.hooks) - 1; i >= 0; i-- {
		differ = a.hooks[i](differ)
	}
	changes, err := differ.Diff(current, desired)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: diffing: %w", err)
	}
	return drv, changes, nil
}

func (a *Atlas) open() (migrate.Driver, error) {
	if a.atlas != nil {
		return a.atlas, nil
	}
	var drv migrate.Driver
	d, err := dialect.Get(a.drv.Dialect())
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	switch d.Name() {
	case dialect.SQLite:
		drv, err = sqlite.Open(a.drv.DB())
	case dialect.Postgres:
		drv, err = postgres.Open(a.drv.DB())
	case dialect.MySQL:
		drv, err = mysql.Open(a.drv.DB())
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", d.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("schema: opening atlas driver: %w", err)
	}
	a.atlas = drv
	return drv, nil
}
