package dialect

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for aggregate persistence.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// BindVar is the placeholder style a dialect uses for positional arguments.
type BindVar uint8

const (
	// BindQuestion renders every placeholder as "?".
	BindQuestion BindVar = iota
	// BindDollar renders placeholders as "$1", "$2", ...
	BindDollar
)

// Dialect describes the SQL flavor of a database: how identifiers are
// rendered, how arguments are bound and how generated keys come back.
type Dialect interface {
	// Name returns one of the dialect names above, or "generic".
	Name() string
	// IdentifierProcessing returns the quoting and casing rules for identifiers.
	IdentifierProcessing() IdentifierProcessing
	// BindVar returns the placeholder style.
	BindVar() BindVar
	// ReturnsGeneratedKeys reports whether generated keys are read through
	// an INSERT ... RETURNING clause instead of the driver's last insert id.
	ReturnsGeneratedKeys() bool
	// EmptyInsert renders an INSERT statement without columns.
	EmptyInsert(table string) string
	// LimitOffset renders a pagination clause. A negative limit means no limit.
	LimitOffset(limit, offset int64) string
}

// Option configures a dialect returned by Get.
type Option func(*base)

// WithIdentifierProcessing overrides the identifier processing of a dialect.
func WithIdentifierProcessing(p IdentifierProcessing) Option {
	return func(b *base) {
		b.ip = p
	}
}

// Get returns the dialect registered under the given name. Names are matched
// by prefix so that wrapped driver names such as "sqlite3" or "pgx" resolve.
func Get(name string, opts ...Option) (Dialect, error) {
	var d *base
	switch {
	case strings.HasPrefix(name, Postgres), name == "pgx":
		d = &base{name: Postgres, ip: IdentifierProcessing{Quoting: QuotingANSI}, bind: BindDollar, returning: true}
	case strings.HasPrefix(name, MySQL):
		d = &base{name: MySQL, ip: IdentifierProcessing{Quoting: QuotingBacktick}, bind: BindQuestion}
	case strings.HasPrefix(name, SQLite):
		d = &base{name: SQLite, ip: IdentifierProcessing{Quoting: QuotingANSI}, bind: BindQuestion}
	case name == "" || name == "generic":
		d = &base{name: "generic", ip: IdentifierProcessing{Quoting: QuotingNone}, bind: BindQuestion}
	default:
		return nil, fmt.Errorf("dialect: unsupported dialect %q", name)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// MustGet is like Get but panics on unknown dialects.
func MustGet(name string, opts ...Option) Dialect {
	d, err := Get(name, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Generic returns a dialect that neither quotes nor changes the case of
// identifiers and binds with "?". It is useful for tests and logging.
func Generic(opts ...Option) Dialect {
	return MustGet("generic", opts...)
}

type base struct {
	name      string
	ip        IdentifierProcessing
	bind      BindVar
	returning bool
}

func (b *base) Name() string                               { return b.name }
func (b *base) IdentifierProcessing() IdentifierProcessing { return b.ip }
func (b *base) BindVar() BindVar                           { return b.bind }
func (b *base) ReturnsGeneratedKeys() bool                 { return b.returning }

func (b *base) EmptyInsert(table string) string {
	switch b.name {
	case Postgres, SQLite:
		return "INSERT INTO " + table + " DEFAULT VALUES"
	default:
		return "INSERT INTO " + table + " () VALUES ()"
	}
}

func (b *base) LimitOffset(limit, offset int64) string {
	var sb strings.Builder
	switch {
	case limit >= 0:
		sb.WriteString("LIMIT ")
		sb.WriteString(strconv.FormatInt(limit, 10))
	case offset > 0 && b.name == MySQL:
		// MySQL has no OFFSET without LIMIT.
		sb.WriteString("LIMIT 18446744073709551615")
	case offset > 0 && b.name == SQLite:
		sb.WriteString("LIMIT -1")
	}
	if offset > 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("OFFSET ")
		sb.WriteString(strconv.FormatInt(offset, 10))
	}
	return sb.String()
}
