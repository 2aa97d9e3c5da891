package access

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/dialect/sql"
)

// Operations executes statements with named parameters (":name").
type Operations interface {
	// Update executes a statement and returns the number of affected rows.
	Update(ctx context.Context, query string, params map[string]any) (int64, error)
	// Insert executes an insert. When key is set, the generated value of
	// that column is returned, normalized to a single value.
	Insert(ctx context.Context, query string, params map[string]any, key string) (int64, any, error)
	// Query calls fn for every row of the result.
	Query(ctx context.Context, query string, params map[string]any, fn func(convert.Row) error) error
	// QueryScalar returns the first column of the first row, or nil when
	// the result is empty.
	QueryScalar(ctx context.Context, query string, params map[string]any) (any, error)
}

// NamedOperations implements Operations over a dialect.ExecQuerier. Named
// parameters are compiled with sqlx: slice values bound inside IN (...)
// are expanded and placeholders are rebound to the dialect's style.
type NamedOperations struct {
	drv     dialect.ExecQuerier
	dialect dialect.Dialect
}

// NewNamedOperations returns Operations executing on drv.
func NewNamedOperations(drv dialect.ExecQuerier, d dialect.Dialect) *NamedOperations {
	return &NamedOperations{drv: drv, dialect: d}
}

func (o *NamedOperations) compile(query string, params map[string]any) (string, []any, error) {
	if params == nil {
		params = map[string]any{}
	}
	q, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, fmt.Errorf("access: bind %q: %w", query, err)
	}
	if q, args, err = sqlx.In(q, args...); err != nil {
		return "", nil, fmt.Errorf("access: expand %q: %w", query, err)
	}
	if o.dialect.BindVar() == dialect.BindDollar {
		q = sqlx.Rebind(sqlx.DOLLAR, q)
	}
	return q, args, nil
}

// Update implements Operations.
func (o *NamedOperations) Update(ctx context.Context, query string, params map[string]any) (int64, error) {
	q, args, err := o.compile(query, params)
	if err != nil {
		return 0, err
	}
	var res sql.Result
	if err := o.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Insert implements Operations. Dialects returning generated keys expect
// query to carry a RETURNING clause for key; the others report the key
// through the driver's last insert id.
func (o *NamedOperations) Insert(ctx context.Context, query string, params map[string]any, key string) (int64, any, error) {
	if key != "" && o.dialect.ReturnsGeneratedKeys() {
		var (
			n  int64
			id any
		)
		err := o.Query(ctx, query, params, func(r convert.Row) error {
			n++
			if id != nil {
				return nil
			}
			v, err := r.Value(key)
			id = v
			return err
		})
		return n, id, err
	}
	q, args, err := o.compile(query, params)
	if err != nil {
		return 0, nil, err
	}
	var res sql.Result
	if err := o.drv.Exec(ctx, q, args, &res); err != nil {
		return 0, nil, err
	}
	n, err := res.RowsAffected()
	if err != nil || key == "" {
		return n, nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return n, nil, fmt.Errorf("access: generated key %q: %w", key, err)
	}
	return n, id, nil
}

// Query implements Operations. The result is read completely and closed
// before fn is called, so fn may issue further statements on the same
// connection.
func (o *NamedOperations) Query(ctx context.Context, query string, params map[string]any, fn func(convert.Row) error) error {
	q, args, err := o.compile(query, params)
	if err != nil {
		return err
	}
	rows := &sql.Rows{}
	if err := o.drv.Query(ctx, q, args, rows); err != nil {
		return err
	}
	var buf []convert.Row
	err = sql.ScanEach(rows, func(columns []string, values []any) error {
		buf = append(buf, convert.NewRow(columns, values))
		return nil
	})
	if err != nil {
		return err
	}
	for _, r := range buf {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// QueryScalar implements Operations.
func (o *NamedOperations) QueryScalar(ctx context.Context, query string, params map[string]any) (any, error) {
	var v any
	found := false
	err := o.Query(ctx, query, params, func(r convert.Row) error {
		if found {
			return nil
		}
		found = true
		cols := r.Columns()
		if len(cols) == 0 {
			return nil
		}
		var err error
		v, err = r.Value(cols[0])
		return err
	})
	return v, err
}

var _ Operations = (*NamedOperations)(nil)
