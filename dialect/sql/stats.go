package sql

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/aggstore/dialect"
)

type actionKey struct{}

// WithAction returns a context whose statements are attributed to the given
// action kind, such as "InsertRoot" or "DeleteAll".
func WithAction(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, actionKey{}, kind)
}

// ActionFrom returns the action kind set by WithAction, or "".
func ActionFrom(ctx context.Context) string {
	kind, _ := ctx.Value(actionKey{}).(string)
	return kind
}

// Statement describes one executed statement.
type Statement struct {
	// Action is the kind of the aggregate action that issued the
	// statement. It is empty for reads and raw statements.
	Action   string
	Query    string
	Args     []any
	Duration time.Duration
	Err      error
}

// SlowQueryHook is called for every statement slower than the threshold.
type SlowQueryHook func(context.Context, Statement)

// QueryStats accumulates statement counters. It is safe for concurrent use.
type QueryStats struct {
	queries, execs atomic.Int64
	slow, errors   atomic.Int64
	elapsed        atomic.Int64

	mu      sync.Mutex
	actions map[string]int64
}

func (s *QueryStats) add(st Statement, query, slow bool) {
	if query {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.elapsed.Add(int64(st.Duration))
	if st.Err != nil {
		s.errors.Add(1)
	}
	if slow {
		s.slow.Add(1)
	}
	if st.Action == "" {
		return
	}
	s.mu.Lock()
	if s.actions == nil {
		s.actions = make(map[string]int64)
	}
	s.actions[st.Action]++
	s.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	s.mu.Lock()
	actions := maps.Clone(s.actions)
	s.mu.Unlock()
	return StatsSnapshot{
		Queries:  s.queries.Load(),
		Execs:    s.execs.Load(),
		Duration: time.Duration(s.elapsed.Load()),
		Slow:     s.slow.Load(),
		Errors:   s.errors.Load(),
		Actions:  actions,
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
	// Actions counts statements per action kind.
	Actions map[string]int64
}

// String formats the counters followed by the per-action counts in
// name order.
func (s StatsSnapshot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "queries=%d execs=%d duration=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Slow, s.Errors)
	for _, k := range slices.Sorted(maps.Keys(s.Actions)) {
		fmt.Fprintf(&sb, " %s=%d", k, s.Actions[k])
	}
	return sb.String()
}

// StatsDriver is a Driver counting the statements it executes, inside and
// outside transactions.
type StatsDriver struct {
	dialect.Driver
	stats     QueryStats
	threshold time.Duration
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// It defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.threshold = d }
}

// WithSlowQueryHook sets the function called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.hook = hook }
}

// WithSlowQueryLog logs slow statements at warn level.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, st Statement) {
		logger.WarnContext(ctx, "slow statement",
			"action", st.Action,
			"duration", st.Duration,
			"sql", st.Query,
			"args", st.Args,
		)
	})
}

// NewStatsDriver returns a StatsDriver wrapping drv.
//
//	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger))
//	tpl, _ := aggstore.NewTemplate(stats, model)
//	...
//	fmt.Println(stats.QueryStats().Stats())
//	// queries=4 execs=9 duration=3ms slow=0 errors=0 Insert=6 InsertRoot=2 UpdateRoot=1
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, threshold: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of the driver.
func (d *StatsDriver) QueryStats() *QueryStats { return &d.stats }

// Query implements the dialect.ExecQuerier interface.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, args, true, func() error { return d.Driver.Query(ctx, query, args, v) })
}

// Exec implements the dialect.ExecQuerier interface.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, args, false, func() error { return d.Driver.Exec(ctx, query, args, v) })
}

// Tx starts a transaction whose statements are counted by d.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, drv: d}, nil
}

func (d *StatsDriver) observe(ctx context.Context, query string, args any, isQuery bool, run func() error) error {
	start := time.Now()
	err := run()
	argv, _ := args.([]any)
	st := Statement{Action: ActionFrom(ctx), Query: query, Args: argv, Duration: time.Since(start), Err: err}
	slow := st.Duration > d.threshold
	d.stats.add(st, isQuery, slow)
	if slow && d.hook != nil {
		d.hook(ctx, st)
	}
	return err
}

type statsTx struct {
	dialect.Tx
	drv *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.drv.observe(ctx, query, args, true, func() error { return tx.Tx.Query(ctx, query, args, v) })
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.drv.observe(ctx, query, args, false, func() error { return tx.Tx.Exec(ctx, query, args, v) })
}

// DebugDriver is a Driver logging every statement at debug level, tagged
// with the action kind that issued it.
type DebugDriver struct {
	dialect.Driver
	log *slog.Logger
}

// NewDebugDriver returns a DebugDriver wrapping drv. A nil logger means
// slog.Default().
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, log: logger}
}

func debugAttrs(ctx context.Context, query string, args any) []any {
	attrs := []any{"sql", query, "args", args}
	if kind := ActionFrom(ctx); kind != "" {
		attrs = append(attrs, "action", kind)
	}
	return attrs
}

// Query implements the dialect.ExecQuerier interface.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "query", debugAttrs(ctx, query, args)...)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec implements the dialect.ExecQuerier interface.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.log.DebugContext(ctx, "exec", debugAttrs(ctx, query, args)...)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction whose statements and outcome are logged.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.log.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &debugTx{Tx: tx, log: d.log}, nil
}

type debugTx struct {
	dialect.Tx
	log *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx query", debugAttrs(ctx, query, args)...)
	return tx.Tx.Query(ctx, query, args, v)
}

func (tx *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.log.DebugContext(ctx, "tx exec", debugAttrs(ctx, query, args)...)
	return tx.Tx.Exec(ctx, query, args, v)
}

func (tx *debugTx) Commit() error {
	tx.log.Debug("commit transaction")
	return tx.Tx.Commit()
}

func (tx *debugTx) Rollback() error {
	tx.log.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*debugTx)(nil)
)
