package aggstore_test

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/aggstore"
	"github.com/syssam/aggstore/change"
	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/dialect/sql"
	"github.com/syssam/aggstore/internal/fixture"
	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/schema/edge"
	"github.com/syssam/aggstore/schema/field"
)

// openDB opens a private in-memory database holding the given tables.
func openDB(t *testing.T, ddl []string) *stdsql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := stdsql.Open(dialect.SQLite, fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

type env struct {
	db     *stdsql.DB
	tpl    *aggstore.Template
	orders *aggstore.Repository[fixture.Order]
}

func newEnv(t *testing.T, opts ...aggstore.Option) env {
	t.Helper()
	db := openDB(t, fixture.SQLiteDDL)
	conv := convert.New()
	convert.RegisterEnum(conv, fixture.Placed, fixture.Shipped, fixture.Cancelled)
	opts = append([]aggstore.Option{aggstore.WithConverter(conv)}, opts...)
	tpl, err := aggstore.NewTemplate(sql.OpenDB(dialect.SQLite, db), fixture.Model(), opts...)
	require.NoError(t, err)
	orders, err := aggstore.NewRepository[fixture.Order](tpl)
	require.NoError(t, err)
	return env{db: db, tpl: tpl, orders: orders}
}

func (e env) rows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func skus(o *fixture.Order) []string {
	var s []string
	for _, it := range o.Items {
		s = append(s, it.SKU)
	}
	return s
}

// TestRoundTrip tests that a saved aggregate loads back at every level.
func TestRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	o := fixture.NewOrder()
	require.NoError(t, e.orders.Save(ctx, o))
	require.NotZero(t, o.ID)
	assert.Equal(t, int64(1), o.Version)
	assert.NotZero(t, o.Shipment.ID)
	assert.NotZero(t, o.Items[0].ID)

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "ada", got.Customer)
	assert.Equal(t, fixture.Placed, got.Status)
	assert.Equal(t, o.Address, got.Address)
	require.NotNil(t, got.Shipment)
	assert.Equal(t, *o.Shipment, *got.Shipment)
	require.NotNil(t, got.Invoice)
	assert.Equal(t, "INV-1", got.Invoice.Number)
	assert.Equal(t, []string{"A-1", "B-2"}, skus(got))
	assert.Equal(t, o.Items[1].ID, got.Items[1].ID)
	require.Len(t, got.Items[0].Notes, 1)
	assert.Equal(t, "gift", got.Items[0].Notes[0].Text)
	assert.Empty(t, got.Items[1].Notes)
	require.Contains(t, got.Tags, "color")
	tag := got.Tags["color"]
	assert.Equal(t, "Color", tag.Label)
	require.Len(t, tag.Values, 2)
	assert.Equal(t, "red", tag.Values[0].Value)
	assert.Equal(t, "blue", tag.Values[1].Value)

	assert.Equal(t, 2, e.rows(t, "line_item"))
	assert.Equal(t, 2, e.rows(t, "tag_value"))
}

// TestUpdateReplacesAssociations tests that an update rewrites the child
// rows to match the in-memory aggregate.
func TestUpdateReplacesAssociations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	o := fixture.NewOrder()
	require.NoError(t, e.orders.Save(ctx, o))
	keptID := o.Items[0].ID

	o.Status = fixture.Shipped
	o.Invoice = nil
	o.Items = []*fixture.LineItem{o.Items[0], {SKU: "C-3", Quantity: 5}}
	o.Items[0].Notes = append(o.Items[0].Notes, &fixture.Note{Text: "fragile"})
	o.Tags["size"] = &fixture.Tag{Label: "Size", Values: []*fixture.TagValue{{Value: "xl"}}}
	delete(o.Tags, "color")
	require.NoError(t, e.orders.Save(ctx, o))
	assert.Equal(t, int64(2), o.Version)

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, fixture.Shipped, got.Status)
	assert.Nil(t, got.Invoice)
	assert.Equal(t, []string{"A-1", "C-3"}, skus(got))
	assert.Equal(t, keptID, got.Items[0].ID)
	assert.Len(t, got.Items[0].Notes, 2)
	assert.NotContains(t, got.Tags, "color")
	require.Contains(t, got.Tags, "size")
	assert.Equal(t, "xl", got.Tags["size"].Values[0].Value)

	assert.Equal(t, 0, e.rows(t, "invoice"))
	assert.Equal(t, 2, e.rows(t, "line_item"))
	assert.Equal(t, 2, e.rows(t, "note"))
	assert.Equal(t, 1, e.rows(t, "tag_value"))
}

// TestOptimisticLocking tests that stale copies can neither be saved nor
// deleted.
func TestOptimisticLocking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	o := fixture.NewOrder()
	require.NoError(t, e.orders.Save(ctx, o))

	a, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	b, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)

	a.Customer = "grace"
	require.NoError(t, e.orders.Save(ctx, a))

	b.Customer = "linus"
	err = e.orders.Save(ctx, b)
	require.Error(t, err)
	assert.True(t, aggstore.IsOptimisticLockFailure(err))
	assert.True(t, aggstore.IsMutationError(err))
	assert.Equal(t, int64(1), b.Version, "version is restored")

	err = e.orders.Delete(ctx, b)
	assert.ErrorIs(t, err, aggstore.ErrOptimisticLock)

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "grace", got.Customer)
	assert.Equal(t, []string{"A-1", "B-2"}, skus(got), "the failed save is rolled back")

	require.NoError(t, e.orders.Delete(ctx, a))
	ok, err := e.orders.Exists(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestDelete tests that deletes remove the aggregate with all child rows.
func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	first, second := fixture.NewOrder(), fixture.NewOrder()
	require.NoError(t, e.orders.Save(ctx, first))
	require.NoError(t, e.orders.Save(ctx, second))

	require.NoError(t, e.orders.DeleteByID(ctx, first.ID))
	ok, err := e.orders.Exists(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = e.orders.Get(ctx, first.ID)
	assert.True(t, aggstore.IsNotFound(err))
	n, err := e.orders.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	for table, want := range map[string]int{"shipment": 1, "invoice": 1, "line_item": 2, "note": 1, "tag": 1, "tag_value": 2} {
		assert.Equal(t, want, e.rows(t, table), table)
	}

	require.NoError(t, e.orders.DeleteByID(ctx, first.ID), "deleting an absent aggregate")

	require.NoError(t, e.orders.DeleteAll(ctx))
	n, err = e.orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	for _, table := range []string{"orders", "shipment", "invoice", "line_item", "note", "tag", "tag_value"} {
		assert.Zero(t, e.rows(t, table), table)
	}
}

// TestFind tests the multi-aggregate loads.
func TestFind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	var ids []any
	for _, name := range []string{"a", "b", "c"} {
		o := fixture.NewOrder()
		o.Customer = name
		require.NoError(t, e.orders.Save(ctx, o))
		ids = append(ids, o.ID)
	}

	all, err := e.orders.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := e.orders.FindAllByID(ctx, ids[0], ids[2], int64(999))
	require.NoError(t, err)
	require.Len(t, some, 2)
	var names []string
	for _, o := range some {
		names = append(names, o.Customer)
		assert.Len(t, o.Items, 2)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, names)

	none, err := e.orders.FindAllByID(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)

	page, err := e.orders.FindAllPage(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Customer)
	assert.Equal(t, "c", page[1].Customer)

	missing, err := e.orders.Find(ctx, int64(999))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// TestWithTx tests commit, rollback and nesting of transactions.
func TestWithTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	boom := errors.New("boom")
	err := e.tpl.WithTx(ctx, func(tx *aggstore.Template) error {
		if err := e.orders.WithTx(tx).Save(ctx, fixture.NewOrder()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	n, err := e.orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rolled back")

	err = e.tpl.WithTx(ctx, func(tx *aggstore.Template) error {
		repo := e.orders.WithTx(tx)
		for range 2 {
			if err := repo.Save(ctx, fixture.NewOrder()); err != nil {
				return err
			}
		}
		return tx.WithTx(ctx, func(*aggstore.Template) error { return nil })
	})
	assert.ErrorIs(t, err, aggstore.ErrTxStarted)

	require.NoError(t, e.tpl.WithTx(ctx, func(tx *aggstore.Template) error {
		return e.orders.WithTx(tx).Save(ctx, fixture.NewOrder())
	}))
	n, err = e.orders.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestEvents tests the events raised around saves, deletes and loads.
func TestEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Sequence", func(t *testing.T) {
		t.Parallel()
		var seen []string
		rec := aggstore.ListenerFunc(func(_ context.Context, ev aggstore.Event) error {
			seen = append(seen, fmt.Sprintf("%s %v %d", ev.Type, ev.ID, len(ev.Actions)))
			return nil
		})
		e := newEnv(t, aggstore.WithListener(rec))
		o := fixture.NewOrder()
		require.NoError(t, e.orders.Save(ctx, o))
		_, err := e.orders.Get(ctx, o.ID)
		require.NoError(t, err)
		require.NoError(t, e.orders.Delete(ctx, o))

		id := o.ID
		assert.Equal(t, []string{
			"BeforeConvert <nil> 0",
			"BeforeSave <nil> 9",
			fmt.Sprintf("AfterSave %d 9", id),
			fmt.Sprintf("AfterLoad %d 0", id),
			fmt.Sprintf("BeforeDelete %d 7", id),
			fmt.Sprintf("AfterDelete %d 7", id),
		}, seen)
	})

	t.Run("Veto", func(t *testing.T) {
		t.Parallel()
		denied := errors.New("denied")
		veto := aggstore.On(aggstore.BeforeSave, aggstore.ListenerFunc(func(_ context.Context, ev aggstore.Event) error {
			for _, a := range ev.Actions {
				if ins, ok := a.(*change.Insert); ok && ins.Path.String() == "invoice" {
					return denied
				}
			}
			return nil
		}))
		e := newEnv(t, aggstore.WithListener(veto))
		err := e.orders.Save(ctx, fixture.NewOrder())
		assert.ErrorIs(t, err, denied)
		assert.Zero(t, e.rows(t, "orders"))

		o := fixture.NewOrder()
		o.Invoice = nil
		require.NoError(t, e.orders.Save(ctx, o))
		assert.Equal(t, 1, e.rows(t, "orders"))
	})

	t.Run("String", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "AfterLoad", aggstore.AfterLoad.String())
		assert.Equal(t, "BeforeSave|BeforeDelete", (aggstore.BeforeSave | aggstore.BeforeDelete).String())
		assert.Equal(t, "EventType(0)", aggstore.EventType(0).String())
	})
}

type (
	Cart struct {
		ID    uuid.UUID
		Owner string
		Items []*CartItem
	}
	CartItem struct {
		ID   string
		Name string
	}
)

// TestGeneratedIDs tests identifiers assigned by generators before the
// aggregate is written.
func TestGeneratedIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openDB(t, []string{
		`CREATE TABLE "cart" ("id" TEXT PRIMARY KEY, "owner" TEXT NOT NULL)`,
		`CREATE TABLE "cart_item" ("id" TEXT PRIMARY KEY, "name" TEXT NOT NULL, "cart" TEXT NOT NULL, "cart_key" INTEGER NOT NULL)`,
	})
	m := schema.NewModel().MustRegister(
		schema.Define[CartItem](
			field.ID("id", func(i *CartItem) *string { return &i.ID }, field.ULID()),
			field.Value("name", func(i *CartItem) *string { return &i.Name }),
		),
		schema.Define[Cart](
			field.ID("id", func(c *Cart) *uuid.UUID { return &c.ID }, field.UUID()),
			field.Value("owner", func(c *Cart) *string { return &c.Owner }),
			edge.List("items", func(c *Cart) *[]*CartItem { return &c.Items }),
		),
	)
	tpl, err := aggstore.NewTemplate(sql.OpenDB(dialect.SQLite, db), m)
	require.NoError(t, err)
	carts, err := aggstore.NewRepository[Cart](tpl)
	require.NoError(t, err)

	c := &Cart{Owner: "ada", Items: []*CartItem{{Name: "apple"}, {Name: "pear"}}}
	require.NoError(t, carts.Save(ctx, c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Len(t, c.Items[0].ID, 26)
	assert.NotEqual(t, c.Items[0].ID, c.Items[1].ID)

	first := c.Items[0].ID
	c.Items = append(c.Items, &CartItem{Name: "plum"})
	require.NoError(t, carts.Save(ctx, c))

	got, err := carts.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	require.Len(t, got.Items, 3)
	assert.Equal(t, first, got.Items[0].ID, "existing ids are kept")
	assert.NotEmpty(t, got.Items[2].ID)
	assert.Equal(t, "plum", got.Items[2].Name)
}

type (
	Bin struct {
		ID    int64
		Slots map[int]*Slot
	}
	Slot struct {
		Label string
	}
)

// TestIdentifierOnlyRoot tests saving a root whose only column is its
// identifier.
func TestIdentifierOnlyRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openDB(t, []string{
		`CREATE TABLE "bin" ("id" INTEGER PRIMARY KEY AUTOINCREMENT)`,
		`CREATE TABLE "slot" ("label" TEXT NOT NULL, "bin" INTEGER NOT NULL, "bin_key" INTEGER NOT NULL)`,
	})
	m := schema.NewModel().MustRegister(
		schema.Define[Slot](field.Value("label", func(s *Slot) *string { return &s.Label })),
		schema.Define[Bin](
			field.ID("id", func(b *Bin) *int64 { return &b.ID }),
			edge.Map("slots", func(b *Bin) *map[int]*Slot { return &b.Slots }),
		),
	)
	tpl, err := aggstore.NewTemplate(sql.OpenDB(dialect.SQLite, db), m)
	require.NoError(t, err)
	bins, err := aggstore.NewRepository[Bin](tpl)
	require.NoError(t, err)

	b := &Bin{Slots: map[int]*Slot{1: {Label: "a"}}}
	require.NoError(t, bins.Save(ctx, b))
	require.NotZero(t, b.ID)

	b.Slots[2] = &Slot{Label: "b"}
	require.NoError(t, bins.Save(ctx, b), "update of an identifier-only row")
	got, err := bins.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Slots, 2)
	assert.Equal(t, "b", got.Slots[2].Label)

	for _, stmt := range []string{`DELETE FROM "slot"`, `DELETE FROM "bin"`} {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	err = bins.Save(ctx, b)
	require.Error(t, err)
	assert.True(t, aggstore.IsOptimisticLockFailure(err), "got %v", err)

	b.ID = 0
	require.NoError(t, bins.Save(ctx, b))
	n, err := bins.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

// TestRepositoryNotRegistered tests that repositories require a registered type.
func TestRepositoryNotRegistered(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	_, err := aggstore.NewRepository[Cart](e.tpl)
	assert.ErrorIs(t, err, schema.ErrNotRegistered)
	assert.Equal(t, dialect.SQLite, e.tpl.Dialect().Name())
}
