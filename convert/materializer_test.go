package convert_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/internal/fixture"
	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/schema/field"
)

type element struct {
	key  any
	cols []string
	vals []any
}

// memResolver serves collection rows keyed by path and parent segment, and
// records the object paths it was asked for.
type memResolver struct {
	m     *convert.Materializer
	rows  map[string][]element
	calls []string
}

func parentKey(path string, parent convert.ObjectPath) string {
	leaf, _ := parent.Leaf()
	return fmt.Sprintf("%s@%v/%v", path, leaf.ID, leaf.Key)
}

func (r *memResolver) FindAllByPath(ctx context.Context, parent convert.ObjectPath, path schema.Path) ([]schema.Element, error) {
	k := parentKey(path.String(), parent)
	r.calls = append(r.calls, fmt.Sprintf("%s depth=%d", k, parent.Len()))
	var elems []schema.Element
	for _, el := range r.rows[k] {
		v, err := r.m.ReadElement(ctx, path.Entity(), convert.NewRow(el.cols, el.vals), parent, path, el.key)
		if err != nil {
			return nil, err
		}
		elems = append(elems, schema.Element{Key: el.key, Value: v})
	}
	return elems, nil
}

var orderColumns = []string{
	"id", "version", "customer", "status", "address_street", "address_city",
	"shipment_id", "shipment_carrier", "invoice_number", "invoice_orders",
}

func newMaterializer(t *testing.T) (*convert.Materializer, *memResolver, *schema.Entity) {
	t.Helper()
	conv := convert.New()
	convert.RegisterEnum(conv, fixture.Placed, fixture.Shipped, fixture.Cancelled)
	r := &memResolver{rows: map[string][]element{
		"items@1/<nil>": {
			{key: 1, cols: []string{"id", "sku", "quantity", "orders_key"}, vals: []any{int64(11), "B-2", int64(1), int64(1)}},
			{key: 0, cols: []string{"id", "sku", "quantity", "orders_key"}, vals: []any{int64(10), "A-1", int64(2), int64(0)}},
		},
		"items.notes@10/0": {
			{cols: []string{"text"}, vals: []any{"gift"}},
		},
		"tags@1/<nil>": {
			{key: "color", cols: []string{"label", "orders_key"}, vals: []any{"Color", "color"}},
		},
		"tags.values@<nil>/color": {
			{key: 0, cols: []string{"value"}, vals: []any{"red"}},
			{key: 1, cols: []string{"value"}, vals: []any{"blue"}},
		},
	}}
	m := convert.NewMaterializer(conv, r)
	r.m = m
	e, err := schema.Of[fixture.Order](fixture.Model())
	require.NoError(t, err)
	return m, r, e
}

func TestMaterializerRead(t *testing.T) {
	m, r, e := newMaterializer(t)
	row := convert.NewRow(orderColumns, []any{
		int64(1), int64(2), "ada", "PLACED", "1 Loop Rd", "Springfield",
		int64(5), "ups", "INV-1", int64(1),
	})

	got, err := m.Read(context.Background(), e, row)
	require.NoError(t, err)
	assert.Equal(t, &fixture.Order{
		ID:       1,
		Version:  2,
		Customer: "ada",
		Status:   fixture.Placed,
		Address:  fixture.Address{Street: "1 Loop Rd", City: "Springfield"},
		Shipment: &fixture.Shipment{ID: 5, Carrier: "ups"},
		Invoice:  &fixture.Invoice{Number: "INV-1"},
		Items: []*fixture.LineItem{
			{ID: 10, SKU: "A-1", Quantity: 2, Notes: []*fixture.Note{{Text: "gift"}}},
			{ID: 11, SKU: "B-2", Quantity: 1, Notes: []*fixture.Note{}},
		},
		Tags: map[string]*fixture.Tag{
			"color": {Label: "Color", Values: []*fixture.TagValue{{Value: "red"}, {Value: "blue"}}},
		},
	}, got)

	assert.Equal(t, []string{
		"items@1/<nil> depth=1",
		"items.notes@11/1 depth=2",
		"items.notes@10/0 depth=2",
		"tags@1/<nil> depth=1",
		"tags.values@<nil>/color depth=2",
	}, r.calls)
}

func TestMaterializerAbsentReferences(t *testing.T) {
	m, _, e := newMaterializer(t)
	row := convert.NewRow(orderColumns, []any{
		int64(2), int64(1), "bob", "SHIPPED", nil, nil,
		nil, nil, nil, nil,
	})
	got, err := m.Read(context.Background(), e, row)
	require.NoError(t, err)
	o := got.(*fixture.Order)
	assert.Nil(t, o.Shipment)
	assert.Nil(t, o.Invoice)
	assert.Equal(t, fixture.Shipped, o.Status)
	assert.Empty(t, o.Address.City)
	assert.Empty(t, o.Items)
	assert.NotNil(t, o.Tags)
}

func TestMaterializerMissingColumn(t *testing.T) {
	m, _, e := newMaterializer(t)
	row := convert.NewRow([]string{"id", "version", "customer"}, []any{int64(1), int64(1), "ada"})
	_, err := m.Read(context.Background(), e, row)
	require.Error(t, err)
	assert.True(t, convert.IsColumnError(err))
	var ce *convert.ColumnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "status", ce.Column)
	assert.Equal(t, []string{"id", "version", "customer"}, ce.Available)
	assert.Contains(t, err.Error(), `column "status" not found in result (available: id, version, customer)`)
}

func TestMaterializerCaseInsensitive(t *testing.T) {
	m, _, _ := newMaterializer(t)
	note, err := schema.Of[fixture.Note](fixture.Model())
	require.NoError(t, err)
	got, err := m.Read(context.Background(), note, convert.NewRow([]string{"TEXT"}, []any{"hi"}))
	require.NoError(t, err)
	assert.Equal(t, &fixture.Note{Text: "hi"}, got)
}

func TestMaterializerIdentity(t *testing.T) {
	m, _, e := newMaterializer(t)
	items := e.Paths()[2]
	require.Equal(t, "items", items.String())
	existing := &fixture.LineItem{ID: 10}
	parent := convert.ObjectPath{}.
		Push(convert.Segment{Object: &fixture.Order{ID: 1}, Entity: e, ID: int64(1), Path: schema.RootPath(e)}).
		Push(convert.Segment{Object: existing, Entity: items.Entity(), ID: int64(10), Path: items})

	row := convert.NewRow([]string{"id", "sku", "quantity"}, []any{int64(10), "A-1", int64(2)})
	got, err := m.ReadElement(context.Background(), items.Entity(), row, parent, items, 0)
	require.NoError(t, err)
	assert.Same(t, existing, got)
}

func TestMaterializerWithoutResolver(t *testing.T) {
	e, err := schema.Of[fixture.LineItem](fixture.Model())
	require.NoError(t, err)
	m := convert.NewMaterializer(convert.New(), nil)
	row := convert.NewRow([]string{"id", "sku", "quantity"}, []any{int64(10), "A-1", int64(2)})
	_, err = m.Read(context.Background(), e, row)
	assert.ErrorContains(t, err, "relation resolver")
}

type money struct {
	amount   int64
	currency string
}

func TestMaterializerConstructor(t *testing.T) {
	def := schema.Constructor(schema.Define[money](
		field.Value("amount", func(m *money) *int64 { return &m.amount }),
		field.Value("currency", func(m *money) *string { return &m.currency }),
	), func(a schema.Args) (*money, error) {
		if schema.Arg[string](a, "currency") == "" {
			return nil, fmt.Errorf("currency required")
		}
		return &money{amount: schema.Arg[int64](a, "amount"), currency: schema.Arg[string](a, "currency")}, nil
	})
	e, err := schema.Of[money](schema.NewModel().MustRegister(def))
	require.NoError(t, err)

	m := convert.NewMaterializer(convert.New(), nil)
	got, err := m.Read(context.Background(), e, convert.NewRow([]string{"amount", "currency"}, []any{int64(250), []byte("EUR")}))
	require.NoError(t, err)
	assert.Equal(t, &money{amount: 250, currency: "EUR"}, got)

	_, err = m.Read(context.Background(), e, convert.NewRow([]string{"amount", "currency"}, []any{int64(1), nil}))
	require.Error(t, err)
	assert.True(t, schema.IsMappingError(err))
}

func TestPrefixed(t *testing.T) {
	row := convert.NewRow([]string{"id", "shipment_id", "shipment_carrier"}, []any{int64(1), int64(2), "ups"})
	view := convert.Prefixed(row, "shipment_")
	v, err := view.Value("carrier")
	require.NoError(t, err)
	assert.Equal(t, "ups", v)
	assert.Equal(t, []string{"id", "carrier"}, view.Columns())

	_, err = convert.Prefixed(view, "x_").Value("y")
	var ce *convert.ColumnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "shipment_x_y", ce.Column)
	assert.Same(t, row, convert.Prefixed(row, ""))
}
