// Package fixture holds the Order aggregate shared by package tests.
//
//	Order (orders)                  id, version
//	├── address    embedded         address_ prefix
//	├── shipment   reference        Shipment has an id
//	├── invoice    reference        Invoice has none
//	├── items      list             LineItem has an id
//	│   └── notes  set              Note has none
//	└── tags       map[string]      Tag has none
//	    └── values list             TagValue has none
package fixture

import (
	"fmt"

	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/schema/edge"
	"github.com/syssam/aggstore/schema/field"
)

// Status is stored by name.
type Status int

// Order statuses.
const (
	Placed Status = iota + 1
	Shipped
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Placed:
		return "PLACED"
	case Shipped:
		return "SHIPPED"
	case Cancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type (
	Order struct {
		ID       int64
		Version  int64
		Customer string
		Status   Status
		Address  Address
		Shipment *Shipment
		Invoice  *Invoice
		Items    []*LineItem
		Tags     map[string]*Tag
	}
	Address struct {
		Street string
		City   string
	}
	Shipment struct {
		ID      int64
		Carrier string
	}
	Invoice struct {
		Number string
	}
	LineItem struct {
		ID       int64
		SKU      string
		Quantity int
		Notes    []*Note
	}
	Note struct {
		Text string
	}
	Tag struct {
		Label  string
		Values []*TagValue
	}
	TagValue struct {
		Value string
	}
)

// Definitions returns the entity definitions of the aggregate.
func Definitions() []*schema.Entity {
	return []*schema.Entity{
		schema.Define[Address](
			field.Value("street", func(a *Address) *string { return &a.Street }),
			field.Value("city", func(a *Address) *string { return &a.City }),
		),
		schema.Define[Shipment](
			field.ID("id", func(s *Shipment) *int64 { return &s.ID }),
			field.Value("carrier", func(s *Shipment) *string { return &s.Carrier }),
		),
		schema.Define[Invoice](
			field.Value("number", func(i *Invoice) *string { return &i.Number }),
		),
		schema.Define[Note](
			field.Value("text", func(n *Note) *string { return &n.Text }),
		),
		schema.Define[LineItem](
			field.ID("id", func(l *LineItem) *int64 { return &l.ID }),
			field.Value("sku", func(l *LineItem) *string { return &l.SKU }),
			field.Value("quantity", func(l *LineItem) *int { return &l.Quantity }),
			edge.Set("notes", func(l *LineItem) *[]*Note { return &l.Notes }),
		),
		schema.Define[TagValue](
			field.Value("value", func(v *TagValue) *string { return &v.Value }),
		),
		schema.Define[Tag](
			field.Value("label", func(t *Tag) *string { return &t.Label }),
			edge.List("values", func(t *Tag) *[]*TagValue { return &t.Values }),
		),
		schema.Define[Order](
			field.ID("id", func(o *Order) *int64 { return &o.ID }),
			field.Version("version", func(o *Order) *int64 { return &o.Version }),
			field.Value("customer", func(o *Order) *string { return &o.Customer }),
			field.Value("status", func(o *Order) *Status { return &o.Status }),
			edge.Embedded("address", func(o *Order) *Address { return &o.Address }, edge.Prefix("address_")),
			edge.Reference("shipment", func(o *Order) **Shipment { return &o.Shipment }),
			edge.Reference("invoice", func(o *Order) **Invoice { return &o.Invoice }),
			edge.List("items", func(o *Order) *[]*LineItem { return &o.Items }),
			edge.Map("tags", func(o *Order) *map[string]*Tag { return &o.Tags }),
		).WithTable("orders"),
	}
}

// Model returns a model with the aggregate registered under the given options.
func Model(opts ...schema.Option) *schema.Model {
	return schema.NewModel(opts...).MustRegister(Definitions()...)
}

// NewOrder returns an unsaved order populated at every level.
func NewOrder() *Order {
	return &Order{
		Customer: "ada",
		Status:   Placed,
		Address:  Address{Street: "1 Loop Rd", City: "Springfield"},
		Shipment: &Shipment{Carrier: "ups"},
		Invoice:  &Invoice{Number: "INV-1"},
		Items: []*LineItem{
			{SKU: "A-1", Quantity: 2, Notes: []*Note{{Text: "gift"}}},
			{SKU: "B-2", Quantity: 1},
		},
		Tags: map[string]*Tag{
			"color": {Label: "Color", Values: []*TagValue{{Value: "red"}, {Value: "blue"}}},
		},
	}
}

// SQLiteDDL creates the aggregate's tables.
var SQLiteDDL = []string{
	`CREATE TABLE "orders" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "version" INTEGER NOT NULL, "customer" TEXT NOT NULL, "status" TEXT NOT NULL, "address_street" TEXT, "address_city" TEXT)`,
	`CREATE TABLE "shipment" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "carrier" TEXT NOT NULL, "orders" INTEGER NOT NULL)`,
	`CREATE TABLE "invoice" ("number" TEXT NOT NULL, "orders" INTEGER NOT NULL)`,
	`CREATE TABLE "line_item" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "sku" TEXT NOT NULL, "quantity" INTEGER NOT NULL, "orders" INTEGER NOT NULL, "orders_key" INTEGER NOT NULL)`,
	`CREATE TABLE "note" ("text" TEXT NOT NULL, "line_item" INTEGER NOT NULL)`,
	`CREATE TABLE "tag" ("label" TEXT NOT NULL, "orders" INTEGER NOT NULL, "orders_key" TEXT NOT NULL)`,
	`CREATE TABLE "tag_value" ("value" TEXT NOT NULL, "orders" INTEGER NOT NULL, "orders_key" TEXT NOT NULL, "tag_key" INTEGER NOT NULL)`,
}
