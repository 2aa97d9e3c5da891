package main

import (
	"fmt"

	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/schema/edge"
	"github.com/syssam/aggstore/schema/field"
)

// Cart is the aggregate root of the demo.
//
//	Cart (cart)                 id (ULID), version
//	├── prefs     column        msgpack encoded
//	├── shipping  embedded      ship_ prefix
//	├── lines     list          Line has none
//	└── coupons   map[string]   Coupon has none
type Cart struct {
	ID       string
	Version  int64
	Owner    string
	State    State
	Prefs    Prefs
	Shipping Address
	Lines    []*Line
	Coupons  map[string]*Coupon
}

// Prefs is stored in a single column.
type Prefs struct {
	Currency string `msgpack:"currency"`
	GiftWrap bool   `msgpack:"gift_wrap"`
}

type Address struct {
	Street string
	City   string
}

type Line struct {
	SKU      string
	Quantity int
	Price    float64
}

type Coupon struct {
	Percent int
}

// Total returns the price of the lines after the best coupon.
func (c *Cart) Total() float64 {
	var sum float64
	for _, l := range c.Lines {
		sum += float64(l.Quantity) * l.Price
	}
	best := 0
	for _, cp := range c.Coupons {
		best = max(best, cp.Percent)
	}
	return sum * float64(100-best) / 100
}

// State is stored by name.
type State int

const (
	Open State = iota + 1
	CheckedOut
	Abandoned
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case CheckedOut:
		return "CHECKED_OUT"
	case Abandoned:
		return "ABANDONED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func newModel(naming schema.NamingStrategy) (*schema.Model, error) {
	m := schema.NewModel(schema.WithNamingStrategy(naming))
	err := m.Register(
		schema.Define[Address](
			field.Value("street", func(a *Address) *string { return &a.Street }),
			field.Value("city", func(a *Address) *string { return &a.City }),
		),
		schema.Define[Line](
			field.Value("sku", func(l *Line) *string { return &l.SKU }),
			field.Value("quantity", func(l *Line) *int { return &l.Quantity }),
			field.Value("price", func(l *Line) *float64 { return &l.Price }),
		),
		schema.Define[Coupon](
			field.Value("percent", func(c *Coupon) *int { return &c.Percent }),
		),
		schema.Define[Cart](
			field.ID("id", func(c *Cart) *string { return &c.ID }, field.ULID()),
			field.Version("version", func(c *Cart) *int64 { return &c.Version }),
			field.Value("owner", func(c *Cart) *string { return &c.Owner }),
			field.Value("state", func(c *Cart) *State { return &c.State }),
			field.Value("prefs", func(c *Cart) *Prefs { return &c.Prefs }),
			edge.Embedded("shipping", func(c *Cart) *Address { return &c.Shipping }, edge.Prefix("ship_")),
			edge.List("lines", func(c *Cart) *[]*Line { return &c.Lines }),
			edge.Map("coupons", func(c *Cart) *map[string]*Coupon { return &c.Coupons }),
		),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newConverter() *convert.Converter {
	conv := convert.New()
	convert.RegisterEnum(conv, Open, CheckedOut, Abandoned)
	convert.RegisterMsgpack[Prefs](conv)
	return conv
}
