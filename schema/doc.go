// Package schema describes aggregates: entity types, their properties and
// the association paths between them. Descriptions are registered
// explicitly through a Model; property access goes through typed accessor
// closures built by the field and edge packages.
//
// # Quick start
//
// Describe each entity type with Define and the field and edge builders,
// then register the descriptions with a Model:
//
//	type Order struct {
//	    ID       int64
//	    Version  int64
//	    Customer string
//	    Address  Address
//	    Items    []*LineItem
//	}
//
//	m := schema.NewModel()
//	err := m.Register(
//	    schema.Define[Address](
//	        field.Value("street", func(a *Address) *string { return &a.Street }),
//	    ),
//	    schema.Define[LineItem](
//	        field.ID("id", func(l *LineItem) *int64 { return &l.ID }),
//	        field.Value("sku", func(l *LineItem) *string { return &l.SKU }),
//	    ),
//	    schema.Define[Order](
//	        field.ID("id", func(o *Order) *int64 { return &o.ID }),
//	        field.Version("version", func(o *Order) *int64 { return &o.Version }),
//	        field.Value("customer", func(o *Order) *string { return &o.Customer }),
//	        edge.Embedded("address", func(o *Order) *Address { return &o.Address }, edge.Prefix("address_")),
//	        edge.List("items", func(o *Order) *[]*LineItem { return &o.Items }),
//	    ).WithTable("orders"),
//	)
//
// # Naming
//
// DefaultNaming snake-cases entity and property names. A child table
// references its parent through a column named after the table of the
// nearest ancestor that has an identifier ("orders" above), and lists and
// maps store their qualifier in "<owner table>_key".
package schema
