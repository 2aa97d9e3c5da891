// Package edge builds descriptions of embedded values and associations.
//
// An association is owned by the aggregate: its rows live in the target
// type's table and reference the parent through a back-reference column.
//
//	edge.Embedded("address", func(o *Order) *Address { return &o.Address }, edge.Prefix("address_"))
//	edge.Reference("shipment", func(o *Order) **Shipment { return &o.Shipment })
//	edge.List("items", func(o *Order) *[]*LineItem { return &o.Items })
//	edge.Set("notes", func(l *LineItem) *[]*Note { return &l.Notes })
//	edge.Map("tags", func(o *Order) *map[string]*Tag { return &o.Tags })
//
// Lists store the element index and maps the element key in a key column;
// sets carry no qualifier.
package edge
