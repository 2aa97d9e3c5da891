// Package field builds scalar property descriptions from typed pointer
// accessors:
//
//	field.ID("id", func(o *Order) *int64 { return &o.ID })
//	field.ID("id", func(d *Document) *uuid.UUID { return &d.ID }, field.UUID())
//	field.Version("version", func(o *Order) *int64 { return &o.Version })
//	field.Value("customer", func(o *Order) *string { return &o.Customer }, field.Column("customer_name"))
//
// Pointer-typed values (*string, *time.Time) map to nullable columns.
package field
