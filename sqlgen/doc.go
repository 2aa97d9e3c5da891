// Package sqlgen renders the SQL statements of an entity type.
//
// Statements use named parameters, one per column plus IDParam, IDsParam,
// RootIDParam and PreviousVersionParam. Single-valued associations that are
// joinable are read with LEFT OUTER JOINs and aliased by their path, so a
// shipment carrier of an order is selected as "shipment_carrier".
//
//	src := sqlgen.NewSource(d)
//	q, err := src.For(order).FindOne()
//	// SELECT "orders"."id" AS "id", ... "shipment"."carrier" AS "shipment_carrier"
//	// FROM "orders" LEFT OUTER JOIN "shipment" "shipment" ON ... WHERE "orders"."id" = :id
package sqlgen
