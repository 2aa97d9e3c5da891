// Package convert converts column values and materializes entities from
// result rows.
//
// A Materializer reads the identifier first, then every property in schema
// order. Embedded values and joined single-valued associations are read
// from the same row through a prefixed view: with the query
//
//	SELECT orders.id AS id, shipment.carrier AS shipment_carrier ...
//
// the shipment is read from a view in which "carrier" resolves to
// "shipment_carrier". Collections, maps and references that were not joined
// are loaded through a RelationResolver, which receives the ObjectPath of
// materialized ancestors so it can bind the parent identifier and the
// list indexes or map keys in between.
package convert
