// Package schema creates and migrates the tables of registered aggregates
// with Atlas.
//
// Tables derives one table per entity type reachable from the given roots:
//
//	tables, err := schema.Tables(dialect.Postgres, conv, order)
//	m, err := schema.NewMigrate(drv, schema.WithLogger(logger))
//	err = m.Create(ctx, tables...)
//
// Only the given tables are inspected, so other tables in the database are
// left alone. Changes that drop tables, columns or indexes or that make a
// column NOT NULL fail validation unless allowed with the matching
// ValidateOption. NamedDiff writes the changes to a migration directory
// instead of applying them.
package schema
