// Package sql implements the dialect.Driver interface on top of
// database/sql and provides the statement builder used by the SQL
// generator.
//
// # Builders
//
// Statements are rendered with named parameters (":id"); the data access
// layer binds them to dialect placeholders before execution.
//
//	b := sql.Dialect(d)
//	b.Select(sql.C("id").Of("orders").As("id")).
//	    From("orders").
//	    LeftJoin("shipment", "shipment", sql.C("orders").Of("shipment"), sql.C("id").Of("orders")).
//	    Where(sql.EQ(sql.C("id").Of("orders"), "id"))
//	// SELECT "orders"."id" AS "id" FROM "orders" LEFT OUTER JOIN ... WHERE "orders"."id" = :id
//
//	b.Insert("line_item").Columns("sku", "orders").Returning("id")
//	b.Update("orders").Set("customer", "version").Where(sql.And(...))
//	b.Delete("line_item").Where(sql.EQ(sql.C("orders"), "orders"))
//
// # Drivers
//
// Open and OpenDB return a *Driver. NewStatsDriver counts statements and
// reports slow ones, NewDebugDriver logs every statement at debug level:
//
//	drv, err := sql.Open("pgx", dsn)
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog(logger))
//	fmt.Println(stats.QueryStats().Stats())
package sql
