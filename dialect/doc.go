// Package dialect defines the database abstraction used by aggstore.
//
// It holds the dialect names, the Driver, Tx and ExecQuerier interfaces
// implemented by dialect/sql, and the Dialect capabilities consulted by the
// SQL generator and the data access layer:
//
//   - IdentifierProcessing: quoting and letter casing of every identifier.
//   - BindVar: "?" or "$n" placeholders.
//   - ReturnsGeneratedKeys: INSERT ... RETURNING versus LastInsertId.
//   - EmptyInsert and LimitOffset: syntax that differs between databases.
//
// Opening a database connection:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	d, err := dialect.Get(drv.Dialect())
//
// Version checks rely on affected row counts. MySQL reports changed rows
// by default, so its DSN needs clientFoundRows=true.
//
// Sub-packages:
//
//   - dialect/sql: database/sql backed driver, stats and debug drivers, statement builder
//   - dialect/sql/schema: DDL for registered aggregates
//   - dialect/sql/sqlgraph: classification of constraint errors
package dialect
