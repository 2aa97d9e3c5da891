// Package access executes aggregate changes against a database.
//
// NamedOperations binds named parameters to dialect placeholders and runs
// statements. DefaultStrategy builds on it to insert, update, delete and
// load single entities, and resolves collections for the materializer.
// The Interpreter walks the actions of a change.AggregateChange in order,
// feeding generated identifiers of parents to the inserts that depend on
// them and checking versions for optimistic locking.
package access
