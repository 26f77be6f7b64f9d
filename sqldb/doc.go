/*
Package sqldb implements dataadapter.Adapter on top of database/sql.

Importing the package registers the "sqlite3", "postgres", "pgx" and "mysql"
drivers with dataadapter. Raw queries go to the engine as given; the
table-form operations build parameterized statements with squirrel using the
placeholder style of the selected dialect. DeleteRow and UpdateRow run inside a
transaction that is rolled back unless exactly one row changed.

An Adapter is safe for concurrent use. Disconnect waits for in-flight
operations before closing the pool.
*/
package sqldb
