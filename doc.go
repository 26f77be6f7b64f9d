/*
Package dataadapter defines a uniform data-access contract for relational
databases: connect, run raw queries, and perform basic row CRUD against named
tables.

Callers depend on the Adapter interface. Concrete adapters live in sub-packages
and register themselves by driver name, so the engine is chosen through
Settings at configuration time:

	import (
		"github.com/tarmac-project/dataadapter"
		_ "github.com/tarmac-project/dataadapter/sqldb"
	)

	db, err := dataadapter.Open(ctx, dataadapter.Settings{Driver: "sqlite3", Database: "books.db"}, dataadapter.Options{})
	if err != nil {
		// handle error
	}
	defer db.Disconnect()

	id, err := db.InsertRow(ctx, "books", dataadapter.Values{
		"title": dataadapter.Text("Dune"),
		"year":  dataadapter.Int(1965),
	})

	year, err := dataadapter.GetOneAs[int64](ctx, db, "SELECT year FROM books WHERE id = 1")

Query strings are passed to the engine verbatim; callers are responsible for
their content. Table and field names given to the table-form operations must be
plain identifiers, and values are carried as a closed set of kinds (text,
integer, float, boolean, date, null).

Errors are reported through the sentinel values in this package and can be
matched with errors.Is. Row-level writes succeed only when exactly one row is
affected: zero rows yields ErrRowNotFound and several rows ErrAmbiguousRows.
*/
package dataadapter
