/*
Package snapshot copies query results to Apache Parquet files and back.

A snapshot stores one record per result row. Each record holds the row's
position in the result and the row encoded as a JSON object, so rows from any
query fit the same file schema.

	n, err := snapshot.Export(ctx, db, "SELECT id, title FROM books", "books.parquet")
	if err != nil {
		// handle error
	}

	rows, err := snapshot.Import("books.parquet")
*/
package snapshot
