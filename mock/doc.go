/*
Package mock provides an in-memory dataadapter.Adapter for testing code that
depends on a database without running one.

Row-level operations (InsertRow, UpdateRow, DeleteRow) work against in-memory
tables with auto-increment ids, so the exactly-one-row rules behave like a real
adapter. Raw queries are not parsed: GetOne, GetQueryResult, GetIndexedList,
Execute and InsertQuery answer from scripted responses.

# Basic Usage

	m := mock.New(mock.Config{Tables: map[string][]dataadapter.Row{
		"authors": {{"id": "1", "name": "Frank Herbert"}},
	}})
	_ = m.Connect(ctx, dataadapter.Settings{Driver: "mock"})

	id, err := m.InsertRow(ctx, "books", dataadapter.Values{"title": dataadapter.Text("Dune")})

# Scripting Queries

	m.OnQuery("SELECT id, name FROM authors").
		ReturnRows([]string{"id", "name"}, []any{int64(1), "Frank Herbert"})
	m.OnExecute("DELETE FROM books").ReturnAffected(3)
	m.OnInsert("INSERT INTO books (title) VALUES ('Emma')").ReturnID(7)
	m.OnQuery("SELECT broken").ReturnError(errors.New("syntax error"))

# Inspecting Calls

	for _, c := range m.Calls() {
		// c.Op, c.Query, c.Table, c.ID, c.Values
	}

The package registers itself under the "mock" driver name.
*/
package mock
