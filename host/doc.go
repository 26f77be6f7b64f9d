/*
Package host implements dataadapter.Adapter over the Tarmac host SQL
capability.

Client is the thin transport: it encodes SQLExec and SQLQuery protobuf
payloads, sends them with a waPC host call and validates the status of the
response. Adapter builds the data adapter contract on top of it. The host owns
the database connection, so Connect records the runtime namespace and sends
PingQuery to check that the capability answers.

Hosts backed by PostgreSQL report no last insert id. Set the
"insert_returning" parameter to "true" so InsertRow asks for the id with a
RETURNING clause instead.

The host capability accepts a bare query string, so the table-form operations
render values as inline SQL literals. The "dialect" parameter names the engine
behind the host: "mysql" also escapes backslashes in text, while "postgres",
"sqlite3" and "standard" only double single quotes. Without it, text holding a
backslash is rejected with ErrUnsupportedValue. Row-level writes cannot share a
transaction across host calls: when more than one row is affected the adapter
reports ErrAmbiguousRows but cannot undo the change.

Importing the package registers the "tarmac" driver with dataadapter.
*/
package host
