/*
Package logging provides the leveled log client used by data adapters.

Three implementations share the Client interface (Info, Warn, Error, Debug,
Trace). New sends entries to the Tarmac host logging capability, NewWriter
prints level-prefixed lines to an io.Writer, and Discard drops everything. Log
calls are best-effort and never return errors, so a logging failure cannot
change the outcome of a database operation.
*/
package logging
