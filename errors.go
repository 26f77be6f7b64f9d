package dataadapter

import "errors"

var (
	// ErrNotConnected is returned when an operation needs a session and none is open.
	ErrNotConnected = errors.New("adapter is not connected")

	// ErrAlreadyConnected is returned by Connect when a session is already open.
	ErrAlreadyConnected = errors.New("adapter is already connected")

	// ErrConnectionLost means the session dropped while an operation was running.
	ErrConnectionLost = errors.New("connection lost")

	// ErrInvalidSettings indicates connection settings that cannot be used.
	ErrInvalidSettings = errors.New("connection settings are invalid")

	// ErrUnknownDriver is returned when no adapter is registered for a driver name.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrInvalidQuery indicates an empty or invalid SQL query.
	ErrInvalidQuery = errors.New("query is invalid")

	// ErrInvalidIdentifier indicates a table or field name that is not a plain SQL identifier.
	ErrInvalidIdentifier = errors.New("identifier is invalid")

	// ErrNoValues is returned when a write operation receives no field values.
	ErrNoValues = errors.New("no values provided")

	// ErrUnsupportedValue is returned when a Go value has no matching Value kind.
	ErrUnsupportedValue = errors.New("value type is not supported")

	// ErrNoRows is returned when a query expected to yield a value returns no rows.
	ErrNoRows = errors.New("query returned no rows")

	// ErrNullValue is returned when a scalar query yields NULL.
	ErrNullValue = errors.New("query returned NULL")

	// ErrColumnCount is returned when a result has the wrong number of columns.
	ErrColumnCount = errors.New("unexpected number of columns")

	// ErrConversion wraps failures converting a text value to the requested type.
	ErrConversion = errors.New("value conversion failed")

	// ErrDuplicateKey is returned by GetIndexedList when the key column repeats.
	ErrDuplicateKey = errors.New("duplicate key in indexed list")

	// ErrRowNotFound means a row-level operation affected no rows.
	ErrRowNotFound = errors.New("row not found")

	// ErrAmbiguousRows means a row-level operation affected more than one row.
	ErrAmbiguousRows = errors.New("more than one row affected")

	// ErrNoInsertID is returned when an insert did not produce a generated key.
	ErrNoInsertID = errors.New("no generated id returned")

	// ErrHostCall indicates that a waPC host invocation failed.
	ErrHostCall = errors.New("host call failed")

	// ErrHostResponseInvalid signals that the host returned an invalid or unexpected payload.
	ErrHostResponseInvalid = errors.New("host response is invalid or unexpected")

	// ErrHostError means the host completed the call but reported a failure status.
	ErrHostError = errors.New("host returned an error status")
)
