package dataadapter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tarmac-project/dataadapter/logging"
	"github.com/tarmac-project/dataadapter/metrics"
)

// IDColumn is the primary key column used by the row-level operations.
const IDColumn = "id"

// Row is one result record keyed by column name. Every value is text; NULL
// reads as the empty string.
type Row map[string]string

// Adapter provides uniform access to a DBMS session.
type Adapter interface {
	// Connect establishes a session using settings.
	Connect(ctx context.Context, settings Settings) error

	// Disconnect releases the session. Calling it on a disconnected adapter is a no-op.
	Disconnect() error

	// IsConnected reports the current session state.
	IsConnected() bool

	// GetOne returns the first column of the first row as text.
	GetOne(ctx context.Context, query string) (string, error)

	// GetQueryResult returns every row of a read query in result order.
	GetQueryResult(ctx context.Context, query string) ([]Row, error)

	// Execute runs a modification statement and returns the affected row count.
	Execute(ctx context.Context, query string) (int64, error)

	// DeleteRow deletes the row with the given id. It reports true only when
	// exactly one row was deleted.
	DeleteRow(ctx context.Context, table string, id int64) (bool, error)

	// UpdateRow sets values on the row with the given id. It reports true only
	// when exactly one row was updated.
	UpdateRow(ctx context.Context, table string, id int64, values Values) (bool, error)

	// InsertQuery runs a complete insert statement and returns the generated id.
	InsertQuery(ctx context.Context, query string) (int64, error)

	// InsertRow inserts values into table and returns the generated id.
	InsertRow(ctx context.Context, table string, values Values) (int64, error)

	// GetIndexedList maps the first column of a two-column result to the second.
	GetIndexedList(ctx context.Context, query string) (map[string]string, error)
}

// Options carries the ambient dependencies handed to an adapter.
type Options struct {
	// Logger receives connection events and failures. Nil discards.
	Logger logging.Client

	// Metrics instruments operations. Nil discards.
	Metrics metrics.Recorder
}

// WithDefaults fills unset options with discarding implementations.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Discard()
	}
	return o
}

// Factory creates a disconnected Adapter.
type Factory func(opts Options) Adapter

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes an adapter available under a driver name. It panics if
// Register is called twice with the same name or if factory is nil.
func Register(driver string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("dataadapter: Register factory is nil")
	}
	if _, dup := factories[driver]; dup {
		panic("dataadapter: Register called twice for driver " + driver)
	}
	factories[driver] = factory
}

// Drivers returns a sorted list of the registered driver names.
func Drivers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	list := make([]string, 0, len(factories))
	for name := range factories {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// New creates a disconnected Adapter for driver.
func New(driver string, opts Options) (Adapter, error) {
	factoriesMu.RLock()
	factory, ok := factories[driver]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (forgotten import?)", ErrUnknownDriver, driver)
	}
	return factory(opts.WithDefaults()), nil
}

// Open creates the Adapter registered for settings.Driver and connects it.
func Open(ctx context.Context, settings Settings, opts Options) (Adapter, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	a, err := New(settings.Driver, opts)
	if err != nil {
		return nil, err
	}

	if err := a.Connect(ctx, settings); err != nil {
		return nil, err
	}
	return a, nil
}
