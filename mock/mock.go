package mock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/tarmac-project/dataadapter"
)

// Operation names recorded in Call.Op.
const (
	OpConnect        = "CONNECT"
	OpDisconnect     = "DISCONNECT"
	OpGetOne         = "GET_ONE"
	OpGetQueryResult = "GET_QUERY_RESULT"
	OpExecute        = "EXECUTE"
	OpDeleteRow      = "DELETE_ROW"
	OpUpdateRow      = "UPDATE_ROW"
	OpInsertQuery    = "INSERT_QUERY"
	OpInsertRow      = "INSERT_ROW"
	OpGetIndexedList = "GET_INDEXED_LIST"
)

// ErrUnscripted is returned for a raw query with no scripted response.
var ErrUnscripted = errors.New("no scripted response for query")

func init() {
	dataadapter.Register("mock", func(dataadapter.Options) dataadapter.Adapter {
		return New(Config{})
	})
}

// Config configures the mock adapter.
type Config struct {
	// Tables seeds the in-memory tables. Seeded rows keep their "id" as given,
	// and later inserts continue after the highest numeric id.
	Tables map[string][]dataadapter.Row

	// ConnectErr, when set, makes Connect fail with this error.
	ConnectErr error
}

// Response describes a scripted outcome for a raw query.
type Response struct {
	// Result applies to GetOne, GetQueryResult and GetIndexedList.
	Result dataadapter.ResultSet
	// Affected applies to Execute.
	Affected int64
	// ID applies to InsertQuery.
	ID int64
	// Err is returned instead of the result when set.
	Err error
}

// ResponseBuilder allows fluent configuration of responses.
type ResponseBuilder struct {
	m   *Adapter
	key string // composite key: kind + " " + query
}

// ReturnRows scripts the result columns and records. A nil cell reads as NULL.
func (b *ResponseBuilder) ReturnRows(columns []string, records ...[]any) *ResponseBuilder {
	rs := dataadapter.ResultSet{Columns: append([]string(nil), columns...)}
	for _, rec := range records {
		if err := rs.Append(rec); err != nil {
			panic(fmt.Sprintf("mock: ReturnRows: %v", err))
		}
	}
	b.update(func(r *Response) { r.Result = rs })
	return b
}

// ReturnAffected scripts the row count returned by Execute.
func (b *ResponseBuilder) ReturnAffected(n int64) *ResponseBuilder {
	b.update(func(r *Response) { r.Affected = n })
	return b
}

// ReturnID scripts the generated id returned by InsertQuery.
func (b *ResponseBuilder) ReturnID(id int64) *ResponseBuilder {
	b.update(func(r *Response) { r.ID = id })
	return b
}

// ReturnError sets an error for the configured query.
func (b *ResponseBuilder) ReturnError(err error) *Adapter {
	b.update(func(r *Response) { r.Err = err })
	return b.m
}

func (b *ResponseBuilder) update(fn func(*Response)) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	r := b.m.responses[b.key]
	fn(&r)
	b.m.responses[b.key] = r
}

// Call records an operation performed against the mock.
type Call struct {
	Op     string
	Query  string
	Table  string
	ID     int64
	Values dataadapter.Values
}

type table struct {
	rows   []dataadapter.Row
	nextID int64
}

// Adapter implements dataadapter.Adapter in memory. It is safe for concurrent use.
type Adapter struct {
	mu         sync.Mutex
	connected  bool
	settings   dataadapter.Settings
	connectErr error
	tables     map[string]*table
	responses  map[string]Response
	calls      []Call
}

// Ensure Adapter satisfies the dataadapter.Adapter interface at compile time.
var _ dataadapter.Adapter = (*Adapter)(nil)

// New creates a disconnected mock adapter.
func New(cfg Config) *Adapter {
	m := &Adapter{
		connectErr: cfg.ConnectErr,
		tables:     make(map[string]*table),
		responses:  make(map[string]Response),
	}
	for name, rows := range cfg.Tables {
		t := &table{nextID: 1}
		for _, r := range rows {
			t.rows = append(t.rows, copyRow(r))
			if id, err := strconv.ParseInt(r[dataadapter.IDColumn], 10, 64); err == nil && id >= t.nextID {
				t.nextID = id + 1
			}
		}
		m.tables[name] = t
	}
	return m
}

// OnQuery configures the response to a read query.
func (m *Adapter) OnQuery(query string) *ResponseBuilder {
	return &ResponseBuilder{m: m, key: "QUERY " + query}
}

// OnExecute configures the response to Execute.
func (m *Adapter) OnExecute(query string) *ResponseBuilder {
	return &ResponseBuilder{m: m, key: "EXECUTE " + query}
}

// OnInsert configures the response to InsertQuery.
func (m *Adapter) OnInsert(query string) *ResponseBuilder {
	return &ResponseBuilder{m: m, key: "INSERT " + query}
}

// Calls returns a copy of the recorded operations.
func (m *Adapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Table returns a copy of the rows stored for name, or nil if it does not exist.
func (m *Adapter) Table(name string) []dataadapter.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return nil
	}
	rows := make([]dataadapter.Row, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, copyRow(r))
	}
	return rows
}

// Settings returns the settings passed to the last successful Connect.
func (m *Adapter) Settings() dataadapter.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Connect implements dataadapter.Adapter.
func (m *Adapter) Connect(ctx context.Context, settings dataadapter.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpConnect})

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.connected {
		return dataadapter.ErrAlreadyConnected
	}
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	m.settings = settings
	return nil
}

// Disconnect implements dataadapter.Adapter.
func (m *Adapter) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpDisconnect})
	m.connected = false
	return nil
}

// IsConnected implements dataadapter.Adapter.
func (m *Adapter) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// GetOne implements dataadapter.Adapter.
func (m *Adapter) GetOne(ctx context.Context, query string) (string, error) {
	r, err := m.scripted(ctx, OpGetOne, "QUERY", query)
	if err != nil {
		return "", err
	}
	return r.Result.First()
}

// GetQueryResult implements dataadapter.Adapter.
func (m *Adapter) GetQueryResult(ctx context.Context, query string) ([]dataadapter.Row, error) {
	r, err := m.scripted(ctx, OpGetQueryResult, "QUERY", query)
	if err != nil {
		return nil, err
	}
	return r.Result.Rows(), nil
}

// GetIndexedList implements dataadapter.Adapter.
func (m *Adapter) GetIndexedList(ctx context.Context, query string) (map[string]string, error) {
	r, err := m.scripted(ctx, OpGetIndexedList, "QUERY", query)
	if err != nil {
		return nil, err
	}
	return r.Result.Indexed()
}

// Execute implements dataadapter.Adapter.
func (m *Adapter) Execute(ctx context.Context, query string) (int64, error) {
	r, err := m.scripted(ctx, OpExecute, "EXECUTE", query)
	if err != nil {
		return 0, err
	}
	return r.Affected, nil
}

// InsertQuery implements dataadapter.Adapter.
func (m *Adapter) InsertQuery(ctx context.Context, query string) (int64, error) {
	r, err := m.scripted(ctx, OpInsertQuery, "INSERT", query)
	if err != nil {
		return 0, err
	}
	if r.ID == 0 {
		return 0, dataadapter.ErrNoInsertID
	}
	return r.ID, nil
}

func (m *Adapter) scripted(ctx context.Context, op, kind, query string) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: op, Query: query})

	if err := m.ready(ctx); err != nil {
		return Response{}, err
	}
	if query == "" {
		return Response{}, dataadapter.ErrInvalidQuery
	}
	r, ok := m.responses[kind+" "+query]
	if !ok {
		return Response{}, fmt.Errorf("%w: %q", ErrUnscripted, query)
	}
	if r.Err != nil {
		return Response{}, r.Err
	}
	return r, nil
}

// DeleteRow implements dataadapter.Adapter.
func (m *Adapter) DeleteRow(ctx context.Context, tableName string, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpDeleteRow, Table: tableName, ID: id})

	if err := m.ready(ctx); err != nil {
		return false, err
	}
	if err := dataadapter.CheckIdentifier(tableName); err != nil {
		return false, err
	}

	t := m.tables[tableName]
	idx, err := t.match(id)
	if err != nil {
		return false, err
	}
	t.rows = append(t.rows[:idx:idx], t.rows[idx+1:]...)
	return true, nil
}

// UpdateRow implements dataadapter.Adapter.
func (m *Adapter) UpdateRow(ctx context.Context, tableName string, id int64, values dataadapter.Values) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpUpdateRow, Table: tableName, ID: id, Values: copyValues(values)})

	if err := m.ready(ctx); err != nil {
		return false, err
	}
	if err := dataadapter.CheckIdentifier(tableName); err != nil {
		return false, err
	}
	if err := values.Validate(); err != nil {
		return false, err
	}

	t := m.tables[tableName]
	idx, err := t.match(id)
	if err != nil {
		return false, err
	}
	for f, v := range values {
		t.rows[idx][f] = v.String()
	}
	return true, nil
}

// InsertRow implements dataadapter.Adapter. Unknown tables are created.
func (m *Adapter) InsertRow(ctx context.Context, tableName string, values dataadapter.Values) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: OpInsertRow, Table: tableName, Values: copyValues(values)})

	if err := m.ready(ctx); err != nil {
		return 0, err
	}
	if err := dataadapter.CheckIdentifier(tableName); err != nil {
		return 0, err
	}
	if err := values.Validate(); err != nil {
		return 0, err
	}

	t, ok := m.tables[tableName]
	if !ok {
		t = &table{nextID: 1}
		m.tables[tableName] = t
	}

	id := t.nextID
	t.nextID++
	row := dataadapter.Row{dataadapter.IDColumn: strconv.FormatInt(id, 10)}
	for f, v := range values {
		if f == dataadapter.IDColumn {
			continue
		}
		row[f] = v.String()
	}
	t.rows = append(t.rows, row)
	return id, nil
}

// ready must be called with mu held.
func (m *Adapter) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.connected {
		return dataadapter.ErrNotConnected
	}
	return nil
}

// match returns the index of the single row with id.
func (t *table) match(id int64) (int, error) {
	if t == nil {
		return -1, dataadapter.ErrRowNotFound
	}
	want := strconv.FormatInt(id, 10)
	idx, n := -1, 0
	for i, r := range t.rows {
		if r[dataadapter.IDColumn] == want {
			if idx < 0 {
				idx = i
			}
			n++
		}
	}
	switch {
	case n == 0:
		return -1, dataadapter.ErrRowNotFound
	case n > 1:
		return -1, fmt.Errorf("%w: %d rows", dataadapter.ErrAmbiguousRows, n)
	}
	return idx, nil
}

func copyRow(r dataadapter.Row) dataadapter.Row {
	out := make(dataadapter.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func copyValues(vs dataadapter.Values) dataadapter.Values {
	if vs == nil {
		return nil
	}
	out := make(dataadapter.Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}
