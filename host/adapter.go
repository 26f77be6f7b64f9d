package host

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tarmac-project/dataadapter"
	"github.com/tarmac-project/dataadapter/logging"
	"github.com/tarmac-project/dataadapter/metrics"
)

// PingQuery is sent by Connect to verify the host capability answers.
const PingQuery = "SELECT 1"

// paramReturning names the Settings.Params flag that makes InsertRow ask for
// the generated key with RETURNING, for hosts backed by PostgreSQL.
const paramReturning = "insert_returning"

// paramDialect names the Settings.Params entry that selects how text values
// are quoted in generated statements.
const paramDialect = "dialect"

// quoting selects how text values are rendered as literals.
type quoting uint8

const (
	// quoteStrict uses standard quoting and rejects text with backslashes,
	// which is safe whatever engine sits behind the host.
	quoteStrict quoting = iota
	// quoteStandard doubles single quotes only.
	quoteStandard
	// quoteBackslash also doubles backslashes, for MySQL-backed hosts.
	quoteBackslash
)

func parseQuoting(dialect string) (quoting, error) {
	switch strings.ToLower(dialect) {
	case "":
		return quoteStrict, nil
	case "postgres", "sqlite3", "standard":
		return quoteStandard, nil
	case "mysql":
		return quoteBackslash, nil
	default:
		return quoteStrict, fmt.Errorf("%w: unknown %s %q", dataadapter.ErrInvalidSettings, paramDialect, dialect)
	}
}

func init() {
	dataadapter.Register("tarmac", func(opts dataadapter.Options) dataadapter.Adapter {
		return New(Config{}, opts)
	})
}

// Adapter is a dataadapter.Adapter that runs statements on the Tarmac host.
type Adapter struct {
	config  Config
	log     logging.Client
	metrics metrics.Recorder

	mu        sync.RWMutex
	client    *Client
	returning bool
	quoting   quoting
}

// Ensure Adapter satisfies the dataadapter.Adapter interface at compile time.
var _ dataadapter.Adapter = (*Adapter)(nil)

// New creates a disconnected Adapter. config.Namespace is used when the
// settings passed to Connect leave Namespace empty.
func New(config Config, opts dataadapter.Options) *Adapter {
	opts = opts.WithDefaults()
	return &Adapter{config: config, log: opts.Logger, metrics: opts.Metrics}
}

// Connect binds the adapter to a host namespace and pings the capability.
func (a *Adapter) Connect(ctx context.Context, settings dataadapter.Settings) (err error) {
	defer a.observe("connect", time.Now(), &err)

	if err := settings.Validate(); err != nil {
		return err
	}
	quote, err := parseQuoting(settings.Params[paramDialect])
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return dataadapter.ErrAlreadyConnected
	}

	cfg := a.config
	if settings.Namespace != "" {
		cfg.Namespace = settings.Namespace
	}
	client, err := NewClient(cfg)
	if err != nil {
		return err
	}
	if _, err := client.Query(PingQuery); err != nil {
		return fmt.Errorf("ping host namespace %s: %w", client.Namespace(), err)
	}

	a.client = client
	a.returning = settings.Params[paramReturning] == "true"
	a.quoting = quote
	a.metrics.Connected(true)
	a.log.Info("connected to host namespace " + client.Namespace())
	return nil
}

// Disconnect releases the client. It is a no-op when not connected.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}

	err := a.client.Close()
	a.log.Info("disconnected from host namespace " + a.client.Namespace())
	a.client = nil
	a.metrics.Connected(false)
	return err
}

// IsConnected implements dataadapter.Adapter.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil
}

// GetOne implements dataadapter.Adapter.
func (a *Adapter) GetOne(ctx context.Context, query string) (_ string, err error) {
	defer a.observe("get_one", time.Now(), &err)

	rs, err := a.query(ctx, query)
	if err != nil {
		return "", err
	}
	return rs.First()
}

// GetQueryResult implements dataadapter.Adapter.
func (a *Adapter) GetQueryResult(ctx context.Context, query string) (_ []dataadapter.Row, err error) {
	defer a.observe("get_query_result", time.Now(), &err)

	rs, err := a.query(ctx, query)
	if err != nil {
		return nil, err
	}
	return rs.Rows(), nil
}

// GetIndexedList implements dataadapter.Adapter.
func (a *Adapter) GetIndexedList(ctx context.Context, query string) (_ map[string]string, err error) {
	defer a.observe("get_indexed_list", time.Now(), &err)

	rs, err := a.query(ctx, query)
	if err != nil {
		return nil, err
	}
	return rs.Indexed()
}

// Execute implements dataadapter.Adapter.
func (a *Adapter) Execute(ctx context.Context, query string) (_ int64, err error) {
	defer a.observe("execute", time.Now(), &err)

	res, err := a.exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// DeleteRow implements dataadapter.Adapter.
func (a *Adapter) DeleteRow(ctx context.Context, table string, id int64) (_ bool, err error) {
	defer a.observe("delete_row", time.Now(), &err)

	if err := dataadapter.CheckIdentifier(table); err != nil {
		return false, err
	}

	query, _, err := sq.Delete(table).Where(idEquals(id)).ToSql()
	if err != nil {
		return false, err
	}
	return a.execOne(ctx, query)
}

// UpdateRow implements dataadapter.Adapter.
func (a *Adapter) UpdateRow(ctx context.Context, table string, id int64, values dataadapter.Values) (_ bool, err error) {
	defer a.observe("update_row", time.Now(), &err)

	if err := dataadapter.CheckIdentifier(table); err != nil {
		return false, err
	}
	if err := values.Validate(); err != nil {
		return false, err
	}

	a.mu.RLock()
	set, err := literals(values, a.quoting)
	a.mu.RUnlock()
	if err != nil {
		return false, err
	}

	query, _, err := sq.Update(table).SetMap(set).Where(idEquals(id)).ToSql()
	if err != nil {
		return false, err
	}
	return a.execOne(ctx, query)
}

// InsertQuery implements dataadapter.Adapter. Queries with a RETURNING clause
// are sent as queries and the first returned cell is the id.
func (a *Adapter) InsertQuery(ctx context.Context, query string) (_ int64, err error) {
	defer a.observe("insert_query", time.Now(), &err)

	if dataadapter.HasReturning(query) {
		return a.insertReturning(ctx, query)
	}
	return a.insertExec(ctx, query)
}

// InsertRow implements dataadapter.Adapter.
func (a *Adapter) InsertRow(ctx context.Context, table string, values dataadapter.Values) (_ int64, err error) {
	defer a.observe("insert_row", time.Now(), &err)

	if err := dataadapter.CheckIdentifier(table); err != nil {
		return 0, err
	}
	if err := values.Validate(); err != nil {
		return 0, err
	}

	a.mu.RLock()
	returning := a.returning
	set, err := literals(values, a.quoting)
	a.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	b := sq.Insert(table).SetMap(set)
	if returning {
		b = b.Suffix("RETURNING " + dataadapter.IDColumn)
	}
	query, _, err := b.ToSql()
	if err != nil {
		return 0, err
	}

	if returning {
		return a.insertReturning(ctx, query)
	}
	return a.insertExec(ctx, query)
}

// session returns the connected client.
func (a *Adapter) session(ctx context.Context) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, dataadapter.ErrNotConnected
	}
	return a.client, nil
}

func (a *Adapter) query(ctx context.Context, query string) (*dataadapter.ResultSet, error) {
	c, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Debug("query: " + query)

	qr, err := c.Query(query)
	if err != nil {
		return nil, err
	}
	return decodeResult(qr)
}

func (a *Adapter) exec(ctx context.Context, query string) (ExecResult, error) {
	c, err := a.session(ctx)
	if err != nil {
		return ExecResult{}, err
	}
	a.log.Debug("exec: " + query)
	return c.Exec(query)
}

// execOne runs a row-level write. The change is already applied when more
// than one row matched.
func (a *Adapter) execOne(ctx context.Context, query string) (bool, error) {
	res, err := a.exec(ctx, query)
	if err != nil {
		return false, err
	}
	if err := dataadapter.ExpectOne(res.RowsAffected); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) insertExec(ctx context.Context, query string) (int64, error) {
	res, err := a.exec(ctx, query)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 || res.LastInsertID == 0 {
		return 0, dataadapter.ErrNoInsertID
	}
	return res.LastInsertID, nil
}

func (a *Adapter) insertReturning(ctx context.Context, query string) (int64, error) {
	rs, err := a.query(ctx, query)
	if err != nil {
		return 0, err
	}
	first, err := rs.First()
	if errors.Is(err, dataadapter.ErrNoRows) {
		return 0, dataadapter.ErrNoInsertID
	}
	if err != nil {
		return 0, err
	}
	return dataadapter.Parse[int64](first)
}

// observe reports a finished operation. Missing rows are an expected outcome
// and only logged at debug level.
func (a *Adapter) observe(op string, start time.Time, errp *error) {
	err := *errp
	a.metrics.Observe(op, time.Since(start), err)
	switch {
	case err == nil:
	case errors.Is(err, dataadapter.ErrRowNotFound):
		a.log.Debug(fmt.Sprintf("%s: %v", op, err))
	default:
		a.log.Error(fmt.Sprintf("%s failed: %v", op, err))
	}
}

func idEquals(id int64) sq.Sqlizer {
	return sq.Expr(dataadapter.IDColumn + " = " + strconv.FormatInt(id, 10))
}

// literals renders values inline since the host takes no bind arguments.
func literals(values dataadapter.Values, q quoting) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for f, v := range values {
		var lit string
		switch q {
		case quoteBackslash:
			lit = v.BackslashLiteral()
		case quoteStrict:
			if v.Kind() == dataadapter.KindText && strings.ContainsRune(v.String(), '\\') {
				return nil, fmt.Errorf("%w: field %q holds a backslash; set the %s parameter to quote it",
					dataadapter.ErrUnsupportedValue, f, paramDialect)
			}
			lit = v.Literal()
		default:
			lit = v.Literal()
		}
		out[f] = sq.Expr(lit)
	}
	return out, nil
}
