package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/tarmac-project/dataadapter"
	"github.com/tarmac-project/dataadapter/logging"
	"github.com/tarmac-project/dataadapter/metrics"
)

func init() {
	for name := range dialects {
		dataadapter.Register(name, func(opts dataadapter.Options) dataadapter.Adapter {
			return New(opts)
		})
	}
}

// Adapter is a dataadapter.Adapter backed by a database/sql connection pool.
type Adapter struct {
	log     logging.Client
	metrics metrics.Recorder

	// mu guards the fields below. Operations hold it for reading while they
	// run so Disconnect cannot close the pool under them.
	mu       sync.RWMutex
	db       *sqlx.DB
	dialect  dialect
	settings dataadapter.Settings
}

// Ensure Adapter satisfies the dataadapter.Adapter interface at compile time.
var _ dataadapter.Adapter = (*Adapter)(nil)

// New creates a disconnected Adapter.
func New(opts dataadapter.Options) *Adapter {
	opts = opts.WithDefaults()
	return &Adapter{log: opts.Logger, metrics: opts.Metrics}
}

// Connect opens a pool for settings.Driver and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context, settings dataadapter.Settings) (err error) {
	defer a.observe("connect", time.Now(), &err)

	if err := settings.Validate(); err != nil {
		return err
	}
	d, err := lookupDialect(settings.Driver)
	if err != nil {
		return err
	}
	dsn, err := d.dataSource(settings)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return dataadapter.ErrAlreadyConnected
	}

	db, err := sqlx.ConnectContext(ctx, d.driverName, dsn)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", settings.Redacted(), err)
	}

	if inMemory(d.driverName, dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if settings.MaxOpenConns > 0 {
			db.SetMaxOpenConns(settings.MaxOpenConns)
		}
		if settings.MaxIdleConns > 0 {
			db.SetMaxIdleConns(settings.MaxIdleConns)
		}
		if settings.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(settings.ConnMaxLifetime)
		}
	}

	a.db = db
	a.dialect = d
	a.settings = settings
	a.metrics.Connected(true)
	a.log.Info("connected to " + settings.Redacted())
	return nil
}

// Disconnect closes the pool. It is a no-op when not connected.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}

	err := a.db.Close()
	a.db = nil
	a.metrics.Connected(false)
	if err != nil {
		a.log.Warn(fmt.Sprintf("closing %s: %v", a.settings.Redacted(), err))
		return err
	}
	a.log.Info("disconnected from " + a.settings.Redacted())
	return nil
}

// IsConnected reports whether a pool is open. It does not contact the server.
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db != nil
}

// GetOne implements dataadapter.Adapter.
func (a *Adapter) GetOne(ctx context.Context, query string) (_ string, err error) {
	defer a.observe("get_one", time.Now(), &err)

	if query == "" {
		return "", dataadapter.ErrInvalidQuery
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	rs, err := a.query(ctx, query, 1)
	if err != nil {
		return "", err
	}
	return rs.First()
}

// GetQueryResult implements dataadapter.Adapter.
func (a *Adapter) GetQueryResult(ctx context.Context, query string) (_ []dataadapter.Row, err error) {
	defer a.observe("get_query_result", time.Now(), &err)

	if query == "" {
		return nil, dataadapter.ErrInvalidQuery
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rs, err := a.query(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	return rs.Rows(), nil
}

// GetIndexedList implements dataadapter.Adapter.
func (a *Adapter) GetIndexedList(ctx context.Context, query string) (_ map[string]string, err error) {
	defer a.observe("get_indexed_list", time.Now(), &err)

	if query == "" {
		return nil, dataadapter.ErrInvalidQuery
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rs, err := a.query(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	return rs.Indexed()
}

// Execute implements dataadapter.Adapter.
func (a *Adapter) Execute(ctx context.Context, query string) (_ int64, err error) {
	defer a.observe("execute", time.Now(), &err)

	if query == "" {
		return 0, dataadapter.ErrInvalidQuery
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	res, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return 0, wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// DeleteRow implements dataadapter.Adapter.
func (a *Adapter) DeleteRow(ctx context.Context, table string, id int64) (_ bool, err error) {
	defer a.observe("delete_row", time.Now(), &err)

	if err := dataadapter.CheckIdentifier(table); err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()

	query, args, err := a.builder().
		Delete(table).
		Where(sq.Eq{dataadapter.IDColumn: id}).
		ToSql()
	if err != nil {
		return false, err
	}
	if err := a.execOne(ctx, query, args); err != nil {
		return false, err
	}
	return true, nil
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
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()

	query, args, err := a.builder().
		Update(table).
		SetMap(arguments(values)).
		Where(sq.Eq{dataadapter.IDColumn: id}).
		ToSql()
	if err != nil {
		return false, err
	}
	if err := a.execOne(ctx, query, args); err != nil {
		return false, err
	}
	return true, nil
}

// InsertQuery implements dataadapter.Adapter. On postgres dialects the query
// is extended with RETURNING id unless it already has a RETURNING clause.
func (a *Adapter) InsertQuery(ctx context.Context, query string) (_ int64, err error) {
	defer a.observe("insert_query", time.Now(), &err)

	if query == "" {
		return 0, dataadapter.ErrInvalidQuery
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	if a.dialect.returning {
		if !dataadapter.HasReturning(query) {
			query = strings.TrimRight(strings.TrimSpace(query), ";") + " RETURNING " + dataadapter.IDColumn
		}
		return a.insertReturning(ctx, query, nil)
	}
	return a.insertExec(ctx, query, nil)
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
	defer a.mu.RUnlock()
	ctx, cancel, err := a.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	b := a.builder().Insert(table).SetMap(arguments(values))
	if a.dialect.returning {
		b = b.Suffix("RETURNING " + dataadapter.IDColumn)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}

	if a.dialect.returning {
		return a.insertReturning(ctx, query, args)
	}
	return a.insertExec(ctx, query, args)
}

// begin checks the session and applies the query timeout. It must be called
// with mu held.
func (a *Adapter) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if a.db == nil {
		return ctx, nil, dataadapter.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return ctx, nil, err
	}
	if a.settings.QueryTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, a.settings.QueryTimeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

func (a *Adapter) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(a.dialect.placeholder)
}

// query reads up to limit records (0 means all).
func (a *Adapter) query(ctx context.Context, query string, limit int) (*dataadapter.ResultSet, error) {
	a.log.Debug("query: " + query)

	rows, err := a.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrap(err)
	}

	rs := &dataadapter.ResultSet{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, wrap(err)
		}
		if err := rs.Append(vals); err != nil {
			return nil, err
		}
		if limit > 0 && len(rs.Records) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err)
	}
	return rs, nil
}

// execOne runs a row-level write in a transaction and commits only when
// exactly one row was affected.
func (a *Adapter) execOne(ctx context.Context, query string, args []any) (err error) {
	a.log.Debug("exec: " + query)

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err)
	}
	if err := dataadapter.ExpectOne(n); err != nil {
		return err
	}
	return wrap(tx.Commit())
}

func (a *Adapter) insertReturning(ctx context.Context, query string, args []any) (int64, error) {
	a.log.Debug("insert: " + query)

	var id int64
	err := a.db.QueryRowxContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, dataadapter.ErrNoInsertID
	}
	if err != nil {
		return 0, wrap(err)
	}
	return id, nil
}

func (a *Adapter) insertExec(ctx context.Context, query string, args []any) (int64, error) {
	a.log.Debug("insert: " + query)

	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(err)
	}
	if n == 0 {
		return 0, dataadapter.ErrNoInsertID
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Join(dataadapter.ErrNoInsertID, err)
	}
	return id, nil
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

func arguments(values dataadapter.Values) map[string]any {
	args := make(map[string]any, len(values))
	for f, v := range values {
		args[f] = v.Arg()
	}
	return args
}

// wrap marks driver errors that mean the session is gone.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return errors.Join(dataadapter.ErrConnectionLost, err)
	}
	return err
}
