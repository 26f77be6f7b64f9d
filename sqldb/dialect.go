package sqldb

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/tarmac-project/dataadapter"

	// database/sql drivers used by the dialects below.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// dialect captures what differs between engines.
type dialect struct {
	// driverName is the database/sql driver to open.
	driverName string

	placeholder sq.PlaceholderFormat

	// returning is set for engines without LastInsertId support, where
	// inserts must ask for the generated key with RETURNING.
	returning bool

	dsn func(s dataadapter.Settings) (string, error)

	// prepare adjusts an explicit Settings.DSN, when set.
	prepare func(dsn string) (string, error)
}

var dialects = map[string]dialect{
	"sqlite3": {
		driverName:  "sqlite3",
		placeholder: sq.Question,
		dsn:         sqliteDSN,
	},
	"postgres": {
		driverName:  "postgres",
		placeholder: sq.Dollar,
		returning:   true,
		dsn:         postgresDSN,
	},
	"pgx": {
		driverName:  "pgx",
		placeholder: sq.Dollar,
		returning:   true,
		dsn:         postgresDSN,
	},
	"mysql": {
		driverName:  "mysql",
		placeholder: sq.Question,
		dsn:         mysqlDSN,
		prepare:     mysqlPrepare,
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("%w: %q", dataadapter.ErrUnknownDriver, driver)
	}
	return d, nil
}

// dataSource returns the DSN to open, preferring an explicit one.
func (d dialect) dataSource(s dataadapter.Settings) (string, error) {
	if s.DSN != "" {
		if d.prepare != nil {
			return d.prepare(s.DSN)
		}
		return s.DSN, nil
	}
	return d.dsn(s)
}

func sqliteDSN(s dataadapter.Settings) (string, error) {
	if s.Database == "" {
		return "", fmt.Errorf("%w: sqlite3 needs a database path", dataadapter.ErrInvalidSettings)
	}
	if len(s.Params) == 0 {
		return s.Database, nil
	}

	q := url.Values{}
	for k, v := range s.Params {
		q.Set(k, v)
	}
	sep := "?"
	if strings.Contains(s.Database, "?") {
		sep = "&"
	}
	return s.Database + sep + q.Encode(), nil
}

func postgresDSN(s dataadapter.Settings) (string, error) {
	if s.Database == "" {
		return "", fmt.Errorf("%w: postgres needs a database name", dataadapter.ErrInvalidSettings)
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   hostPort(s, 5432),
		Path:   "/" + s.Database,
	}
	if s.User != "" {
		u.User = url.User(s.User)
		if s.Password != "" {
			u.User = url.UserPassword(s.User, s.Password)
		}
	}
	if len(s.Params) > 0 {
		q := url.Values{}
		for k, v := range s.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func mysqlDSN(s dataadapter.Settings) (string, error) {
	if s.Database == "" {
		return "", fmt.Errorf("%w: mysql needs a database name", dataadapter.ErrInvalidSettings)
	}

	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = hostPort(s, 3306)
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	if len(s.Params) > 0 {
		cfg.Params = make(map[string]string, len(s.Params))
		for k, v := range s.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

// mysqlPrepare makes an explicit DSN report matched rather than changed rows,
// so an UpdateRow that writes the current values still counts its row.
func mysqlPrepare(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: %w", dataadapter.ErrInvalidSettings, err)
	}
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func hostPort(s dataadapter.Settings, defaultPort int) string {
	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// inMemory reports whether a SQLite DSN names a private in-memory database,
// which exists only for the lifetime of a single connection.
func inMemory(driverName, dsn string) bool {
	if driverName != "sqlite3" {
		return false
	}
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
