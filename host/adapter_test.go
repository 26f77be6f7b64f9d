package host

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tarmac-project/dataadapter"
	"github.com/tarmac-project/dataadapter/hostmock"
	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	proto "github.com/tarmac-project/protobuf-go/sdk/sql"
)

// fakeHost answers sql capability calls from scripted responses keyed by
// statement text. Unknown statements are rejected with status 400.
type fakeHost struct {
	mu      sync.Mutex
	queries map[string]*proto.SQLQueryResponse
	execs   map[string]*proto.SQLExecResponse
	seen    []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		queries: map[string]*proto.SQLQueryResponse{
			PingQuery: rows([]string{"1"}, `[{"1":1}]`),
		},
		execs: make(map[string]*proto.SQLExecResponse),
	}
}

func rows(columns []string, data string) *proto.SQLQueryResponse {
	return &proto.SQLQueryResponse{
		Status:  &sdkproto.Status{Status: "OK", Code: 200},
		Columns: columns,
		Data:    []byte(data),
	}
}

func affected(n, lastID int64) *proto.SQLExecResponse {
	return &proto.SQLExecResponse{
		Status:       &sdkproto.Status{Status: "OK", Code: 200},
		RowsAffected: n,
		LastInsertId: lastID,
	}
}

func (h *fakeHost) handlers() map[string]hostmock.Handler {
	return map[string]hostmock.Handler{
		fnQuery: func(p []byte) ([]byte, error) {
			var req proto.SQLQuery
			if err := req.UnmarshalVT(p); err != nil {
				return nil, err
			}
			h.mu.Lock()
			defer h.mu.Unlock()
			h.seen = append(h.seen, string(req.GetQuery()))
			resp, ok := h.queries[string(req.GetQuery())]
			if !ok {
				resp = &proto.SQLQueryResponse{Status: &sdkproto.Status{Status: "unscripted query", Code: 400}}
			}
			return resp.MarshalVT()
		},
		fnExec: func(p []byte) ([]byte, error) {
			var req proto.SQLExec
			if err := req.UnmarshalVT(p); err != nil {
				return nil, err
			}
			h.mu.Lock()
			defer h.mu.Unlock()
			h.seen = append(h.seen, string(req.GetQuery()))
			resp, ok := h.execs[string(req.GetQuery())]
			if !ok {
				resp = &proto.SQLExecResponse{Status: &sdkproto.Status{Status: "unscripted statement", Code: 400}}
			}
			return resp.MarshalVT()
		},
	}
}

func (h *fakeHost) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.seen) == 0 {
		return ""
	}
	return h.seen[len(h.seen)-1]
}

func connect(t *testing.T, h *fakeHost, settings dataadapter.Settings) *Adapter {
	t.Helper()

	mock, err := hostmock.New(hostmock.Config{
		ExpectedNamespace:  "library",
		ExpectedCapability: capabilityName,
		Handlers:           h.handlers(),
	})
	if err != nil {
		t.Fatalf("hostmock: %v", err)
	}

	settings.Driver = "tarmac"
	settings.Namespace = "library"
	a := New(Config{HostCall: mock.HostCall}, dataadapter.Options{})
	if err := a.Connect(context.Background(), settings); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Disconnect() })
	return a
}

func TestAdapterLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newFakeHost()
	a := connect(t, h, dataadapter.Settings{})

	if !a.IsConnected() {
		t.Fatal("expected adapter to be connected")
	}
	if got := h.last(); got != PingQuery {
		t.Fatalf("expected ping on connect, got %q", got)
	}

	err := a.Connect(ctx, dataadapter.Settings{Driver: "tarmac"})
	if !errors.Is(err, dataadapter.ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}

	if err := a.Disconnect(); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("second Disconnect returned error: %v", err)
	}
	if a.IsConnected() {
		t.Fatal("expected adapter to be disconnected")
	}

	if _, err := a.GetOne(ctx, "SELECT 1"); !errors.Is(err, dataadapter.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestAdapterConnectFailure(t *testing.T) {
	t.Parallel()

	mock, err := hostmock.New(hostmock.Config{Fail: true})
	if err != nil {
		t.Fatalf("hostmock: %v", err)
	}

	a := New(Config{HostCall: mock.HostCall}, dataadapter.Options{})
	err = a.Connect(context.Background(), dataadapter.Settings{Driver: "tarmac"})
	if !errors.Is(err, dataadapter.ErrHostCall) {
		t.Fatalf("expected ErrHostCall, got %v", err)
	}
	if a.IsConnected() {
		t.Fatal("failed Connect must leave the adapter disconnected")
	}

	calls := mock.Calls()
	if len(calls) != 1 || calls[0].Namespace != DefaultNamespace {
		t.Fatalf("expected one call on the default namespace, got %+v", calls)
	}
}

func TestAdapterReads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newFakeHost()
	h.queries["SELECT title FROM books WHERE id = 1"] = rows([]string{"title"}, `[{"title":"Dune"}]`)
	h.queries["SELECT title FROM books WHERE id = 0"] = rows([]string{"title"}, `[]`)
	h.queries["SELECT price FROM books WHERE id = 2"] = rows([]string{"price"}, `[{"price":null}]`)
	h.queries["SELECT id, title, year FROM books"] = rows(
		[]string{"id", "title", "year"},
		`[{"id":1,"title":"Dune","year":1965},{"id":2,"title":"Emma","year":null}]`,
	)
	h.queries["SELECT id, title FROM books"] = rows(
		[]string{"id", "title"},
		`[{"id":1,"title":"Dune"},{"id":2,"title":"Emma"}]`,
	)
	h.queries["SELECT author_id, title FROM books"] = rows(
		[]string{"author_id", "title"},
		`[{"author_id":7,"title":"Dune"},{"author_id":7,"title":"Emma"}]`,
	)
	a := connect(t, h, dataadapter.Settings{})

	t.Run("GetOne", func(t *testing.T) {
		got, err := a.GetOne(ctx, "SELECT title FROM books WHERE id = 1")
		if err != nil || got != "Dune" {
			t.Fatalf("GetOne: got %q, %v", got, err)
		}
	})

	t.Run("GetOne no rows", func(t *testing.T) {
		if _, err := a.GetOne(ctx, "SELECT title FROM books WHERE id = 0"); !errors.Is(err, dataadapter.ErrNoRows) {
			t.Fatalf("expected ErrNoRows, got %v", err)
		}
	})

	t.Run("GetOne null", func(t *testing.T) {
		if _, err := a.GetOne(ctx, "SELECT price FROM books WHERE id = 2"); !errors.Is(err, dataadapter.ErrNullValue) {
			t.Fatalf("expected ErrNullValue, got %v", err)
		}
	})

	t.Run("GetQueryResult", func(t *testing.T) {
		got, err := a.GetQueryResult(ctx, "SELECT id, title, year FROM books")
		if err != nil {
			t.Fatalf("GetQueryResult returned error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(got))
		}
		if got[0]["id"] != "1" || got[0]["title"] != "Dune" || got[0]["year"] != "1965" {
			t.Fatalf("unexpected first row: %v", got[0])
		}
		if got[1]["year"] != "" {
			t.Fatalf("NULL should read as empty text, got %q", got[1]["year"])
		}
	})

	t.Run("GetIndexedList", func(t *testing.T) {
		got, err := a.GetIndexedList(ctx, "SELECT id, title FROM books")
		if err != nil {
			t.Fatalf("GetIndexedList returned error: %v", err)
		}
		if len(got) != 2 || got["1"] != "Dune" || got["2"] != "Emma" {
			t.Fatalf("unexpected map: %v", got)
		}
	})

	t.Run("GetIndexedList duplicate key", func(t *testing.T) {
		_, err := a.GetIndexedList(ctx, "SELECT author_id, title FROM books")
		if !errors.Is(err, dataadapter.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("host rejects query", func(t *testing.T) {
		_, err := a.GetQueryResult(ctx, "SELEC * FROM books")
		if !errors.Is(err, dataadapter.ErrHostError) || !errors.Is(err, dataadapter.ErrInvalidQuery) {
			t.Fatalf("expected host error with ErrInvalidQuery, got %v", err)
		}
	})
}

func TestAdapterRowOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newFakeHost()
	h.execs["DELETE FROM books WHERE id = 1"] = affected(1, 0)
	h.execs["DELETE FROM books WHERE id = 99"] = affected(0, 0)
	h.execs["DELETE FROM books WHERE id = 5"] = affected(2, 0)
	h.execs["UPDATE books SET title = 'Emma''s Day', year = 1816 WHERE id = 2"] = affected(1, 0)
	h.execs["INSERT INTO books (available,title) VALUES (TRUE,'Dune')"] = affected(1, 3)
	h.execs["INSERT INTO books (title) VALUES ('Ghost')"] = affected(0, 0)
	a := connect(t, h, dataadapter.Settings{})

	tt := []struct {
		name    string
		run     func() (bool, error)
		want    bool
		wantErr error
		wantSQL string
	}{
		{
			name:    "delete one",
			run:     func() (bool, error) { return a.DeleteRow(ctx, "books", 1) },
			want:    true,
			wantSQL: "DELETE FROM books WHERE id = 1",
		},
		{
			name:    "delete missing",
			run:     func() (bool, error) { return a.DeleteRow(ctx, "books", 99) },
			wantErr: dataadapter.ErrRowNotFound,
		},
		{
			name:    "delete ambiguous",
			run:     func() (bool, error) { return a.DeleteRow(ctx, "books", 5) },
			wantErr: dataadapter.ErrAmbiguousRows,
		},
		{
			name: "update",
			run: func() (bool, error) {
				return a.UpdateRow(ctx, "books", 2, dataadapter.Values{
					"title": dataadapter.Text("Emma's Day"),
					"year":  dataadapter.Int(1816),
				})
			},
			want:    true,
			wantSQL: "UPDATE books SET title = 'Emma''s Day', year = 1816 WHERE id = 2",
		},
		{
			name:    "bad table",
			run:     func() (bool, error) { return a.DeleteRow(ctx, "books; DROP TABLE books", 1) },
			wantErr: dataadapter.ErrInvalidIdentifier,
		},
		{
			name:    "no values",
			run:     func() (bool, error) { return a.UpdateRow(ctx, "books", 2, nil) },
			wantErr: dataadapter.ErrNoValues,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.run()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if tc.wantSQL != "" && h.last() != tc.wantSQL {
				t.Fatalf("statement mismatch: want %q got %q", tc.wantSQL, h.last())
			}
		})
	}

	t.Run("insert row", func(t *testing.T) {
		id, err := a.InsertRow(ctx, "books", dataadapter.Values{
			"title":     dataadapter.Text("Dune"),
			"available": dataadapter.Bool(true),
		})
		if err != nil || id != 3 {
			t.Fatalf("InsertRow: got %d, %v", id, err)
		}
	})

	t.Run("insert without id", func(t *testing.T) {
		_, err := a.InsertQuery(ctx, "INSERT INTO books (title) VALUES ('Ghost')")
		if !errors.Is(err, dataadapter.ErrNoInsertID) {
			t.Fatalf("expected ErrNoInsertID, got %v", err)
		}
	})
}

func TestAdapterInsertReturning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newFakeHost()
	h.queries["INSERT INTO books (title) VALUES ('Dune') RETURNING id"] = rows([]string{"id"}, `[{"id":11}]`)
	h.queries["INSERT INTO books (title) SELECT 'x' WHERE 1 = 0 RETURNING id"] = rows([]string{"id"}, `[]`)
	a := connect(t, h, dataadapter.Settings{Params: map[string]string{"insert_returning": "true"}})

	id, err := a.InsertRow(ctx, "books", dataadapter.Values{"title": dataadapter.Text("Dune")})
	if err != nil || id != 11 {
		t.Fatalf("InsertRow: got %d, %v", id, err)
	}

	id, err = a.InsertQuery(ctx, "INSERT INTO books (title) VALUES ('Dune') RETURNING id")
	if err != nil || id != 11 {
		t.Fatalf("InsertQuery: got %d, %v", id, err)
	}

	_, err = a.InsertQuery(ctx, "INSERT INTO books (title) SELECT 'x' WHERE 1 = 0 RETURNING id")
	if !errors.Is(err, dataadapter.ErrNoInsertID) {
		t.Fatalf("expected ErrNoInsertID, got %v", err)
	}
}

func TestAdapterInsertQueryReturningInLiteral(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newFakeHost()
	h.execs["INSERT INTO books (title) VALUES ('Returning Home')"] = affected(1, 9)
	h.execs[`INSERT INTO books ("returning") VALUES (1)`] = affected(1, 10)
	a := connect(t, h, dataadapter.Settings{})

	tt := []struct {
		query string
		want  int64
	}{
		{"INSERT INTO books (title) VALUES ('Returning Home')", 9},
		{`INSERT INTO books ("returning") VALUES (1)`, 10},
	}
	for _, tc := range tt {
		id, err := a.InsertQuery(ctx, tc.query)
		if err != nil || id != tc.want {
			t.Fatalf("InsertQuery(%q): got %d, %v", tc.query, id, err)
		}
		if h.last() != tc.query {
			t.Fatalf("expected %q to be executed, host saw %q", tc.query, h.last())
		}
	}
}

func TestAdapterTextQuoting(t *testing.T) {
	t.Parallel()

	const injected = `x\' OR 1=1 -- `

	tt := []struct {
		name    string
		dialect string
		wantSQL string
		wantErr error
	}{
		{
			name:    "mysql doubles backslashes",
			dialect: "mysql",
			wantSQL: `UPDATE books SET title = 'x\\'' OR 1=1 -- ' WHERE id = 1`,
		},
		{
			name:    "postgres keeps backslashes",
			dialect: "postgres",
			wantSQL: `UPDATE books SET title = 'x\'' OR 1=1 -- ' WHERE id = 1`,
		},
		{
			name:    "standard keeps backslashes",
			dialect: "Standard",
			wantSQL: `UPDATE books SET title = 'x\'' OR 1=1 -- ' WHERE id = 1`,
		},
		{
			name:    "unset dialect rejects backslashes",
			wantErr: dataadapter.ErrUnsupportedValue,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := newFakeHost()
			if tc.wantSQL != "" {
				h.execs[tc.wantSQL] = affected(1, 0)
			}
			settings := dataadapter.Settings{}
			if tc.dialect != "" {
				settings.Params = map[string]string{"dialect": tc.dialect}
			}
			a := connect(t, h, settings)

			ok, err := a.UpdateRow(ctx, "books", 1, dataadapter.Values{"title": dataadapter.Text(injected)})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				if ok {
					t.Fatal("rejected update must not report success")
				}
				// Only the connect ping reached the host.
				if h.last() != PingQuery {
					t.Fatalf("no statement should be sent, host saw %q", h.last())
				}
				_, err = a.InsertRow(ctx, "books", dataadapter.Values{"title": dataadapter.Text(injected)})
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("InsertRow: expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if !ok || h.last() != tc.wantSQL {
				t.Fatalf("UpdateRow: got %v, host saw %q, want %q", ok, h.last(), tc.wantSQL)
			}
		})
	}
}

func TestAdapterUnknownDialect(t *testing.T) {
	t.Parallel()

	mock, err := hostmock.New(hostmock.Config{
		ExpectedNamespace:  "library",
		ExpectedCapability: capabilityName,
		Handlers:           newFakeHost().handlers(),
	})
	if err != nil {
		t.Fatalf("hostmock: %v", err)
	}

	a := New(Config{HostCall: mock.HostCall}, dataadapter.Options{})
	err = a.Connect(context.Background(), dataadapter.Settings{
		Driver:    "tarmac",
		Namespace: "library",
		Params:    map[string]string{"dialect": "oracle"},
	})
	if !errors.Is(err, dataadapter.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if a.IsConnected() || len(mock.Calls()) != 0 {
		t.Fatal("an unknown dialect must fail before reaching the host")
	}
}

func TestAdapterExecute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newFakeHost()
	h.execs["UPDATE books SET available = FALSE"] = affected(4, 0)
	a := connect(t, h, dataadapter.Settings{})

	n, err := a.Execute(ctx, "UPDATE books SET available = FALSE")
	if err != nil || n != 4 {
		t.Fatalf("Execute: got %d, %v", n, err)
	}

	if _, err := a.Execute(ctx, ""); !errors.Is(err, dataadapter.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := a.Execute(canceled, "UPDATE books SET available = FALSE"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDecodeResult(t *testing.T) {
	t.Parallel()

	tt := []struct {
		name     string
		in       QueryResult
		wantCols []string
		wantRows []dataadapter.Row
		wantErr  error
	}{
		{
			name:     "empty data",
			in:       QueryResult{Columns: []string{"id"}},
			wantCols: []string{"id"},
			wantRows: []dataadapter.Row{},
		},
		{
			name:     "columns inferred",
			in:       QueryResult{Data: []byte(`[{"title":"Dune","id":1}]`)},
			wantCols: []string{"id", "title"},
			wantRows: []dataadapter.Row{{"id": "1", "title": "Dune"}},
		},
		{
			name:     "large integers keep precision",
			in:       QueryResult{Columns: []string{"n"}, Data: []byte(`[{"n":9007199254740993}]`)},
			wantCols: []string{"n"},
			wantRows: []dataadapter.Row{{"n": "9007199254740993"}},
		},
		{
			name:     "nested values as json",
			in:       QueryResult{Columns: []string{"tags"}, Data: []byte(`[{"tags":["a","b"]}]`)},
			wantCols: []string{"tags"},
			wantRows: []dataadapter.Row{{"tags": `["a","b"]`}},
		},
		{
			name:    "malformed",
			in:      QueryResult{Columns: []string{"id"}, Data: []byte(`{"id":`)},
			wantErr: dataadapter.ErrHostResponseInvalid,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rs, err := decodeResult(tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}
			if len(rs.Columns) != len(tc.wantCols) {
				t.Fatalf("columns mismatch: want %v got %v", tc.wantCols, rs.Columns)
			}
			for i := range tc.wantCols {
				if rs.Columns[i] != tc.wantCols[i] {
					t.Fatalf("columns mismatch: want %v got %v", tc.wantCols, rs.Columns)
				}
			}
			got := rs.Rows()
			if len(got) != len(tc.wantRows) {
				t.Fatalf("rows mismatch: want %v got %v", tc.wantRows, got)
			}
			for i := range got {
				for k, v := range tc.wantRows[i] {
					if got[i][k] != v {
						t.Fatalf("row %d column %s: want %q got %q", i, k, v, got[i][k])
					}
				}
			}
		})
	}
}

func TestRegistered(t *testing.T) {
	t.Parallel()

	a, err := dataadapter.New("tarmac", dataadapter.Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := a.(*Adapter); !ok {
		t.Fatalf("expected *Adapter, got %T", a)
	}
}
