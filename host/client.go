package host

import (
	"errors"
	"fmt"

	"github.com/tarmac-project/dataadapter"
	sdkproto "github.com/tarmac-project/protobuf-go/sdk"
	proto "github.com/tarmac-project/protobuf-go/sdk/sql"
	wapc "github.com/wapc/wapc-guest-tinygo"
)

const (
	// DefaultNamespace is used when no explicit namespace is provided.
	DefaultNamespace = "tarmac"

	capabilityName = "sql"
	fnExec         = "exec"
	fnQuery        = "query"

	hostStatusOK       = int32(200)
	hostStatusPartial  = int32(206)
	hostStatusBadInput = int32(400)
	hostStatusMissing  = int32(404)
	hostStatusError    = int32(500)
)

var (
	// ErrMarshalRequest wraps failures while encoding the request payload.
	ErrMarshalRequest = errors.New("failed to marshal request")

	// ErrUnmarshalResponse wraps failures while decoding the host response.
	ErrUnmarshalResponse = errors.New("failed to unmarshal response")
)

// HostCall defines the waPC host function signature used by SQL operations.
type HostCall func(string, string, string, []byte) ([]byte, error)

// Config controls how a Client instance interacts with the host runtime.
type Config struct {
	// Namespace is the runtime namespace used for host calls.
	Namespace string

	// HostCall overrides the waPC host function used for SQL operations.
	HostCall HostCall
}

// ExecResult mirrors the SQLExecResponse payload fields.
type ExecResult struct {
	// LastInsertID is the ID of the last inserted row, when available.
	LastInsertID int64
	// RowsAffected is the number of rows affected by the statement.
	RowsAffected int64
}

// QueryResult mirrors the SQLQueryResponse payload fields.
type QueryResult struct {
	// Columns are the column names returned by the query.
	Columns []string
	// Data is a JSON-encoded byte slice of the query result data.
	Data []byte
}

// Client sends SQL statements to the host capability.
type Client struct {
	namespace string
	hostCall  HostCall
}

// NewClient creates a SQL capability client.
func NewClient(config Config) (*Client, error) {
	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	hostCall := config.HostCall
	if hostCall == nil {
		hostCall = wapc.HostCall
	}

	return &Client{namespace: namespace, hostCall: hostCall}, nil
}

// Namespace returns the runtime namespace used for host calls.
func (c *Client) Namespace() string { return c.namespace }

// Exec executes a SQL statement that does not return rows.
func (c *Client) Exec(query string) (ExecResult, error) {
	if query == "" {
		return ExecResult{}, dataadapter.ErrInvalidQuery
	}

	req := &proto.SQLExec{Query: []byte(query)}
	b, err := req.MarshalVT()
	if err != nil {
		return ExecResult{}, errors.Join(ErrMarshalRequest, err)
	}

	respBytes, callErr := c.hostCall(c.namespace, capabilityName, fnExec, b)
	if callErr != nil && len(respBytes) == 0 {
		return ExecResult{}, errors.Join(dataadapter.ErrHostCall, callErr)
	}

	var resp proto.SQLExecResponse
	if unmarshalErr := resp.UnmarshalVT(respBytes); unmarshalErr != nil {
		return ExecResult{}, decodeError(callErr, unmarshalErr)
	}

	if statusErr := validateStatus(resp.GetStatus(), callErr); statusErr != nil {
		return ExecResult{}, statusErr
	}

	return ExecResult{
		LastInsertID: resp.GetLastInsertId(),
		RowsAffected: resp.GetRowsAffected(),
	}, nil
}

// Query executes a SQL statement that returns rows.
func (c *Client) Query(query string) (QueryResult, error) {
	if query == "" {
		return QueryResult{}, dataadapter.ErrInvalidQuery
	}

	req := &proto.SQLQuery{Query: []byte(query)}
	b, err := req.MarshalVT()
	if err != nil {
		return QueryResult{}, errors.Join(ErrMarshalRequest, err)
	}

	respBytes, callErr := c.hostCall(c.namespace, capabilityName, fnQuery, b)
	if callErr != nil && len(respBytes) == 0 {
		return QueryResult{}, errors.Join(dataadapter.ErrHostCall, callErr)
	}

	var resp proto.SQLQueryResponse
	if unmarshalErr := resp.UnmarshalVT(respBytes); unmarshalErr != nil {
		return QueryResult{}, decodeError(callErr, unmarshalErr)
	}

	if statusErr := validateStatus(resp.GetStatus(), callErr); statusErr != nil {
		return QueryResult{}, statusErr
	}

	return QueryResult{
		Columns: resp.GetColumns(),
		Data:    resp.GetData(),
	}, nil
}

// Close releases resources held by the client. The host owns the
// connection pool, so there is nothing to release yet.
func (c *Client) Close() error { return nil }

func decodeError(callErr, unmarshalErr error) error {
	if callErr != nil {
		return errors.Join(
			dataadapter.ErrHostCall,
			callErr,
			dataadapter.ErrHostResponseInvalid,
			ErrUnmarshalResponse,
			unmarshalErr,
		)
	}
	return errors.Join(dataadapter.ErrHostResponseInvalid, ErrUnmarshalResponse, unmarshalErr)
}

func validateStatus(status *sdkproto.Status, callErr error) error {
	if status == nil {
		if callErr != nil {
			return errors.Join(dataadapter.ErrHostCall, callErr, dataadapter.ErrHostResponseInvalid)
		}
		return dataadapter.ErrHostResponseInvalid
	}

	code := status.GetCode()
	switch code {
	case hostStatusOK, hostStatusPartial:
		return nil
	case hostStatusBadInput, hostStatusMissing, hostStatusError:
		detail := fmt.Sprintf("host status %d", code)
		if msg := status.GetStatus(); msg != "" {
			detail = fmt.Sprintf("%s: %s", detail, msg)
		}
		errs := []error{dataadapter.ErrHostError, errors.New(detail)}
		if code == hostStatusBadInput {
			errs = append(errs, dataadapter.ErrInvalidQuery)
		}
		if callErr != nil {
			errs = append([]error{dataadapter.ErrHostCall, callErr}, errs...)
		}
		return errors.Join(errs...)
	default:
		statusErr := fmt.Errorf("unexpected host status code %d", code)
		if callErr != nil {
			return errors.Join(dataadapter.ErrHostCall, callErr, dataadapter.ErrHostResponseInvalid, statusErr)
		}
		return errors.Join(dataadapter.ErrHostResponseInvalid, statusErr)
	}
}
