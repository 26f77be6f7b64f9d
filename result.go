package dataadapter

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ResultSet is a column-ordered query result with text cells. Adapters build
// one per query and derive every read operation from it.
type ResultSet struct {
	Columns []string
	Records [][]sql.NullString
}

// Append converts raw driver values to text cells and adds them as a record.
func (rs *ResultSet) Append(values []any) error {
	if len(values) != len(rs.Columns) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrColumnCount, len(values), len(rs.Columns))
	}
	rec := make([]sql.NullString, len(values))
	for i, v := range values {
		rec[i] = FormatText(v)
	}
	rs.Records = append(rs.Records, rec)
	return nil
}

// Rows returns the records as column-name maps. The result is never nil.
func (rs *ResultSet) Rows() []Row {
	rows := make([]Row, 0, len(rs.Records))
	for _, rec := range rs.Records {
		row := make(Row, len(rs.Columns))
		for i, col := range rs.Columns {
			row[col] = rec[i].String
		}
		rows = append(rows, row)
	}
	return rows
}

// First returns the first cell of the first record.
func (rs *ResultSet) First() (string, error) {
	if len(rs.Columns) == 0 {
		return "", fmt.Errorf("%w: query selected no columns", ErrColumnCount)
	}
	if len(rs.Records) == 0 {
		return "", ErrNoRows
	}
	cell := rs.Records[0][0]
	if !cell.Valid {
		return "", ErrNullValue
	}
	return cell.String, nil
}

// Indexed maps the first column to the second. The result must have exactly
// two columns, and a repeated key is ErrDuplicateKey.
func (rs *ResultSet) Indexed() (map[string]string, error) {
	if len(rs.Columns) != 2 {
		return nil, fmt.Errorf("%w: indexed list needs 2 columns, got %d", ErrColumnCount, len(rs.Columns))
	}
	list := make(map[string]string, len(rs.Records))
	for _, rec := range rs.Records {
		key := rec[0].String
		if _, dup := list[key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		list[key] = rec[1].String
	}
	return list, nil
}

// FormatText converts a value produced by a driver or a JSON decoder to text.
// nil becomes an invalid (NULL) cell.
func FormatText(v any) sql.NullString {
	var s string
	switch x := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		s = x
	case []byte:
		s = string(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int:
		s = strconv.Itoa(x)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		s = x.Format(time.RFC3339)
	case json.Number:
		s = x.String()
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	return sql.NullString{String: s, Valid: true}
}

// ExpectOne converts the affected-row count of a row-level write to an error:
// nil for exactly one row, ErrRowNotFound for none, ErrAmbiguousRows otherwise.
func ExpectOne(affected int64) error {
	switch {
	case affected == 1:
		return nil
	case affected == 0:
		return ErrRowNotFound
	default:
		return fmt.Errorf("%w: %d rows", ErrAmbiguousRows, affected)
	}
}
