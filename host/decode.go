package host

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/tarmac-project/dataadapter"
)

// decodeResult converts the JSON rows returned by the host into a ResultSet.
// Cells are taken in the order of columns; when the host sends no column
// list, the keys of the first row are used in sorted order.
func decodeResult(qr QueryResult) (*dataadapter.ResultSet, error) {
	rs := &dataadapter.ResultSet{Columns: append([]string(nil), qr.Columns...)}

	data := bytes.TrimSpace(qr.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return rs, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Join(dataadapter.ErrHostResponseInvalid, ErrUnmarshalResponse, err)
	}

	if len(rs.Columns) == 0 && len(records) > 0 {
		for col := range records[0] {
			rs.Columns = append(rs.Columns, col)
		}
		sort.Strings(rs.Columns)
	}

	for _, rec := range records {
		cells := make([]any, len(rs.Columns))
		for i, col := range rs.Columns {
			cells[i] = flatten(rec[col])
		}
		if err := rs.Append(cells); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// flatten re-encodes nested JSON values so they read back as JSON text.
func flatten(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return b
	default:
		return v
	}
}
