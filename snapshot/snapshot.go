package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tarmac-project/dataadapter"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parallelism is the number of goroutines parquet-go uses to encode and decode.
const parallelism = 4

var (
	// ErrWrite wraps failures while writing a snapshot file.
	ErrWrite = errors.New("failed to write snapshot")

	// ErrRead wraps failures while reading a snapshot file.
	ErrRead = errors.New("failed to read snapshot")
)

// Record is the Parquet schema of a snapshot row.
type Record struct {
	Seq      int64  `parquet:"name=seq, type=INT64"`
	DataJSON string `parquet:"name=data_json, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Export runs query through a and writes every returned row to a Parquet file
// at path, replacing any existing file. It returns the number of rows written.
// Rows are written to a temporary file next to path which is renamed over path
// once complete, so a failed export leaves any previous snapshot in place.
func Export(ctx context.Context, a dataadapter.Adapter, query, path string) (int, error) {
	rows, err := a.GetQueryResult(ctx, query)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Join(ErrWrite, err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return 0, errors.Join(ErrWrite, err)
	}

	if err := write(name, rows); err != nil {
		_ = os.Remove(name)
		return 0, errors.Join(ErrWrite, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return 0, errors.Join(ErrWrite, err)
	}
	return len(rows), nil
}

func write(path string, rows []dataadapter.Row) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(Record), parallelism)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := pw.Write(&Record{Seq: int64(i), DataJSON: string(data)}); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return pw.WriteStop()
}

// Import reads the rows of a snapshot file in their original order.
func Import(path string) ([]dataadapter.Row, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, errors.Join(ErrRead, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Record), parallelism)
	if err != nil {
		return nil, errors.Join(ErrRead, err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]dataadapter.Row, 0, n)
	if n == 0 {
		return rows, nil
	}

	records := make([]Record, n)
	if err := pr.Read(&records); err != nil {
		return nil, errors.Join(ErrRead, err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	for _, rec := range records {
		var row dataadapter.Row
		if err := json.Unmarshal([]byte(rec.DataJSON), &row); err != nil {
			return nil, errors.Join(ErrRead, fmt.Errorf("row %d: %w", rec.Seq, err))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
