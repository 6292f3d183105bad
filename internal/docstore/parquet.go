package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

const parquetReadBatch = 512

// readParquet reads every row group through the generic row reader.
// Columns are matched on the top-level path element; repeated leaves are joined with ";".
func readParquet(ctx context.Context, path string) ([]document.Document, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrLoad, path, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrLoad, path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet: %v", domain.ErrLoad, err)
	}

	leaves := pf.Schema().Columns()
	names := make([]string, len(leaves))
	for i, p := range leaves {
		if len(p) > 0 {
			names[i] = strings.ToLower(p[0])
		}
	}
	if err := requireColumns(names); err != nil {
		return nil, err
	}

	var docs []document.Document
	row := 0
	buf := make([]parquet.Row, parquetReadBatch)

	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read parquet: %w", err)
		}

		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				row++
				doc, err := documentFromFields(rowFields(buf[i], names))
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", row, err)
				}
				docs = append(docs, doc)
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("%w: read rows: %v", domain.ErrLoad, readErr)
			}
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: source has no rows", domain.ErrLoad)
	}
	return docs, nil
}

func rowFields(row parquet.Row, names []string) map[string]string {
	fields := make(map[string]string, len(names))
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) || v.IsNull() {
			continue
		}
		name := names[col]
		s := valueString(v)
		if prev, ok := fields[name]; ok && prev != "" {
			s = prev + ";" + s
		}
		fields[name] = s
	}
	return fields
}

func valueString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
