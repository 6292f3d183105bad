package docstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

// ctxCheckEvery is how many rows are read between context checks.
const ctxCheckEvery = 1024

func readCSV(ctx context.Context, path string) ([]document.Document, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrLoad, path, err)
	}
	defer func() { _ = f.Close() }()

	return parseCSV(ctx, f)
}

func parseCSV(ctx context.Context, r io.Reader) ([]document.Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty source", domain.ErrLoad)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrLoad, err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	if err := requireColumns(cols); err != nil {
		return nil, err
	}

	var docs []document.Document
	for row := 1; ; row++ {
		if row%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("read csv: %w", err)
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrLoad, err)
		}

		fields := make(map[string]string, len(cols))
		for i, c := range cols {
			fields[c] = rec[i]
		}
		doc, err := documentFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: source has no rows", domain.ErrLoad)
	}
	return docs, nil
}
