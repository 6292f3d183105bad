package docstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

func requireColumns(cols []string) error {
	var hasID, hasText bool
	for _, c := range cols {
		switch c {
		case ColumnID:
			hasID = true
		case ColumnText:
			hasText = true
		}
	}
	if !hasID || !hasText {
		return fmt.Errorf("%w: source must have %q and %q columns", domain.ErrLoad, ColumnID, ColumnText)
	}
	return nil
}

// documentFromFields turns one source row into a Document.
// Every column other than id and text becomes metadata.
func documentFromFields(fields map[string]string) (document.Document, error) {
	raw := strings.TrimSpace(fields[ColumnID])
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: id %q is not an integer", domain.ErrLoad, raw)
	}

	text := fields[ColumnText]
	if strings.TrimSpace(text) == "" {
		return document.Document{}, fmt.Errorf("%w: document %d has empty text", domain.ErrLoad, id)
	}

	var meta map[string]string
	for k, v := range fields {
		if k == ColumnID || k == ColumnText || k == "" {
			continue
		}
		if meta == nil {
			meta = make(map[string]string, len(fields)-2)
		}
		meta[k] = strings.TrimSpace(v)
	}

	doc, err := document.New(id, text, meta)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", domain.ErrLoad, err)
	}
	return doc, nil
}
