package document

import (
	"fmt"
	"strings"
)

// Well-known metadata keys produced by the bills conversion step.
const (
	MetaTitle    = "title"
	MetaState    = "state"
	MetaCategory = "category"
	MetaDate     = "date"
	MetaURL      = "url"
	MetaStatus   = "status"
)

// Document is the document aggregate (immutable value object).
type Document struct {
	id       int64
	text     string
	metadata map[string]string
}

// New validates and creates a Document. Text must contain a non-space character.
func New(id int64, text string, metadata map[string]string) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("document %d: text is required", id)
	}
	return Document{id: id, text: text, metadata: cloneStringMap(metadata)}, nil
}

// ID returns the document identifier.
func (d *Document) ID() int64 { return d.id }

// Text returns the document text.
func (d *Document) Text() string { return d.text }

// Metadata returns a copy of the metadata fields.
func (d *Document) Metadata() map[string]string { return cloneStringMap(d.metadata) }

// Meta returns a single metadata value or "".
func (d *Document) Meta(key string) string { return d.metadata[key] }

// Title returns the title metadata.
func (d *Document) Title() string { return d.metadata[MetaTitle] }

// State returns the jurisdiction metadata as stored.
func (d *Document) State() string { return d.metadata[MetaState] }

// Categories splits the ";"-separated category metadata into trimmed, lower-cased values.
func (d *Document) Categories() []string {
	raw := d.metadata[MetaCategory]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
