// Package artifact persists a built vector index together with its manifest.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/vectorindex"
)

// File names inside an artifact directory.
const (
	ManifestFile = "manifest.json"
	VectorsFile  = "vectors.bin"
)

// FormatVersion is the manifest layout written by this package.
const FormatVersion = 1

// Manifest describes an index build.
type Manifest struct {
	FormatVersion      int       `json:"format_version"`
	DocumentCount      int       `json:"document_count"`
	Dimensionality     int       `json:"dimensionality"`
	EmbedderIdentifier string    `json:"embedder_identifier"`
	Metric             string    `json:"metric"`
	BuildTimestamp     time.Time `json:"build_timestamp"`
	// Positions maps index position to document id.
	Positions       []int64 `json:"positions"`
	VectorsChecksum uint32  `json:"vectors_checksum"`
}

// Artifact is an index and the manifest that describes it.
type Artifact struct {
	Manifest Manifest
	Index    *vectorindex.Index
}

// New assembles an artifact. ids[i] is the document stored at index position i.
func New(ix *vectorindex.Index, ids []int64, embedderID string, builtAt time.Time) (*Artifact, error) {
	if ix == nil {
		return nil, fmt.Errorf("%w: nil index", domain.ErrEmptyIndex)
	}
	if len(ids) != ix.Len() {
		return nil, fmt.Errorf("artifact: %d ids for %d vectors", len(ids), ix.Len())
	}

	positions := make([]int64, len(ids))
	copy(positions, ids)

	return &Artifact{
		Manifest: Manifest{
			FormatVersion:      FormatVersion,
			DocumentCount:      ix.Len(),
			Dimensionality:     ix.Dims(),
			EmbedderIdentifier: embedderID,
			Metric:             vectorindex.MetricCosine,
			BuildTimestamp:     builtAt.UTC(),
			Positions:          positions,
			VectorsChecksum:    ix.Checksum(),
		},
		Index: ix,
	}, nil
}

// IDAt returns the document id stored at an index position.
func (a *Artifact) IDAt(pos int) int64 { return a.Manifest.Positions[pos] }

// PositionsByID inverts the manifest mapping.
func (a *Artifact) PositionsByID() map[int64]int {
	m := make(map[int64]int, len(a.Manifest.Positions))
	for pos, id := range a.Manifest.Positions {
		m[id] = pos
	}
	return m
}

// Exists reports whether dir holds a manifest.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}

// Write stores the artifact under dir. Files are written into a sibling temporary
// directory that replaces dir only after every file is synced, so a failed build
// leaves the previous artifact untouched.
func (a *Artifact) Write(dir string) (err error) {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", parent, err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := writeFile(filepath.Join(tmp, VectorsFile), func(w *bufio.Writer) error {
		_, werr := a.Index.WriteTo(w)
		return werr
	}); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	if err := writeFile(filepath.Join(tmp, ManifestFile), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a.Manifest)
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return swapDir(tmp, dir)
}

func writeFile(path string, fill func(w *bufio.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// swapDir moves tmp into place at dir, keeping the old dir until the rename succeeds.
func swapDir(tmp, dir string) error {
	old := ""
	if _, err := os.Stat(dir); err == nil {
		old = fmt.Sprintf("%s.old-%d", dir, time.Now().UnixNano())
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("move previous artifact: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("publish artifact: %w", err)
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

// Load reads and verifies an artifact. Every failure wraps domain.ErrLoad.
func Load(dir string) (*Artifact, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", domain.ErrLoad, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %w", domain.ErrLoad, err)
	}

	f, err := os.Open(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: open vectors: %w", domain.ErrLoad, err)
	}
	defer func() { _ = f.Close() }()

	ix, err := vectorindex.Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: read vectors: %w", domain.ErrLoad, err)
	}

	a := &Artifact{Manifest: m, Index: ix}
	if err := a.verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoad, err)
	}
	return a, nil
}

func (a *Artifact) verify() error {
	m := a.Manifest
	switch {
	case m.FormatVersion != FormatVersion:
		return fmt.Errorf("unsupported manifest format %d", m.FormatVersion)
	case m.Metric != vectorindex.MetricCosine:
		return fmt.Errorf("unsupported metric %q", m.Metric)
	case m.EmbedderIdentifier == "":
		return fmt.Errorf("manifest has no embedder identifier")
	case m.DocumentCount != a.Index.Len():
		return fmt.Errorf("manifest count %d, vectors %d", m.DocumentCount, a.Index.Len())
	case len(m.Positions) != m.DocumentCount:
		return fmt.Errorf("manifest has %d positions for %d documents", len(m.Positions), m.DocumentCount)
	case m.Dimensionality != a.Index.Dims():
		return fmt.Errorf("manifest dims %d, vectors %d", m.Dimensionality, a.Index.Dims())
	case m.VectorsChecksum != a.Index.Checksum():
		return fmt.Errorf("vectors checksum %08x does not match manifest %08x", a.Index.Checksum(), m.VectorsChecksum)
	}

	seen := make(map[int64]struct{}, len(m.Positions))
	for _, id := range m.Positions {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("document %d appears twice in manifest", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
