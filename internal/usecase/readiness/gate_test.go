package readiness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/artifact"
	"github.com/kailas-cloud/billsearch/internal/docstore"
	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/embedding/hashvec"
	"github.com/kailas-cloud/billsearch/internal/metrics"
	"github.com/kailas-cloud/billsearch/internal/usecase/build"
)

const testEmbedderID = "local/hashvec@64"

func staticLoader(store *docstore.Store, art *artifact.Artifact, emb EmbedderHandle) Loader {
	return Loader{
		Store:    func(context.Context) (*docstore.Store, error) { return store, nil },
		Artifact: func(context.Context) (*artifact.Artifact, error) { return art, nil },
		Embedder: func(context.Context) (EmbedderHandle, error) { return emb, nil },
	}
}

func fixture(t *testing.T) (*docstore.Store, *artifact.Artifact, EmbedderHandle) {
	t.Helper()
	var docs []document.Document
	for i, text := range []string{
		"Requires bias audits for hiring algorithms.",
		"Establishes an AI advisory council.",
		"Limits government use of facial recognition.",
	} {
		d, err := document.New(int64(i+1), text, map[string]string{"state": "CA"})
		if err != nil {
			t.Fatalf("document.New: %v", err)
		}
		docs = append(docs, d)
	}
	store, err := docstore.New(docs)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	emb := hashvec.New(64)
	art, err := build.New(emb, testEmbedderID, zap.NewNop()).Build(context.Background(), store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return store, art, EmbedderHandle{Embedder: emb, Identifier: testEmbedderID}
}

func assertNotReady(t *testing.T, g *Gate, want domain.ReadinessState) {
	t.Helper()
	err := g.EnsureReady()
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	var nr *domain.NotReadyError
	if !errors.As(err, &nr) || nr.State != want {
		t.Fatalf("expected state %s, got %v", want, err)
	}
	if snap, err := g.Snapshot(); snap != nil || err == nil {
		t.Fatal("Snapshot must not return components before READY")
	}
}

func TestGate_Uninitialized(t *testing.T) {
	g := NewGate(zap.NewNop())
	if state, _ := g.State(); state != domain.StateUninitialized {
		t.Fatalf("expected UNINITIALIZED, got %s", state)
	}
	assertNotReady(t, g, domain.StateUninitialized)
}

func TestGate_LoadingThenReady(t *testing.T) {
	store, art, emb := fixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})

	l := staticLoader(store, art, emb)
	l.Store = func(context.Context) (*docstore.Store, error) {
		close(entered)
		<-release
		return store, nil
	}

	g := NewGate(zap.NewNop())
	done := g.InitializeAsync(context.Background(), l)

	<-entered
	assertNotReady(t, g, domain.StateLoading)
	if got := testutil.ToFloat64(metrics.ReadinessState); got != float64(domain.StateLoading) {
		t.Errorf("gauge: expected %d, got %v", domain.StateLoading, got)
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initialization did not finish")
	}

	if err := g.EnsureReady(); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	snap, err := g.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Store == nil || snap.Artifact == nil || snap.Embedder == nil || snap.Keyword == nil {
		t.Fatalf("incomplete snapshot: %+v", snap)
	}
	if pos, ok := snap.PositionOf(3); !ok || snap.Artifact.IDAt(pos) != 3 {
		t.Error("position mapping not published")
	}
	if got := testutil.ToFloat64(metrics.ReadinessState); got != float64(domain.StateReady) {
		t.Errorf("gauge: expected %d, got %v", domain.StateReady, got)
	}
}

func TestGate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, l *Loader, store *docstore.Store, art *artifact.Artifact)
		wantErr error
	}{
		{
			name: "store load error",
			mutate: func(t *testing.T, l *Loader, _ *docstore.Store, _ *artifact.Artifact) {
				l.Store = func(context.Context) (*docstore.Store, error) {
					return nil, domain.ErrLoad
				}
				l.Artifact = func(context.Context) (*artifact.Artifact, error) {
					t.Error("artifact must not load after a store failure")
					return nil, nil
				}
			},
			wantErr: domain.ErrLoad,
		},
		{
			name: "count mismatch",
			mutate: func(t *testing.T, l *Loader, _ *docstore.Store, _ *artifact.Artifact) {
				d, _ := document.New(1, "only one", nil)
				small, err := docstore.New([]document.Document{d})
				if err != nil {
					t.Fatalf("docstore.New: %v", err)
				}
				l.Store = func(context.Context) (*docstore.Store, error) { return small, nil }
			},
			wantErr: domain.ErrLoad,
		},
		{
			name: "unknown id",
			mutate: func(t *testing.T, l *Loader, _ *docstore.Store, art *artifact.Artifact) {
				bad, err := artifact.New(art.Index, []int64{1, 2, 99}, testEmbedderID, time.Now())
				if err != nil {
					t.Fatalf("artifact.New: %v", err)
				}
				l.Artifact = func(context.Context) (*artifact.Artifact, error) { return bad, nil }
			},
			wantErr: domain.ErrLoad,
		},
		{
			name: "embedder mismatch",
			mutate: func(_ *testing.T, l *Loader, _ *docstore.Store, _ *artifact.Artifact) {
				l.Embedder = func(context.Context) (EmbedderHandle, error) {
					return EmbedderHandle{Embedder: hashvec.New(64), Identifier: "openai/other@64"}, nil
				}
			},
			wantErr: domain.ErrModelMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, art, emb := fixture(t)
			l := staticLoader(store, art, emb)
			tt.mutate(t, &l, store, art)

			g := NewGate(zap.NewNop())
			err := g.Initialize(context.Background(), l)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			state, cause := g.State()
			if state != domain.StateFailed || cause == nil {
				t.Fatalf("expected FAILED with cause, got %s / %v", state, cause)
			}
			assertNotReady(t, g, domain.StateFailed)

			// FAILED is terminal.
			if err := g.Initialize(context.Background(), staticLoader(store, art, emb)); !errors.Is(err, ErrAlreadyInitialized) {
				t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
			}
			assertNotReady(t, g, domain.StateFailed)
		})
	}
}
