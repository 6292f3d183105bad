package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	os.Exit(m.Run())
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// echoEmbeddings answers every input with a vector {index, index+0.5} and 3 tokens per input.
// When reversed is set the items are listed in reverse order.
func echoEmbeddings(t *testing.T, reversed bool) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp := embeddingResponse{Object: "list", Model: "test-model"}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingItem{
				Object:    "embedding",
				Embedding: []float32{float32(i), float32(i) + 0.5},
				Index:     i,
			})
		}
		if reversed {
			for i, j := 0, len(resp.Data)-1; i < j; i, j = i+1, j-1 {
				resp.Data[i], resp.Data[j] = resp.Data[j], resp.Data[i]
			}
		}
		resp.Usage.PromptTokens = 3 * len(req.Input)
		resp.Usage.TotalTokens = 3 * len(req.Input)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func rateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
	})
}

func newTestEmbedder(url string, maxRetries int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:       "test-key",
		BaseURL:      url,
		Model:        "test-model",
		Dimensions:   2,
		Provider:     "test",
		MaxRetries:   maxRetries,
		RetryBackoff: time.Millisecond,
		Logger:       zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(echoEmbeddings(t, false))
	defer server.Close()

	res, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "deepfake disclosure")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 2 || res.Embedding[1] != 0.5 {
		t.Errorf("embedding = %v", res.Embedding)
	}
	if res.PromptTokens != 3 || res.TotalTokens != 3 {
		t.Errorf("usage = %d/%d, want 3/3", res.PromptTokens, res.TotalTokens)
	}
}

func TestEmbedder_BatchEmbedRestoresInputOrder(t *testing.T) {
	server := httptest.NewServer(echoEmbeddings(t, true))
	defer server.Close()

	res, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	for i, vec := range res.Embeddings {
		if vec[0] != float32(i) {
			t.Errorf("embeddings[%d] = %v, want index %d", i, vec, i)
		}
	}
	if res.TotalTokens != 9 {
		t.Errorf("TotalTokens = %d, want 9", res.TotalTokens)
	}
}

func TestEmbedder_BatchEmbedEmpty(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer server.Close()

	res, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), nil)
	if err != nil || len(res.Embeddings) != 0 {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if calls.Load() != 0 {
		t.Error("empty batch reached the provider")
	}
}

func TestEmbedder_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		data []embeddingItem
	}{
		{"count mismatch", []embeddingItem{{Embedding: []float32{1, 2}, Index: 0}}},
		{"empty vector", []embeddingItem{{Embedding: []float32{1, 2}, Index: 0}, {Index: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(embeddingResponse{Object: "list", Data: tt.data})
			}))
			defer server.Close()

			_, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"})
			if !errors.Is(err, domain.ErrEmbedding) {
				t.Fatalf("expected ErrEmbedding, got %v", err)
			}
		})
	}
}

func TestEmbedder_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	echo := echoEmbeddings(t, false)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			rateLimited(w)
			return
		}
		echo(w, r)
	}))
	defer server.Close()

	if _, err := newTestEmbedder(server.URL, 2).Embed(context.Background(), "q"); err != nil {
		t.Fatalf("Embed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestEmbedder_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		rateLimited(w)
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 1).Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"input too long"}`))
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 3).Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestEmbedder_Timeout(t *testing.T) {
	server := stalledServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := newTestEmbedder(server.URL, 0).Embed(ctx, "q"); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// stalledServer never answers. Handlers are released before the server closes,
// so Close does not wait on requests the client already abandoned.
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })
	return server
}

func TestRetryable(t *testing.T) {
	if retryable(errors.New("dial tcp: refused")) {
		t.Error("transport error without status should not be retried")
	}
	if !retryable(&openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable}) {
		t.Error("503 should be retried")
	}
}
