package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/metrics"
)

// Compile-time checks.
var (
	_ domain.Generator          = (*Generator)(nil)
	_ domain.StreamingGenerator = (*Generator)(nil)
)

// ChatConfig holds the chat completion settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TopP        float32
	// RequestsPerSecond limits outgoing calls; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// Generator calls an OpenAI-compatible /chat/completions endpoint (Groq by default).
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	topP        float32
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewGenerator creates a chat completion client.
func NewGenerator(cfg *ChatConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		topP:        cfg.TopP,
		limiter:     limiter,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Complete implements domain.Generator.
func (g *Generator) Complete(ctx context.Context, messages []domain.ChatMessage) (domain.Completion, error) {
	if err := g.wait(ctx); err != nil {
		return domain.Completion{}, err
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, g.request(messages, false))
	metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.Completion{}, classify(ctx, err, "completion", domain.ErrGeneration)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.Completion{}, fmt.Errorf("completion has no choices: %w", domain.ErrGeneration)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	g.recordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return domain.Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Stream implements domain.StreamingGenerator. The returned completion holds the concatenated text.
func (g *Generator) Stream(
	ctx context.Context, messages []domain.ChatMessage, emit func(delta string) error,
) (domain.Completion, error) {
	if err := g.wait(ctx); err != nil {
		return domain.Completion{}, err
	}

	start := time.Now()
	defer func() {
		metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(time.Since(start).Seconds())
	}()

	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(messages, true))
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.Completion{}, classify(ctx, err, "completion stream", domain.ErrGeneration)
	}
	defer stream.Close()

	var sb strings.Builder
	var out domain.Completion
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
			return domain.Completion{}, classify(ctx, err, "completion stream", domain.ErrGeneration)
		}
		if chunk.Usage != nil {
			out.PromptTokens = chunk.Usage.PromptTokens
			out.CompletionTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := emit(delta); err != nil {
			metrics.GenerationRequestsTotal.WithLabelValues(g.model, "aborted").Inc()
			return domain.Completion{}, err
		}
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	g.recordTokens(out.PromptTokens, out.CompletionTokens)
	out.Text = sb.String()
	return out, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (g *Generator) request(messages []domain.ChatMessage, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		TopP:        g.topP,
		Stream:      stream,
	}
	if stream {
		// Usage arrives in a final chunk with no choices.
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return req
}

// wait blocks on the rate limiter. A deadline hit while waiting counts as a timeout.
func (g *Generator) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		// Wait also fails early when the next token would arrive after the deadline.
		if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("rate limit wait: %w", domain.ErrTimeout)
		}
		g.logger.Debug("Rate limiter rejected completion", zap.Error(err))
		return fmt.Errorf("rate limit wait: %v: %w", err, domain.ErrGeneration)
	}
	return nil
}

func (g *Generator) recordTokens(prompt, completion int) {
	if prompt > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.model, "completion").Add(float64(completion))
	}
}
