// Package answer synthesizes grounded answers from retrieved bills.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
	"github.com/kailas-cloud/billsearch/internal/logger"
)

// Answer is generated text with the ids of the passages it was grounded on, in rank order.
type Answer struct {
	Text      string
	Citations []int64
}

// Service calls the generator with the retrieved context. It never falls back to
// returning raw passages: a generation failure is an error.
type Service struct {
	gen       domain.Generator
	system    string
	timeout   time.Duration
	execStyle bool
	state     string
}

// New creates a synthesizer.
func New(gen domain.Generator) *Service {
	return &Service{gen: gen, system: DefaultSystemPrompt}
}

// WithTimeout bounds each generation call.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// WithSystemPrompt replaces the default system prompt when p is not empty.
func (s *Service) WithSystemPrompt(p string) *Service {
	if strings.TrimSpace(p) != "" {
		s.system = p
	}
	return s
}

// WithExecStyle enables Polish on generated answers.
func (s *Service) WithExecStyle(on bool) *Service {
	s.execStyle = on
	return s
}

// InState returns a copy scoped to the asking company's jurisdiction. The state is
// named in the prompt, and an empty result set gets the in-state reply.
func (s *Service) InState(state string) *Service {
	c := *s
	c.state = strings.TrimSpace(state)
	return &c
}

// Synthesize answers question from hits. With no hits the generator is not called.
func (s *Service) Synthesize(ctx context.Context, question string, hits []hit.Hit) (Answer, error) {
	if len(hits) == 0 {
		return s.empty(), nil
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	c, err := s.gen.Complete(callCtx, buildMessages(s.system, s.state, question, hits))
	if err != nil {
		return Answer{}, classify(callCtx, err)
	}
	if strings.TrimSpace(c.Text) == "" {
		return Answer{}, fmt.Errorf("empty completion: %w", domain.ErrGeneration)
	}

	s.record(ctx, c, len(hits), time.Since(start))
	text := strings.TrimSpace(c.Text)
	if s.execStyle {
		text = Polish(text)
	}
	return Answer{Text: text, Citations: hit.IDs(hits)}, nil
}

// Stream is Synthesize with the text forwarded to emit as it is generated.
// Generators without streaming support deliver the whole text in one call to emit.
// Text already sent cannot be rewritten, so in exec style a stream only gets the
// missing disclaimer appended.
func (s *Service) Stream(
	ctx context.Context, question string, hits []hit.Hit, emit func(delta string) error,
) (Answer, error) {
	if len(hits) == 0 {
		a := s.empty()
		if err := emit(a.Text); err != nil {
			return Answer{}, err
		}
		return a, nil
	}

	sg, ok := s.gen.(domain.StreamingGenerator)
	if !ok {
		a, err := s.Synthesize(ctx, question, hits)
		if err != nil {
			return Answer{}, err
		}
		return a, emit(a.Text)
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var emitErr error
	start := time.Now()
	c, err := sg.Stream(callCtx, buildMessages(s.system, s.state, question, hits), func(delta string) error {
		emitErr = emit(delta)
		return emitErr
	})
	if emitErr != nil {
		return Answer{}, emitErr
	}
	if err != nil {
		return Answer{}, classify(callCtx, err)
	}
	if strings.TrimSpace(c.Text) == "" {
		return Answer{}, fmt.Errorf("empty completion: %w", domain.ErrGeneration)
	}

	s.record(ctx, c, len(hits), time.Since(start))
	text := c.Text
	if s.execStyle {
		if tail := disclaimerTail(text); tail != "" {
			if err := emit(tail); err != nil {
				return Answer{}, err
			}
			text += tail
		}
	}
	return Answer{Text: text, Citations: hit.IDs(hits)}, nil
}

func (s *Service) empty() Answer {
	if s.state != "" {
		return Answer{Text: NoStateMatchAnswer, Citations: []int64{}}
	}
	return Answer{Text: NoContextAnswer, Citations: []int64{}}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) record(ctx context.Context, c domain.Completion, passages int, elapsed time.Duration) {
	domain.UsageFromContext(ctx).AddGenerationTokens(c.PromptTokens + c.CompletionTokens)
	logger.FromContext(ctx).Debug("Answer generated",
		zap.Int("passages", passages),
		zap.Int("prompt_tokens", c.PromptTokens),
		zap.Int("completion_tokens", c.CompletionTokens),
		zap.Duration("elapsed", elapsed),
	)
}

// classify maps generator failures onto ErrTimeout or ErrGeneration.
func classify(callCtx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrGeneration):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("generate answer: %w", domain.ErrTimeout)
	default:
		return fmt.Errorf("generate answer: %v: %w", err, domain.ErrGeneration)
	}
}
