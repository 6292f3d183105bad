package domain

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a completion prompt.
type ChatMessage struct {
	Role    string
	Content string
}

// Completion is the generated text with token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces a completion for a prompt.
// Implementations wrap deadline failures in ErrTimeout and every other failure in ErrGeneration.
type Generator interface {
	Complete(ctx context.Context, messages []ChatMessage) (Completion, error)
}

// StreamingGenerator forwards completion deltas to emit as they arrive.
// A non-nil error from emit aborts the stream and is returned as is.
type StreamingGenerator interface {
	Stream(ctx context.Context, messages []ChatMessage, emit func(delta string) error) (Completion, error)
}
