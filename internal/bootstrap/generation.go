package bootstrap

import (
	"go.uber.org/zap"

	"github.com/kailas-cloud/billsearch/internal/config"
	openaiTransport "github.com/kailas-cloud/billsearch/internal/transport/openai"
)

// NewGenerator creates the chat completion client for answer synthesis.
func NewGenerator(cfg config.GenerationConfig, logger *zap.Logger) *openaiTransport.Generator {
	return openaiTransport.NewGenerator(&openaiTransport.ChatConfig{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		TopP:              cfg.TopP,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Logger:            logger,
	})
}
