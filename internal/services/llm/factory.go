package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
)

// NewEmbedder creates the configured embedding provider
func NewEmbedder(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.Embedder, error) {
	logger.Info().Str("provider", string(config.LLM.EmbedProvider)).Msg("Initializing embedder")

	switch config.LLM.EmbedProvider {
	case common.LLMProviderGemini:
		return NewGeminiClient(ctx, &config.Gemini, logger)
	case common.LLMProviderOpenAI:
		return NewOpenAIClient(ctx, &config.OpenAI, logger)
	default:
		return nil, fmt.Errorf("unsupported embed provider: %s", config.LLM.EmbedProvider)
	}
}

// NewGenerator creates the configured generation provider
func NewGenerator(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.Generator, error) {
	logger.Info().Str("provider", string(config.LLM.GenerateProvider)).Msg("Initializing generator")

	switch config.LLM.GenerateProvider {
	case common.LLMProviderGemini:
		return NewGeminiClient(ctx, &config.Gemini, logger)
	case common.LLMProviderClaude:
		return NewClaudeClient(ctx, &config.Claude, logger)
	case common.LLMProviderOpenAI:
		return NewOpenAIClient(ctx, &config.OpenAI, logger)
	default:
		return nil, fmt.Errorf("unsupported generate provider: %s", config.LLM.GenerateProvider)
	}
}
