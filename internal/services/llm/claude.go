package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"golang.org/x/time/rate"
)

// ClaudeClient generates text with Anthropic Claude.
// Claude has no embedding endpoint, so it only serves as a Generator.
type ClaudeClient struct {
	config    *common.ClaudeConfig
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewClaudeClient resolves the API key and creates the Anthropic client.
// SDK retries are disabled; failures surface to the caller.
func NewClaudeClient(ctx context.Context, config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeClient, error) {
	apiKey, err := common.ResolveAPIKey(ctx, "claude_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, LECTERN_CLAUDE_API_KEY, or claude.api_key in config): %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	logger.Debug().
		Str("model", config.Model).
		Int("max_tokens", maxTokens).
		Float32("temperature", config.Temperature).
		Msg("Claude client initialized")

	return &ClaudeClient{
		config:    config,
		client:    anthropic.NewClient(opts...),
		timeout:   common.ParseDurationOr(config.Timeout, 2*time.Minute),
		maxTokens: maxTokens,
		limiter:   newLimiter(config.RateLimit),
		logger:    logger,
	}, nil
}

// Generate returns Claude's text response for prompt
func (c *ClaudeClient) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	temp := opts.Temperature
	if temp <= 0 {
		temp = c.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if system := systemPrompt(opts.System, opts.Citations); system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude generate: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("claude generate: empty response")
	}

	c.logger.Debug().
		Str("model", c.config.Model).
		Int("prompt_length", len(prompt)).
		Int("response_length", text.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude generation completed")

	return text.String(), nil
}
