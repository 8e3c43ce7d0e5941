package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"golang.org/x/time/rate"
)

// OpenAIClient embeds and generates with OpenAI or any compatible server
type OpenAIClient struct {
	config  *common.OpenAIConfig
	client  *openai.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewOpenAIClient creates the client. A key is optional when base_url points
// at a local server.
func NewOpenAIClient(ctx context.Context, config *common.OpenAIConfig, logger arbor.ILogger) (*OpenAIClient, error) {
	apiKey, err := common.ResolveAPIKey(ctx, "openai_api_key", config.APIKey)
	if err != nil {
		if config.BaseURL == "" {
			return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY, LECTERN_OPENAI_API_KEY, or openai.api_key in config): %w", err)
		}
		apiKey = "local"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	logger.Debug().
		Str("base_url", clientConfig.BaseURL).
		Str("model", config.Model).
		Str("embed_model", config.EmbedModel).
		Msg("OpenAI client initialized")

	return &OpenAIClient{
		config:  config,
		client:  openai.NewClientWithConfig(clientConfig),
		timeout: common.ParseDurationOr(config.Timeout, 2*time.Minute),
		limiter: newLimiter(config.RateLimit),
		logger:  logger,
	}, nil
}

// Embed returns the embedding vector for text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.config.EmbedModel),
		Input: []string{embeddable(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}

// Generate returns the chat completion for prompt
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := systemPrompt(opts.System, opts.Citations); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: messages,
	}

	temp := opts.Temperature
	if temp <= 0 {
		temp = c.config.Temperature
	}
	if temp > 0 {
		req.Temperature = temp
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai generate: empty response")
	}

	text := resp.Choices[0].Message.Content
	c.logger.Debug().
		Str("model", c.config.Model).
		Int("prompt_length", len(prompt)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("OpenAI generation completed")

	return text, nil
}
