package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient embeds and generates with Google Gemini
type GeminiClient struct {
	config  *common.GeminiConfig
	client  *genai.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewGeminiClient resolves the API key and creates the genai client
func NewGeminiClient(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiClient, error) {
	apiKey, err := common.ResolveAPIKey(ctx, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY, LECTERN_GEMINI_API_KEY, or gemini.api_key in config): %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Str("embed_model", config.EmbedModel).
		Int("embed_dimension", config.EmbedDimension).
		Msg("Gemini client initialized")

	return &GeminiClient{
		config:  config,
		client:  client,
		timeout: common.ParseDurationOr(config.Timeout, 2*time.Minute),
		limiter: newLimiter(config.RateLimit),
		logger:  logger,
	}, nil
}

// Embed returns the embedding vector for text
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	embedConfig := &genai.EmbedContentConfig{}
	if c.config.EmbedDimension > 0 {
		dim := int32(c.config.EmbedDimension)
		embedConfig.OutputDimensionality = &dim
	}

	contents := []*genai.Content{genai.NewContentFromText(embeddable(text), genai.RoleUser)}
	result, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, contents, embedConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embed: no embedding returned")
	}

	return result.Embeddings[0].Values, nil
}

// Generate returns the model's text response for prompt
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temp := opts.Temperature
	if temp <= 0 {
		temp = c.config.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if system := systemPrompt(opts.System, opts.Citations); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate: empty response")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty text in response")
	}

	c.logger.Debug().
		Str("model", c.config.Model).
		Int("prompt_length", len(prompt)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Gemini generation completed")

	return text, nil
}
