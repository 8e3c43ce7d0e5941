package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Chunking    ChunkingConfig  `toml:"chunking"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Chat        ChatConfig      `toml:"chat"`
	Summary     SummaryConfig   `toml:"summary"`
	Ingestion   IngestionConfig `toml:"ingestion"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	OpenAI      OpenAIConfig    `toml:"openai"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	ChunkBackend string         `toml:"chunk_backend" validate:"oneof=badger pgvector"` // Where chunk vectors persist
	Badger       BadgerConfig   `toml:"badger"`
	PgVector     PgVectorConfig `toml:"pgvector"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// PgVectorConfig configures the Postgres chunk store (pgvector extension required)
type PgVectorConfig struct {
	DSN       string `toml:"dsn"`
	Dimension int    `toml:"dimension" validate:"gte=0"` // Vector column width
	Table     string `toml:"table"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// ChunkingConfig holds the character budget for transcript chunks
type ChunkingConfig struct {
	Budget  int `toml:"budget" validate:"gt=0"`
	Overlap int `toml:"overlap" validate:"gte=0,ltfield=Budget"`
}

type RetrievalConfig struct {
	DedupOverlap float64 `toml:"dedup_overlap" validate:"gt=0,lte=1"` // Fraction of the shorter span
	MinScore     float64 `toml:"min_score" validate:"gte=-1,lte=1"`   // Drop matches below this cosine score
	OverFetch    int     `toml:"over_fetch" validate:"gte=1"`         // Search k*over_fetch before dedup
	EmbedWorkers int     `toml:"embed_workers" validate:"gte=1"`      // Parallel embedding calls per batch
	DefaultTopK  int     `toml:"default_top_k" validate:"gte=1"`
	MaxTopK      int     `toml:"max_top_k" validate:"gtefield=DefaultTopK"`
	QueryTimeout string  `toml:"query_timeout"`
}

type ChatConfig struct {
	TopK        int     `toml:"top_k" validate:"gte=1"`
	Temperature float32 `toml:"temperature" validate:"gte=0,lte=2"`
	Timeout     string  `toml:"timeout"`
}

type SummaryConfig struct {
	ContextBudget int    `toml:"context_budget" validate:"gt=0"` // Max characters fed into one generation call
	Branching     int    `toml:"branching" validate:"gte=2"`     // Max summaries merged per reduce call
	Timeout       string `toml:"timeout"`
}

type IngestionConfig struct {
	MaxDuration   string `toml:"max_duration"`   // A processing lecture older than this is failed by the sweep
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule (with seconds) for the stale sweep, empty disables it
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderOpenAI LLMProvider = "openai"
)

// LLMConfig selects the provider behind each capability
type LLMConfig struct {
	EmbedProvider    LLMProvider `toml:"embed_provider" validate:"oneof=gemini openai"`
	GenerateProvider LLMProvider `toml:"generate_provider" validate:"oneof=gemini claude openai"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	EmbedModel     string  `toml:"embed_model"`
	EmbedDimension int     `toml:"embed_dimension"`
	Timeout        string  `toml:"timeout"`
	RateLimit      string  `toml:"rate_limit"` // Minimum interval between calls, e.g. "4s" for 15 RPM
	Temperature    float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"` // Empty uses the Anthropic default
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// OpenAIConfig covers OpenAI and any OpenAI-compatible server (LM Studio, Ollama)
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	EmbedModel  string  `toml:"embed_model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// WebSocketConfig contains configuration for the status event stream
type WebSocketConfig struct {
	AllowedEvents []string `toml:"allowed_events"` // Empty list allows all events
	Throttle      string   `toml:"throttle"`       // Min interval between broadcasts per lecture, empty disables
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			ChunkBackend: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
			PgVector: PgVectorConfig{
				Dimension: 768,
				Table:     "lecture_chunks",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Chunking: ChunkingConfig{
			Budget:  800,
			Overlap: 150,
		},
		Retrieval: RetrievalConfig{
			DedupOverlap: 0.5,
			MinScore:     0,
			OverFetch:    3,
			EmbedWorkers: 4,
			DefaultTopK:  5,
			MaxTopK:      20,
			QueryTimeout: "30s",
		},
		Chat: ChatConfig{
			TopK:        5,
			Temperature: 0.2,
			Timeout:     "2m",
		},
		Summary: SummaryConfig{
			ContextBudget: 6000,
			Branching:     4,
			Timeout:       "10m",
		},
		Ingestion: IngestionConfig{
			MaxDuration:   "30m",
			SweepSchedule: "0 */5 * * * *", // Every 5 minutes
		},
		LLM: LLMConfig{
			EmbedProvider:    LLMProviderGemini,
			GenerateProvider: LLMProviderGemini,
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.5-flash",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			Timeout:        "2m",
			RateLimit:      "",
			Temperature:    0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.2,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			EmbedModel:  "text-embedding-3-small",
			MaxTokens:   1024,
			Timeout:     "2m",
			Temperature: 0.2,
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			Throttle:      "250ms",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into the existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LECTERN_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("LECTERN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LECTERN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("LECTERN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if backend := os.Getenv("LECTERN_CHUNK_BACKEND"); backend != "" {
		config.Storage.ChunkBackend = backend
	}
	if dsn := os.Getenv("LECTERN_PGVECTOR_DSN"); dsn != "" {
		config.Storage.PgVector.DSN = dsn
	}

	// Logging configuration
	if level := os.Getenv("LECTERN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("LECTERN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Chunking configuration
	if budget := os.Getenv("LECTERN_CHUNK_BUDGET"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil {
			config.Chunking.Budget = b
		}
	}
	if overlap := os.Getenv("LECTERN_CHUNK_OVERLAP"); overlap != "" {
		if o, err := strconv.Atoi(overlap); err == nil {
			config.Chunking.Overlap = o
		}
	}

	// Provider selection
	if provider := os.Getenv("LECTERN_EMBED_PROVIDER"); provider != "" {
		config.LLM.EmbedProvider = LLMProvider(provider)
	}
	if provider := os.Getenv("LECTERN_GENERATE_PROVIDER"); provider != "" {
		config.LLM.GenerateProvider = LLMProvider(provider)
	}
	if baseURL := os.Getenv("LECTERN_OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct tags and duration strings
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"retrieval.query_timeout": c.Retrieval.QueryTimeout,
		"chat.timeout":            c.Chat.Timeout,
		"summary.timeout":         c.Summary.Timeout,
		"ingestion.max_duration":  c.Ingestion.MaxDuration,
		"gemini.timeout":          c.Gemini.Timeout,
		"gemini.rate_limit":       c.Gemini.RateLimit,
		"claude.timeout":          c.Claude.Timeout,
		"claude.rate_limit":       c.Claude.RateLimit,
		"openai.timeout":          c.OpenAI.Timeout,
		"openai.rate_limit":       c.OpenAI.RateLimit,
		"websocket.throttle":      c.WebSocket.Throttle,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s %q: %w", name, value, err)
		}
	}

	return nil
}

// ParseDurationOr parses value, returning fallback when value is empty or malformed
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → config fallback → error
func ResolveAPIKey(ctx context.Context, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"LECTERN_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"claude_api_key": {"LECTERN_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"openai_api_key": {"LECTERN_OPENAI_API_KEY", "OPENAI_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
