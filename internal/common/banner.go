package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Lectern", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("chunk_backend", config.Storage.ChunkBackend).
		Str("embed_provider", string(config.LLM.EmbedProvider)).
		Str("generate_provider", string(config.LLM.GenerateProvider)).
		Msg("Lectern starting")
}
