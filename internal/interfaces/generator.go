package interfaces

import "context"

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	// System is sent as the system instruction when the provider supports one
	System string
	// Citations asks the model to emit [S<n>] markers for the sources it used
	Citations bool
	// Temperature overrides the provider default when > 0
	Temperature float32
	// MaxTokens overrides the provider default when > 0
	MaxTokens int
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
