package interfaces

import "context"

// Embedder turns text into a fixed-length vector.
// Implementations return an error on outage or timeout, the caller classifies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
