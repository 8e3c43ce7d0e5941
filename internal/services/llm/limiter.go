package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// newLimiter returns a limiter allowing one call per interval, or nil when
// interval is empty or invalid
func newLimiter(interval string) *rate.Limiter {
	if interval == "" {
		return nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// citationInstruction is appended to the system prompt when a caller asks for citations
const citationInstruction = "Label every statement with the [S<n>] marker of the source it relies on, for example [S2]. Use only markers that appear in the sources."

func systemPrompt(system string, citations bool) string {
	if !citations {
		return system
	}
	if system == "" {
		return citationInstruction
	}
	return system + "\n\n" + citationInstruction
}

// embeddable substitutes a placeholder for blank text, which providers reject
func embeddable(text string) string {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return text
		}
	}
	return "(no speech)"
}
