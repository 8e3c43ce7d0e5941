package chat

import (
	"fmt"
	"strings"

	"github.com/ternarybob/lectern/internal/models"
)

// formatSpan renders one excerpt as "[S<n> mm:ss-mm:ss]" followed by its text
func formatSpan(span models.RetrievedSpan, index int) string {
	return fmt.Sprintf("[S%d %s]\n%s\n", index+1, span.Span().Label(), strings.TrimSpace(span.Text))
}

// buildPrompt assembles the user prompt from the question and the retrieved excerpts
func buildPrompt(question string, spans []models.RetrievedSpan) string {
	var b strings.Builder

	if len(spans) > 0 {
		b.WriteString("Lecture excerpts:\n\n")
		for i, span := range spans {
			b.WriteString(formatSpan(span, i))
			b.WriteString("\n")
		}
	} else {
		b.WriteString("Lecture excerpts: none matched.\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}
