package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/lectern/internal/models"
)

// formatStatus formats a status report as markdown
func formatStatus(report models.StatusReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Lecture %s\n\n", report.LectureID))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", report.Status))
	if report.Status == models.StatusCompleted {
		sb.WriteString(fmt.Sprintf("**Chunks:** %d\n", report.ChunkCount))
	}
	if report.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", report.Error))
	}
	if !report.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("**Updated:** %s\n", report.UpdatedAt.Format(time.RFC3339)))
	}
	return sb.String()
}

// formatSpans formats retrieval results as markdown
func formatSpans(query string, spans []models.RetrievedSpan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Spans for \"%s\" (%d results)\n\n", query, len(spans)))

	if len(spans) == 0 {
		sb.WriteString("No matching spans.\n")
		return sb.String()
	}

	for i, s := range spans {
		sb.WriteString(fmt.Sprintf("### %d. [%s] score %.3f\n", i+1, s.Span().Label(), s.Score))
		sb.WriteString(s.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// formatAnswer formats a grounded answer with its cited timestamps
func formatAnswer(answer *models.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Response)
	sb.WriteString("\n\n")

	if len(answer.Citations) == 0 {
		sb.WriteString("_No lecture material supported this answer._\n")
		return sb.String()
	}

	if answer.DegradedCitations {
		sb.WriteString("**Sources (all retrieved spans):**\n")
	} else {
		sb.WriteString("**Sources:**\n")
	}
	for _, c := range answer.Citations {
		sb.WriteString(fmt.Sprintf("- %s\n", c.Span().Label()))
	}
	return sb.String()
}

// formatHistory formats chat turns oldest first
func formatHistory(lectureID string, turns []*models.ChatTurn) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Chat history for %s (%d turns)\n\n", lectureID, len(turns)))

	for _, t := range turns {
		sb.WriteString(fmt.Sprintf("**Q (%s):** %s\n\n", t.CreatedAt.Format(time.RFC3339), t.Question))
		sb.WriteString(fmt.Sprintf("**A:** %s\n", t.Response))
		if len(t.CitedSpans) > 0 {
			labels := make([]string, 0, len(t.CitedSpans))
			for _, s := range t.CitedSpans {
				labels = append(labels, s.Label())
			}
			sb.WriteString(fmt.Sprintf("_Cited: %s_\n", strings.Join(labels, ", ")))
		}
		sb.WriteString("\n---\n\n")
	}
	return sb.String()
}
