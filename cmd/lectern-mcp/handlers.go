package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/transcript"
)

// statusReader reports ingestion status
type statusReader interface {
	GetStatus(ctx context.Context, lectureID string) (models.StatusReport, error)
}

// transcriptIngester runs a blocking ingestion
type transcriptIngester interface {
	Ingest(ctx context.Context, lectureID string, transcript models.Transcript) error
	GetStatus(ctx context.Context, lectureID string) (models.StatusReport, error)
}

type spanRetriever interface {
	Retrieve(ctx context.Context, lectureID, query string, k int) ([]models.RetrievedSpan, error)
}

type answerer interface {
	Answer(ctx context.Context, lectureID, userID, question string) (*models.Answer, error)
	History(ctx context.Context, lectureID string) ([]*models.ChatTurn, error)
}

type summarizer interface {
	Summarize(ctx context.Context, lectureID string) (string, error)
}

func toolError(format string, args ...interface{}) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}

// handleLectureStatus implements the lecture_status tool
func handleLectureStatus(status statusReader, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lectureID, err := request.RequireString("lecture_id")
		if err != nil || lectureID == "" {
			return toolError("Error: lecture_id parameter is required"), nil
		}

		report, err := status.GetStatus(ctx, lectureID)
		if err != nil {
			logger.Warn().Err(err).Str("lecture_id", lectureID).Msg("Status lookup failed")
			return toolError("Status error: %v", err), nil
		}
		return mcp.NewToolResultText(formatStatus(report)), nil
	}
}

// handleRetrieveSpans implements the retrieve_spans tool
func handleRetrieveSpans(retriever spanRetriever, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lectureID, err := request.RequireString("lecture_id")
		if err != nil || lectureID == "" {
			return toolError("Error: lecture_id parameter is required"), nil
		}
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return toolError("Error: query parameter is required"), nil
		}
		k := request.GetInt("k", 5)

		spans, err := retriever.Retrieve(ctx, lectureID, query, k)
		if err != nil {
			logger.Warn().Err(err).Str("lecture_id", lectureID).Msg("Retrieve failed")
			return toolError("Retrieve error: %v", err), nil
		}
		return mcp.NewToolResultText(formatSpans(query, spans)), nil
	}
}

// handleAskLecture implements the ask_lecture tool
func handleAskLecture(chat answerer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lectureID, err := request.RequireString("lecture_id")
		if err != nil || lectureID == "" {
			return toolError("Error: lecture_id parameter is required"), nil
		}
		question, err := request.RequireString("question")
		if err != nil || question == "" {
			return toolError("Error: question parameter is required"), nil
		}

		answer, err := chat.Answer(ctx, lectureID, request.GetString("user_id", "mcp"), question)
		if err != nil {
			logger.Warn().Err(err).Str("lecture_id", lectureID).Msg("Answer failed")
			return toolError("Answer error: %v", err), nil
		}
		return mcp.NewToolResultText(formatAnswer(answer)), nil
	}
}

// handleSummarizeLecture implements the summarize_lecture tool
func handleSummarizeLecture(summaries summarizer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lectureID, err := request.RequireString("lecture_id")
		if err != nil || lectureID == "" {
			return toolError("Error: lecture_id parameter is required"), nil
		}

		summary, err := summaries.Summarize(ctx, lectureID)
		if err != nil {
			logger.Warn().Err(err).Str("lecture_id", lectureID).Msg("Summary failed")
			return toolError("Summary error: %v", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("## Summary of %s\n\n%s\n", lectureID, summary)), nil
	}
}

// handleChatHistory implements the chat_history tool
func handleChatHistory(chat answerer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lectureID, err := request.RequireString("lecture_id")
		if err != nil || lectureID == "" {
			return toolError("Error: lecture_id parameter is required"), nil
		}

		turns, err := chat.History(ctx, lectureID)
		if err != nil {
			logger.Warn().Err(err).Str("lecture_id", lectureID).Msg("History failed")
			return toolError("History error: %v", err), nil
		}
		if limit := request.GetInt("limit", 0); limit > 0 && len(turns) > limit {
			turns = turns[len(turns)-limit:]
		}
		return mcp.NewToolResultText(formatHistory(lectureID, turns)), nil
	}
}

// handleIngestTranscript implements the ingest_transcript tool
func handleIngestTranscript(ingester transcriptIngester, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		lectureID, err := request.RequireString("lecture_id")
		if err != nil || lectureID == "" {
			return toolError("Error: lecture_id parameter is required"), nil
		}
		path, err := request.RequireString("path")
		if err != nil || path == "" {
			return toolError("Error: path parameter is required"), nil
		}

		var format transcript.Format
		if name := request.GetString("format", ""); name != "" {
			format, err = transcript.ParseFormat(name)
		} else {
			format, err = transcript.FormatFromFilename(path)
		}
		if err != nil {
			return toolError("Error: %v", err), nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return toolError("Error: failed to read %s: %v", path, err), nil
		}
		parsed, err := transcript.Parse(data, format)
		if err != nil {
			return toolError("Error: %v", err), nil
		}

		if err := ingester.Ingest(ctx, lectureID, parsed); err != nil {
			logger.Warn().Err(err).Str("lecture_id", lectureID).Msg("Ingest failed")
			return toolError("Ingest error: %v", err), nil
		}

		report, err := ingester.GetStatus(ctx, lectureID)
		if err != nil {
			return toolError("Status error: %v", err), nil
		}
		return mcp.NewToolResultText(formatStatus(report)), nil
	}
}
