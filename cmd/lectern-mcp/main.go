package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/lectern/internal/app"
	"github.com/ternarybob/lectern/internal/common"
)

func main() {
	configPath := os.Getenv("LECTERN_CONFIG")
	if configPath == "" {
		configPath = "lectern.toml"
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Warn level only to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"lectern",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createLectureStatusTool(), handleLectureStatus(application.IngestionService, logger))
	mcpServer.AddTool(createRetrieveSpansTool(), handleRetrieveSpans(application.RetrievalEngine, logger))
	mcpServer.AddTool(createAskLectureTool(), handleAskLecture(application.ChatService, logger))
	mcpServer.AddTool(createSummarizeLectureTool(), handleSummarizeLecture(application.SummaryService, logger))
	mcpServer.AddTool(createChatHistoryTool(), handleChatHistory(application.ChatService, logger))
	mcpServer.AddTool(createIngestTranscriptTool(), handleIngestTranscript(application.IngestionService, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}
