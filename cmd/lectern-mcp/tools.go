package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createLectureStatusTool returns the lecture_status tool definition
func createLectureStatusTool() mcp.Tool {
	return mcp.NewTool("lecture_status",
		mcp.WithDescription("Report a lecture's transcript ingestion status (pending, processing, completed, failed) and failure reason"),
		mcp.WithString("lecture_id",
			mcp.Required(),
			mcp.Description("Lecture ID (format: lec_{uuid})"),
		),
	)
}

// createRetrieveSpansTool returns the retrieve_spans tool definition
func createRetrieveSpansTool() mcp.Tool {
	return mcp.NewTool("retrieve_spans",
		mcp.WithDescription("Find the timestamped transcript spans of a lecture most relevant to a query"),
		mcp.WithString("lecture_id",
			mcp.Required(),
			mcp.Description("Lecture ID (format: lec_{uuid})"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum spans to return (default: 5)"),
		),
	)
}

// createAskLectureTool returns the ask_lecture tool definition
func createAskLectureTool() mcp.Tool {
	return mcp.NewTool("ask_lecture",
		mcp.WithDescription("Ask a question about a lecture and get an answer citing video timestamps"),
		mcp.WithString("lecture_id",
			mcp.Required(),
			mcp.Description("Lecture ID (format: lec_{uuid})"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about the lecture content"),
		),
		mcp.WithString("user_id",
			mcp.Description("Optional asker ID recorded with the chat turn"),
		),
	)
}

// createSummarizeLectureTool returns the summarize_lecture tool definition
func createSummarizeLectureTool() mcp.Tool {
	return mcp.NewTool("summarize_lecture",
		mcp.WithDescription("Summarize a whole lecture from its transcript"),
		mcp.WithString("lecture_id",
			mcp.Required(),
			mcp.Description("Lecture ID (format: lec_{uuid})"),
		),
	)
}

// createChatHistoryTool returns the chat_history tool definition
func createChatHistoryTool() mcp.Tool {
	return mcp.NewTool("chat_history",
		mcp.WithDescription("List the previous questions and answers for a lecture, oldest first"),
		mcp.WithString("lecture_id",
			mcp.Required(),
			mcp.Description("Lecture ID (format: lec_{uuid})"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Only the most recent N turns (default: all)"),
		),
	)
}

// createIngestTranscriptTool returns the ingest_transcript tool definition
func createIngestTranscriptTool() mcp.Tool {
	return mcp.NewTool("ingest_transcript",
		mcp.WithDescription("Ingest a transcript file (SRT, WebVTT, JSON or YAML) into a lecture and wait for it to finish"),
		mcp.WithString("lecture_id",
			mcp.Required(),
			mcp.Description("Lecture ID (format: lec_{uuid})"),
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the transcript file"),
		),
		mcp.WithString("format",
			mcp.Description("srt, vtt, json or yaml (default: from the file extension)"),
		),
	)
}
