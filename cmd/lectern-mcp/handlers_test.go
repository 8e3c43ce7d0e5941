package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/models"
)

type stubLecture struct {
	report    models.StatusReport
	statusErr error
	ingested  models.Transcript
	spans     []models.RetrievedSpan
	answer    *models.Answer
	answerErr error
	turns     []*models.ChatTurn
	summary   string
}

func (s *stubLecture) GetStatus(ctx context.Context, id string) (models.StatusReport, error) {
	return s.report, s.statusErr
}

func (s *stubLecture) Ingest(ctx context.Context, id string, t models.Transcript) error {
	s.ingested = t
	s.report = models.StatusReport{LectureID: id, Status: models.StatusCompleted, ChunkCount: 1}
	return nil
}

func (s *stubLecture) Retrieve(ctx context.Context, id, query string, k int) ([]models.RetrievedSpan, error) {
	if len(s.spans) > k {
		return s.spans[:k], nil
	}
	return s.spans, nil
}

func (s *stubLecture) Answer(ctx context.Context, id, userID, question string) (*models.Answer, error) {
	return s.answer, s.answerErr
}

func (s *stubLecture) History(ctx context.Context, id string) ([]*models.ChatTurn, error) {
	return s.turns, nil
}

func (s *stubLecture) Summarize(ctx context.Context, id string) (string, error) {
	return s.summary, nil
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()

	var req mcp.CallToolRequest
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestLectureStatusTool(t *testing.T) {
	stub := &stubLecture{report: models.StatusReport{
		LectureID: "lec_1",
		Status:    models.StatusFailed,
		Error:     "embed: capability unavailable",
		UpdatedAt: time.Now(),
	}}
	handler := handleLectureStatus(stub, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"lecture_id": "lec_1"})
	assert.False(t, isErr)
	assert.Contains(t, text, "**Status:** failed")
	assert.Contains(t, text, "capability unavailable")

	_, isErr = callTool(t, handler, map[string]any{})
	assert.True(t, isErr)

	stub.statusErr = fmt.Errorf("%w: lec_2", models.ErrLectureNotFound)
	text, isErr = callTool(t, handler, map[string]any{"lecture_id": "lec_2"})
	assert.True(t, isErr)
	assert.Contains(t, text, "lecture not found")
}

func TestRetrieveSpansTool(t *testing.T) {
	stub := &stubLecture{spans: []models.RetrievedSpan{
		{Text: "A loop repeats.", Start: 0, End: 40, Score: 0.91},
		{Text: "While loops check first.", Start: 65, End: 90, Score: 0.72},
	}}
	handler := handleRetrieveSpans(stub, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"lecture_id": "lec_1", "query": "loops", "k": 1})
	assert.False(t, isErr)
	assert.Contains(t, text, "(1 results)")
	assert.Contains(t, text, "[00:00-00:40]")
	assert.NotContains(t, text, "While loops")

	_, isErr = callTool(t, handler, map[string]any{"lecture_id": "lec_1"})
	assert.True(t, isErr)
}

func TestAskLectureTool(t *testing.T) {
	stub := &stubLecture{answer: &models.Answer{
		Response:  "A loop repeats a block [S1].",
		Citations: []models.RetrievedSpan{{Start: 65, End: 130}},
	}}
	handler := handleAskLecture(stub, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"lecture_id": "lec_1", "question": "What is a loop?"})
	assert.False(t, isErr)
	assert.Contains(t, text, "**Sources:**")
	assert.Contains(t, text, "- 01:05-02:10")

	stub.answer = &models.Answer{Response: "Nothing in the lecture covers that."}
	text, _ = callTool(t, handler, map[string]any{"lecture_id": "lec_1", "question": "Who won?"})
	assert.Contains(t, text, "No lecture material")

	stub.answerErr = fmt.Errorf("%w: lecture lec_1 is processing", models.ErrNotReady)
	_, isErr = callTool(t, handler, map[string]any{"lecture_id": "lec_1", "question": "What is a loop?"})
	assert.True(t, isErr)
}

func TestChatHistoryTool(t *testing.T) {
	stub := &stubLecture{turns: []*models.ChatTurn{
		{ID: "t1", Question: "first?", Response: "one", CreatedAt: time.Now()},
		{ID: "t2", Question: "second?", Response: "two", CreatedAt: time.Now(),
			CitedSpans: []models.Span{{Start: 0, End: 30}}},
	}}
	handler := handleChatHistory(stub, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"lecture_id": "lec_1"})
	assert.False(t, isErr)
	assert.Contains(t, text, "(2 turns)")
	assert.Contains(t, text, "_Cited: 00:00-00:30_")

	text, _ = callTool(t, handler, map[string]any{"lecture_id": "lec_1", "limit": 1})
	assert.Contains(t, text, "(1 turns)")
	assert.Contains(t, text, "second?")
	assert.NotContains(t, text, "first?")
}

func TestSummarizeLectureTool(t *testing.T) {
	stub := &stubLecture{summary: "Loops and recursion."}
	text, isErr := callTool(t, handleSummarizeLecture(stub, arbor.NewLogger()), map[string]any{"lecture_id": "lec_1"})
	assert.False(t, isErr)
	assert.Contains(t, text, "Loops and recursion.")
}

func TestIngestTranscriptTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "week1.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:04,000\nWelcome.\n"), 0o644))

	stub := &stubLecture{}
	handler := handleIngestTranscript(stub, arbor.NewLogger())

	text, isErr := callTool(t, handler, map[string]any{"lecture_id": "lec_1", "path": path})
	assert.False(t, isErr)
	assert.Contains(t, text, "**Status:** completed")
	require.Len(t, stub.ingested, 1)
	assert.Equal(t, "Welcome.", stub.ingested[0].Text)

	_, isErr = callTool(t, handler, map[string]any{"lecture_id": "lec_1", "path": filepath.Join(dir, "missing.srt")})
	assert.True(t, isErr)

	_, isErr = callTool(t, handler, map[string]any{"lecture_id": "lec_1", "path": path, "format": "docx"})
	assert.True(t, isErr)
}
