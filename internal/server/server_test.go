package server

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/app"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
)

// hashEmbedder is a deterministic bag-of-words embedder
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!")
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%64]++
	}
	return v, nil
}

// citingGenerator cites the first span when excerpts are present
type citingGenerator struct{}

func (citingGenerator) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	if opts.Citations {
		return "Recursion needs a base case [S1].", nil
	}
	return "A lecture about recursion.", nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newTestServerWith(t, func(cfg *common.Config) {
		cfg.Chunking.Budget = 60
		cfg.Chunking.Overlap = 20
	})
}

func newTestServerWith(t *testing.T, configure func(cfg *common.Config)) http.Handler {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Ingestion.SweepSchedule = ""
	configure(cfg)

	application, err := app.NewWithCapabilities(cfg, arbor.NewLogger(), hashEmbedder{}, citingGenerator{})
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return New(application).Handler()
}

func call(t *testing.T, h http.Handler, method, target, body string, dst interface{}) int {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if dst != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
	}
	return rec.Code
}

func TestLectureLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t)

	var lecture models.Lecture
	code := call(t, h, http.MethodPost, "/api/lectures", `{"title":"Recursion","owner_id":"u1"}`, &lecture)
	require.Equal(t, http.StatusCreated, code)
	base := "/api/lectures/" + lecture.ID

	// not ready before ingestion
	code = call(t, h, http.MethodPost, base+"/retrieve", `{"query":"base case"}`, nil)
	assert.Equal(t, http.StatusConflict, code)

	transcript := `[
		{"text": "Recursion is a function calling itself.", "start": 0, "end": 6},
		{"text": "Every recursion needs a base case to stop.", "start": 6, "end": 12},
		{"text": "Without a base case the stack overflows.", "start": 12, "end": 18},
		{"text": "Iteration is the alternative to recursion.", "start": 18, "end": 25}
	]`
	var report models.StatusReport
	code = call(t, h, http.MethodPost, base+"/transcript", transcript, &report)
	require.Equal(t, http.StatusAccepted, code)

	require.Eventually(t, func() bool {
		call(t, h, http.MethodGet, base+"/status", "", &report)
		return report.Status == models.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.Greater(t, report.ChunkCount, 1)

	// completed lectures need an explicit reset
	code = call(t, h, http.MethodPost, base+"/transcript", transcript, nil)
	assert.Equal(t, http.StatusConflict, code)

	var retrieved struct {
		Spans []models.RetrievedSpan `json:"spans"`
	}
	code = call(t, h, http.MethodPost, base+"/retrieve", `{"query":"base case","k":2}`, &retrieved)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, retrieved.Spans)
	assert.LessOrEqual(t, len(retrieved.Spans), 2)

	var answer models.Answer
	code = call(t, h, http.MethodPost, base+"/chat", `{"question":"Why do we need a base case?","user_id":"u1"}`, &answer)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, answer.DegradedCitations)
	require.Len(t, answer.Citations, 1)

	var history struct {
		Turns []models.ChatTurn `json:"turns"`
	}
	code = call(t, h, http.MethodGet, base+"/chat", "", &history)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, history.Turns, 1)
	assert.Equal(t, answer.TurnID, history.Turns[0].ID)

	var summary map[string]string
	code = call(t, h, http.MethodPost, base+"/summary", "", &summary)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, summary["summary"])

	code = call(t, h, http.MethodDelete, base+"/chat/"+answer.TurnID, "", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code = call(t, h, http.MethodDelete, base+"/chat/"+answer.TurnID, "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = call(t, h, http.MethodPost, base+"/reset", "", &report)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.StatusPending, report.Status)

	code = call(t, h, http.MethodDelete, base, "", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code = call(t, h, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLoopsLectureAnswerCitesItsTimestamps(t *testing.T) {
	h := newTestServerWith(t, func(cfg *common.Config) {
		cfg.Chunking.Budget = 800
		cfg.Chunking.Overlap = 150
	})

	var lecture models.Lecture
	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/api/lectures", `{"title":"Loops","owner_id":"u1"}`, &lecture))
	base := "/api/lectures/" + lecture.ID

	transcript := `[
		{"text": "Intro to loops", "start": 0, "end": 10},
		{"text": "A for-loop repeats", "start": 10, "end": 25},
		{"text": "A while-loop checks a condition first", "start": 25, "end": 40}
	]`
	var report models.StatusReport
	require.Equal(t, http.StatusAccepted, call(t, h, http.MethodPost, base+"/transcript", transcript, &report))

	require.Eventually(t, func() bool {
		call(t, h, http.MethodGet, base+"/status", "", &report)
		return report.Status == models.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, report.ChunkCount)

	var answer models.Answer
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, base+"/chat", `{"question":"what is a for-loop?","user_id":"u1"}`, &answer))
	require.NotEmpty(t, answer.Citations)
	assert.False(t, answer.DegradedCitations)

	starts := make([]float64, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		starts = append(starts, c.Start)
	}
	assert.True(t, containsFloat(starts, 0) || containsFloat(starts, 10), "cited starts %v", starts)
	assert.Equal(t, 0.0, answer.Citations[0].Start)
	assert.Equal(t, 40.0, answer.Citations[0].End)

	var history struct {
		Turns []models.ChatTurn `json:"turns"`
	}
	require.Equal(t, http.StatusOK, call(t, h, http.MethodGet, base+"/chat", "", &history))
	require.Len(t, history.Turns, 1)
	assert.Equal(t, []models.Span{{Start: 0, End: 40}}, history.Turns[0].CitedSpans)
}

func containsFloat(values []float64, want float64) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestLectureIDFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/lectures/lec_1":         "lec_1",
		"/api/lectures/lec_1/chat/t1": "lec_1",
		"/api/lectures":               "",
		"/api/health":                 "",
		"/api/lectures/":              "",
	}
	for path, want := range tests {
		assert.Equal(t, want, lectureIDFromPath(path), path)
	}
}

func TestSystemRoutes(t *testing.T) {
	h := newTestServer(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/health", "", &health))
	assert.Equal(t, "ok", health["status"])

	assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodGet, "/api/nope", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodPut, "/api/lectures/lec_1", "", nil))

	req := httptest.NewRequest(http.MethodOptions, "/api/lectures", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
