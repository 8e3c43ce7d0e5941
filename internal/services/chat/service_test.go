package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/chunker"
	"github.com/ternarybob/lectern/internal/services/index"
	"github.com/ternarybob/lectern/internal/services/ingestion"
	"github.com/ternarybob/lectern/internal/services/retrieval"
	"github.com/ternarybob/lectern/internal/storage/badger"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

type keywordEmbedder struct{}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "loop")),
		float32(strings.Count(lower, "for")),
		float32(strings.Count(lower, "while")),
		float32(strings.Count(lower, "recursion")),
		0.1,
	}, nil
}

type fixture struct {
	service   *Service
	ingestion *ingestion.Service
	manager   *badger.Manager
	generator *mockGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := arbor.NewLogger()

	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	idx := index.NewIndex(keywordEmbedder{}, manager.ChunkStorage(), 2, logger)
	engine := retrieval.NewEngine(manager.LectureStorage(), keywordEmbedder{}, idx, retrieval.Options{MinScore: 0.2}, logger)
	generator := &mockGenerator{}

	lecture := models.NewLecture("lec_1", "Loops", "", "user_1")
	require.NoError(t, lecture.MarkProcessing(nil))
	require.NoError(t, lecture.MarkCompleted(3))
	require.NoError(t, manager.LectureStorage().SaveLecture(ctx, lecture))
	_, err = idx.Add(ctx, "lec_1", []models.ChunkDraft{
		{Sequence: 0, Text: "Intro to loops", Start: 0, End: 10},
		{Sequence: 1, Text: "A for-loop repeats", Start: 10, End: 25},
		{Sequence: 2, Text: "A while-loop checks a condition first", Start: 25, End: 40},
	})
	require.NoError(t, err)

	chunks, err := chunker.New(800, 150)
	require.NoError(t, err)
	pipeline := ingestion.NewService(manager.LectureStorage(), manager.ChatHistoryStorage(), chunks, idx, nil, 0, logger)

	return &fixture{
		service:   NewService(manager.LectureStorage(), manager.ChatHistoryStorage(), engine, generator, nil, pipeline, Options{TopK: 5}, logger),
		ingestion: pipeline,
		manager:   manager,
		generator: generator,
	}
}

func TestAnswer_ParsesCitations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "[S1 00:10-00:25]") && strings.Contains(prompt, "Question: what is a for-loop?")
	}), mock.MatchedBy(func(opts interfaces.GenerateOptions) bool {
		return opts.Citations && opts.System == AnswerSystemPrompt
	})).Return("A for-loop repeats a block [S1]. See also [S1] and [S9].", nil).Once()

	answer, err := f.service.Answer(ctx, "lec_1", "user_1", "what is a for-loop?")
	require.NoError(t, err)
	f.generator.AssertExpectations(t)

	assert.False(t, answer.DegradedCitations)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, 10.0, answer.Citations[0].Start)
	assert.Equal(t, 25.0, answer.Citations[0].End)

	history, err := f.service.History(ctx, "lec_1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, answer.TurnID, history[0].ID)
	assert.Equal(t, "user_1", history[0].UserID)
	assert.Equal(t, []models.Span{{Start: 10, End: 25}}, history[0].CitedSpans)
}

func TestAnswer_FallsBackToAllSpansWithoutMarkers(t *testing.T) {
	f := newFixture(t)

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("Loops repeat things.", nil).Once()

	answer, err := f.service.Answer(context.Background(), "lec_1", "", "loop")
	require.NoError(t, err)
	assert.True(t, answer.DegradedCitations)
	assert.NotEmpty(t, answer.Citations)

	history, err := f.service.History(context.Background(), "lec_1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].DegradedCitations)
	assert.Len(t, history[0].CitedSpans, len(answer.Citations))
}

func TestAnswer_NoMaterial(t *testing.T) {
	f := newFixture(t)

	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "none matched")
	}), mock.MatchedBy(func(opts interfaces.GenerateOptions) bool {
		return !opts.Citations && opts.System == NoMaterialSystemPrompt
	})).Return("The lecture does not cover recursion [S1].", nil).Once()

	answer, err := f.service.Answer(context.Background(), "lec_1", "", "recursion")
	require.NoError(t, err)
	f.generator.AssertExpectations(t)
	assert.Empty(t, answer.Citations)
	assert.False(t, answer.DegradedCitations)
}

func TestAnswer_GenerationFailureAppendsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("503 overloaded")).Once()
	_, err := f.service.Answer(ctx, "lec_1", "", "loop")
	assert.ErrorIs(t, err, models.ErrCapabilityUnavailable)

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("   ", nil).Once()
	_, err = f.service.Answer(ctx, "lec_1", "", "loop")
	assert.ErrorIs(t, err, models.ErrCapabilityUnavailable)

	history, err := f.service.History(ctx, "lec_1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswer_CancellationIsAborted(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return("", context.Canceled).Once()

	_, err := f.service.Answer(ctx, "lec_1", "", "loop")
	assert.ErrorIs(t, err, models.ErrRequestAborted)

	history, err := f.service.History(context.Background(), "lec_1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswer_InputAndReadiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Answer(ctx, "lec_1", "", "  ")
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	pending := models.NewLecture("lec_2", "t", "", "u")
	require.NoError(t, f.manager.LectureStorage().SaveLecture(ctx, pending))
	_, err = f.service.Answer(ctx, "lec_2", "", "loop")
	assert.ErrorIs(t, err, models.ErrNotReady)

	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswer_ConcurrentAppendsStayIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("Loops repeat [S1][S2]", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Answer(ctx, "lec_1", "", "loop")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := f.service.History(ctx, "lec_1")
	require.NoError(t, err)
	require.Len(t, history, 10)
	for i, turn := range history {
		assert.Len(t, turn.CitedSpans, 2)
		if i > 0 {
			assert.False(t, turn.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
}

func TestAnswer_LectureDeletedDuringGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	generating := make(chan struct{})
	release := make(chan struct{})
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(generating)
			<-release
		}).
		Return("A for-loop repeats [S1]", nil).Once()

	errs := make(chan error, 1)
	go func() {
		_, err := f.service.Answer(ctx, "lec_1", "user_1", "what is a for-loop?")
		errs <- err
	}()

	<-generating
	require.NoError(t, f.ingestion.DeleteLecture(ctx, "lec_1"))
	close(release)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, models.ErrLectureNotFound)
	case <-time.After(5 * time.Second):
		t.Fatal("answer did not return after generation was released")
	}

	turns, err := f.manager.ChatHistoryStorage().ListTurns(ctx, "lec_1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestDeleteTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, f.manager.ChatHistoryStorage().AppendTurn(ctx, &models.ChatTurn{
			ID: id, LectureID: "lec_1", Question: id, CreatedAt: time.Now(),
		}))
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, f.service.DeleteTurn(ctx, "lec_1", "t2"))
	assert.ErrorIs(t, f.service.DeleteTurn(ctx, "lec_1", "t2"), models.ErrTurnNotFound)
	assert.ErrorIs(t, f.service.DeleteTurn(ctx, "lec_missing", "t1"), models.ErrLectureNotFound)

	history, err := f.service.History(ctx, "lec_1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "t1", history[0].ID)
	assert.Equal(t, "t3", history[1].ID)
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		text string
		want []int
	}{
		{"no markers", nil},
		{"first [S2] then [S1] and [S2] again", []int{2, 1}},
		{"grouped [S3, S1] and [S4;S3]", []int{3, 1, 4}},
		{"spaced [ S5 ]", []int{5}},
		{"not a marker [5] or [Sx]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCitations(tt.text))
		})
	}
}

func TestResolveCitations(t *testing.T) {
	spans := []models.RetrievedSpan{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}

	cited, degraded := resolveCitations("x [S3] y [S1] z [S7]", spans)
	assert.False(t, degraded)
	require.Len(t, cited, 2)
	assert.Equal(t, "c", cited[0].ChunkID)
	assert.Equal(t, "a", cited[1].ChunkID)

	cited, degraded = resolveCitations("only [S0] and [S4]", spans)
	assert.True(t, degraded)
	assert.Len(t, cited, 3)

	cited, degraded = resolveCitations("[S1]", nil)
	assert.False(t, degraded)
	assert.Empty(t, cited)
}
