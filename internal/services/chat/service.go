// Package chat answers lecture questions from retrieved transcript spans and keeps the chat log.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/retrieval"
)

// Options tunes answer synthesis
type Options struct {
	TopK        int
	Temperature float32
	Timeout     time.Duration
}

// LectureGuard holds off lecture deletion while a write for that lecture lands.
// Hold fails with models.ErrLectureNotFound once the lecture is gone.
type LectureGuard interface {
	Hold(ctx context.Context, lectureID string) (release func(), err error)
}

// Service is the answer synthesizer
type Service struct {
	lectures  interfaces.LectureStorage
	chats     interfaces.ChatHistoryStorage
	retrieval *retrieval.Engine
	generator interfaces.Generator
	events    interfaces.EventService
	guard     LectureGuard
	options   Options
	logger    arbor.ILogger
}

// NewService creates the chat service
func NewService(
	lectures interfaces.LectureStorage,
	chats interfaces.ChatHistoryStorage,
	retrieval *retrieval.Engine,
	generator interfaces.Generator,
	events interfaces.EventService,
	guard LectureGuard,
	options Options,
	logger arbor.ILogger,
) *Service {
	if options.TopK <= 0 {
		options.TopK = 5
	}
	return &Service{
		lectures:  lectures,
		chats:     chats,
		retrieval: retrieval,
		generator: generator,
		events:    events,
		guard:     guard,
		options:   options,
		logger:    logger,
	}
}

// Answer retrieves supporting spans, generates a grounded response and
// appends the exchange to the lecture's chat history. Nothing is appended
// when generation fails.
func (s *Service) Answer(ctx context.Context, lectureID, userID, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrEmptyInput)
	}

	spans, err := s.retrieval.Retrieve(ctx, lectureID, question, s.options.TopK)
	if err != nil {
		return nil, err
	}

	genCtx := ctx
	if s.options.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := s.generator.Generate(genCtx, buildPrompt(question, spans), interfaces.GenerateOptions{
		System:      getDefaultSystemPrompt(len(spans) > 0),
		Citations:   len(spans) > 0,
		Temperature: s.options.Temperature,
	})
	if err != nil {
		return nil, models.CapabilityError(ctx, "generate answer", err)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, fmt.Errorf("generate answer: %w: empty response", models.ErrCapabilityUnavailable)
	}

	citations, degraded := resolveCitations(response, spans)
	answer := &models.Answer{
		TurnID:            common.NewTurnID(),
		Response:          response,
		Citations:         citations,
		DegradedCitations: degraded,
	}

	turn := &models.ChatTurn{
		ID:                answer.TurnID,
		LectureID:         lectureID,
		UserID:            userID,
		Question:          question,
		Response:          response,
		CitedSpans:        answer.CitedSpans(),
		DegradedCitations: degraded,
		CreatedAt:         time.Now(),
	}
	if err := s.appendTurn(ctx, turn); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lecture_id", lectureID).
		Str("turn_id", turn.ID).
		Int("spans", len(spans)).
		Int("citations", len(citations)).
		Bool("degraded_citations", degraded).
		Dur("elapsed", time.Since(start)).
		Msg("Answer generated")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventChatTurnAppended,
			Payload: turn,
		})
	}

	return answer, nil
}

// appendTurn stores the turn only if the lecture still exists, under the
// guard so a concurrent delete cannot interleave
func (s *Service) appendTurn(ctx context.Context, turn *models.ChatTurn) error {
	if s.guard != nil {
		release, err := s.guard.Hold(ctx, turn.LectureID)
		if err != nil {
			return err
		}
		defer release()
	} else if _, err := s.lectures.GetLecture(ctx, turn.LectureID); err != nil {
		return err
	}

	if err := s.chats.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to append chat turn: %w", err)
	}
	return nil
}

// History returns the lecture's chat turns, oldest first
func (s *Service) History(ctx context.Context, lectureID string) ([]*models.ChatTurn, error) {
	if _, err := s.lectures.GetLecture(ctx, lectureID); err != nil {
		return nil, err
	}
	turns, err := s.chats.ListTurns(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}
	return turns, nil
}

// DeleteTurn removes a single chat turn
func (s *Service) DeleteTurn(ctx context.Context, lectureID, turnID string) error {
	if _, err := s.lectures.GetLecture(ctx, lectureID); err != nil {
		return err
	}
	return s.chats.DeleteTurn(ctx, lectureID, turnID)
}
