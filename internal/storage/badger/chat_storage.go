package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChatStorage is the append-only chat history log
type ChatStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChatStorage creates a new ChatStorage instance
func NewChatStorage(db *BadgerDB, logger arbor.ILogger) *ChatStorage {
	return &ChatStorage{
		db:     db,
		logger: logger,
	}
}

// AppendTurn inserts a turn as one record. Existing turns are never overwritten.
func (s *ChatStorage) AppendTurn(ctx context.Context, turn *models.ChatTurn) error {
	if turn.ID == "" || turn.LectureID == "" {
		return fmt.Errorf("turn ID and lecture ID are required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(turn.ID, turn); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("chat turn %s already exists", turn.ID)
		}
		return fmt.Errorf("failed to append chat turn: %w", err)
	}
	return nil
}

// ListTurns returns the lecture's turns oldest first
func (s *ChatStorage) ListTurns(ctx context.Context, lectureID string) ([]*models.ChatTurn, error) {
	var turns []models.ChatTurn
	if err := s.db.Store().Find(&turns, badgerhold.Where("LectureID").Eq(lectureID).Index("LectureID")); err != nil {
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}

	sort.SliceStable(turns, func(i, j int) bool {
		if !turns[i].CreatedAt.Equal(turns[j].CreatedAt) {
			return turns[i].CreatedAt.Before(turns[j].CreatedAt)
		}
		return turns[i].ID < turns[j].ID
	})

	result := make([]*models.ChatTurn, len(turns))
	for i := range turns {
		result[i] = &turns[i]
	}
	return result, nil
}

// DeleteTurn removes one turn of the lecture
func (s *ChatStorage) DeleteTurn(ctx context.Context, lectureID, turnID string) error {
	var turn models.ChatTurn
	if err := s.db.Store().Get(turnID, &turn); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", models.ErrTurnNotFound, turnID)
		}
		return fmt.Errorf("failed to get chat turn: %w", err)
	}
	if turn.LectureID != lectureID {
		return fmt.Errorf("%w: %s", models.ErrTurnNotFound, turnID)
	}

	if err := s.db.Store().Delete(turnID, &models.ChatTurn{}); err != nil {
		return fmt.Errorf("failed to delete chat turn: %w", err)
	}
	return nil
}

func (s *ChatStorage) DeleteTurns(ctx context.Context, lectureID string) error {
	if err := s.db.Store().DeleteMatching(&models.ChatTurn{}, badgerhold.Where("LectureID").Eq(lectureID).Index("LectureID")); err != nil {
		return fmt.Errorf("failed to delete chat history: %w", err)
	}
	return nil
}
