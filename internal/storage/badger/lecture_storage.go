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

// LectureStorage stores lectures keyed by ID
type LectureStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLectureStorage creates a new LectureStorage instance
func NewLectureStorage(db *BadgerDB, logger arbor.ILogger) *LectureStorage {
	return &LectureStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LectureStorage) SaveLecture(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		return fmt.Errorf("lecture ID is required")
	}
	if lecture.CreatedAt.IsZero() {
		lecture.CreatedAt = time.Now()
	}
	if lecture.UpdatedAt.IsZero() {
		lecture.UpdatedAt = lecture.CreatedAt
	}

	if err := s.db.Store().Upsert(lecture.ID, lecture); err != nil {
		return fmt.Errorf("failed to save lecture: %w", err)
	}
	return nil
}

func (s *LectureStorage) GetLecture(ctx context.Context, id string) (*models.Lecture, error) {
	var lecture models.Lecture
	if err := s.db.Store().Get(id, &lecture); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrLectureNotFound, id)
		}
		return nil, fmt.Errorf("failed to get lecture: %w", err)
	}
	return &lecture, nil
}

// ListLectures returns the owner's lectures newest first, or all lectures when ownerID is empty
func (s *LectureStorage) ListLectures(ctx context.Context, ownerID string) ([]*models.Lecture, error) {
	var query *badgerhold.Query
	if ownerID != "" {
		query = badgerhold.Where("OwnerID").Eq(ownerID).Index("OwnerID")
	}

	var lectures []models.Lecture
	if err := s.db.Store().Find(&lectures, query); err != nil {
		return nil, fmt.Errorf("failed to list lectures: %w", err)
	}

	sort.SliceStable(lectures, func(i, j int) bool {
		return lectures[i].CreatedAt.After(lectures[j].CreatedAt)
	})

	return toLecturePointers(lectures), nil
}

func (s *LectureStorage) ListLecturesByStatus(ctx context.Context, status models.TranscriptStatus) ([]*models.Lecture, error) {
	var lectures []models.Lecture
	if err := s.db.Store().Find(&lectures, badgerhold.Where("Status").Eq(status).Index("Status")); err != nil {
		return nil, fmt.Errorf("failed to list %s lectures: %w", status, err)
	}
	return toLecturePointers(lectures), nil
}

func (s *LectureStorage) DeleteLecture(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Lecture{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete lecture: %w", err)
	}
	return nil
}

func toLecturePointers(lectures []models.Lecture) []*models.Lecture {
	result := make([]*models.Lecture, len(lectures))
	for i := range lectures {
		result[i] = &lectures[i]
	}
	return result
}
