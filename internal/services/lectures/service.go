package lectures

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
)

// ErrInvalidLecture is returned when a create request fails validation
var ErrInvalidLecture = errors.New("invalid lecture")

// CreateRequest is the metadata supplied when a lecture is registered
type CreateRequest struct {
	Title           string  `json:"title" validate:"required,max=500"`
	Description     string  `json:"description" validate:"max=5000"`
	OwnerID         string  `json:"owner_id" validate:"required"`
	VideoFilename   string  `json:"video_filename" validate:"max=1024"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0"`
}

// Service manages lecture records. Status changes belong to the ingestion service.
type Service struct {
	lectures interfaces.LectureStorage
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewService(lectures interfaces.LectureStorage, logger arbor.ILogger) *Service {
	return &Service{
		lectures: lectures,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers a pending lecture with no transcript
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Lecture, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.OwnerID = strings.TrimSpace(req.OwnerID)

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLecture, err)
	}

	lecture := models.NewLecture(common.NewLectureID(), req.Title, req.Description, req.OwnerID)
	lecture.VideoFilename = req.VideoFilename
	lecture.DurationSeconds = req.DurationSeconds

	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lecture_id", lecture.ID).
		Str("owner_id", lecture.OwnerID).
		Msg("Lecture created")

	return lecture, nil
}

func (s *Service) Get(ctx context.Context, lectureID string) (*models.Lecture, error) {
	return s.lectures.GetLecture(ctx, lectureID)
}

// List returns the owner's lectures, newest first
func (s *Service) List(ctx context.Context, ownerID string) ([]*models.Lecture, error) {
	return s.lectures.ListLectures(ctx, ownerID)
}

// SetTranscript stores a transcript without ingesting it. The status is left
// alone, so a later process call ingests what was stored here.
func (s *Service) SetTranscript(ctx context.Context, lectureID string, transcript models.Transcript) (*models.Lecture, error) {
	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmptyInput, err)
	}

	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if lecture.Status == models.StatusProcessing {
		return nil, fmt.Errorf("%w: lecture %s", models.ErrConcurrentIngestion, lectureID)
	}

	lecture.Transcript = transcript
	if err := s.lectures.SaveLecture(ctx, lecture); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("lecture_id", lectureID).
		Int("utterances", len(transcript)).
		Msg("Transcript stored")

	return lecture, nil
}
