package handlers

import (
	"context"

	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/lectures"
)

// LectureManager creates and reads lecture records.
type LectureManager interface {
	Create(ctx context.Context, req lectures.CreateRequest) (*models.Lecture, error)
	Get(ctx context.Context, lectureID string) (*models.Lecture, error)
	List(ctx context.Context, ownerID string) ([]*models.Lecture, error)
	SetTranscript(ctx context.Context, lectureID string, transcript models.Transcript) (*models.Lecture, error)
}

// IngestionController drives transcript ingestion and status.
type IngestionController interface {
	IngestAsync(ctx context.Context, lectureID string, transcript models.Transcript) error
	Process(ctx context.Context, lectureID string) error
	Reset(ctx context.Context, lectureID string) (models.StatusReport, error)
	GetStatus(ctx context.Context, lectureID string) (models.StatusReport, error)
	DeleteLecture(ctx context.Context, lectureID string) error
}

// SpanRetriever returns ranked, deduplicated transcript spans.
type SpanRetriever interface {
	Retrieve(ctx context.Context, lectureID, query string, k int) ([]models.RetrievedSpan, error)
}

// ChatResponder answers grounded questions and manages the chat log.
type ChatResponder interface {
	Answer(ctx context.Context, lectureID, userID, question string) (*models.Answer, error)
	History(ctx context.Context, lectureID string) ([]*models.ChatTurn, error)
	DeleteTurn(ctx context.Context, lectureID, turnID string) error
}

// Summarizer produces a whole-lecture summary.
type Summarizer interface {
	Summarize(ctx context.Context, lectureID string) (string, error)
}
