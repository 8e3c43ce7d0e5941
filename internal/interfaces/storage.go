package interfaces

import (
	"context"

	"github.com/ternarybob/lectern/internal/models"
)

// LectureStorage persists lectures and their status
type LectureStorage interface {
	SaveLecture(ctx context.Context, lecture *models.Lecture) error
	GetLecture(ctx context.Context, id string) (*models.Lecture, error)
	ListLectures(ctx context.Context, ownerID string) ([]*models.Lecture, error)
	ListLecturesByStatus(ctx context.Context, status models.TranscriptStatus) ([]*models.Lecture, error)
	DeleteLecture(ctx context.Context, id string) error
}

// ChunkStorage persists embedded chunks.
// ReplaceChunks swaps a lecture's whole chunk set in one transaction.
type ChunkStorage interface {
	ReplaceChunks(ctx context.Context, lectureID string, chunks []*models.Chunk) error
	ListChunks(ctx context.Context, lectureID string) ([]*models.Chunk, error)
	DeleteChunks(ctx context.Context, lectureID string) error
	CountChunks(ctx context.Context, lectureID string) (int, error)
	Close() error
}

// ChatHistoryStorage is the append-only chat log per lecture
type ChatHistoryStorage interface {
	AppendTurn(ctx context.Context, turn *models.ChatTurn) error
	ListTurns(ctx context.Context, lectureID string) ([]*models.ChatTurn, error)
	DeleteTurn(ctx context.Context, lectureID, turnID string) error
	DeleteTurns(ctx context.Context, lectureID string) error
}

// StorageManager composes all storage backends
type StorageManager interface {
	LectureStorage() LectureStorage
	ChunkStorage() ChunkStorage
	ChatHistoryStorage() ChatHistoryStorage
	Close() error
}
