package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ChunkStorage persists embedded chunks with their vectors
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) *ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

func lectureChunks(lectureID string) *badgerhold.Query {
	return badgerhold.Where("LectureID").Eq(lectureID).Index("LectureID")
}

// ReplaceChunks deletes the lecture's existing chunks and inserts the new set in a single
// Badger transaction. Readers see either the old set or the new one.
func (s *ChunkStorage) ReplaceChunks(ctx context.Context, lectureID string, chunks []*models.Chunk) error {
	for _, chunk := range chunks {
		if chunk.LectureID != lectureID {
			return fmt.Errorf("chunk %s belongs to lecture %s, not %s", chunk.ID, chunk.LectureID, lectureID)
		}
	}

	store := s.db.Store()
	err := store.Badger().Update(func(tx *badger.Txn) error {
		if err := store.TxDeleteMatching(tx, &models.Chunk{}, lectureChunks(lectureID)); err != nil {
			return fmt.Errorf("failed to clear previous chunks: %w", err)
		}
		for _, chunk := range chunks {
			if err := store.TxInsert(tx, chunk.ID, chunk); err != nil {
				return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace chunks for lecture %s: %w", lectureID, err)
	}

	s.logger.Debug().
		Str("lecture_id", lectureID).
		Int("chunks", len(chunks)).
		Msg("Chunk set replaced")

	return nil
}

// ListChunks returns the lecture's chunks in sequence order
func (s *ChunkStorage) ListChunks(ctx context.Context, lectureID string) ([]*models.Chunk, error) {
	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, lectureChunks(lectureID)); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Sequence < chunks[j].Sequence
	})

	result := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		result[i] = &chunks[i]
	}
	return result, nil
}

func (s *ChunkStorage) DeleteChunks(ctx context.Context, lectureID string) error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, lectureChunks(lectureID)); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *ChunkStorage) CountChunks(ctx context.Context, lectureID string) (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, lectureChunks(lectureID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// Close is a no-op, the manager owns the database
func (s *ChunkStorage) Close() error {
	return nil
}
