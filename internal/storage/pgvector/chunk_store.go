package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/models"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ChunkStore persists chunks in Postgres with a pgvector embedding column
type ChunkStore struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    arbor.ILogger
}

// NewChunkStore connects to Postgres and ensures the extension and table exist
func NewChunkStore(ctx context.Context, config *common.PgVectorConfig, logger arbor.ILogger) (*ChunkStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	if !tableNamePattern.MatchString(config.Table) {
		return nil, fmt.Errorf("invalid pgvector table name %q", config.Table)
	}
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("pgvector dimension must be positive")
	}

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &ChunkStore{
		pool:      pool,
		table:     config.Table,
		dimension: config.Dimension,
		logger:    logger,
	}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info().
		Str("table", config.Table).
		Int("dimension", config.Dimension).
		Msg("pgvector chunk store initialized")

	return store, nil
}

func (s *ChunkStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			lecture_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			text TEXT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time DOUBLE PRECISION NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (lecture_id, sequence)
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_lecture_idx ON %s (lecture_id)`, s.table, s.table),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize pgvector schema: %w", err)
		}
	}
	return nil
}

// ReplaceChunks swaps the lecture's rows inside one transaction
func (s *ChunkStore) ReplaceChunks(ctx context.Context, lectureID string, chunks []*models.Chunk) error {
	for _, chunk := range chunks {
		if chunk.LectureID != lectureID {
			return fmt.Errorf("chunk %s belongs to lecture %s, not %s", chunk.ID, chunk.LectureID, lectureID)
		}
		if len(chunk.Vector) != s.dimension {
			return fmt.Errorf("chunk %s has dimension %d, table expects %d", chunk.ID, len(chunk.Vector), s.dimension)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE lecture_id = $1`, s.table), lectureID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, lecture_id, sequence, text, start_time, end_time, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		createdAt := chunk.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		batch.Queue(insert, chunk.ID, chunk.LectureID, chunk.Sequence, chunk.Text,
			chunk.Start, chunk.End, pgvector.NewVector(chunk.Vector), createdAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// ListChunks returns the lecture's chunks in sequence order
func (s *ChunkStore) ListChunks(ctx context.Context, lectureID string) ([]*models.Chunk, error) {
	query := fmt.Sprintf(`SELECT id, lecture_id, sequence, text, start_time, end_time, embedding::text, created_at
		FROM %s WHERE lecture_id = $1 ORDER BY sequence`, s.table)

	rows, err := s.pool.Query(ctx, query, lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var vector pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.LectureID, &chunk.Sequence, &chunk.Text,
			&chunk.Start, &chunk.End, &vector, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.Vector = vector.Slice()
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return chunks, nil
}

func (s *ChunkStore) DeleteChunks(ctx context.Context, lectureID string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE lecture_id = $1`, s.table), lectureID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *ChunkStore) CountChunks(ctx context.Context, lectureID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE lecture_id = $1`, s.table), lectureID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Close releases the connection pool
func (s *ChunkStore) Close() error {
	s.pool.Close()
	return nil
}
