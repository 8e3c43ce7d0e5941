// Package index holds per-lecture embedding sets and answers cosine similarity searches.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/workers"
)

// chunkSet is an immutable snapshot of one lecture's embedded chunks
type chunkSet struct {
	chunks    []*models.Chunk
	norms     []float64
	dimension int
}

func newChunkSet(chunks []*models.Chunk) (*chunkSet, error) {
	set := &chunkSet{
		chunks: chunks,
		norms:  make([]float64, len(chunks)),
	}
	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return nil, fmt.Errorf("chunk %s has no vector", c.ID)
		}
		if i == 0 {
			set.dimension = len(c.Vector)
		} else if len(c.Vector) != set.dimension {
			return nil, fmt.Errorf("chunk %s has dimension %d, expected %d", c.ID, len(c.Vector), set.dimension)
		}
		set.norms[i] = norm(c.Vector)
	}
	return set, nil
}

// Index is the in-memory embedding index backed by a ChunkStorage.
// Each lecture owns an atomic pointer to its current chunk set; writers
// build a complete replacement and swap it in, readers never lock.
type Index struct {
	embedder interfaces.Embedder
	store    interfaces.ChunkStorage
	workers  int
	logger   arbor.ILogger
	sets     sync.Map // lectureID -> *atomic.Pointer[chunkSet]
}

// NewIndex creates an index that embeds with up to workers parallel calls
func NewIndex(embedder interfaces.Embedder, store interfaces.ChunkStorage, workers int, logger arbor.ILogger) *Index {
	if workers <= 0 {
		workers = 1
	}
	return &Index{
		embedder: embedder,
		store:    store,
		workers:  workers,
		logger:   logger,
	}
}

func (x *Index) slot(lectureID string) *atomic.Pointer[chunkSet] {
	if p, ok := x.sets.Load(lectureID); ok {
		return p.(*atomic.Pointer[chunkSet])
	}
	p, _ := x.sets.LoadOrStore(lectureID, &atomic.Pointer[chunkSet]{})
	return p.(*atomic.Pointer[chunkSet])
}

func (x *Index) current(lectureID string) *chunkSet {
	p, ok := x.sets.Load(lectureID)
	if !ok {
		return nil
	}
	return p.(*atomic.Pointer[chunkSet]).Load()
}

// Embed turns drafts into embedded chunks without making them visible.
// The first embedding failure cancels the remaining calls and fails the batch.
func (x *Index) Embed(ctx context.Context, lectureID string, drafts []models.ChunkDraft) ([]*models.Chunk, error) {
	now := time.Now()
	chunks := make([]*models.Chunk, len(drafts))
	for i, d := range drafts {
		chunks[i] = &models.Chunk{
			ID:        common.ChunkID(lectureID, d.Sequence),
			LectureID: lectureID,
			Sequence:  d.Sequence,
			Text:      d.Text,
			Start:     d.Start,
			End:       d.End,
			CreatedAt: now,
		}
	}

	pool := workers.NewPool(ctx, x.workers, x.logger)
	pool.Start()

	for _, chunk := range chunks {
		err := pool.Submit(func(ctx context.Context) error {
			vector, err := x.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				return models.CapabilityError(ctx, fmt.Sprintf("embed chunk %d", chunk.Sequence), err)
			}
			chunk.Vector = vector
			return nil
		})
		if err != nil {
			break
		}
	}

	if err := pool.Wait(); err != nil {
		return nil, models.CapabilityError(ctx, "embed batch", err)
	}

	// validate dimension before anything is persisted
	if _, err := newChunkSet(chunks); err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	x.logger.Debug().
		Str("lecture_id", lectureID).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(now)).
		Msg("Embedded chunk batch")

	return chunks, nil
}

// Commit persists the chunk set in one transaction and then makes it visible
func (x *Index) Commit(ctx context.Context, lectureID string, chunks []*models.Chunk) error {
	ordered := make([]*models.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	set, err := newChunkSet(ordered)
	if err != nil {
		return err
	}

	if err := x.store.ReplaceChunks(ctx, lectureID, ordered); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	x.slot(lectureID).Store(set)
	return nil
}

// Add embeds and commits the drafts as one atomic batch
func (x *Index) Add(ctx context.Context, lectureID string, drafts []models.ChunkDraft) ([]*models.Chunk, error) {
	chunks, err := x.Embed(ctx, lectureID, drafts)
	if err != nil {
		return nil, err
	}
	if err := x.Commit(ctx, lectureID, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Search returns the k chunks of the lecture closest to the query vector.
// Results are ordered by descending cosine score, ties by lower sequence.
func (x *Index) Search(lectureID string, query []float32, k int) ([]models.ScoredChunk, error) {
	set := x.current(lectureID)
	if set == nil || len(set.chunks) == 0 || k <= 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(query) != set.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), set.dimension)
	}

	queryNorm := norm(query)
	scored := make([]models.ScoredChunk, len(set.chunks))
	for i, c := range set.chunks {
		scored[i] = models.ScoredChunk{
			Chunk: c,
			Score: cosine(query, c.Vector, queryNorm, set.norms[i]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Sequence < scored[j].Chunk.Sequence
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// Remove deletes the lecture's chunks from the store and the in-memory index
func (x *Index) Remove(ctx context.Context, lectureID string) error {
	if err := x.store.DeleteChunks(ctx, lectureID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if p, ok := x.sets.LoadAndDelete(lectureID); ok {
		p.(*atomic.Pointer[chunkSet]).Store(nil)
	}
	return nil
}

// Chunks returns the lecture's chunks ordered by sequence.
// Lectures not yet hydrated are read from the store.
func (x *Index) Chunks(ctx context.Context, lectureID string) ([]*models.Chunk, error) {
	if set := x.current(lectureID); set != nil {
		out := make([]*models.Chunk, len(set.chunks))
		copy(out, set.chunks)
		return out, nil
	}

	chunks, err := x.store.ListChunks(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// Count returns the number of visible chunks for the lecture
func (x *Index) Count(lectureID string) int {
	if set := x.current(lectureID); set != nil {
		return len(set.chunks)
	}
	return 0
}

// Load hydrates the in-memory sets from the store
func (x *Index) Load(ctx context.Context, lectureIDs []string) error {
	for _, id := range lectureIDs {
		chunks, err := x.store.ListChunks(ctx, id)
		if err != nil {
			return fmt.Errorf("load chunks for %s: %w", id, err)
		}
		if len(chunks) == 0 {
			continue
		}
		set, err := newChunkSet(chunks)
		if err != nil {
			return fmt.Errorf("load chunks for %s: %w", id, err)
		}
		x.slot(id).Store(set)
	}

	x.logger.Info().
		Int("lectures", len(lectureIDs)).
		Msg("Embedding index loaded")
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
