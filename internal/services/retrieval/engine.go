// Package retrieval answers "where in the lecture" queries with ranked, deduplicated spans.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/index"
)

// Options tunes retrieval
type Options struct {
	DedupOverlap float64 // fraction of the shorter span above which two spans are duplicates
	MinScore     float64
	OverFetch    int
	MaxTopK      int
	Timeout      time.Duration
}

// Engine embeds queries and searches one lecture's chunks
type Engine struct {
	lectures interfaces.LectureStorage
	embedder interfaces.Embedder
	index    *index.Index
	options  Options
	logger   arbor.ILogger
}

// NewEngine creates a retrieval engine
func NewEngine(lectures interfaces.LectureStorage, embedder interfaces.Embedder, index *index.Index, options Options, logger arbor.ILogger) *Engine {
	if options.DedupOverlap <= 0 || options.DedupOverlap > 1 {
		options.DedupOverlap = 0.5
	}
	if options.OverFetch < 1 {
		options.OverFetch = 3
	}
	return &Engine{
		lectures: lectures,
		embedder: embedder,
		index:    index,
		options:  options,
		logger:   logger,
	}
}

// Retrieve returns up to k spans of the lecture most similar to query
func (e *Engine) Retrieve(ctx context.Context, lectureID, query string, k int) ([]models.RetrievedSpan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrEmptyInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", models.ErrEmptyInput)
	}
	if e.options.MaxTopK > 0 && k > e.options.MaxTopK {
		k = e.options.MaxTopK
	}

	lecture, err := e.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if err := lecture.RequireReady(); err != nil {
		return nil, err
	}

	embedCtx := ctx
	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	vector, err := e.embedder.Embed(embedCtx, query)
	if err != nil {
		return nil, models.CapabilityError(ctx, "embed query", err)
	}

	hits, err := e.index.Search(lectureID, vector, k*e.options.OverFetch)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", models.ErrCapabilityUnavailable, err)
	}

	spans := Deduplicate(hits, e.options.DedupOverlap, e.options.MinScore, k)

	e.logger.Debug().
		Str("lecture_id", lectureID).
		Int("hits", len(hits)).
		Int("spans", len(spans)).
		Msg("Retrieval completed")

	return spans, nil
}

// Deduplicate walks hits in rank order and drops any hit whose time range
// overlaps an already kept span by more than threshold of the shorter span.
// Hits scoring below minScore are dropped. At most k spans are returned.
func Deduplicate(hits []models.ScoredChunk, threshold, minScore float64, k int) []models.RetrievedSpan {
	kept := make([]models.RetrievedSpan, 0, k)
	for _, hit := range hits {
		if len(kept) == k {
			break
		}
		if hit.Score < minScore {
			continue
		}

		span := hit.Chunk.Span()
		duplicate := false
		for _, other := range kept {
			if OverlapFraction(span, other.Span()) > threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		kept = append(kept, models.RetrievedSpan{
			ChunkID:  hit.Chunk.ID,
			Sequence: hit.Chunk.Sequence,
			Text:     hit.Chunk.Text,
			Start:    hit.Chunk.Start,
			End:      hit.Chunk.End,
			Score:    hit.Score,
		})
	}
	return kept
}

// OverlapFraction returns the overlap of a and b as a fraction of the shorter duration.
// A zero-length span inside (or touching) the other counts as fully overlapped.
func OverlapFraction(a, b models.Span) float64 {
	overlap := math.Min(a.End, b.End) - math.Max(a.Start, b.Start)
	if overlap < 0 {
		return 0
	}
	shorter := math.Min(a.Duration(), b.Duration())
	if shorter <= 0 {
		return 1
	}
	return overlap / shorter
}
