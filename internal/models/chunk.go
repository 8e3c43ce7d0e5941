package models

import "time"

// ChunkDraft is a chunk before embedding
type ChunkDraft struct {
	Sequence int     `json:"sequence"`
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

// Chunk is an embedded, immutable retrieval unit of one lecture
type Chunk struct {
	ID        string    `json:"id"`
	LectureID string    `json:"lecture_id" badgerhold:"index"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Vector    []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Span returns the chunk's time range
func (c *Chunk) Span() Span {
	return Span{Start: c.Start, End: c.End}
}

// ScoredChunk is a search hit
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}
