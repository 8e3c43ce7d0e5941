package models

import "time"

// Span is a [Start, End] range of the lecture video in seconds
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span length in seconds
func (s Span) Duration() float64 {
	return s.End - s.Start
}

// Label renders the span as mm:ss-mm:ss
func (s Span) Label() string {
	return FormatTimestamp(s.Start) + "-" + FormatTimestamp(s.End)
}

// RetrievedSpan is one ranked retrieval result
type RetrievedSpan struct {
	ChunkID  string  `json:"chunk_id"`
	Sequence int     `json:"sequence"`
	Text     string  `json:"text"`
	Start    float64 `json:"start_time"`
	End      float64 `json:"end_time"`
	Score    float64 `json:"score"`
}

// Span returns the time range of the result
func (r RetrievedSpan) Span() Span {
	return Span{Start: r.Start, End: r.End}
}

// ChatTurn is one persisted question/answer exchange
type ChatTurn struct {
	ID                string    `json:"id"`
	LectureID         string    `json:"lecture_id" badgerhold:"index"`
	UserID            string    `json:"user_id,omitempty"`
	Question          string    `json:"question"`
	Response          string    `json:"response"`
	CitedSpans        []Span    `json:"cited_spans"`
	DegradedCitations bool      `json:"degraded_citations"`
	CreatedAt         time.Time `json:"created_at"`
}

// Answer is the result of a grounded question
type Answer struct {
	TurnID            string          `json:"turn_id"`
	Response          string          `json:"response"`
	Citations         []RetrievedSpan `json:"citations"`
	DegradedCitations bool            `json:"degraded_citations"`
}

// CitedSpans returns the time ranges of the answer's citations in order
func (a *Answer) CitedSpans() []Span {
	spans := make([]Span, 0, len(a.Citations))
	for _, c := range a.Citations {
		spans = append(spans, c.Span())
	}
	return spans
}
