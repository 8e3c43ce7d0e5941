package models

import (
	"fmt"
	"time"
)

// TranscriptStatus is the ingestion state of a lecture
type TranscriptStatus string

const (
	StatusPending    TranscriptStatus = "pending"
	StatusProcessing TranscriptStatus = "processing"
	StatusCompleted  TranscriptStatus = "completed"
	StatusFailed     TranscriptStatus = "failed"
)

// IsValid reports whether s is a known status
func (s TranscriptStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for completed and failed
func (s TranscriptStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether next is a forward transition from s.
// Moving back to pending is only possible through Lecture.Reset.
func (s TranscriptStatus) CanTransitionTo(next TranscriptStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Lecture is an uploaded recording and its ingestion state
type Lecture struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	OwnerID         string           `json:"owner_id" badgerhold:"index"`
	VideoFilename   string           `json:"video_filename,omitempty"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Status          TranscriptStatus `json:"status" badgerhold:"index"`
	StatusError     string           `json:"status_error,omitempty"`
	Transcript      Transcript       `json:"transcript,omitempty"`
	ChunkCount      int              `json:"chunk_count"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
}

// NewLecture creates a pending lecture
func NewLecture(id, title, description, ownerID string) *Lecture {
	now := time.Now()
	return &Lecture{
		ID:          id,
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (l *Lecture) transition(next TranscriptStatus) error {
	if !l.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, next)
	}
	l.Status = next
	l.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing moves a pending lecture to processing and records the transcript being ingested
func (l *Lecture) MarkProcessing(transcript Transcript) error {
	if err := l.transition(StatusProcessing); err != nil {
		return err
	}
	l.Transcript = transcript
	l.StatusError = ""
	l.ChunkCount = 0
	now := l.UpdatedAt
	l.StartedAt = &now
	l.FinishedAt = nil
	return nil
}

// MarkCompleted finishes a processing lecture
func (l *Lecture) MarkCompleted(chunkCount int) error {
	if err := l.transition(StatusCompleted); err != nil {
		return err
	}
	l.ChunkCount = chunkCount
	now := l.UpdatedAt
	l.FinishedAt = &now
	return nil
}

// MarkFailed fails a processing lecture with a reason
func (l *Lecture) MarkFailed(reason string) error {
	if err := l.transition(StatusFailed); err != nil {
		return err
	}
	l.StatusError = reason
	l.ChunkCount = 0
	now := l.UpdatedAt
	l.FinishedAt = &now
	return nil
}

// Reset is the explicit way back to pending from a terminal status
func (l *Lecture) Reset() error {
	if !l.Status.IsTerminal() {
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, l.Status)
	}
	l.Status = StatusPending
	l.StatusError = ""
	l.ChunkCount = 0
	l.StartedAt = nil
	l.FinishedAt = nil
	l.UpdatedAt = time.Now()
	return nil
}

// RequireReady returns ErrNotReady unless the transcript is completed
func (l *Lecture) RequireReady() error {
	if l.Status != StatusCompleted {
		return fmt.Errorf("%w: lecture %s is %s", ErrNotReady, l.ID, l.Status)
	}
	return nil
}

// Report returns the externally visible status of the lecture
func (l *Lecture) Report() StatusReport {
	return StatusReport{
		LectureID:  l.ID,
		Status:     l.Status,
		Error:      l.StatusError,
		ChunkCount: l.ChunkCount,
		UpdatedAt:  l.UpdatedAt,
	}
}

// StatusReport is what status polls and status events carry
type StatusReport struct {
	LectureID  string           `json:"lecture_id"`
	Status     TranscriptStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	ChunkCount int              `json:"chunk_count"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
