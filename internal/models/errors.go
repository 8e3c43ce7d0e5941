package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when an operation requires a completed transcript
	ErrNotReady = errors.New("lecture transcript is not ready")

	// ErrConcurrentIngestion is returned when ingest is called while the lecture is processing
	ErrConcurrentIngestion = errors.New("ingestion already in progress")

	// ErrCapabilityUnavailable wraps embedding or generation failures and timeouts
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrEmptyInput is returned for degenerate queries or transcripts that cannot be handled
	ErrEmptyInput = errors.New("empty input")

	// ErrRequestAborted is returned when the caller cancelled the request
	ErrRequestAborted = errors.New("request aborted")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLectureNotFound is returned when no lecture exists for an ID
	ErrLectureNotFound = errors.New("lecture not found")

	// ErrTurnNotFound is returned when a chat turn does not exist for the lecture
	ErrTurnNotFound = errors.New("chat turn not found")
)

// CapabilityError classifies a failed embedding or generation call.
// Caller cancellation becomes ErrRequestAborted, everything else (deadlines
// included) becomes ErrCapabilityUnavailable.
func CapabilityError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRequestAborted) || errors.Is(err, ErrCapabilityUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		return fmt.Errorf("%s: %w: %v", op, ErrRequestAborted, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrCapabilityUnavailable, err)
}
