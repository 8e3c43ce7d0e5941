package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from TranscriptStatus
		to   TranscriptStatus
		want bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestLecture_Lifecycle(t *testing.T) {
	lecture := NewLecture("lec_1", "Loops", "", "user-1")
	assert.Equal(t, StatusPending, lecture.Status)
	assert.ErrorIs(t, lecture.RequireReady(), ErrNotReady)

	transcript := Transcript{{Text: "Intro", Start: 0, End: 5}}
	require.NoError(t, lecture.MarkProcessing(transcript))
	assert.Equal(t, StatusProcessing, lecture.Status)
	require.NotNil(t, lecture.StartedAt)
	assert.Len(t, lecture.Transcript, 1)

	// A second start is rejected
	assert.ErrorIs(t, lecture.MarkProcessing(transcript), ErrInvalidTransition)

	require.NoError(t, lecture.MarkCompleted(3))
	assert.Equal(t, 3, lecture.ChunkCount)
	assert.NoError(t, lecture.RequireReady())
	require.NotNil(t, lecture.FinishedAt)

	// Completed never silently moves back
	assert.ErrorIs(t, lecture.MarkFailed("late"), ErrInvalidTransition)
	assert.Equal(t, StatusCompleted, lecture.Status)
}

func TestLecture_FailAndReset(t *testing.T) {
	lecture := NewLecture("lec_2", "Recursion", "", "user-1")

	assert.ErrorIs(t, lecture.Reset(), ErrInvalidTransition)

	require.NoError(t, lecture.MarkProcessing(nil))
	assert.ErrorIs(t, lecture.Reset(), ErrInvalidTransition)

	require.NoError(t, lecture.MarkFailed("embedding outage"))
	report := lecture.Report()
	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, "embedding outage", report.Error)

	require.NoError(t, lecture.Reset())
	assert.Equal(t, StatusPending, lecture.Status)
	assert.Empty(t, lecture.StatusError)
	assert.Nil(t, lecture.StartedAt)
	assert.Nil(t, lecture.FinishedAt)
}
