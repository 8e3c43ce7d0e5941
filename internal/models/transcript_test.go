package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscript_Validate(t *testing.T) {
	tests := []struct {
		name       string
		transcript Transcript
		wantErr    bool
	}{
		{name: "empty", transcript: nil},
		{name: "ordered", transcript: Transcript{{"a", 0, 2}, {"b", 2, 4}, {"c", 4, 4}}},
		{name: "overlapping utterances", transcript: Transcript{{"a", 0, 5}, {"b", 3, 6}}},
		{name: "negative start", transcript: Transcript{{"a", -1, 2}}, wantErr: true},
		{name: "end before start", transcript: Transcript{{"a", 3, 2}}, wantErr: true},
		{name: "start goes backwards", transcript: Transcript{{"a", 5, 6}, {"b", 4, 7}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.transcript.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTranscript_Range(t *testing.T) {
	start, end := Transcript{}.Range()
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 0.0, end)

	start, end = Transcript{{"a", 2, 9}, {"b", 3, 7}}.Range()
	assert.Equal(t, 2.0, start)
	assert.Equal(t, 9.0, end)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00", FormatTimestamp(0))
	assert.Equal(t, "01:05", FormatTimestamp(65.9))
	assert.Equal(t, "59:59", FormatTimestamp(3599))
	assert.Equal(t, "1:00:01", FormatTimestamp(3601))
	assert.Equal(t, "00:00", FormatTimestamp(-3))
	assert.Equal(t, "00:10-00:25", Span{Start: 10, End: 25}.Label())
}

func TestCapabilityError(t *testing.T) {
	assert.Nil(t, CapabilityError(context.Background(), "embed", nil))

	err := CapabilityError(context.Background(), "embed", errors.New("503"))
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	err = CapabilityError(context.Background(), "embed", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = CapabilityError(ctx, "generate", errors.New("transport closed"))
	assert.ErrorIs(t, err, ErrRequestAborted)
	assert.NotErrorIs(t, err, ErrCapabilityUnavailable)

	// Already classified errors pass through
	assert.Equal(t, err, CapabilityError(context.Background(), "again", err))
}
