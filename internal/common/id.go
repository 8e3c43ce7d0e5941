package common

import (
	"fmt"

	"github.com/google/uuid"
)

// NewLectureID generates a unique lecture ID with the "lec_" prefix
// Format: lec_<uuid>
func NewLectureID() string {
	return "lec_" + uuid.New().String()
}

// ChunkID derives a stable chunk ID from its lecture and sequence index
func ChunkID(lectureID string, sequence int) string {
	return fmt.Sprintf("chk_%s_%05d", lectureID, sequence)
}

// NewTurnID generates a time-ordered chat turn ID (UUIDv7), falling back to v4
func NewTurnID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
