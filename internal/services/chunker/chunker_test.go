package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lectern/internal/models"
)

func loopsTranscript() models.Transcript {
	return models.Transcript{
		{Text: "Intro to loops", Start: 0, End: 10},
		{Text: "A for-loop repeats", Start: 10, End: 25},
		{Text: "A while-loop checks a condition first", Start: 25, End: 40},
	}
}

// contiguous builds n utterances of the given text length, each lasting 5 seconds
func contiguous(n, size int) models.Transcript {
	t := make(models.Transcript, n)
	for i := range t {
		text := fmt.Sprintf("u%03d", i)
		text += strings.Repeat("x", size-len(text))
		t[i] = models.Utterance{Text: text, Start: float64(i * 5), End: float64(i*5 + 5)}
	}
	return t
}

func TestNew_RejectsInvalidSizes(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)
	_, err = New(100, 100)
	assert.Error(t, err)
	_, err = New(100, -1)
	assert.Error(t, err)

	c, err := New(800, 150)
	require.NoError(t, err)
	assert.Equal(t, 800, c.Budget())
	assert.Equal(t, 150, c.Overlap())
}

func TestChunk_SingleChunkWhenUnderBudget(t *testing.T) {
	c, err := New(800, 150)
	require.NoError(t, err)

	drafts := c.Chunk(loopsTranscript())
	require.Len(t, drafts, 1)
	assert.Equal(t, 0, drafts[0].Sequence)
	assert.Equal(t, "Intro to loops A for-loop repeats A while-loop checks a condition first", drafts[0].Text)
	assert.Equal(t, 0.0, drafts[0].Start)
	assert.Equal(t, 40.0, drafts[0].End)
}

func TestChunk_EmptyTranscript(t *testing.T) {
	c, err := New(800, 150)
	require.NoError(t, err)

	drafts := c.Chunk(nil)
	require.Len(t, drafts, 1)
	assert.Equal(t, models.ChunkDraft{Sequence: 0}, drafts[0])
}

func TestChunk_OversizeUtteranceIsOneChunk(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	long := strings.Repeat("word ", 40)
	drafts := c.Chunk(models.Transcript{{Text: long, Start: 3, End: 90}})
	require.Len(t, drafts, 1)
	assert.Equal(t, strings.TrimSpace(long), drafts[0].Text)
	assert.Equal(t, 3.0, drafts[0].Start)
	assert.Equal(t, 90.0, drafts[0].End)
}

func TestChunk_UtteranceStaysInChunkWhereItStarts(t *testing.T) {
	c, err := New(20, 0)
	require.NoError(t, err)

	drafts := c.Chunk(models.Transcript{
		{Text: "0123456789", Start: 0, End: 5},
		{Text: "abcdefghijklmnop", Start: 5, End: 12},
		{Text: "tail", Start: 12, End: 14},
	})
	require.Len(t, drafts, 2)
	assert.Equal(t, "0123456789 abcdefghijklmnop", drafts[0].Text)
	assert.Equal(t, 0.0, drafts[0].Start)
	assert.Equal(t, 12.0, drafts[0].End)
	assert.Equal(t, "tail", drafts[1].Text)
	assert.Equal(t, 12.0, drafts[1].Start)
	assert.Equal(t, 14.0, drafts[1].End)
}

func TestChunk_OrderingCoverageAndOverlap(t *testing.T) {
	c, err := New(100, 30)
	require.NoError(t, err)

	transcript := contiguous(60, 12)
	drafts := c.Chunk(transcript)
	require.Greater(t, len(drafts), 2)

	start, end := transcript.Range()
	assert.Equal(t, start, drafts[0].Start)
	assert.Equal(t, end, drafts[len(drafts)-1].End)

	for i, d := range drafts {
		assert.Equal(t, i, d.Sequence)
		assert.LessOrEqual(t, d.Start, d.End)
		if i == 0 {
			continue
		}
		prev := drafts[i-1]
		assert.Greater(t, d.Start, prev.Start, "chunk %d start must advance", i)
		assert.LessOrEqual(t, d.Start, prev.End, "gap between chunk %d and %d", i-1, i)
		assert.Less(t, d.Start, prev.End, "chunk %d must overlap its predecessor", i)
	}

	// every utterance is contained in at least one chunk
	for _, u := range transcript {
		found := false
		for _, d := range drafts {
			if strings.Contains(d.Text, u.Text) {
				found = true
				assert.True(t, d.Start <= u.Start && u.End <= d.End)
				break
			}
		}
		assert.True(t, found, "utterance %q missing", u.Text)
	}
}

func TestChunk_OverlapStaysWithinBudget(t *testing.T) {
	c, err := New(100, 30)
	require.NoError(t, err)

	drafts := c.Chunk(contiguous(40, 12))
	for i := 1; i < len(drafts); i++ {
		prevWords := strings.Fields(drafts[i-1].Text)
		words := strings.Fields(drafts[i].Text)
		shared := 0
		for _, w := range words {
			for _, p := range prevWords {
				if w == p {
					shared += len(w) + 1
				}
			}
		}
		assert.LessOrEqual(t, shared-1, 30)
	}
}

func TestChunk_NoOverlap(t *testing.T) {
	c, err := New(100, 0)
	require.NoError(t, err)

	drafts := c.Chunk(contiguous(30, 12))
	for i := 1; i < len(drafts); i++ {
		assert.Equal(t, drafts[i-1].End, drafts[i].Start)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(120, 40)
	require.NoError(t, err)

	transcript := contiguous(80, 17)
	first := c.Chunk(transcript)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Chunk(transcript))
	}
}

func TestChunk_LongUtterancesStillOverlap(t *testing.T) {
	c, err := New(800, 150)
	require.NoError(t, err)

	transcript := contiguous(12, 160)
	drafts := c.Chunk(transcript)
	require.Len(t, drafts, 3)

	assert.Equal(t, 0.0, drafts[0].Start)
	assert.Equal(t, 25.0, drafts[0].End)
	assert.Equal(t, 20.0, drafts[1].Start)
	assert.Equal(t, 45.0, drafts[1].End)
	assert.Equal(t, 40.0, drafts[2].Start)
	assert.Equal(t, 60.0, drafts[2].End)

	for i := 1; i < len(drafts); i++ {
		prev, cur := drafts[i-1], drafts[i]
		boundary := strings.Fields(prev.Text)
		shared := boundary[len(boundary)-1]
		assert.True(t, strings.HasPrefix(cur.Text, shared), "chunk %d must start with the last utterance of chunk %d", i, i-1)
		assert.Less(t, cur.Start, prev.End)
	}

	// carried text keeps its own time range inside the chunk
	for _, d := range drafts {
		for _, u := range transcript {
			if strings.Contains(d.Text, u.Text) {
				assert.True(t, d.Start <= u.Start && u.End <= d.End, "utterance %q outside chunk [%v,%v]", u.Text[:4], d.Start, d.End)
			}
		}
	}
}

func TestChunk_SingleOversizeUtteranceIsNotRepeated(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	drafts := c.Chunk(models.Transcript{
		{Text: strings.Repeat("a", 60), Start: 0, End: 10},
		{Text: "short tail", Start: 10, End: 12},
	})
	require.Len(t, drafts, 2)
	assert.Equal(t, 0.0, drafts[0].Start)
	assert.Equal(t, "short tail", drafts[1].Text)
	assert.Equal(t, 10.0, drafts[1].Start)
}
