// Package chunker splits a timestamped transcript into overlapping retrieval units.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/lectern/internal/models"
)

// Chunker partitions transcripts by a character budget.
// Utterances are never split: an utterance belongs whole to the chunk in
// which it starts, so a chunk may exceed the budget by its last utterance.
// Consecutive chunks share trailing whole utterances totalling at most
// the overlap budget. When the last utterance alone exceeds that budget it
// is still carried, so a non-zero overlap always shares text between
// neighbours. A chunk holding a single utterance carries nothing.
type Chunker struct {
	budget  int
	overlap int
}

// New validates the budget and overlap
func New(budget, overlap int) (*Chunker, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("chunk budget must be positive, got %d", budget)
	}
	if overlap < 0 || overlap >= budget {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", budget, overlap)
	}
	return &Chunker{budget: budget, overlap: overlap}, nil
}

// Budget returns the configured character budget
func (c *Chunker) Budget() int {
	return c.budget
}

// Overlap returns the configured overlap
func (c *Chunker) Overlap() int {
	return c.overlap
}

// window is the run of utterance indices making up the chunk being built
type window struct {
	indices []int
	length  int // characters including single-space separators
	fresh   int // utterances not carried over from the previous chunk
}

func (w *window) add(i, size int) {
	if len(w.indices) > 0 {
		w.length++
	}
	w.indices = append(w.indices, i)
	w.length += size
	w.fresh++
}

// Chunk returns the ordered chunk drafts for the transcript.
// It never fails: an empty transcript yields one empty chunk at [0,0].
func (c *Chunker) Chunk(transcript models.Transcript) []models.ChunkDraft {
	if len(transcript) == 0 {
		return []models.ChunkDraft{{Sequence: 0}}
	}

	texts := make([]string, len(transcript))
	sizes := make([]int, len(transcript))
	for i, u := range transcript {
		texts[i] = strings.TrimSpace(u.Text)
		sizes[i] = utf8.RuneCountInString(texts[i])
	}

	var drafts []models.ChunkDraft
	var current window

	for i := range transcript {
		current.add(i, sizes[i])
		if current.length >= c.budget {
			drafts = append(drafts, c.draft(len(drafts), transcript, texts, current.indices))
			current = c.carry(current.indices, sizes)
		}
	}

	if current.fresh > 0 {
		drafts = append(drafts, c.draft(len(drafts), transcript, texts, current.indices))
	}

	return drafts
}

// carry starts the next window with the trailing whole utterances that fit the overlap,
// falling back to the last utterance when none fits
func (c *Chunker) carry(indices []int, sizes []int) window {
	next := window{}
	if c.overlap == 0 {
		return next
	}

	length := 0
	start := len(indices)
	for j := len(indices) - 1; j > 0; j-- {
		size := sizes[indices[j]]
		if length > 0 {
			size++
		}
		if length+size > c.overlap {
			break
		}
		length += size
		start = j
	}

	if start == len(indices) && len(indices) > 1 {
		start = len(indices) - 1
	}

	for _, idx := range indices[start:] {
		next.add(idx, sizes[idx])
	}
	next.fresh = 0
	return next
}

func (c *Chunker) draft(sequence int, transcript models.Transcript, texts []string, indices []int) models.ChunkDraft {
	parts := make([]string, 0, len(indices))
	first := transcript[indices[0]]
	end := first.End
	for _, idx := range indices {
		if texts[idx] != "" {
			parts = append(parts, texts[idx])
		}
		if transcript[idx].End > end {
			end = transcript[idx].End
		}
	}

	return models.ChunkDraft{
		Sequence: sequence,
		Text:     strings.Join(parts, " "),
		Start:    first.Start,
		End:      end,
	}
}
