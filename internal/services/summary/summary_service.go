// Package summary produces whole-lecture summaries by map-reduce over the chunk set.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/index"
	"github.com/ternarybob/lectern/internal/services/workers"
)

// Options tunes summarization
type Options struct {
	ContextBudget int // characters of source text per generation call
	Branching     int // maximum partial summaries combined per reduce call
	Workers       int
	Temperature   float32
	Timeout       time.Duration
}

// Service is the summary reducer
type Service struct {
	lectures  interfaces.LectureStorage
	index     *index.Index
	generator interfaces.Generator
	options   Options
	logger    arbor.ILogger
}

// NewService creates the summary service
func NewService(
	lectures interfaces.LectureStorage,
	index *index.Index,
	generator interfaces.Generator,
	options Options,
	logger arbor.ILogger,
) *Service {
	if options.ContextBudget <= 0 {
		options.ContextBudget = 12000
	}
	if options.Branching < 2 {
		options.Branching = 4
	}
	if options.Workers <= 0 {
		options.Workers = 2
	}
	return &Service{
		lectures:  lectures,
		index:     index,
		generator: generator,
		options:   options,
		logger:    logger,
	}
}

// piece is one unit of text going into a generation call
type piece struct {
	text  string
	start float64
	end   float64
}

// Summarize returns a summary of the whole lecture.
// Any failed generation step aborts the call.
func (s *Service) Summarize(ctx context.Context, lectureID string) (string, error) {
	lecture, err := s.lectures.GetLecture(ctx, lectureID)
	if err != nil {
		return "", err
	}
	if err := lecture.RequireReady(); err != nil {
		return "", err
	}

	chunks, err := s.index.Chunks(ctx, lectureID)
	if err != nil {
		return "", err
	}

	pieces := make([]piece, 0, len(chunks))
	for _, c := range chunks {
		if text := strings.TrimSpace(c.Text); text != "" {
			pieces = append(pieces, piece{text: text, start: c.Start, end: c.End})
		}
	}
	if len(pieces) == 0 {
		return "", fmt.Errorf("%w: lecture %s has no transcript text", models.ErrEmptyInput, lectureID)
	}

	if s.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	start := time.Now()

	// map
	batches := s.group(pieces, 0)
	summaries, err := s.generateAll(ctx, batches, mapSystemPrompt, mapPrompt)
	if err != nil {
		return "", err
	}
	mapCalls := len(batches)

	// reduce until one summary remains
	rounds := 0
	reduceCalls := 0
	for len(summaries) > 1 {
		groups := s.group(summaries, s.options.Branching)

		var toReduce [][]piece
		for _, g := range groups {
			if len(g) > 1 {
				toReduce = append(toReduce, g)
			}
		}
		reduced, err := s.generateAll(ctx, toReduce, reduceSystemPrompt, reducePrompt)
		if err != nil {
			return "", err
		}

		next := make([]piece, 0, len(groups))
		r := 0
		for _, g := range groups {
			if len(g) == 1 {
				next = append(next, g[0])
				continue
			}
			next = append(next, reduced[r])
			r++
		}
		summaries = next
		rounds++
		reduceCalls += len(toReduce)
	}

	s.logger.Info().
		Str("lecture_id", lectureID).
		Int("chunks", len(chunks)).
		Int("map_calls", mapCalls).
		Int("reduce_calls", reduceCalls).
		Int("reduce_rounds", rounds).
		Dur("elapsed", time.Since(start)).
		Msg("Lecture summarized")

	return summaries[0].text, nil
}

// group packs contiguous pieces while their combined text fits the context
// budget. A group always takes at least one piece, and at least two when two
// remain and limit is set, so every reduce round shrinks the list.
// limit caps the group size; zero means no cap.
func (s *Service) group(pieces []piece, limit int) [][]piece {
	var groups [][]piece
	var current []piece
	size := 0

	for _, p := range pieces {
		n := utf8.RuneCountInString(p.text)
		full := len(current) > 0 && size+n > s.options.ContextBudget
		if limit > 0 && len(current) == 1 {
			full = false
		}
		if limit > 0 && len(current) >= limit {
			full = true
		}
		if full {
			groups = append(groups, current)
			current = nil
			size = 0
		}
		current = append(current, p)
		size += n
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

type promptFunc func(group []piece) string

// generateAll runs one generation per group on the worker pool and returns
// the results in group order
func (s *Service) generateAll(ctx context.Context, groups [][]piece, system string, prompt promptFunc) ([]piece, error) {
	results := make([]piece, len(groups))
	if len(groups) == 0 {
		return results, nil
	}

	pool := workers.NewPool(ctx, s.options.Workers, s.logger)
	pool.Start()

	for i, g := range groups {
		err := pool.Submit(func(ctx context.Context) error {
			text, err := s.generator.Generate(ctx, prompt(g), interfaces.GenerateOptions{
				System:      system,
				Temperature: s.options.Temperature,
			})
			if err != nil {
				return models.CapabilityError(ctx, "summarize", err)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return fmt.Errorf("summarize: %w: empty response", models.ErrCapabilityUnavailable)
			}
			results[i] = piece{text: text, start: g[0].start, end: g[len(g)-1].end}
			return nil
		})
		if err != nil {
			break
		}
	}

	if err := pool.Wait(); err != nil {
		return nil, models.CapabilityError(ctx, "summarize", err)
	}
	return results, nil
}

func mapPrompt(group []piece) string {
	var b strings.Builder
	span := models.Span{Start: group[0].start, End: group[len(group)-1].end}
	fmt.Fprintf(&b, "Transcript %s:\n\n", span.Label())
	for i, p := range group {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(p.text)
	}
	return b.String()
}

func reducePrompt(group []piece) string {
	var b strings.Builder
	b.WriteString("Partial summaries in lecture order:\n")
	for i, p := range group {
		span := models.Span{Start: p.start, End: p.end}
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, span.Label(), p.text)
	}
	return b.String()
}
