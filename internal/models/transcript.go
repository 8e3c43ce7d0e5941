package models

import (
	"fmt"
	"math"
)

// Utterance is one time-coded line of a transcript
type Utterance struct {
	Text  string  `json:"text" yaml:"text" validate:"-"`
	Start float64 `json:"start" yaml:"start" validate:"gte=0"`
	End   float64 `json:"end" yaml:"end" validate:"gtefield=Start"`
}

// Transcript is the ordered utterance sequence produced by speech-to-text
type Transcript []Utterance

// Validate checks that every utterance has a sane range and that starts never go backwards
func (t Transcript) Validate() error {
	prevStart := 0.0
	for i, u := range t {
		if math.IsNaN(u.Start) || math.IsNaN(u.End) || u.Start < 0 {
			return fmt.Errorf("utterance %d: invalid start time %v", i, u.Start)
		}
		if u.End < u.Start {
			return fmt.Errorf("utterance %d: end %v before start %v", i, u.End, u.Start)
		}
		if u.Start < prevStart {
			return fmt.Errorf("utterance %d: start %v before previous start %v", i, u.Start, prevStart)
		}
		prevStart = u.Start
	}
	return nil
}

// Range returns the time range covered by the transcript
func (t Transcript) Range() (start, end float64) {
	if len(t) == 0 {
		return 0, 0
	}
	start = t[0].Start
	for _, u := range t {
		if u.End > end {
			end = u.End
		}
	}
	return start, end
}

// FormatTimestamp renders seconds as mm:ss, or h:mm:ss past the hour
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
