// Package transcript reads speech-to-text output in SRT, WebVTT, JSON and YAML form.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/lectern/internal/models"
	"gopkg.in/yaml.v3"
)

// Format names a transcript encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
)

// ParseFormat normalises a user supplied format name
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	default:
		return "", fmt.Errorf("unsupported transcript format: %s", name)
	}
}

// FormatFromFilename guesses the format from a file extension
func FormatFromFilename(filename string) (Format, error) {
	return ParseFormat(filepath.Ext(filename))
}

// Parse decodes data and validates the resulting transcript
func Parse(data []byte, format Format) (models.Transcript, error) {
	var (
		transcript models.Transcript
		err        error
	)

	switch format {
	case FormatJSON:
		transcript, err = parseJSON(data)
	case FormatYAML:
		transcript, err = parseYAML(data)
	case FormatSRT, FormatVTT:
		transcript, err = parseCues(data)
	default:
		return nil, fmt.Errorf("unsupported transcript format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	if err := transcript.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s transcript: %w", format, err)
	}
	return transcript, nil
}

// envelope is the object form {"utterances": [...]}
type envelope struct {
	Utterances models.Transcript `json:"utterances" yaml:"utterances"`
}

func parseJSON(data []byte) (models.Transcript, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return models.Transcript{}, nil
	}

	if data[0] == '[' {
		var t models.Transcript
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse JSON transcript: %w", err)
		}
		return t, nil
	}

	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse JSON transcript: %w", err)
	}
	return e.Utterances, nil
}

func parseYAML(data []byte) (models.Transcript, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return models.Transcript{}, nil
	}

	var t models.Transcript
	if err := yaml.Unmarshal(data, &t); err == nil {
		return t, nil
	}

	var e envelope
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse YAML transcript: %w", err)
	}
	return e.Utterances, nil
}

// cueTiming matches "00:00:01,000 --> 00:00:04,000" (SRT) and
// "00:01.000 --> 00:04.000 align:start" (WebVTT)
var cueTiming = regexp.MustCompile(`^\s*((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})\s*-->\s*((?:\d+:)?\d{1,2}:\d{2}[.,]\d{1,3})`)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// parseCues reads SRT and WebVTT cue blocks. Cue numbers, the WEBVTT header,
// NOTE/STYLE/REGION blocks and inline markup are ignored.
func parseCues(data []byte) (models.Transcript, error) {
	transcript := models.Transcript{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		current *models.Utterance
		lines   []string
		skip    bool
	)

	flush := func() {
		if current != nil {
			current.Text = strings.Join(lines, " ")
			transcript = append(transcript, *current)
		}
		current = nil
		lines = nil
		skip = false
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		if line == "" {
			flush()
			continue
		}
		if skip {
			continue
		}
		if current == nil {
			if m := cueTiming.FindStringSubmatch(line); m != nil {
				start, err := parseTimestamp(m[1])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				end, err := parseTimestamp(m[2])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				current = &models.Utterance{Start: start, End: end}
				continue
			}
			if strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") ||
				strings.HasPrefix(line, "STYLE") || strings.HasPrefix(line, "REGION") {
				skip = true
			}
			// cue identifiers and sequence numbers
			continue
		}

		if text := strings.TrimSpace(markupTag.ReplaceAllString(line, "")); text != "" {
			lines = append(lines, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	flush()

	return transcript, nil
}

// parseTimestamp converts [hh:]mm:ss(.|,)fff to seconds
func parseTimestamp(value string) (float64, error) {
	value = strings.Replace(value, ",", ".", 1)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	minutes, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	hours := 0
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", value, err)
		}
	}

	return float64(hours*3600+minutes*60) + seconds, nil
}
