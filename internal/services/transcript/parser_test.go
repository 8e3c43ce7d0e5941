package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lectern/internal/models"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{".yml", FormatYAML, false},
		{"srt", FormatSRT, false},
		{"webvtt", FormatVTT, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	f, err := FormatFromFilename("week1/lecture.vtt")
	require.NoError(t, err)
	assert.Equal(t, FormatVTT, f)
}

func TestParseJSON(t *testing.T) {
	want := models.Transcript{
		{Text: "Today we cover loops.", Start: 0, End: 4.5},
		{Text: "A for loop repeats.", Start: 4.5, End: 9},
	}

	t.Run("array", func(t *testing.T) {
		got, err := Parse([]byte(`[
			{"text": "Today we cover loops.", "start": 0, "end": 4.5},
			{"text": "A for loop repeats.", "start": 4.5, "end": 9}
		]`), FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("envelope", func(t *testing.T) {
		got, err := Parse([]byte(`{"utterances": [
			{"text": "Today we cover loops.", "start": 0, "end": 4.5},
			{"text": "A for loop repeats.", "start": 4.5, "end": 9}
		]}`), FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("empty", func(t *testing.T) {
		got, err := Parse([]byte("  "), FormatJSON)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Parse([]byte(`[{"text": "x", "start": `), FormatJSON)
		assert.Error(t, err)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := Parse([]byte(`[{"text": "x", "start": 5, "end": 2}]`), FormatJSON)
		assert.Error(t, err)
	})
}

func TestParseYAML(t *testing.T) {
	want := models.Transcript{
		{Text: "Recursion calls itself.", Start: 10, End: 14},
		{Text: "Base cases stop it.", Start: 14, End: 18.25},
	}

	list := `
- text: Recursion calls itself.
  start: 10
  end: 14
- text: Base cases stop it.
  start: 14
  end: 18.25
`
	got, err := Parse([]byte(list), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wrapped := "utterances:\n" + indent(list)
	got, err = Parse([]byte(wrapped), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

func TestParseSRT(t *testing.T) {
	srt := `1
00:00:01,000 --> 00:00:04,250
Welcome to the course.

2
00:00:04,250 --> 00:00:09,000
Today we look at
<i>binary search</i>.

3
01:02:03,500 --> 01:02:05,000
Late cue.
`
	got, err := Parse([]byte(srt), FormatSRT)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, models.Utterance{Text: "Welcome to the course.", Start: 1, End: 4.25}, got[0])
	assert.Equal(t, "Today we look at binary search.", got[1].Text)
	assert.InDelta(t, 3723.5, got[2].Start, 1e-9)
	assert.InDelta(t, 3725.0, got[2].End, 1e-9)
}

func TestParseVTT(t *testing.T) {
	vtt := `WEBVTT - lecture 3

NOTE
This block is a comment
and spans lines.

intro
00:01.000 --> 00:03.500 align:start position:10%
<v Lecturer>Hash tables map keys.

00:03.500 --> 00:07.000
Collisions need handling.
`
	got, err := Parse([]byte(vtt), FormatVTT)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.Utterance{Text: "Hash tables map keys.", Start: 1, End: 3.5}, got[0])
	assert.Equal(t, models.Utterance{Text: "Collisions need handling.", Start: 3.5, End: 7}, got[1])
}

func TestParseCuesRejectsBackwardsStarts(t *testing.T) {
	srt := `1
00:00:10,000 --> 00:00:12,000
second

2
00:00:01,000 --> 00:00:02,000
first
`
	_, err := Parse([]byte(srt), FormatSRT)
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := map[string]float64{
		"00:00:01,000": 1,
		"00:01.500":    1.5,
		"1:00:00.000":  3600,
		"10:05,25":     605.25,
	}
	for in, want := range tests {
		got, err := parseTimestamp(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	_, err := parseTimestamp("abc")
	assert.Error(t, err)
}
