package chat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/lectern/internal/models"
)

// citationPattern matches [S1] as well as grouped markers like [S1, S3]
var citationPattern = regexp.MustCompile(`\[\s*(S\d+(?:\s*[,;]\s*S\d+)*)\s*\]`)

// parseCitations returns the 1-based source numbers cited in text, in order
// of first appearance and without duplicates
func parseCitations(text string) []int {
	var cited []int
	seen := make(map[int]bool)

	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, marker := range strings.FieldsFunc(match[1], func(r rune) bool {
			return r == ',' || r == ';' || r == ' '
		}) {
			n, err := strconv.Atoi(strings.TrimPrefix(marker, "S"))
			if err != nil || seen[n] {
				continue
			}
			seen[n] = true
			cited = append(cited, n)
		}
	}
	return cited
}

// resolveCitations maps markers in the response to retrieved spans.
// Markers that do not refer to a real span are ignored. When none remain,
// every retrieved span is returned and degraded is true.
func resolveCitations(response string, spans []models.RetrievedSpan) (cited []models.RetrievedSpan, degraded bool) {
	if len(spans) == 0 {
		return []models.RetrievedSpan{}, false
	}

	for _, n := range parseCitations(response) {
		if n >= 1 && n <= len(spans) {
			cited = append(cited, spans[n-1])
		}
	}

	if len(cited) == 0 {
		all := make([]models.RetrievedSpan, len(spans))
		copy(all, spans)
		return all, true
	}
	return cited, false
}
