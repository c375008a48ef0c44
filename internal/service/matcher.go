package service

import (
	"sort"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
)

// CodeMatcher maps OCR'd product codes onto catalogue codes, tolerating a
// few misread characters.
type CodeMatcher struct {
	maxDistance int
}

// NewCodeMatcher returns a matcher accepting up to maxDistance edits.
func NewCodeMatcher(maxDistance int) CodeMatcher {
	if maxDistance < 0 {
		maxDistance = 0
	}
	return CodeMatcher{maxDistance: maxDistance}
}

// Match returns the id of the catalogue code closest to code. Separators and
// case are ignored, so "3433/3132" matches "3433-3132" exactly. Ties go to
// the lexicographically smallest catalogue code.
func (m CodeMatcher) Match(code string, catalogue map[string]uint) (uint, bool) {
	want := normalizeCode(code)
	if want == "" || len(catalogue) == 0 {
		return 0, false
	}

	keys := make([]string, 0, len(catalogue))
	for k := range catalogue {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestDist := "", m.maxDistance+1
	for _, k := range keys {
		d := levenshtein.Distance(want, normalizeCode(k))
		if d < bestDist {
			best, bestDist = k, d
		}
		if d == 0 {
			break
		}
	}
	if best == "" {
		return 0, false
	}
	return catalogue[best], true
}

func normalizeCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
