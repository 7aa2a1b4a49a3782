// File: internal/filler/match.go
package filler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// BestFuzzyMatch picks the option closest to answer. Only options that contain
// the answer, or are contained by it, case-insensitively, are candidates; they
// are scored by the number of distinct characters they share with it. Ties go
// to the earlier option.
func BestFuzzyMatch(answer string, options []string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	best, bestScore := "", 0
	for _, opt := range options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if !strings.Contains(a, o) && !strings.Contains(o, a) {
			continue
		}
		if score := sharedChars(a, o); score > bestScore {
			best, bestScore = opt, score
		}
	}
	return best, bestScore > 0
}

func sharedChars(a, b string) int {
	seen := make(map[rune]bool)
	for _, r := range a {
		seen[r] = true
	}
	n := 0
	for _, r := range b {
		if seen[r] {
			n++
			delete(seen, r)
		}
	}
	return n
}

// scaleKeywords map free-text answers onto a five point scale. Longer
// keywords take precedence so "below average" beats "average".
var scaleKeywords = func() []scaleKeyword {
	table := map[int][]string{
		1: {"very low", "low", "never", "less", "least", "poor"},
		2: {"below average", "rarely", "seldom", "fair"},
		3: {"average", "moderate", "sometimes", "occasionally", "neutral"},
		4: {"above average", "often", "good", "frequently"},
		5: {"very high", "high", "always", "most", "more", "excellent"},
	}
	var out []scaleKeyword
	for value, words := range table {
		for _, w := range words {
			out = append(out, scaleKeyword{word: w, value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].word) != len(out[j].word) {
			return len(out[i].word) > len(out[j].word)
		}
		return out[i].word < out[j].word
	})
	return out
}()

type scaleKeyword struct {
	word  string
	value int
}

// defaultScaleMax is assumed for the upper endpoint when a scale exposes no
// numeric values.
const defaultScaleMax = 5

// ResolveScaleIndex maps an answer onto a 1-based scale position. Integers are
// taken as is; otherwise an endpoint caption contained in the answer selects
// that end, then the keyword table is consulted. Zero means unresolved.
func ResolveScaleIndex(answer string, labels schemas.ScaleLabels, values []string) int {
	trimmed := strings.TrimSpace(answer)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n
	}
	lower := strings.ToLower(trimmed)
	if labels.Start != "" && strings.Contains(lower, strings.ToLower(labels.Start)) {
		return 1
	}
	if labels.End != "" && strings.Contains(lower, strings.ToLower(labels.End)) {
		return scaleMax(values)
	}
	for _, kw := range scaleKeywords {
		if strings.Contains(lower, kw.word) {
			return kw.value
		}
	}
	return 0
}

func scaleMax(values []string) int {
	max := 0
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return defaultScaleMax
		}
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return defaultScaleMax
	}
	return max
}

// ChooseScaleControl returns the 0-based control to click for a 1-based
// target among n controls, or the middle control when target is out of range.
func ChooseScaleControl(target, n int) int {
	if target >= 1 && target <= n {
		return target - 1
	}
	return n / 2
}

// controlLabel is the text a choice control answers to.
func controlLabel(attrs map[string]string, text string) string {
	for _, k := range []string{"data-value", "aria-label", "data-answer-value"} {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return strings.TrimSpace(text)
}

// exactIndex returns the first label equal to answer after trimming.
func exactIndex(answer string, labels []string) int {
	want := strings.TrimSpace(answer)
	for i, l := range labels {
		if l == want {
			return i
		}
	}
	return -1
}

// fuzzyIndex returns the position of the best fuzzy match.
func fuzzyIndex(answer string, labels []string) int {
	best, ok := BestFuzzyMatch(answer, labels)
	if !ok {
		return -1
	}
	for i, l := range labels {
		if l == best {
			return i
		}
	}
	return -1
}

func allNumeric(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return false
		}
	}
	return true
}
