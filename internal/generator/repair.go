// File: internal/generator/repair.go
package generator

import (
	"sort"
	"strconv"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// defaultScaleAnswer is the midpoint of the 1-5 scale assumed when a
// question exposes no numeric options.
const defaultScaleAnswer = "3"

// DiffKeys compares the answer keys with the extracted identifiers. Both
// results are sorted.
func DiffKeys(questions []schemas.QuestionDescriptor, answers schemas.AnswerMap) (missing, extra []string) {
	want := make(map[string]bool, len(questions))
	for _, q := range questions {
		want[q.Identifier] = true
		if _, ok := answers[q.Identifier]; !ok {
			missing = append(missing, q.Identifier)
		}
	}
	for _, k := range answers.Keys() {
		if !want[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	return missing, extra
}

// Repair records one rewritten scale answer.
type Repair struct {
	Identifier string
	From       string
	To         string
}

// RepairScaleAnswers rewrites every linear-scale answer that is not a plain
// digit string. The replacement is the middle numeric option, or
// defaultScaleAnswer when the scale has none. Numeric answers that arrived as
// JSON numbers are normalised to their string form without being reported.
func RepairScaleAnswers(questions []schemas.QuestionDescriptor, answers schemas.AnswerMap) []Repair {
	var repairs []Repair
	for _, q := range questions {
		if q.Type != schemas.QuestionLinearScale {
			continue
		}
		ans, ok := answers[q.Identifier]
		if !ok {
			continue
		}
		text := ans.String()
		if isDigits(text) {
			answers[q.Identifier] = schemas.NewAnswer(text)
			continue
		}
		to := middleNumericOption(q.Values())
		answers[q.Identifier] = schemas.NewAnswer(to)
		repairs = append(repairs, Repair{Identifier: q.Identifier, From: text, To: to})
	}
	return repairs
}

func middleNumericOption(values []string) string {
	var nums []int
	for _, v := range values {
		if !isDigits(v) {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return defaultScaleAnswer
	}
	sort.Ints(nums)
	return strconv.Itoa(nums[len(nums)/2])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
