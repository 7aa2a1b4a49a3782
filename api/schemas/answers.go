// File: api/schemas/answers.go
package schemas

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
)

// Answer wraps a single decoded JSON value returned by the answer model.
// Depending on the question type it holds a string, a number, a list of
// strings, or a row -> column(s) object.
type Answer struct {
	value any
}

// NewAnswer wraps an already decoded value.
func NewAnswer(v any) Answer { return Answer{value: v} }

// Raw returns the decoded value.
func (a Answer) Raw() any { return a.value }

// IsNull reports whether the model answered with JSON null (or nothing).
func (a Answer) IsNull() bool { return a.value == nil }

// IsEmpty reports whether the answer carries no usable content.
func (a Answer) IsEmpty() bool {
	switch v := a.value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

// String renders the answer as text. Lists are joined with ", ".
func (a Answer) String() string {
	switch v := a.value.(type) {
	case nil:
		return ""
	case []any:
		return strings.Join(a.Strings(), ", ")
	case map[string]any:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return scalarString(v)
	}
}

// Strings returns the answer as a list of option texts. A scalar answer
// becomes a one-element list.
func (a Answer) Strings() []string {
	switch v := a.value.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(scalarString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		s := strings.TrimSpace(a.String())
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// Grid returns the answer as row -> selected columns. Non-object answers
// yield nil.
func (a Answer) Grid() map[string][]string {
	m, ok := a.value.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(m))
	for row, cell := range m {
		out[row] = NewAnswer(cell).Strings()
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (a Answer) MarshalJSON() ([]byte, error) { return json.Marshal(a.value) }

// UnmarshalJSON implements json.Unmarshaler.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	a.value = v
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// AnswerMap maps question identifiers to generated answers for one attempt.
type AnswerMap map[string]Answer

// Keys returns the identifiers in sorted order.
func (m AnswerMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
