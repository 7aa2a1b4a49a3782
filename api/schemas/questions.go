// File: api/schemas/questions.go
package schemas

import (
	"bytes"
	"fmt"

	json "github.com/json-iterator/go"
)

// QuestionType is the closed set of widget kinds the extractor can emit.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionDate           QuestionType = "date"
	QuestionTime           QuestionType = "time"
	QuestionFileUpload     QuestionType = "file_upload"
	QuestionGrid           QuestionType = "grid"
	QuestionCheckboxGrid   QuestionType = "checkbox_grid"
	QuestionLinearScale    QuestionType = "linear_scale"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionDropdown       QuestionType = "dropdown"
	// QuestionUnknown is used internally for containers no probe recognises.
	// It is never part of an extraction result.
	QuestionUnknown QuestionType = "unknown"
)

// Known reports whether t is one of the emittable question types.
func (t QuestionType) Known() bool {
	switch t {
	case QuestionText, QuestionDate, QuestionTime, QuestionFileUpload,
		QuestionGrid, QuestionCheckboxGrid, QuestionLinearScale,
		QuestionMultipleChoice, QuestionCheckbox, QuestionDropdown:
		return true
	}
	return false
}

// IsGrid reports whether t is a row/column matrix type.
func (t QuestionType) IsGrid() bool {
	return t == QuestionGrid || t == QuestionCheckboxGrid
}

// ScaleLabels are the captions attached to the low and high ends of a linear scale.
type ScaleLabels struct {
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
}

// IsZero reports whether neither endpoint label was found.
func (l ScaleLabels) IsZero() bool { return l.Start == "" && l.End == "" }

// Options is the type-dependent payload of a question.
//
// On the wire it takes one of three shapes, matching what the answer model is
// prompted with: a bare array of values for choice lists and plain scales,
// {"values": [...], "labels": {...}} for a scale with endpoint captions, and
// {"rows": [...], "columns": [...]} for grids. Input-only types carry no options.
type Options struct {
	Values  []string     `yaml:"values,omitempty"`
	Labels  *ScaleLabels `yaml:"labels,omitempty"`
	Rows    []string     `yaml:"rows,omitempty"`
	Columns []string     `yaml:"columns,omitempty"`
}

// IsEmpty reports whether the payload carries nothing.
func (o *Options) IsEmpty() bool {
	return o == nil || (len(o.Values) == 0 && o.Labels == nil && len(o.Rows) == 0 && len(o.Columns) == 0)
}

type structuredOptions struct {
	Values  []string     `json:"values,omitempty"`
	Labels  *ScaleLabels `json:"labels,omitempty"`
	Rows    []string     `json:"rows,omitempty"`
	Columns []string     `json:"columns,omitempty"`
}

// MarshalJSON emits the list form when only values are present.
func (o Options) MarshalJSON() ([]byte, error) {
	if o.Labels == nil && len(o.Rows) == 0 && len(o.Columns) == 0 {
		values := o.Values
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	return json.Marshal(structuredOptions(o))
}

// UnmarshalJSON accepts either the list form or the object form.
func (o *Options) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = Options{}
		return nil
	}
	switch trimmed[0] {
	case '[':
		var values []string
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return fmt.Errorf("options list: %w", err)
		}
		*o = Options{Values: values}
		return nil
	case '{':
		var s structuredOptions
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("options object: %w", err)
		}
		*o = Options(s)
		return nil
	}
	return fmt.Errorf("options: unexpected JSON token %q", trimmed[0])
}

// QuestionDescriptor is one extracted question: what to ask the model and how
// to find the control again when filling.
type QuestionDescriptor struct {
	Question   string       `json:"question" yaml:"question"`
	Type       QuestionType `json:"type" yaml:"type"`
	Options    *Options     `json:"options,omitempty" yaml:"options,omitempty"`
	Identifier string       `json:"identifier" yaml:"identifier"`
	Required   bool         `json:"required" yaml:"required"`

	// NeedsGridScript marks a grid whose rows or columns could not be read
	// from the static snapshot and must be resolved against the live page.
	NeedsGridScript bool `json:"-" yaml:"-"`
	// Ordinal is the document position of the container the question came from.
	Ordinal int `json:"-" yaml:"-"`
	// Locator is the text the container is found by on the live page. It
	// differs from Identifier only when de-duplication renamed the question.
	Locator string `json:"-" yaml:"-"`
	// Occurrence is the 1-based position among questions sharing Locator.
	Occurrence int `json:"-" yaml:"-"`
}

// LocatorKey returns the on-page text and occurrence used to find the
// question container.
func (q QuestionDescriptor) LocatorKey() (string, int) {
	key, n := q.Locator, q.Occurrence
	if key == "" {
		key = q.Identifier
	}
	if n < 1 {
		n = 1
	}
	return key, n
}

// Values is a nil-safe accessor for the flat option list.
func (q QuestionDescriptor) Values() []string {
	if q.Options == nil {
		return nil
	}
	return q.Options.Values
}

// ScaleLabels is a nil-safe accessor for the endpoint captions.
func (q QuestionDescriptor) ScaleLabels() ScaleLabels {
	if q.Options == nil || q.Options.Labels == nil {
		return ScaleLabels{}
	}
	return *q.Options.Labels
}
