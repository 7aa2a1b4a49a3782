// File: api/schemas/schemas_test.go
package schemas_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// TestStructJSONTags pins the field names of the structures the answer model
// and the quota store see.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "QuestionDescriptor",
			structRef: schemas.QuestionDescriptor{},
			expectedTags: map[string]string{
				"Question":        "question",
				"Type":            "type",
				"Options":         "options,omitempty",
				"Identifier":      "identifier",
				"Required":        "required",
				"NeedsGridScript": "-",
				"Ordinal":         "-",
				"Locator":         "-",
				"Occurrence":      "-",
			},
		},
		{
			name:      "UsageRecord",
			structRef: schemas.UsageRecord{},
			expectedTags: map[string]string{
				"Timestamp":  "timestamp",
				"CallerKey":  "caller_key",
				"FormURL":    "form_url",
				"Requested":  "requested",
				"Successful": "successful",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tc.structRef)
			require.Equal(t, len(tc.expectedTags), typ.NumField(), "new fields need a pinned tag")
			for i := 0; i < typ.NumField(); i++ {
				field := typ.Field(i)
				want, ok := tc.expectedTags[field.Name]
				require.True(t, ok, "unexpected field %s", field.Name)
				assert.Equal(t, want, field.Tag.Get("json"), "field %s", field.Name)
			}
		})
	}
}

func TestOptions_WireShapes(t *testing.T) {
	tests := []struct {
		name string
		opts schemas.Options
		wire string
	}{
		{"choice list", schemas.Options{Values: []string{"Yes", "No"}}, `["Yes","No"]`},
		{"empty list", schemas.Options{}, `[]`},
		{"labelled scale", schemas.Options{Values: []string{"1", "2"}, Labels: &schemas.ScaleLabels{Start: "Poor", End: "Great"}},
			`{"values":["1","2"],"labels":{"start":"Poor","end":"Great"}}`},
		{"grid", schemas.Options{Rows: []string{"Food"}, Columns: []string{"Bad", "Good"}}, `{"rows":["Food"],"columns":["Bad","Good"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.opts)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wire, string(b))

			var back schemas.Options
			require.NoError(t, json.Unmarshal([]byte(tt.wire), &back))
			assert.Equal(t, tt.opts.Labels, back.Labels)
			assert.ElementsMatch(t, tt.opts.Rows, back.Rows)
		})
	}

	var bad schemas.Options
	assert.ErrorContains(t, json.Unmarshal([]byte(`"text"`), &bad), "unexpected JSON token")
}

func TestQuestionDescriptor_Accessors(t *testing.T) {
	q := schemas.QuestionDescriptor{Identifier: "Age (2)", Locator: "Age", Occurrence: 2}
	key, n := q.LocatorKey()
	assert.Equal(t, "Age", key)
	assert.Equal(t, 2, n)

	key, n = schemas.QuestionDescriptor{Identifier: "Email"}.LocatorKey()
	assert.Equal(t, "Email", key)
	assert.Equal(t, 1, n)

	assert.Nil(t, q.Values())
	assert.True(t, q.ScaleLabels().IsZero())
	assert.True(t, q.Options.IsEmpty())
	assert.False(t, schemas.QuestionUnknown.Known())
	assert.True(t, schemas.QuestionCheckboxGrid.IsGrid())
}

func TestAnswer(t *testing.T) {
	var answers schemas.AnswerMap
	require.NoError(t, json.Unmarshal([]byte(`{
		"Name": "Ada",
		"Rating": 4,
		"Toppings": ["Cheese", " ", "Olives"],
		"Quality": {"Food": "Good", "Service": ["Poor", "Good"]},
		"Skipped": null,
		"Blank": "  "
	}`), &answers))

	assert.Equal(t, []string{"Blank", "Name", "Quality", "Rating", "Skipped", "Toppings"}, answers.Keys())
	assert.Equal(t, "Ada", answers["Name"].String())
	assert.Equal(t, "4", answers["Rating"].String())
	assert.Equal(t, []string{"Cheese", "Olives"}, answers["Toppings"].Strings())
	assert.Equal(t, "Cheese, Olives", answers["Toppings"].String())
	assert.Equal(t, map[string][]string{"Food": {"Good"}, "Service": {"Poor", "Good"}}, answers["Quality"].Grid())
	assert.Nil(t, answers["Name"].Grid())
	assert.True(t, answers["Skipped"].IsNull())
	assert.True(t, answers["Blank"].IsEmpty())
	assert.False(t, answers["Rating"].IsEmpty())
	assert.Nil(t, answers["Blank"].Strings())
}

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		err  error
		want schemas.Outcome
	}{
		{nil, schemas.OutcomeAssumed},
		{fmt.Errorf("wait: %w", context.Canceled), schemas.OutcomeCancelled},
		{context.DeadlineExceeded, schemas.OutcomeError},
		{fmt.Errorf("%w: after 20s", schemas.ErrNavigationTimeout), schemas.OutcomeNavigationTimeout},
		{schemas.ErrExtractionEmpty, schemas.OutcomeExtractionEmpty},
		{fmt.Errorf("%w: 503", schemas.ErrGeneration), schemas.OutcomeGenerationFailed},
		{schemas.ErrSubmitNotFound, schemas.OutcomeSubmitNotFound},
		{schemas.ErrSubmitRejected, schemas.OutcomeRejected},
		{schemas.ErrSessionClosed, schemas.OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, schemas.OutcomeFor(tt.err), "%v", tt.err)
	}
	assert.True(t, schemas.OutcomeAssumed.Success())
	assert.False(t, schemas.OutcomeRejected.Success())
}

func TestSubmissionResult_Count(t *testing.T) {
	res := schemas.SubmissionResult{Questions: []schemas.QuestionReport{
		{Status: schemas.QuestionFilled}, {Status: schemas.QuestionSkipped}, {Status: schemas.QuestionFilled},
	}}
	assert.Equal(t, 2, res.Count(schemas.QuestionFilled))
	assert.Equal(t, 0, res.Count(schemas.QuestionFailed))
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "css:form", schemas.ByCSS("form").String())
	assert.Equal(t, "xpath://div", schemas.ByXPath("//div").String())
}
