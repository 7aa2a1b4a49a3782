// File: internal/formparse/snapshot_test.go
package formparse

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(b)
}

func TestParseSnapshot_AllTypes(t *testing.T) {
	snap, err := ParseSnapshot(loadFixture(t, "all_types.html"))
	require.NoError(t, err)

	want := []schemas.QuestionDescriptor{
		{Question: "What is your name?", Type: schemas.QuestionText, Identifier: "What is your name?", Required: true},
		{Question: "Email address", Type: schemas.QuestionText, Identifier: "Email address for follow-up"},
		{Question: "Tell us more", Type: schemas.QuestionText, Identifier: "Tell us more"},
		{Question: "Date of visit", Type: schemas.QuestionDate, Identifier: "Date of visit"},
		{Question: "Arrival time", Type: schemas.QuestionTime, Identifier: "Arrival time"},
		{Question: "Upload a receipt", Type: schemas.QuestionFileUpload, Identifier: "Upload a receipt"},
		{
			Question: "Rate each area", Type: schemas.QuestionGrid, Identifier: "Rate each area", Required: true,
			Options: &schemas.Options{Rows: []string{"Food", "Service"}, Columns: []string{"Poor", "Good"}},
		},
		{
			Question: "Which days suit you", Type: schemas.QuestionCheckboxGrid, Identifier: "Which days suit you",
			Options: &schemas.Options{Rows: []string{"Saturday", "Sunday"}, Columns: []string{"Morning", "Evening"}},
		},
		{
			Question: "How satisfied are you?", Type: schemas.QuestionLinearScale, Identifier: "How satisfied are you?",
			Options: &schemas.Options{
				Values: []string{"1", "2", "3", "4", "5"},
				Labels: &schemas.ScaleLabels{Start: "Not at all", End: "Extremely"},
			},
		},
		{
			Question: "How did you hear about us?", Type: schemas.QuestionMultipleChoice, Identifier: "How did you hear about us?", Required: true,
			Options: &schemas.Options{Values: []string{"Friend", "Online advert", "Other"}},
		},
		{
			Question: "Which products do you use?", Type: schemas.QuestionCheckbox, Identifier: "Which products do you use?",
			Options: &schemas.Options{Values: []string{"Coffee", "Tea", "Juice"}},
		},
		{
			Question: "Preferred store", Type: schemas.QuestionDropdown, Identifier: "Preferred store",
			Options: &schemas.Options{Values: []string{"Downtown", "Airport"}},
		},
	}

	opts := cmpopts.IgnoreFields(schemas.QuestionDescriptor{}, "Ordinal")
	if diff := cmp.Diff(want, snap.Questions, opts); diff != "" {
		t.Errorf("ParseSnapshot() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Section divider"}, snap.Unclassified)
	assert.Equal(t, listItemXPath, snap.ContainerXPath)
	assert.Equal(t, 11, snap.Questions[11].Ordinal)
}

func TestParseSnapshot_Deterministic(t *testing.T) {
	markup := loadFixture(t, "all_types.html")
	first, err := ParseSnapshot(markup)
	require.NoError(t, err)
	second, err := ParseSnapshot(markup)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestParseSnapshot_DataParamsFallback(t *testing.T) {
	markup := `<html><body>
<div jscontroller="x" data-params="%.@.[1]"><div role="heading">Favourite colour</div><textarea></textarea></div>
<div jscontroller="y" data-params="%.@.[2]"><div role="heading">No widget here</div></div>
</body></html>`
	snap, err := ParseSnapshot(markup)
	require.NoError(t, err)
	require.Len(t, snap.Questions, 1)
	assert.Equal(t, dataParamsXPath, snap.ContainerXPath)
	assert.Equal(t, schemas.QuestionText, snap.Questions[0].Type)
	assert.Equal(t, `(//div[@jscontroller][@data-params])[1]`, snap.ContainerFor(snap.Questions[0]))
	assert.Equal(t, []string{"No widget here"}, snap.Unclassified)
}

func TestParseSnapshot_EdgeCases(t *testing.T) {
	t.Run("missing heading", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><input type="text"></div>`)
		require.NoError(t, err)
		require.Len(t, snap.Questions, 1)
		assert.Equal(t, unknownQuestion, snap.Questions[0].Identifier)
	})

	t.Run("scale without labels or data values counts radios", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><div role="heading">Stars</div>
<div role="radiogroup"><div aria-label="rating"><div role="radio"></div><div role="radio"></div><div role="radio"></div></div></div></div>`)
		require.NoError(t, err)
		require.Len(t, snap.Questions, 1)
		q := snap.Questions[0]
		assert.Equal(t, schemas.QuestionLinearScale, q.Type)
		assert.Equal(t, []string{"1", "2", "3"}, q.Values())
		assert.True(t, q.ScaleLabels().IsZero())
		assert.Nil(t, q.Options.Labels)
	})

	t.Run("only one endpoint label", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><div role="heading">Effort</div>
<div role="radiogroup"><label><span>1</span></label><label><span>2</span></label><div jsname="jq1lEb">A lot</div></div></div>`)
		require.NoError(t, err)
		q := snap.Questions[0]
		assert.Equal(t, schemas.ScaleLabels{End: "A lot"}, q.ScaleLabels())
	})

	t.Run("multiple choice falls back to radio labels", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><div role="heading">Pick</div>
<div role="radiogroup"><div role="radio" aria-label="Red"></div><div role="radio" data-value="Blue"></div></div></div>`)
		require.NoError(t, err)
		q := snap.Questions[0]
		assert.Equal(t, schemas.QuestionMultipleChoice, q.Type)
		assert.Equal(t, []string{"Red", "Blue"}, q.Values())
	})

	t.Run("other option input stays a choice question", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><div role="heading">Pet</div>
<div role="radiogroup"><label><span>Cat</span></label>
<div role="radio" data-value="__other_option__"><span>Other:</span><input type="text" aria-label="Other"></div></div></div>
<div role="listitem"><div role="heading">Tools</div>
<div role="group"><div role="checkbox" data-answer-value="Hammer"></div><div role="checkbox" data-value="__other_option__"></div>
<input type="text" aria-label="Other response"></div></div>`)
		require.NoError(t, err)
		require.Len(t, snap.Questions, 2)
		assert.Equal(t, schemas.QuestionMultipleChoice, snap.Questions[0].Type)
		assert.Equal(t, schemas.QuestionCheckbox, snap.Questions[1].Type)
	})

	t.Run("grid without captions needs the live script", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><div role="heading">Matrix</div><div role="grid"><div role="radio"></div></div></div>`)
		require.NoError(t, err)
		q := snap.Questions[0]
		assert.Equal(t, schemas.QuestionGrid, q.Type)
		assert.True(t, q.NeedsGridScript)
	})

	t.Run("group without checkboxes is not a checkbox question", func(t *testing.T) {
		snap, err := ParseSnapshot(`<div role="listitem"><div role="heading">Odd</div><div role="group"><span>x</span></div></div>`)
		require.NoError(t, err)
		assert.Empty(t, snap.Questions)
		assert.Equal(t, []string{"Odd"}, snap.Unclassified)
	})

	t.Run("empty document", func(t *testing.T) {
		snap, err := ParseSnapshot("")
		require.NoError(t, err)
		assert.Empty(t, snap.Questions)
	})
}
