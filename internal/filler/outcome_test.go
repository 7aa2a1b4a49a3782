// File: internal/filler/outcome_test.go
package filler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var defaultPhrases = []string{"Your response has been recorded", "Submission successful"}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name    string
		markup  string
		want    schemas.Outcome
		alerts  []string
		phrases []string
	}{
		{
			name:   "confirmation page",
			markup: `<html><body><div class="vHW8K">Your response has been   recorded.</div><a href="/viewform">Submit another response</a></body></html>`,
			want:   schemas.OutcomeConfirmed,
		},
		{
			name:   "phrase wins over stale alert",
			markup: `<html><body><p>Submission successful</p><div role="alert">Old warning</div></body></html>`,
			want:   schemas.OutcomeConfirmed,
		},
		{
			name: "validation alerts",
			markup: `<html><body><form>
				<div role="alert"><span>This is a required question</span></div>
				<div id="i5-error">Must be a valid email</div>
				<div class="freebirdFormviewerViewItemsItemErrorMessage">  </div>
			</form></body></html>`,
			want:   schemas.OutcomeRejected,
			alerts: []string{"This is a required question", "Must be a valid email"},
		},
		{
			name:   "duplicate alert text is reported once",
			markup: `<html><body><div class="error"><span role="alert">Required</span></div></body></html>`,
			want:   schemas.OutcomeRejected,
			alerts: []string{"Required"},
		},
		{
			name:   "empty alerts are ignored",
			markup: `<html><body><div role="alert"></div><p>Thanks!</p></body></html>`,
			want:   schemas.OutcomeAssumed,
		},
		{
			name:    "custom phrase",
			markup:  `<html><body><h1>Merci, c'est noté</h1></body></html>`,
			phrases: []string{"merci"},
			want:    schemas.OutcomeConfirmed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phrases := tt.phrases
			if phrases == nil {
				phrases = defaultPhrases
			}
			got, alerts := ClassifyOutcome(tt.markup, phrases)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.alerts, alerts)
		})
	}
}
