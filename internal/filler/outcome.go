// File: internal/filler/outcome.go
package filler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// alertSelector matches the validation banners Google Forms renders when a
// submission is refused.
const alertSelector = `[role="alert"], [id*="error"], [class*="error"]`

// ClassifyOutcome inspects the page left behind by a submit click. A
// confirmation phrase in the visible text wins; otherwise any non-empty alert
// marks the submission as rejected and its texts are returned. A page with
// neither is assumed to have been accepted.
func ClassifyOutcome(markup string, phrases []string) (schemas.Outcome, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return schemas.OutcomeAssumed, nil
	}

	body, err := html2text.FromString(markup, html2text.Options{OmitLinks: true})
	if err != nil {
		body = doc.Text()
	}
	body = strings.ToLower(strings.Join(strings.Fields(body), " "))
	for _, p := range phrases {
		p = strings.ToLower(strings.Join(strings.Fields(p), " "))
		if p != "" && strings.Contains(body, p) {
			return schemas.OutcomeConfirmed, nil
		}
	}

	var alerts []string
	seen := make(map[string]bool)
	doc.Find(alertSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		alerts = append(alerts, text)
	})
	if len(alerts) > 0 {
		return schemas.OutcomeRejected, alerts
	}
	return schemas.OutcomeAssumed, nil
}
