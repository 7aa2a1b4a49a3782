// File: internal/formparse/snapshot.go
package formparse

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

const (
	listItemXPath     = `//div[@role="listitem"]`
	dataParamsXPath   = `//div[@jscontroller][@data-params]`
	headingXPath      = `.//div[@role="heading"]`
	unknownQuestion   = "Unknown Question"
	genericInputLabel = "Your answer"
)

// Snapshot is the result of classifying one static copy of the form page.
type Snapshot struct {
	// Questions holds every recognised question in document order.
	Questions []schemas.QuestionDescriptor
	// Unclassified lists the headings of containers no probe recognised.
	Unclassified []string
	// ContainerXPath selects all candidate containers; the Nth question
	// container is (ContainerXPath)[Ordinal+1].
	ContainerXPath string
}

// ContainerFor returns an XPath selecting the container q came from.
func (s *Snapshot) ContainerFor(q schemas.QuestionDescriptor) string {
	return fmt.Sprintf("(%s)[%d]", s.ContainerXPath, q.Ordinal+1)
}

// ParseSnapshot classifies the question containers of a rendered form page.
// It performs no I/O and is deterministic for a given input.
func ParseSnapshot(markup string) (*Snapshot, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse form markup: %w", err)
	}
	return classifyDocument(doc), nil
}

func classifyDocument(doc *html.Node) *Snapshot {
	snap := &Snapshot{ContainerXPath: listItemXPath}
	items := htmlquery.Find(doc, listItemXPath)
	if len(items) == 0 {
		snap.ContainerXPath = dataParamsXPath
		items = htmlquery.Find(doc, dataParamsXPath)
	}

	for i, item := range items {
		q, ok := classifyItem(item)
		if !ok {
			snap.Unclassified = append(snap.Unclassified, q.Question)
			continue
		}
		q.Ordinal = i
		snap.Questions = append(snap.Questions, q)
	}
	return snap
}

// classifyItem runs the probe table against one container. The returned
// descriptor always carries the question text, even when ok is false.
func classifyItem(item *html.Node) (schemas.QuestionDescriptor, bool) {
	raw := unknownQuestion
	if h := htmlquery.FindOne(item, headingXPath); h != nil {
		raw = text(h)
	}
	clean := strings.TrimSpace(strings.ReplaceAll(raw, "*", ""))
	q := schemas.QuestionDescriptor{
		Question:   clean,
		Type:       schemas.QuestionUnknown,
		Identifier: clean,
		Required:   strings.Contains(raw, "*"),
	}

	for _, p := range probes {
		if !p.match(item) {
			continue
		}
		q.Type = p.kind(item)
		if q.Type == schemas.QuestionUnknown {
			return q, false
		}
		if p.extract != nil {
			p.extract(item, &q)
		}
		return q, true
	}
	return q, false
}
