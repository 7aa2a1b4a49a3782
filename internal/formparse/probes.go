// File: internal/formparse/probes.go
package formparse

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// probe is one row of the classification table. Probes are tried in order
// and the first whose match succeeds decides the question type.
type probe struct {
	name    string
	match   func(item *html.Node) bool
	kind    func(item *html.Node) schemas.QuestionType
	extract func(item *html.Node, q *schemas.QuestionDescriptor)
}

func fixed(t schemas.QuestionType) func(*html.Node) schemas.QuestionType {
	return func(*html.Node) schemas.QuestionType { return t }
}

const (
	// The free-text box of a choice question's "Other" option is not a
	// text question of its own.
	notOtherOption = `[not(ancestor::*[@data-value="__other_option__"]) and not(@aria-label="Other response")]`
	textInputXPath = `.//input[@type="text" or @type="email" or @type="url" or @type="number"]` + notOtherOption
	textareaXPath  = `.//textarea` + notOtherOption
	radioXPath     = `.//div[@role="radio"]`
	checkboxXPath  = `.//div[@role="checkbox"]`
	scaleStartName = "NfjK7"
	scaleEndName   = "jq1lEb"
)

var probes = []probe{
	{
		name:    "text",
		match:   func(n *html.Node) bool { return exists(n, textInputXPath, textareaXPath) },
		kind:    fixed(schemas.QuestionText),
		extract: extractTextIdentifier,
	},
	{
		name:  "date",
		match: func(n *html.Node) bool { return exists(n, `.//input[@type="date" or contains(@placeholder, "Date")]`) },
		kind:  fixed(schemas.QuestionDate),
	},
	{
		name:  "time",
		match: func(n *html.Node) bool { return exists(n, `.//input[@type="time" or contains(@placeholder, "Time")]`) },
		kind:  fixed(schemas.QuestionTime),
	},
	{
		name:  "file_upload",
		match: func(n *html.Node) bool { return exists(n, `.//div[contains(@data-params, "uploadType")]`) },
		kind:  fixed(schemas.QuestionFileUpload),
	},
	{
		name: "grid",
		match: func(n *html.Node) bool {
			return exists(n, `.//div[@role="grid"]`, `.//table[`+hasClass("freebirdFormviewerViewItemsGridTable")+`]`)
		},
		kind: func(n *html.Node) schemas.QuestionType {
			if exists(n, checkboxXPath) {
				return schemas.QuestionCheckboxGrid
			}
			return schemas.QuestionGrid
		},
		extract: extractGrid,
	},
	{
		name:  "radiogroup",
		match: func(n *html.Node) bool { return exists(n, `.//div[@role="radiogroup"]`) },
		kind: func(n *html.Node) schemas.QuestionType {
			if isLinearScale(n) {
				return schemas.QuestionLinearScale
			}
			return schemas.QuestionMultipleChoice
		},
		extract: func(n *html.Node, q *schemas.QuestionDescriptor) {
			if q.Type == schemas.QuestionLinearScale {
				extractScale(n, q)
				return
			}
			extractChoices(n, q)
		},
	},
	{
		name:    "checkbox",
		match:   func(n *html.Node) bool { return exists(n, `.//div[@role="group"]`) && exists(n, checkboxXPath) },
		kind:    fixed(schemas.QuestionCheckbox),
		extract: extractCheckboxes,
	},
	{
		name:    "dropdown",
		match:   func(n *html.Node) bool { return exists(n, `.//div[@role="listbox"]`) },
		kind:    fixed(schemas.QuestionDropdown),
		extract: extractDropdown,
	},
}

func extractTextIdentifier(n *html.Node, q *schemas.QuestionDescriptor) {
	input := findAll(n, textInputXPath, textareaXPath)[0]
	if label := attr(input, "aria-label"); label != "" && label != genericInputLabel {
		q.Identifier = label
	}
}

func extractGrid(n *html.Node, q *schemas.QuestionDescriptor) {
	rowNodes := findAll(n,
		`.//div[@role="row"]//th`,
		`.//tr//th[not(preceding-sibling::*)]`,
		`.//div[`+hasClass("freebirdFormviewerViewItemsGridRowGroup")+`]`,
	)
	if len(rowNodes) == 0 {
		rowNodes = findAll(n, `.//div[`+hasClass("freebirdFormviewerViewItemsGridRow")+`]`)
	}
	colNodes := findAll(n,
		`.//div[@role="columnheader"]`,
		`.//tr//th[preceding-sibling::*]`,
		`.//div[`+hasClass("freebirdFormviewerViewItemsGridCell")+` and @role="heading"]`,
	)
	if len(colNodes) == 0 {
		colNodes = findAll(n, `.//div[`+hasClass("freebirdFormviewerViewItemsGridColumnHeader")+`]`)
	}

	rows, cols := texts(rowNodes), texts(colNodes)
	q.Options = &schemas.Options{Rows: rows, Columns: cols}
	q.NeedsGridScript = len(rows) == 0 || len(cols) == 0
}

func isLinearScale(n *html.Node) bool {
	for _, label := range findAll(n, `.//label//span`) {
		if isDigits(text(label)) {
			return true
		}
	}
	return exists(n,
		`.//div[contains(@aria-label, "stars") or contains(@aria-label, "rating") or contains(@aria-label, "scale")]`,
		`.//div[@jsname="RRJqzb"]`,
		`.//div[@jsname="`+scaleStartName+`" or @jsname="`+scaleEndName+`"]`,
	)
}

func extractScale(n *html.Node, q *schemas.QuestionDescriptor) {
	values := texts(findAll(n, `.//label//span`))
	radios := findAll(n, radioXPath)

	var dataValues []string
	for _, r := range radios {
		if v := attr(r, "data-value"); v != "" {
			dataValues = append(dataValues, v)
		}
	}
	switch {
	case len(dataValues) > 0:
		values = dataValues
	case len(values) == 0 && len(radios) > 0:
		for i := range radios {
			values = append(values, strconv.Itoa(i+1))
		}
	}

	opts := &schemas.Options{Values: values}
	var labels schemas.ScaleLabels
	if start := findAll(n, `.//div[@jsname="`+scaleStartName+`"]`); len(start) > 0 {
		labels.Start = text(start[0])
	}
	if end := findAll(n, `.//div[@jsname="`+scaleEndName+`"]`); len(end) > 0 {
		labels.End = text(end[0])
	}
	if !labels.IsZero() {
		opts.Labels = &labels
	}
	q.Options = opts
}

func extractChoices(n *html.Node, q *schemas.QuestionDescriptor) {
	values := texts(findAll(n, `.//label//span`))
	if len(values) == 0 {
		for _, r := range findAll(n, radioXPath) {
			if v := attr(r, "aria-label"); v != "" {
				values = append(values, v)
			} else if v := attr(r, "data-value"); v != "" {
				values = append(values, v)
			}
		}
	}
	q.Options = &schemas.Options{Values: values}
}

func extractCheckboxes(n *html.Node, q *schemas.QuestionDescriptor) {
	values := texts(findAll(n, checkboxXPath+`//span`))
	if len(values) == 0 {
		for _, c := range findAll(n, checkboxXPath) {
			if v := attr(c, "aria-label"); v != "" {
				values = append(values, v)
			}
		}
	}
	q.Options = &schemas.Options{Values: values}
}

// isPlaceholderOption reports the "Choose" entry Google renders first in dropdowns.
func isPlaceholderOption(s string) bool { return s == "Choose" }

func extractDropdown(n *html.Node, q *schemas.QuestionDescriptor) {
	var values []string
	for _, v := range texts(findAll(n, `.//div[@role="option"]//span`)) {
		if !isPlaceholderOption(v) {
			values = append(values, v)
		}
	}
	q.Options = &schemas.Options{Values: values}
}
