// File: internal/filler/locator.go
package filler

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// containerPredicate matches every element that can act as a question wrapper
// across the Google Forms markup generations.
const containerPredicate = `@role="listitem" or contains(@class, "Qr7Oae") or contains(@class, "freebirdFormviewerComponentsQuestion")`

// XPathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// syntax, so text containing both quote kinds is assembled with concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// cleanIdentifier drops the required-field asterisk the heading text carries.
func cleanIdentifier(identifier string) string {
	return strings.TrimSpace(strings.ReplaceAll(identifier, "*", ""))
}

// ExactContainerXPath returns an expression selecting the occurrence-th
// outermost question wrapper whose heading, asterisks removed, equals
// identifier. Occurrence counts exact matches only.
func ExactContainerXPath(identifier string, occurrence int) string {
	if occurrence < 1 {
		occurrence = 1
	}
	return fmt.Sprintf(`(//div[%[1]s][not(ancestor::div[%[1]s])]`+
		`[.//div[@role="heading"][normalize-space(translate(., "*", "")) = %[2]s]])[%[3]d]`,
		containerPredicate, XPathLiteral(cleanIdentifier(identifier)), occurrence)
}

// QuestionContainerXPath returns an expression selecting the occurrence-th
// question wrapper that carries identifier as its heading, a label span, or
// the aria-label of its input. Only outermost wrappers are counted so nested
// markup generations do not shift the occurrence index.
func QuestionContainerXPath(identifier string, occurrence int) string {
	clean := XPathLiteral(cleanIdentifier(identifier))
	exact := XPathLiteral(identifier)
	if occurrence < 1 {
		occurrence = 1
	}
	return fmt.Sprintf(`(//div[%[1]s][not(ancestor::div[%[1]s])]`+
		`[.//div[@role="heading"][contains(normalize-space(), %[2]s)]`+
		` or .//span[contains(text(), %[2]s) and not(ancestor::div[contains(@class, "quantumWizTextinputPaperinputMainContent")])]`+
		` or .//input[@aria-label=%[3]s]`+
		` or .//textarea[@aria-label=%[3]s]])[%[4]d]`,
		containerPredicate, clean, exact, occurrence)
}

// containerFor resolves the container expression for q. An exact heading
// match wins so a heading that merely contains the identifier ("Company
// Name" for "Name") cannot capture the answer; the looser union is used only
// when no heading matches exactly.
func containerFor(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor) (string, error) {
	identifier, occurrence := q.LocatorKey()
	exact := ExactContainerXPath(identifier, occurrence)
	ok, err := present(ctx, sess, schemas.ByXPath(exact))
	if err != nil {
		return "", err
	}
	if ok {
		return exact, nil
	}
	return QuestionContainerXPath(identifier, occurrence), nil
}

// within scopes a relative path to the container expression.
func within(container, rel string) schemas.Selector {
	return schemas.ByXPath(container + rel)
}

// submitLocators are tried in order until one resolves.
var submitLocators = []schemas.Selector{
	schemas.ByXPath(`//div[@role="button"][.//span[normalize-space()="Submit"]]`),
	schemas.ByXPath(`//button[@type="submit"][contains(normalize-space(), "Submit")]`),
	schemas.ByXPath(`//div[@role="button"][contains(@jsname, "OCpkoe")]`),
	schemas.ByCSS(`div[role="button"][jsname*="OCpkoe"]`),
	schemas.ByCSS(`button[type="submit"]`),
}
