// File: internal/formparse/nodes.go
package formparse

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// hasClass builds an XPath predicate matching a whole class token.
func hasClass(class string) string {
	return `contains(concat(" ", normalize-space(@class), " "), " ` + class + ` ")`
}

// findAll runs every expression relative to n and returns the distinct matches
// in document order, the way a comma-separated CSS group behaves.
func findAll(n *html.Node, exprs ...string) []*html.Node {
	seen := make(map[*html.Node]bool)
	for _, expr := range exprs {
		for _, m := range htmlquery.Find(n, expr) {
			seen[m] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]*html.Node, 0, len(seen))
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if seen[c] {
			out = append(out, c)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return out
}

func exists(n *html.Node, exprs ...string) bool {
	for _, expr := range exprs {
		if htmlquery.FindOne(n, expr) != nil {
			return true
		}
	}
	return false
}

// text joins the trimmed text fragments under n with single spaces.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(n)), " ")
}

// texts returns the non-empty text of each node.
func texts(nodes []*html.Node) []string {
	var out []string
	for _, n := range nodes {
		if t := text(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func attr(n *html.Node, name string) string {
	return strings.TrimSpace(htmlquery.SelectAttr(n, name))
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
