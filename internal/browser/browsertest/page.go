// internal/browser/browsertest/page.go
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	json "github.com/json-iterator/go"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Page is an in-memory schemas.BrowserSession over a parsed HTML document.
// XPath selectors go through htmlquery and CSS selectors through goquery, so
// the extractor and filler can be exercised against fixture markup without
// a browser. Clicks on ARIA radios, checkboxes and options update their
// aria-checked/aria-selected state the way the live form does.
type Page struct {
	mu sync.Mutex

	doc    *html.Node
	url    string
	pages  map[string]string
	closed bool

	calls    []Call
	failures []failure
	evals    []evalHandler
	onClick  []clickHook
}

// Call records one method invocation on the page.
type Call struct {
	Method   string
	Selector string
	Arg      string
}

type failure struct {
	method   string
	contains string
	err      error
	times    int
}

type evalHandler struct {
	contains string
	fn       func(p *Page) (any, error)
}

type clickHook struct {
	contains string
	fn       func(p *Page)
}

var _ schemas.BrowserSession = (*Page)(nil)

// NewPage parses markup as the current document.
func NewPage(markup string) *Page {
	p := &Page{pages: make(map[string]string)}
	p.doc = mustParse(markup)
	return p
}

func mustParse(markup string) *html.Node {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("browsertest: parse fixture: %v", err))
	}
	return doc
}

// AddPage registers markup to be loaded when url is navigated to. URLs with
// no registered markup keep the current document.
func (p *Page) AddPage(url, markup string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[url] = markup
	return p
}

// SetHTML replaces the current document.
func (p *Page) SetHTML(markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = mustParse(markup)
}

// FailOn makes method fail with err whenever its selector contains the given
// substring ("" matches every call). times <= 0 means every call.
func (p *Page) FailOn(method, contains string, err error, times int) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, failure{method: method, contains: contains, err: err, times: times})
	return p
}

// OnEvaluate answers Evaluate calls whose script contains the substring.
func (p *Page) OnEvaluate(contains string, fn func(p *Page) (any, error)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, evalHandler{contains: contains, fn: fn})
	return p
}

// OnClick runs fn after a successful click whose selector contains the substring.
func (p *Page) OnClick(contains string, fn func(p *Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick = append(p.onClick, clickHook{contains: contains, fn: fn})
	return p
}

// Calls returns a copy of the invocation log.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsTo returns the logged calls of a single method.
func (p *Page) CallsTo(method string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// URL is the last navigated address.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Closed reports whether Close has been called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Attr reads an attribute of the first element matching sel.
func (p *Page) Attr(sel schemas.Selector, name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	nodes, err := p.find(sel)
	if err != nil || len(nodes) == 0 {
		return ""
	}
	return htmlquery.SelectAttr(nodes[0], name)
}

// Value reads the value attribute of the first element matching sel.
func (p *Page) Value(sel schemas.Selector) string { return p.Attr(sel, "value") }

// enter logs the call and reports a closed page, a cancelled context or an
// injected failure. Callers must hold p.mu.
func (p *Page) enter(ctx context.Context, method string, sel schemas.Selector, arg string) error {
	p.calls = append(p.calls, Call{Method: method, Selector: sel.Value, Arg: arg})
	if p.closed {
		return schemas.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range p.failures {
		f := &p.failures[i]
		if f.method != method || !strings.Contains(sel.Value, f.contains) {
			continue
		}
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				f.method = ""
			}
		}
		return f.err
	}
	return nil
}

func (p *Page) find(sel schemas.Selector) ([]*html.Node, error) {
	if sel.Kind == schemas.CSS {
		return goquery.NewDocumentFromNode(p.doc).Find(sel.Value).Nodes, nil
	}
	return htmlquery.QueryAll(p.doc, sel.Value)
}

func (p *Page) first(sel schemas.Selector) (*html.Node, error) {
	nodes, err := p.find(sel)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", schemas.ErrElementNotFound, sel)
	}
	return nodes[0], nil
}

// Navigate implements schemas.BrowserSession.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Navigate", schemas.Selector{Value: url}, ""); err != nil {
		return err
	}
	p.url = url
	if markup, ok := p.pages[url]; ok {
		p.doc = mustParse(markup)
	}
	return nil
}

// WaitFor does not wait: the document is static, so the element is either
// present now or never.
func (p *Page) WaitFor(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "WaitFor", sel, timeout.String()); err != nil {
		return err
	}
	_, err := p.first(sel)
	return err
}

// Elements implements schemas.BrowserSession.
func (p *Page) Elements(ctx context.Context, sel schemas.Selector) ([]schemas.ElementInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Elements", sel, ""); err != nil {
		return nil, err
	}
	nodes, err := p.find(sel)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.ElementInfo, 0, len(nodes))
	for _, n := range nodes {
		attrs := make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			attrs[a.Key] = a.Val
		}
		out = append(out, schemas.ElementInfo{
			Ref:   schemas.ByXPath(AbsoluteXPath(n)),
			Text:  strings.Join(strings.Fields(htmlquery.InnerText(n)), " "),
			Attrs: attrs,
		})
	}
	return out, nil
}

// Click implements schemas.BrowserSession.
func (p *Page) Click(ctx context.Context, sel schemas.Selector) error {
	return p.click(ctx, "Click", sel)
}

// ClickJS implements schemas.BrowserSession.
func (p *Page) ClickJS(ctx context.Context, sel schemas.Selector) error {
	return p.click(ctx, "ClickJS", sel)
}

func (p *Page) click(ctx context.Context, method string, sel schemas.Selector) error {
	p.mu.Lock()
	if err := p.enter(ctx, method, sel, ""); err != nil {
		p.mu.Unlock()
		return err
	}
	n, err := p.first(sel)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	toggle(n)
	var hooks []func(*Page)
	for _, h := range p.onClick {
		if strings.Contains(sel.Value, h.contains) {
			hooks = append(hooks, h.fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(p)
	}
	return nil
}

// toggle mirrors how the live form reacts to a click on an ARIA control.
func toggle(n *html.Node) {
	switch htmlquery.SelectAttr(n, "role") {
	case "radio":
		if group := ancestorWithRole(n, "radiogroup"); group != nil {
			for _, r := range htmlquery.Find(group, `.//*[@role="radio"]`) {
				setAttr(r, "aria-checked", "false")
			}
		}
		setAttr(n, "aria-checked", "true")
	case "checkbox":
		if htmlquery.SelectAttr(n, "aria-checked") == "true" {
			setAttr(n, "aria-checked", "false")
		} else {
			setAttr(n, "aria-checked", "true")
		}
	case "option":
		if lb := ancestorWithRole(n, "listbox"); lb != nil {
			for _, o := range htmlquery.Find(lb, `.//*[@role="option"]`) {
				setAttr(o, "aria-selected", "false")
			}
		}
		setAttr(n, "aria-selected", "true")
	}
}

func ancestorWithRole(n *html.Node, role string) *html.Node {
	for a := n.Parent; a != nil; a = a.Parent {
		if a.Type == html.ElementNode && htmlquery.SelectAttr(a, "role") == role {
			return a
		}
	}
	return nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// ScrollIntoView implements schemas.BrowserSession.
func (p *Page) ScrollIntoView(ctx context.Context, sel schemas.Selector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "ScrollIntoView", sel, ""); err != nil {
		return err
	}
	_, err := p.first(sel)
	return err
}

// Clear implements schemas.BrowserSession.
func (p *Page) Clear(ctx context.Context, sel schemas.Selector) error {
	return p.mutateValue(ctx, "Clear", sel, "", func(string) string { return "" })
}

// SendKeys implements schemas.BrowserSession.
func (p *Page) SendKeys(ctx context.Context, sel schemas.Selector, text string) error {
	return p.mutateValue(ctx, "SendKeys", sel, text, func(cur string) string { return cur + text })
}

// SetValue implements schemas.BrowserSession.
func (p *Page) SetValue(ctx context.Context, sel schemas.Selector, value string) error {
	return p.mutateValue(ctx, "SetValue", sel, value, func(string) string { return value })
}

func (p *Page) mutateValue(ctx context.Context, method string, sel schemas.Selector, arg string, fn func(string) string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, method, sel, arg); err != nil {
		return err
	}
	n, err := p.first(sel)
	if err != nil {
		return err
	}
	setAttr(n, "value", fn(htmlquery.SelectAttr(n, "value")))
	return nil
}

// OuterHTML implements schemas.BrowserSession.
func (p *Page) OuterHTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "OuterHTML", schemas.Selector{}, ""); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, p.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Evaluate dispatches to the first handler whose substring occurs in the
// script. Unhandled scripts decode JSON null into res.
func (p *Page) Evaluate(ctx context.Context, script string, res any) error {
	p.mu.Lock()
	if err := p.enter(ctx, "Evaluate", schemas.Selector{Value: script}, ""); err != nil {
		p.mu.Unlock()
		return err
	}
	var handler func(*Page) (any, error)
	for _, h := range p.evals {
		if strings.Contains(script, h.contains) {
			handler = h.fn
			break
		}
	}
	p.mu.Unlock()

	var out any
	if handler != nil {
		v, err := handler(p)
		if err != nil {
			return err
		}
		out = v
	}
	if res == nil {
		return nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

// Close implements schemas.BrowserSession.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: "Close"})
	p.closed = true
	return nil
}

// AbsoluteXPath renders the /html[1]/body[1]/... path of n, matching what the
// live session reports as an element Ref.
func AbsoluteXPath(n *html.Node) string {
	var parts []string
	for e := n; e != nil && e.Type == html.ElementNode; e = e.Parent {
		index := 1
		for s := e.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == e.Data {
				index++
			}
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", e.Data, index))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
