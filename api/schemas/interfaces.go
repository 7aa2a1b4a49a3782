package schemas

import (
	"context"
	"time"
)

// -- Browser Session Interface --

// SelectorKind tells the session how to resolve a Selector.
type SelectorKind int

const (
	// XPath selectors are evaluated with document.evaluate semantics.
	XPath SelectorKind = iota
	// CSS selectors are evaluated with querySelectorAll semantics.
	CSS
)

// Selector locates zero or more elements on the current page.
type Selector struct {
	Kind  SelectorKind
	Value string
}

// ByXPath builds an XPath selector.
func ByXPath(expr string) Selector { return Selector{Kind: XPath, Value: expr} }

// ByCSS builds a CSS selector.
func ByCSS(expr string) Selector { return Selector{Kind: CSS, Value: expr} }

func (s Selector) String() string {
	if s.Kind == CSS {
		return "css:" + s.Value
	}
	return "xpath:" + s.Value
}

// ElementInfo is a read-only view of one matched element.
type ElementInfo struct {
	// Ref selects exactly this element.
	Ref   Selector
	Text  string
	Attrs map[string]string
}

// Attr returns the named attribute or "".
func (e ElementInfo) Attr(name string) string { return e.Attrs[name] }

// BrowserSession is the capability set the extractor and filler need from a
// single live browser tab. All methods block and honour ctx.
//
//go:generate mockery --name BrowserSession --output ../../internal/mocks --outpkg mocks
type BrowserSession interface {
	// Navigate loads url in the tab.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until sel matches a visible element or timeout elapses.
	// A timeout is reported as ErrElementNotFound.
	WaitFor(ctx context.Context, sel Selector, timeout time.Duration) error
	// Elements lists every element matching sel in document order.
	Elements(ctx context.Context, sel Selector) ([]ElementInfo, error)
	// Click performs a native mouse click on the first match.
	Click(ctx context.Context, sel Selector) error
	// ClickJS invokes element.click() from script on the first match.
	ClickJS(ctx context.Context, sel Selector) error
	// ScrollIntoView centres the first match in the viewport.
	ScrollIntoView(ctx context.Context, sel Selector) error
	// Clear empties an input or textarea.
	Clear(ctx context.Context, sel Selector) error
	// SendKeys types text into the first match.
	SendKeys(ctx context.Context, sel Selector, text string) error
	// SetValue assigns the value property and dispatches input and change events.
	SetValue(ctx context.Context, sel Selector, value string) error
	// OuterHTML returns the serialized document.
	OuterHTML(ctx context.Context) (string, error)
	// Evaluate runs script and decodes its JSON-serializable result into res.
	Evaluate(ctx context.Context, script string, res any) error
	// Close releases the tab and the browser process.
	Close() error
}

// -- LLM Interface --

// GenerationOptions holds per-request sampling settings.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
}

// GenerationRequest is a single prompt sent to the answer model.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// LLMClient is the boundary to the generative text model.
type LLMClient interface {
	// Generate returns the raw text completion for req.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// -- Quota Interface --

// QuotaStore tracks how many responses a caller has been granted today.
// Implementations must make Reserve and Record atomic with respect to
// concurrent runs.
type QuotaStore interface {
	// Remaining returns how many responses key may still submit today. Never negative.
	Remaining(ctx context.Context, key string) (int, error)
	// Reserve adds n to key's daily count if that keeps it within the limit,
	// and fails with ErrQuotaExceeded otherwise. The check and the increment
	// are one operation, so concurrent runs cannot both pass on the same
	// allowance.
	Reserve(ctx context.Context, key string, n int) (Reservation, error)
	// Record adds a completed run to the usage log and settles its
	// reservation against the caller's daily count.
	Record(ctx context.Context, rec UsageRecord) error
	// Close releases the backend connection.
	Close() error
}
