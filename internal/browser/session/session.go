// internal/browser/session/session.go
package session

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

//go:embed scripts/dom_helpers.js
var domHelpersScript string

const shutdownTimeout = 10 * time.Second

// Session is a single chromedp-driven tab with a fixed capability profile.
// It implements schemas.BrowserSession and is not safe for concurrent use;
// callers drive it from one goroutine.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	actionTimeout time.Duration
	logger        *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.BrowserSession = (*Session)(nil)

// New launches a browser process and opens one tab. The process is tied to
// the returned Session, not to ctx; ctx only bounds the launch itself.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	logger = logger.Named("browser")

	// The allocator must not inherit ctx cancellation or an operator interrupt
	// would kill the browser before Close runs.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), ExecAllocatorOptions(cfg)...)
	sugar := logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	s := &Session{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		tabCtx:        tabCtx,
		tabCancel:     tabCancel,
		actionTimeout: cfg.ActionTimeout,
		logger:        logger,
	}
	if s.actionTimeout <= 0 {
		s.actionTimeout = 15 * time.Second
	}

	// The first Run starts the process and attaches to the initial target.
	launchCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(launchCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// run executes actions on the tab, bounded by ctx and by the default action
// timeout when ctx carries no deadline of its own.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.tabCtx.Err() != nil {
		return schemas.ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.tabCtx, ctx)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, s.actionTimeout)
		defer timeoutCancel()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && s.tabCtx.Err() != nil {
		return fmt.Errorf("%w: %v", schemas.ErrSessionClosed, err)
	}
	return err
}

func queryOption(sel schemas.Selector) chromedp.QueryOption {
	if sel.Kind == schemas.CSS {
		return chromedp.ByQuery
	}
	return chromedp.BySearch
}

// script builds an evaluable expression that has the DOM helpers in scope.
func script(body string) string {
	return "(function(){\n" + domHelpersScript + "\n" + body + "\n})()"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func selectorArgs(sel schemas.Selector) string {
	return fmt.Sprintf("%d, %s", int(sel.Kind), jsString(sel.Value))
}

// Navigate loads url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitFor blocks until sel matches a visible element or timeout elapses.
func (s *Session) WaitFor(ctx context.Context, sel schemas.Selector, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.run(waitCtx, chromedp.WaitVisible(sel.Value, queryOption(sel)))
	if err == nil {
		return nil
	}
	// Our own timeout firing means "not found"; the caller's cancellation is passed through.
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", schemas.ErrElementNotFound, sel, timeout)
	}
	return err
}

type describedElement struct {
	Path  string            `json:"path"`
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs"`
}

// Elements lists every element matching sel in document order.
func (s *Session) Elements(ctx context.Context, sel schemas.Selector) ([]schemas.ElementInfo, error) {
	var described []describedElement
	js := script(fmt.Sprintf("return __fpDescribe(%s);", selectorArgs(sel)))
	if err := s.run(ctx, chromedp.Evaluate(js, &described)); err != nil {
		return nil, fmt.Errorf("query %s: %w", sel, err)
	}
	out := make([]schemas.ElementInfo, 0, len(described))
	for _, d := range described {
		out = append(out, schemas.ElementInfo{Ref: schemas.ByXPath(d.Path), Text: d.Text, Attrs: d.Attrs})
	}
	return out, nil
}

// Click performs a native mouse click on the first visible match.
func (s *Session) Click(ctx context.Context, sel schemas.Selector) error {
	if err := s.run(ctx, chromedp.Click(sel.Value, queryOption(sel))); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

// ClickJS calls element.click() on the first match.
func (s *Session) ClickJS(ctx context.Context, sel schemas.Selector) error {
	return s.onFirst(ctx, sel, "el.click();")
}

// ScrollIntoView centres the first match in the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, sel schemas.Selector) error {
	return s.onFirst(ctx, sel, "el.scrollIntoView({block: 'center', inline: 'center'});")
}

// SetValue assigns value through the native setter and fires input and change.
func (s *Session) SetValue(ctx context.Context, sel schemas.Selector, value string) error {
	return s.onFirst(ctx, sel, fmt.Sprintf("__fpSetValue(el, %s);", jsString(value)))
}

func (s *Session) onFirst(ctx context.Context, sel schemas.Selector, stmt string) error {
	var found bool
	js := script(fmt.Sprintf("const el = __fpFirst(%s); if (!el) { return false; } %s return true;", selectorArgs(sel), stmt))
	if err := s.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return fmt.Errorf("script on %s: %w", sel, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", schemas.ErrElementNotFound, sel)
	}
	return nil
}

// Clear empties an input or textarea.
func (s *Session) Clear(ctx context.Context, sel schemas.Selector) error {
	if err := s.run(ctx, chromedp.Clear(sel.Value, queryOption(sel))); err != nil {
		return fmt.Errorf("clear %s: %w", sel, err)
	}
	return nil
}

// SendKeys focuses the first match and types text.
func (s *Session) SendKeys(ctx context.Context, sel schemas.Selector, text string) error {
	if err := s.run(ctx, chromedp.SendKeys(sel.Value, text, queryOption(sel))); err != nil {
		return fmt.Errorf("send keys to %s: %w", sel, err)
	}
	return nil
}

// OuterHTML returns the serialized document.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

// Evaluate runs an arbitrary expression and decodes its result into res.
func (s *Session) Evaluate(ctx context.Context, expression string, res any) error {
	if err := s.run(ctx, chromedp.Evaluate(strings.TrimSpace(expression), res)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.tabCtx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = fmt.Errorf("browser shutdown: %w", err)
			}
		case <-time.After(shutdownTimeout):
			s.logger.Warn("Browser shutdown timed out; killing process", zap.Duration("timeout", shutdownTimeout))
		}
		s.tabCancel()
		s.allocCancel()
		s.logger.Info("Browser session closed")
	})
	return s.closeErr
}
