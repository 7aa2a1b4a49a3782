// File: internal/formparse/extractor.go
package formparse

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

var (
	//go:embed scripts/grid_headers.js
	gridHeadersScript string
	//go:embed scripts/live_fallback.js
	liveFallbackScript string
)

// FormReadySelector matches the response form once the page has rendered it.
var FormReadySelector = schemas.ByCSS(`form[action*="formResponse"]`)

// Extractor turns a live form page into question descriptors.
type Extractor struct {
	cfg    config.FormConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractor creates an Extractor.
func NewExtractor(cfg config.FormConfig, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: logger.Named("extractor"), now: time.Now}
}

// WithLogger returns a copy of e that logs through logger.
func (e *Extractor) WithLogger(logger *zap.Logger) *Extractor {
	c := *e
	c.logger = logger.Named("extractor")
	return &c
}

// Extract loads formURL in sess and returns its questions in page order.
// An empty slice is a successful result; deciding what an empty form means
// is left to the caller.
func (e *Extractor) Extract(ctx context.Context, sess schemas.BrowserSession, formURL string) ([]schemas.QuestionDescriptor, error) {
	e.logger.Info("Loading form", zap.String("url", formURL))
	if err := sess.Navigate(ctx, formURL); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", schemas.ErrNavigationTimeout, err)
		}
		return nil, err
	}
	if err := sess.WaitFor(ctx, FormReadySelector, e.cfg.WaitTimeout); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			return nil, fmt.Errorf("%w: %v", schemas.ErrNavigationTimeout, err)
		}
		return nil, err
	}
	if err := sleep(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}

	markup, err := sess.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	if e.cfg.SnapshotDir != "" {
		if path, err := dumpSnapshot(e.cfg.SnapshotDir, markup, e.now()); err != nil {
			e.logger.Warn("Could not save form snapshot", zap.Error(err))
		} else {
			e.logger.Debug("Saved form snapshot", zap.String("path", path))
		}
	}

	snap, err := ParseSnapshot(markup)
	if err != nil {
		return nil, err
	}
	for _, heading := range snap.Unclassified {
		e.logger.Info("Skipped item, could not determine input type", zap.String("question", heading))
	}

	questions := snap.Questions
	e.resolveGrids(ctx, sess, snap, questions)

	if len(questions) == 0 {
		e.logger.Warn("No questions in static snapshot, trying live page")
		questions = e.liveFallback(ctx, sess)
	}

	questions = e.dedupe(questions)
	e.logStructure(questions)
	return questions, nil
}

type gridHeaders struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
}

// resolveGrids fills in grid captions the snapshot could not read. Failures
// are logged and leave the descriptor as parsed.
func (e *Extractor) resolveGrids(ctx context.Context, sess schemas.BrowserSession, snap *Snapshot, questions []schemas.QuestionDescriptor) {
	for i := range questions {
		q := &questions[i]
		if !q.NeedsGridScript {
			continue
		}
		arg, _ := json.MarshalToString(snap.ContainerFor(*q))
		var res gridHeaders
		if err := sess.Evaluate(ctx, fmt.Sprintf(gridHeadersScript, arg), &res); err != nil {
			e.logger.Warn("Error extracting grid via script", zap.String("question", q.Question), zap.Error(err))
			continue
		}
		if q.Options == nil {
			q.Options = &schemas.Options{}
		}
		if len(res.Rows) > 0 {
			q.Options.Rows = res.Rows
		}
		if len(res.Columns) > 0 {
			q.Options.Columns = res.Columns
		}
		q.NeedsGridScript = len(q.Options.Rows) == 0 || len(q.Options.Columns) == 0
		e.logger.Info("Extracted grid data via script",
			zap.String("question", q.Question),
			zap.Int("rows", len(q.Options.Rows)),
			zap.Int("columns", len(q.Options.Columns)))
	}
}

func (e *Extractor) liveFallback(ctx context.Context, sess schemas.BrowserSession) []schemas.QuestionDescriptor {
	var found []schemas.QuestionDescriptor
	if err := sess.Evaluate(ctx, liveFallbackScript, &found); err != nil {
		e.logger.Warn("Live extraction failed", zap.Error(err))
		return nil
	}
	out := found[:0]
	for i, q := range found {
		if !q.Type.Known() {
			continue
		}
		if q.Options.IsEmpty() {
			q.Options = nil
		}
		q.Ordinal = i
		out = append(out, q)
	}
	e.logger.Info("Live extraction finished", zap.Int("questions", len(out)))
	return out
}

// dedupe keeps identifiers unique. Later duplicates get " (2)", " (3)" and so
// on while still pointing at their own container on the page.
func (e *Extractor) dedupe(questions []schemas.QuestionDescriptor) []schemas.QuestionDescriptor {
	taken := make(map[string]bool, len(questions))
	for _, q := range questions {
		taken[q.Identifier] = true
	}
	seen := make(map[string]int, len(questions))
	for i := range questions {
		q := &questions[i]
		base := q.Identifier
		seen[base]++
		q.Locator = base
		q.Occurrence = seen[base]
		if q.Occurrence == 1 {
			continue
		}

		n := q.Occurrence
		candidate := fmt.Sprintf("%s (%d)", base, n)
		for taken[candidate] {
			n++
			candidate = fmt.Sprintf("%s (%d)", base, n)
		}
		taken[candidate] = true
		q.Identifier = candidate
		e.logger.Warn("Duplicate question identifier renamed",
			zap.String("identifier", base),
			zap.String("renamed_to", candidate))
	}
	return questions
}

func (e *Extractor) logStructure(questions []schemas.QuestionDescriptor) {
	e.logger.Info("Detected form structure", zap.Int("questions", len(questions)))
	for i, q := range questions {
		fields := []zap.Field{
			zap.Int("index", i+1),
			zap.String("question", q.Question),
			zap.String("type", string(q.Type)),
			zap.String("identifier", q.Identifier),
			zap.Bool("required", q.Required),
		}
		if !q.Options.IsEmpty() {
			fields = append(fields, zap.Any("options", q.Options))
		}
		e.logger.Info("Question", fields...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
