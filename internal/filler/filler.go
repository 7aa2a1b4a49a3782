// File: internal/filler/filler.go
package filler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/formparse"
)

// Filler enters generated answers into a live form and submits it.
type Filler struct {
	form   config.FormConfig
	cfg    config.FillerConfig
	logger *zap.Logger
}

// New creates a Filler.
func New(form config.FormConfig, cfg config.FillerConfig, logger *zap.Logger) *Filler {
	return &Filler{form: form, cfg: cfg, logger: logger.Named("filler")}
}

// WithLogger returns a copy of f that logs through logger.
func (f *Filler) WithLogger(logger *zap.Logger) *Filler {
	c := *f
	c.logger = logger.Named("filler")
	return &c
}

// FillAndSubmit reloads formURL, enters every answer it can and submits the
// form. A question that cannot be filled is reported and skipped; the attempt
// as a whole fails only when the page never becomes ready, the submit control
// is missing, the form rejects the submission, or the session is lost.
func (f *Filler) FillAndSubmit(ctx context.Context, sess schemas.BrowserSession, formURL string, questions []schemas.QuestionDescriptor, answers schemas.AnswerMap) (schemas.SubmissionResult, error) {
	res := schemas.SubmissionResult{}
	fail := func(err error) (schemas.SubmissionResult, error) {
		res.Outcome = schemas.OutcomeFor(err)
		res.Error = err.Error()
		return res, err
	}

	f.logger.Info("Opening form for filling", zap.String("url", formURL))
	if err := sess.Navigate(ctx, formURL); err != nil {
		// The session's own load timeout, not the caller's deadline.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", schemas.ErrNavigationTimeout, err)
		}
		return fail(err)
	}
	if err := sess.WaitFor(ctx, formparse.FormReadySelector, f.form.WaitTimeout); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			err = fmt.Errorf("%w: %v", schemas.ErrNavigationTimeout, err)
		}
		return fail(err)
	}
	if err := sleep(ctx, f.form.FillSettleDelay); err != nil {
		return fail(err)
	}

	inject := f.injectors()
	for _, q := range questions {
		report, err := f.fillQuestion(ctx, sess, inject, q, answers)
		res.Questions = append(res.Questions, report)
		if err != nil {
			return fail(err)
		}
	}
	f.logger.Info("Finished entering answers",
		zap.Int("filled", res.Count(schemas.QuestionFilled)),
		zap.Int("skipped", res.Count(schemas.QuestionSkipped)),
		zap.Int("failed", res.Count(schemas.QuestionFailed)))

	if err := f.submit(ctx, sess); err != nil {
		return fail(err)
	}

	markup, err := sess.OuterHTML(ctx)
	if err != nil {
		return fail(err)
	}
	outcome, alerts := ClassifyOutcome(markup, f.form.ConfirmationPhrases)
	res.Outcome = outcome
	res.Alerts = alerts
	switch outcome {
	case schemas.OutcomeConfirmed:
		f.logger.Info("Submission confirmed")
	case schemas.OutcomeRejected:
		f.logger.Warn("Form reported errors after submit", zap.Strings("alerts", alerts))
		err := fmt.Errorf("%w: %d alert(s)", schemas.ErrSubmitRejected, len(alerts))
		res.Error = err.Error()
		return res, err
	default:
		f.logger.Info("No confirmation message found, assuming success")
	}
	res.Success = true
	return res, nil
}

// fillQuestion enters one answer. Only cancellation and a lost session are
// returned as errors; anything else is recorded in the report.
func (f *Filler) fillQuestion(ctx context.Context, sess schemas.BrowserSession, inject map[schemas.QuestionType]injector, q schemas.QuestionDescriptor, answers schemas.AnswerMap) (schemas.QuestionReport, error) {
	report := schemas.QuestionReport{Identifier: q.Identifier, Type: q.Type, Status: schemas.QuestionSkipped}
	log := f.logger.With(zap.String("identifier", q.Identifier), zap.String("type", string(q.Type)))

	if q.Identifier == "" {
		report.Detail = "missing identifier"
		log.Warn("Skipping question without identifier")
		return report, nil
	}
	ans, ok := answers[q.Identifier]
	if !ok || ans.IsNull() {
		report.Detail = "no answer"
		log.Info("No answer for question, skipping")
		return report, nil
	}
	if q.Type != schemas.QuestionText && ans.IsEmpty() {
		report.Detail = "empty answer"
		log.Info("Empty answer for question, skipping")
		return report, nil
	}
	if q.Type == schemas.QuestionFileUpload {
		report.Detail = "file uploads require sign-in"
		log.Info("Skipping file upload question")
		return report, nil
	}
	fn, ok := inject[q.Type]
	if !ok {
		report.Detail = "unsupported type"
		log.Warn("No handler for question type, skipping")
		return report, nil
	}

	var strategy string
	container, err := containerFor(ctx, sess, q)
	if err == nil {
		strategy, err = fn(ctx, sess, q, container, ans)
	}
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if errors.Is(err, schemas.ErrSessionClosed) {
			return report, err
		}
		report.Status = schemas.QuestionFailed
		report.Detail = err.Error()
		log.Warn("Could not fill question", zap.Error(fmt.Errorf("%w: %w", schemas.ErrInjection, err)))
		return report, nil
	}
	report.Status = schemas.QuestionFilled
	report.Strategy = strategy
	log.Debug("Filled question", zap.String("strategy", strategy), zap.String("answer", ans.String()))
	return report, nil
}

// submit finds the submit control, brings it into view and clicks it.
func (f *Filler) submit(ctx context.Context, sess schemas.BrowserSession) error {
	var target *schemas.Selector
	for i := range submitLocators {
		sel := submitLocators[i]
		err := sess.WaitFor(ctx, sel, f.cfg.SubmitWait)
		if err == nil {
			target = &sel
			break
		}
		if !errors.Is(err, schemas.ErrElementNotFound) {
			return err
		}
		f.logger.Debug("Submit locator did not match", zap.Stringer("selector", sel))
	}
	if target == nil {
		f.logger.Error("Could not find submit button")
		return schemas.ErrSubmitNotFound
	}

	if err := sess.ScrollIntoView(ctx, *target); err != nil {
		if ctx.Err() != nil || errors.Is(err, schemas.ErrSessionClosed) {
			return err
		}
		f.logger.Debug("Could not scroll submit button into view", zap.Error(err))
	}
	if err := sleep(ctx, f.cfg.ScrollSettle); err != nil {
		return err
	}
	if err := sess.ClickJS(ctx, *target); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	f.logger.Info("Clicked submit", zap.Stringer("selector", *target))
	return sleep(ctx, f.cfg.PostSubmitWait)
}
