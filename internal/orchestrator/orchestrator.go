// File: internal/orchestrator/orchestrator.go
// Description: Drives a run of sequential submission attempts against one form
// through a single browser session, and accounts for it in the quota store.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/session"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/filler"
	"github.com/xkilldash9x/formpilot/internal/formparse"
	"github.com/xkilldash9x/formpilot/internal/generator"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("invalid run request")

// recordTimeout bounds the quota write made after a run, which may happen
// after the run context has already been cancelled.
const recordTimeout = 10 * time.Second

// SessionFactory opens the browser session a run works in.
type SessionFactory func(ctx context.Context) (schemas.BrowserSession, error)

// ProgressFunc is told about every finished attempt.
type ProgressFunc func(done, total int, result schemas.SubmissionResult)

// RunRequest describes one run.
type RunRequest struct {
	FormURL string
	Persona string
	Count   int
	// CallerKey identifies who the run is charged to. Empty skips quota checks.
	CallerKey  string
	OnProgress ProgressFunc
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Sessions  SessionFactory
	Extractor *formparse.Extractor
	Generator *generator.Generator
	Filler    *filler.Filler
	Quota     schemas.QuotaStore
}

// Orchestrator runs submission attempts one after another.
type Orchestrator struct {
	run        config.RunConfig
	maxPerForm int
	policy     *formparse.URLPolicy
	deps       Deps
	logger     *zap.Logger
	newRunID   func() string
}

// New creates an Orchestrator.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) (*Orchestrator, error) {
	if cfg == nil ||
		logger == nil ||
		deps.Sessions == nil ||
		deps.Extractor == nil ||
		deps.Generator == nil ||
		deps.Filler == nil ||
		deps.Quota == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	policy, err := formparse.NewURLPolicy(cfg.Form.AllowedURLs)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		run:        cfg.Run,
		maxPerForm: cfg.Quota.MaxPerForm,
		policy:     policy,
		deps:       deps,
		logger:     logger.Named("orchestrator"),
		newRunID:   uuid.NewString,
	}, nil
}

// Validate checks a request against the URL policy and the run ceilings.
// It does not consult the quota store.
func (o *Orchestrator) Validate(req RunRequest) error {
	if err := o.policy.Check(req.FormURL); err != nil {
		return err
	}
	switch {
	case req.Count < 1:
		return fmt.Errorf("%w: count must be at least 1", ErrInvalidRequest)
	case req.Count > o.run.MaxPerRun:
		return fmt.Errorf("%w: count %d exceeds the per-run maximum of %d", ErrInvalidRequest, req.Count, o.run.MaxPerRun)
	case o.maxPerForm > 0 && req.Count > o.maxPerForm:
		return fmt.Errorf("%w: count %d exceeds the per-form maximum of %d", ErrInvalidRequest, req.Count, o.maxPerForm)
	case req.Persona == "":
		return fmt.Errorf("%w: persona is required", ErrInvalidRequest)
	}
	return nil
}

// Run performs req.Count sequential attempts. Attempt failures are recorded in
// the summary and do not stop the run; cancellation and a lost browser session
// do, and are returned alongside the partial summary. The requested count is
// reserved against the caller's quota up front; once reserved, the run is
// always recorded, which returns the unused part of the reservation. The
// session is always closed.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (schemas.RunSummary, error) {
	summary := schemas.RunSummary{
		RunID:     o.newRunID(),
		FormURL:   req.FormURL,
		Requested: req.Count,
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", summary.RunID))

	if err := o.Validate(req); err != nil {
		return summary, err
	}
	var held schemas.Reservation
	if req.CallerKey != "" {
		r, err := o.deps.Quota.Reserve(ctx, req.CallerKey, req.Count)
		if err != nil {
			if errors.Is(err, schemas.ErrQuotaExceeded) {
				return summary, err
			}
			return summary, fmt.Errorf("failed to reserve quota: %w", err)
		}
		held = r
	}

	log.Info("Starting run",
		zap.String("url", req.FormURL),
		zap.Int("count", req.Count),
		zap.String("persona", req.Persona))

	sess, err := o.deps.Sessions(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		o.record(ctx, log, req, summary, held)
		return summary, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("Error closing browser session", zap.Error(err))
		}
	}()

	runErr := o.loop(ctx, log, sess, req, &summary)
	summary.FinishedAt = time.Now()
	o.record(ctx, log, req, summary, held)

	log.Info("Run finished",
		zap.Int("successful", summary.Successful),
		zap.Int("requested", summary.Requested),
		zap.Int("attempted", len(summary.Results)),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, runErr
}

func (o *Orchestrator) loop(ctx context.Context, log *zap.Logger, sess schemas.BrowserSession, req RunRequest, summary *schemas.RunSummary) error {
	pace := newPacer(o.run.SubmissionDelay)
	for i := 0; i < req.Count; i++ {
		if i > 0 {
			log.Info("Waiting before next submission", zap.Duration("delay", pace.next))
			if err := pace.wait(ctx); err != nil {
				log.Info("Run interrupted while waiting")
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := o.attempt(ctx, sess, req, i)
		summary.Results = append(summary.Results, res)
		if res.Success {
			summary.Successful++
			log.Info("Submission completed", zap.Int("attempt", i+1), zap.String("outcome", string(res.Outcome)))
		} else {
			log.Warn("Submission failed", zap.Int("attempt", i+1), zap.String("outcome", string(res.Outcome)), zap.String("error", res.Error))
		}
		if req.OnProgress != nil {
			req.OnProgress(i+1, req.Count, res)
		}

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, schemas.ErrSessionClosed):
			log.Error("Browser session lost, aborting run", zap.Error(err))
			return err
		}

		extra := time.Duration(0)
		if !res.Success {
			extra = o.run.FailureBackoff
		}
		pace.mark(extra)
	}
	return nil
}

// attempt runs extract, generate and fill once, capturing its log lines.
func (o *Orchestrator) attempt(ctx context.Context, sess schemas.BrowserSession, req RunRequest, index int) (schemas.SubmissionResult, error) {
	start := time.Now()
	trail := observability.NewTrail(zapcore.InfoLevel)
	log := trail.Attach(o.logger).With(zap.Int("attempt", index+1))

	finish := func(res schemas.SubmissionResult, err error) (schemas.SubmissionResult, error) {
		if err != nil {
			if res.Outcome == "" || res.Outcome.Success() {
				res.Outcome = schemas.OutcomeFor(err)
			}
			if res.Error == "" {
				res.Error = err.Error()
			}
			res.Success = false
		}
		if ctx.Err() != nil {
			res.Outcome = schemas.OutcomeCancelled
			res.Success = false
		}
		res.Attempt = index + 1
		res.Duration = time.Since(start)
		res.Log = trail.Lines()
		return res, err
	}

	log.Info("Processing submission", zap.Int("of", req.Count))
	questions, err := o.deps.Extractor.WithLogger(log).Extract(ctx, sess, req.FormURL)
	if err != nil {
		return finish(schemas.SubmissionResult{}, err)
	}
	if len(questions) == 0 {
		log.Warn("Failed to extract form structure, skipping")
		return finish(schemas.SubmissionResult{}, schemas.ErrExtractionEmpty)
	}

	answers, err := o.deps.Generator.WithLogger(log).Generate(ctx, questions, req.Persona, index)
	if err != nil {
		log.Warn("Failed to generate answers, skipping", zap.Error(err))
		return finish(schemas.SubmissionResult{}, err)
	}

	return finish(o.deps.Filler.WithLogger(log).FillAndSubmit(ctx, sess, req.FormURL, questions, answers))
}

// record charges the run to the caller and settles its reservation, handing
// back whatever the run did not use. It runs on a detached context so an
// interrupt still gets accounted for.
func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, req RunRequest, summary schemas.RunSummary, held schemas.Reservation) {
	if req.CallerKey == "" {
		return
	}
	rctx, cancel := context.WithTimeout(session.Detach(ctx), recordTimeout)
	defer cancel()
	err := o.deps.Quota.Record(rctx, schemas.UsageRecord{
		Timestamp:  summary.FinishedAt,
		CallerKey:  req.CallerKey,
		FormURL:    req.FormURL,
		Requested:  summary.Requested,
		Successful: summary.Successful,
		Reserved:   held.Count,
		ReservedAt: held.At,
	})
	if err != nil {
		log.Error("Failed to record usage", zap.Error(err))
	}
}

// pacer spaces attempts so that each one starts a full delay after the
// previous one finished.
type pacer struct {
	delay time.Duration
	next  time.Duration
	lim   *rate.Limiter
}

func newPacer(delay time.Duration) *pacer {
	p := &pacer{delay: delay}
	p.mark(0)
	return p
}

// mark starts the gap that the next wait will honour.
func (p *pacer) mark(extra time.Duration) {
	p.next = p.delay + extra
	p.lim = rate.NewLimiter(rate.Every(p.next), 1)
	p.lim.Allow()
}

func (p *pacer) wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
