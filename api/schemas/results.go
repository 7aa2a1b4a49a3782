// File: api/schemas/results.go
package schemas

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies how a single submission attempt ended.
type Outcome string

const (
	// OutcomeConfirmed means a confirmation phrase was seen after submitting.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeAssumed means nothing positive or negative was seen; counted as success.
	OutcomeAssumed           Outcome = "assumed"
	OutcomeRejected          Outcome = "rejected"
	OutcomeSubmitNotFound    Outcome = "submit_not_found"
	OutcomeNavigationTimeout Outcome = "navigation_timeout"
	OutcomeExtractionEmpty   Outcome = "extraction_empty"
	OutcomeGenerationFailed  Outcome = "generation_failed"
	OutcomeError             Outcome = "error"
	OutcomeCancelled         Outcome = "cancelled"
)

// Success reports whether the outcome counts toward the successful total.
func (o Outcome) Success() bool {
	return o == OutcomeConfirmed || o == OutcomeAssumed
}

// QuestionStatus is the per-question result of the injection pass.
type QuestionStatus string

const (
	QuestionFilled  QuestionStatus = "filled"
	QuestionSkipped QuestionStatus = "skipped"
	QuestionFailed  QuestionStatus = "failed"
)

// QuestionReport records what happened to one question during filling.
type QuestionReport struct {
	Identifier string         `json:"identifier" yaml:"identifier"`
	Type       QuestionType   `json:"type" yaml:"type"`
	Status     QuestionStatus `json:"status" yaml:"status"`
	Strategy   string         `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Detail     string         `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// SubmissionResult is the outcome of one fill-and-submit attempt.
type SubmissionResult struct {
	Attempt   int              `json:"attempt" yaml:"attempt"`
	Success   bool             `json:"success" yaml:"success"`
	Outcome   Outcome          `json:"outcome" yaml:"outcome"`
	Questions []QuestionReport `json:"questions,omitempty" yaml:"questions,omitempty"`
	Alerts    []string         `json:"alerts,omitempty" yaml:"alerts,omitempty"`
	Log       []string         `json:"log,omitempty" yaml:"log,omitempty"`
	Duration  time.Duration    `json:"duration" yaml:"duration"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Count returns how many questions ended with the given status.
func (r SubmissionResult) Count(status QuestionStatus) int {
	n := 0
	for _, q := range r.Questions {
		if q.Status == status {
			n++
		}
	}
	return n
}

// RunSummary aggregates a run of sequential attempts against one form.
type RunSummary struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	FormURL    string             `json:"form_url" yaml:"form_url"`
	Requested  int                `json:"requested" yaml:"requested"`
	Successful int                `json:"successful" yaml:"successful"`
	Results    []SubmissionResult `json:"results" yaml:"results"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time          `json:"finished_at" yaml:"finished_at"`
}

// Reservation is quota held against a caller's daily count while a run is in
// flight. Recording the run settles it.
type Reservation struct {
	CallerKey string    `json:"caller_key"`
	Count     int       `json:"count"`
	At        time.Time `json:"at"`
}

// UsageRecord is the row the quota store keeps for each completed run.
// Reserved and ReservedAt carry the run's reservation, if any; the daily count
// for the reservation's day moves by Successful-Reserved.
type UsageRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	CallerKey  string    `json:"caller_key"`
	FormURL    string    `json:"form_url"`
	Requested  int       `json:"requested"`
	Successful int       `json:"successful"`
	Reserved   int       `json:"reserved,omitempty"`
	ReservedAt time.Time `json:"-"`
}

// OutcomeFor maps an attempt error onto the outcome it represents. A nil
// error is an assumed success.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAssumed
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, ErrNavigationTimeout):
		return OutcomeNavigationTimeout
	case errors.Is(err, ErrExtractionEmpty):
		return OutcomeExtractionEmpty
	case errors.Is(err, ErrGeneration):
		return OutcomeGenerationFailed
	case errors.Is(err, ErrSubmitNotFound):
		return OutcomeSubmitNotFound
	case errors.Is(err, ErrSubmitRejected):
		return OutcomeRejected
	}
	return OutcomeError
}
