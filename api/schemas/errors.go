// File: api/schemas/errors.go
package schemas

import "errors"

// Sentinel errors shared across components. Callers wrap them with %w and
// test with errors.Is.
var (
	ErrNavigationTimeout = errors.New("form did not become ready before timeout")
	ErrExtractionEmpty   = errors.New("no questions found on form")
	ErrGeneration        = errors.New("answer generation failed")
	ErrInjection         = errors.New("answer could not be entered")
	ErrSubmitNotFound    = errors.New("submit control not found")
	ErrSubmitRejected    = errors.New("form rejected the submission")
	ErrSessionClosed     = errors.New("browser session is closed")
	ErrElementNotFound   = errors.New("element not found")
	ErrQuotaExceeded     = errors.New("daily response quota exceeded")
	ErrInvalidFormURL    = errors.New("not a published form URL")
)
