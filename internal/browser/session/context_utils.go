// internal/browser/session/context_utils.go
package session

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of primary and is
// cancelled when either primary or secondary is done. chromedp keeps its target
// handle in context values, so primary must be the tab context.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

type detachedContext struct {
	context.Context
}

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}       { return nil }
func (detachedContext) Err() error                  { return nil }

// Detach keeps the values of ctx but drops its deadline and cancellation.
// Bookkeeping that must finish after an interrupt (usage records, shutdown
// logging) runs on a detached context with its own timeout.
func Detach(ctx context.Context) context.Context {
	return detachedContext{ctx}
}
