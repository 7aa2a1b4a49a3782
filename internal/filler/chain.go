// File: internal/filler/chain.go
package filler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errNotApplicable marks a strategy that declined to act, for instance a
// data-value lookup on a control without data values.
var errNotApplicable = errors.New("strategy not applicable")

// Strategy is one way of entering an answer.
type Strategy struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Chain is an ordered list of strategies. The first one to succeed wins.
type Chain []Strategy

// Run executes strategies in order and returns the name of the winner. A
// cancelled context ends the chain immediately. When every strategy fails the
// individual errors are joined.
func (c Chain) Run(ctx context.Context) (string, error) {
	var errs []error
	for _, s := range c {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := s.Fn(ctx)
		if err == nil {
			return s.Name, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	if len(errs) == 0 {
		return "", errNotApplicable
	}
	return "", errors.Join(errs...)
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
