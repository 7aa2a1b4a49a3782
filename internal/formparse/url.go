// File: internal/formparse/url.go
package formparse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var publishedFormPattern = regexp.MustCompile(`^https://docs\.google\.com/forms/d/e/[^/]+/viewform`)

// URLPolicy decides which form addresses a run may target.
type URLPolicy struct {
	allowed []glob.Glob
}

// NewURLPolicy compiles the allow-list. An empty list allows any published
// Google Form.
func NewURLPolicy(patterns []string) (*URLPolicy, error) {
	p := &URLPolicy{}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed form URL pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}
	return p, nil
}

// Check returns ErrInvalidFormURL unless raw is a published form URL
// matching at least one allow-list pattern.
func (p *URLPolicy) Check(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: %q", schemas.ErrInvalidFormURL, raw)
	}
	if !publishedFormPattern.MatchString(u.String()) {
		return fmt.Errorf("%w: %q does not look like a published Google Form", schemas.ErrInvalidFormURL, raw)
	}
	if len(p.allowed) == 0 {
		return nil
	}
	for _, g := range p.allowed {
		if g.Match(u.String()) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not in the allowed URL list", schemas.ErrInvalidFormURL, raw)
}
