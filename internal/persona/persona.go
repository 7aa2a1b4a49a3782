// File: internal/persona/persona.go
package persona

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// ErrInvalidProfile is wrapped by every validation failure.
var ErrInvalidProfile = errors.New("invalid persona")

// Vocabulary lists the demographic values a profile may draw from.
type Vocabulary struct {
	AgeGroups []string
	Genders   []string
	Countries []string
}

// DefaultVocabulary returns the built-in value lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		AgeGroups: []string{"Under 18", "18-24", "25-34", "35-44", "45-54", "55-64", "65+"},
		Genders:   []string{"Male", "Female", "Non-binary/third gender", "Prefer not to say"},
		Countries: []string{
			"United States", "Canada", "United Kingdom", "Australia",
			"India", "Germany", "France", "Japan", "China",
			"Brazil", "Mexico", "South Africa", "Other",
		},
	}
}

// VocabularyFrom applies the configured overrides to the defaults.
func VocabularyFrom(cfg config.PersonaConfig) Vocabulary {
	v := DefaultVocabulary()
	if len(cfg.AgeGroups) > 0 {
		v.AgeGroups = cfg.AgeGroups
	}
	if len(cfg.Genders) > 0 {
		v.Genders = cfg.Genders
	}
	if len(cfg.Countries) > 0 {
		v.Countries = cfg.Countries
	}
	return v
}

// Profile is the operator's description of who the responses should come from.
type Profile struct {
	AgeGroups []string
	Genders   []string
	Countries []string
	Audience  string
	Objective string
}

// String renders the persona sentence handed to the answer model.
func (p Profile) String() string {
	return fmt.Sprintf("A %s aged %s from %s. %s %s",
		strings.Join(p.Genders, ", "),
		strings.Join(p.AgeGroups, ", "),
		strings.Join(p.Countries, ", "),
		strings.TrimSpace(p.Audience),
		strings.TrimSpace(p.Objective))
}

// Normalize checks p against the vocabulary and returns a copy whose values
// use the vocabulary's spelling. Matching ignores case and surrounding space.
func (v Vocabulary) Normalize(p Profile) (Profile, error) {
	var errs []error
	out := Profile{Audience: strings.TrimSpace(p.Audience), Objective: strings.TrimSpace(p.Objective)}

	var err error
	if out.AgeGroups, err = canonical("age group", p.AgeGroups, v.AgeGroups); err != nil {
		errs = append(errs, err)
	}
	if out.Genders, err = canonical("gender", p.Genders, v.Genders); err != nil {
		errs = append(errs, err)
	}
	if out.Countries, err = canonical("country", p.Countries, v.Countries); err != nil {
		errs = append(errs, err)
	}
	if out.Audience == "" {
		errs = append(errs, errors.New("the target audience must be described"))
	}
	if out.Objective == "" {
		errs = append(errs, errors.New("the form objective must be described"))
	}
	if len(errs) > 0 {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
	}
	return out, nil
}

// Build validates p and renders it.
func (v Vocabulary) Build(p Profile) (string, error) {
	norm, err := v.Normalize(p)
	if err != nil {
		return "", err
	}
	return norm.String(), nil
}

func canonical(field string, values, allowed []string) ([]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("select at least one %s", field)
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool)
	for _, raw := range values {
		want := strings.TrimSpace(raw)
		match := ""
		for _, a := range allowed {
			if strings.EqualFold(a, want) {
				match = a
				break
			}
		}
		if match == "" {
			return nil, fmt.Errorf("unknown %s %q (allowed: %s)", field, raw, strings.Join(allowed, ", "))
		}
		if !seen[match] {
			seen[match] = true
			out = append(out, match)
		}
	}
	return out, nil
}
