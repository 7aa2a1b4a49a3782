// File: internal/formparse/extractor_test.go
package formparse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/formpilot/internal/config"
)

const testFormURL = "https://docs.google.com/forms/d/e/abc/viewform"

func newTestExtractor(t *testing.T, cfg config.FormConfig) (*Extractor, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = time.Second
	}
	return NewExtractor(cfg, zap.New(core)), logs
}

func TestExtractor_Extract(t *testing.T) {
	ex, logs := newTestExtractor(t, config.FormConfig{})
	page := browsertest.NewPage(loadFixture(t, "all_types.html"))

	questions, err := ex.Extract(context.Background(), page, testFormURL)
	require.NoError(t, err)
	assert.Len(t, questions, 12)
	assert.Equal(t, testFormURL, page.URL())
	assert.Equal(t, 1, logs.FilterMessage("Skipped item, could not determine input type").Len())
	assert.Equal(t, 12, logs.FilterMessage("Question").Len())

	for _, q := range questions {
		key, n := q.LocatorKey()
		assert.Equal(t, q.Identifier, key)
		assert.Equal(t, 1, n)
	}
}

func TestExtractor_NavigationTimeout(t *testing.T) {
	ex, _ := newTestExtractor(t, config.FormConfig{})
	page := browsertest.NewPage(`<html><body><p>Sign in to continue</p></body></html>`)

	_, err := ex.Extract(context.Background(), page, testFormURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrNavigationTimeout)
}

func TestExtractor_NavigateError(t *testing.T) {
	ex, _ := newTestExtractor(t, config.FormConfig{})
	boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
	page := browsertest.NewPage(loadFixture(t, "all_types.html")).FailOn("Navigate", "", boom, 0)

	_, err := ex.Extract(context.Background(), page, testFormURL)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, schemas.ErrNavigationTimeout)
}

func TestExtractor_NavigateDeadline(t *testing.T) {
	ex, _ := newTestExtractor(t, config.FormConfig{})
	page := browsertest.NewPage(loadFixture(t, "all_types.html")).
		FailOn("Navigate", "", fmt.Errorf("page load: %w", context.DeadlineExceeded), 1)

	_, err := ex.Extract(context.Background(), page, testFormURL)
	assert.ErrorIs(t, err, schemas.ErrNavigationTimeout)
	assert.Equal(t, schemas.OutcomeNavigationTimeout, schemas.OutcomeFor(err))
}

func TestExtractor_GridScriptFallback(t *testing.T) {
	markup := `<html><body><form action="/formResponse">
<div role="listitem"><div role="heading">Matrix</div><div role="grid"><div role="radio"></div></div></div>
<div role="listitem"><div role="heading">Other matrix</div><div role="grid"><div role="radio"></div></div></div>
</form></body></html>`

	t.Run("script results replace empty captions", func(t *testing.T) {
		ex, _ := newTestExtractor(t, config.FormConfig{})
		page := browsertest.NewPage(markup).OnEvaluate("GridRowHeader", func(*browsertest.Page) (any, error) {
			return map[string][]string{"rows": {"A", "B"}, "columns": {"Yes", "No"}}, nil
		})
		questions, err := ex.Extract(context.Background(), page, testFormURL)
		require.NoError(t, err)
		require.Len(t, questions, 2)
		assert.Equal(t, []string{"A", "B"}, questions[0].Options.Rows)
		assert.Equal(t, []string{"Yes", "No"}, questions[0].Options.Columns)
		assert.False(t, questions[0].NeedsGridScript)

		evals := page.CallsTo("Evaluate")
		require.Len(t, evals, 2)
		assert.Contains(t, evals[0].Selector, `(//div[@role=\"listitem\"])[1]`)
		assert.Contains(t, evals[1].Selector, `(//div[@role=\"listitem\"])[2]`)
	})

	t.Run("script errors are logged and tolerated", func(t *testing.T) {
		ex, logs := newTestExtractor(t, config.FormConfig{})
		page := browsertest.NewPage(markup).OnEvaluate("GridRowHeader", func(*browsertest.Page) (any, error) {
			return nil, errors.New("evaluation failed")
		})
		questions, err := ex.Extract(context.Background(), page, testFormURL)
		require.NoError(t, err)
		require.Len(t, questions, 2)
		assert.True(t, questions[0].NeedsGridScript)
		assert.Equal(t, 2, logs.FilterMessage("Error extracting grid via script").Len())
	})
}

func TestExtractor_LiveFallback(t *testing.T) {
	ex, _ := newTestExtractor(t, config.FormConfig{})
	page := browsertest.NewPage(`<html><body><form action="/formResponse"><p>rendered later</p></form></body></html>`).
		OnEvaluate("freebirdFormviewerComponentsQuestionBaseRoot", func(*browsertest.Page) (any, error) {
			return []map[string]any{
				{"question": "Name", "type": "text", "options": []string{}, "identifier": "Name", "required": true},
				{"question": "Mood", "type": "multiple_choice", "options": []string{"Good", "Bad"}, "identifier": "Mood"},
				{"question": "Weird", "type": "hologram", "options": []string{}, "identifier": "Weird"},
			}, nil
		})

	questions, err := ex.Extract(context.Background(), page, testFormURL)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Nil(t, questions[0].Options)
	assert.True(t, questions[0].Required)
	assert.Equal(t, []string{"Good", "Bad"}, questions[1].Values())
}

func TestExtractor_EmptyFormIsNotAnError(t *testing.T) {
	ex, logs := newTestExtractor(t, config.FormConfig{})
	page := browsertest.NewPage(`<html><body><form action="/formResponse"></form></body></html>`)

	questions, err := ex.Extract(context.Background(), page, testFormURL)
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.Equal(t, 1, logs.FilterMessage("No questions in static snapshot, trying live page").Len())
}

func TestExtractor_Dedupe(t *testing.T) {
	ex, logs := newTestExtractor(t, config.FormConfig{})
	in := []schemas.QuestionDescriptor{
		{Identifier: "Age"},
		{Identifier: "Age"},
		{Identifier: "Age (2)"},
		{Identifier: "Age"},
	}
	out := ex.dedupe(in)

	ids := make([]string, len(out))
	for i, q := range out {
		ids[i] = q.Identifier
	}
	assert.Equal(t, []string{"Age", "Age (3)", "Age (2)", "Age (4)"}, ids)

	key, n := out[3].LocatorKey()
	assert.Equal(t, "Age", key)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, logs.FilterMessage("Duplicate question identifier renamed").Len())
}

func TestExtractor_SnapshotDump(t *testing.T) {
	dir := t.TempDir()
	ex, _ := newTestExtractor(t, config.FormConfig{SnapshotDir: dir})
	page := browsertest.NewPage(loadFixture(t, "all_types.html"))

	_, err := ex.Extract(context.Background(), page, testFormURL)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "form-*.html.br"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()
	var sb strings.Builder
	_, err = io.Copy(&sb, brotli.NewReader(f))
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "Which products do you use?")
}

func TestExtractor_Cancelled(t *testing.T) {
	ex, _ := newTestExtractor(t, config.FormConfig{SettleDelay: time.Hour})
	page := browsertest.NewPage(loadFixture(t, "all_types.html"))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := ex.Extract(ctx, page, testFormURL)
	assert.ErrorIs(t, err, context.Canceled)
}
