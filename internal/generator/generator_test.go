// File: internal/generator/generator_test.go
package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/mocks"
)

func sampleQuestions() []schemas.QuestionDescriptor {
	return []schemas.QuestionDescriptor{
		{Question: "Name", Type: schemas.QuestionText, Identifier: "Name", Required: true},
		{Question: "Satisfaction", Type: schemas.QuestionLinearScale, Identifier: "Satisfaction",
			Options: &schemas.Options{Values: []string{"1", "2", "3", "4", "5"}, Labels: &schemas.ScaleLabels{Start: "Low", End: "High"}}},
		{Question: "Channel", Type: schemas.QuestionMultipleChoice, Identifier: "Channel",
			Options: &schemas.Options{Values: []string{"Friend", "Online"}}},
	}
}

func newTestGenerator(t *testing.T, llm schemas.LLMClient) (*Generator, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	g, err := New(llm, 0.7, zap.New(core))
	require.NoError(t, err)
	return g, logs
}

func TestVariation(t *testing.T) {
	assert.Equal(t, "Persona Variation 1: Focus on practical aspects.", Variation(0))
	assert.Equal(t, "Persona Variation 6: Consider the perspective of an experienced user.", Variation(5))
	assert.Equal(t, "Persona Variation 7: Focus on practical aspects.", Variation(6))
	assert.Equal(t, "Persona Variation 14: Emphasize cost-consciousness.", Variation(13))
}

func TestBuildPrompt(t *testing.T) {
	g, _ := newTestGenerator(t, new(mocks.MockLLMClient))
	req, err := g.BuildPrompt(sampleQuestions(), "A student aged 18-24 from Canada", 2)
	require.NoError(t, err)

	assert.Equal(t, systemPrompt, req.SystemPrompt)
	assert.Contains(t, req.UserPrompt, "Your target audience is: A student aged 18-24 from Canada.")
	assert.Contains(t, req.UserPrompt, "Persona Variation 3: Be slightly more enthusiastic.")
	assert.Contains(t, req.UserPrompt, `"identifier": "Satisfaction"`)
	assert.Contains(t, req.UserPrompt, `"labels": {`)
	assert.Contains(t, req.UserPrompt, `"Friend",`)
	assert.NotContains(t, req.UserPrompt, "file_upload\" type")
	assert.Equal(t, float32(0.7), req.Options.Temperature)
	assert.True(t, req.Options.ForceJSONFormat)

	withUpload := append(sampleQuestions(), schemas.QuestionDescriptor{Question: "CV", Type: schemas.QuestionFileUpload, Identifier: "CV"})
	req, err = g.BuildPrompt(withUpload, "p", 0)
	require.NoError(t, err)
	assert.Contains(t, req.UserPrompt, `For "file_upload" type`)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("fenced reply is parsed and repaired", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		reply := "```json\n{\"Name\": \"Ada\", \"Satisfaction\": \"High\", \"Channel\": \"Friend\", \"Bonus\": 1}\n```"
		llm.On("Generate", mock.Anything, mock.AnythingOfType("schemas.GenerationRequest")).Return(reply, nil).Once()
		g, logs := newTestGenerator(t, llm)

		answers, err := g.Generate(ctx, sampleQuestions(), "persona", 0)
		require.NoError(t, err)
		assert.Equal(t, "Ada", answers["Name"].String())
		assert.Equal(t, "3", answers["Satisfaction"].String())
		assert.Equal(t, 1, logs.FilterMessage("Model response included unexpected identifiers").Len())
		assert.Equal(t, 1, logs.FilterMessage("Non-numeric value for linear scale question").Len())
		llm.AssertExpectations(t)
	})

	t.Run("missing keys are tolerated", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(`Sure! {"Name": "Ada"}`, nil)
		g, logs := newTestGenerator(t, llm)

		answers, err := g.Generate(ctx, sampleQuestions(), "persona", 1)
		require.NoError(t, err)
		assert.Len(t, answers, 1)
		entries := logs.FilterMessage("Model response missing answers").All()
		require.Len(t, entries, 1)
	})

	t.Run("model error is a generation failure", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("429 quota"))
		g, _ := newTestGenerator(t, llm)

		_, err := g.Generate(ctx, sampleQuestions(), "persona", 0)
		assert.ErrorIs(t, err, schemas.ErrGeneration)
	})

	t.Run("non-object reply is a generation failure", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		llm.On("Generate", mock.Anything, mock.Anything).Return(`["Ada"]`, nil)
		g, _ := newTestGenerator(t, llm)

		_, err := g.Generate(ctx, sampleQuestions(), "persona", 0)
		assert.ErrorIs(t, err, schemas.ErrGeneration)
	})

	t.Run("empty structure is rejected before calling the model", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		g, _ := newTestGenerator(t, llm)

		_, err := g.Generate(ctx, nil, "persona", 0)
		assert.ErrorIs(t, err, schemas.ErrGeneration)
		llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("cancellation stays visible", func(t *testing.T) {
		llm := new(mocks.MockLLMClient)
		g, _ := newTestGenerator(t, llm)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := g.Generate(cctx, sampleQuestions(), "persona", 0)
		assert.ErrorIs(t, err, schemas.ErrGeneration)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
