package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func TestNewLLMRouter_RequiresPrimary(t *testing.T) {
	logger, _ := setupTestLogger(t)
	router, err := NewLLMRouter(logger, nil, new(MockLLMClient))
	assert.Error(t, err)
	assert.Nil(t, router)
}

func TestLLMRouter_Generate(t *testing.T) {
	req := schemas.GenerationRequest{UserPrompt: "hello"}

	t.Run("primary success skips fallback", func(t *testing.T) {
		logger, _ := setupTestLogger(t)
		primary := &MockLLMClient{Name: "primary"}
		fallback := &MockLLMClient{Name: "fallback"}
		primary.On("Generate", mock.Anything, req).Return("primary-out", nil).Once()

		router, err := NewLLMRouter(logger, primary, fallback)
		require.NoError(t, err)

		out, err := router.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "primary-out", out)
		fallback.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("primary failure routes to fallback", func(t *testing.T) {
		logger, logs := setupTestLogger(t)
		primary := &MockLLMClient{Name: "primary"}
		fallback := &MockLLMClient{Name: "fallback"}
		primary.On("Generate", mock.Anything, req).Return("", errors.New("quota")).Once()
		fallback.On("Generate", mock.Anything, req).Return("fallback-out", nil).Once()

		router, err := NewLLMRouter(logger, primary, fallback)
		require.NoError(t, err)

		out, err := router.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "fallback-out", out)
		assert.Equal(t, 1, logs.FilterMessage("Primary LLM failed, routing to fallback").Len())
	})

	t.Run("both failing reports both", func(t *testing.T) {
		logger, _ := setupTestLogger(t)
		primary := &MockLLMClient{}
		fallback := &MockLLMClient{}
		fbErr := errors.New("fallback down")
		primary.On("Generate", mock.Anything, req).Return("", errors.New("primary down"))
		fallback.On("Generate", mock.Anything, req).Return("", fbErr)

		router, _ := NewLLMRouter(logger, primary, fallback)
		_, err := router.Generate(context.Background(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, fbErr)
		assert.Contains(t, err.Error(), "primary down")
	})

	t.Run("cancellation is not retried", func(t *testing.T) {
		logger, _ := setupTestLogger(t)
		primary := &MockLLMClient{}
		fallback := &MockLLMClient{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary.On("Generate", mock.Anything, req).Return("", context.Canceled)

		router, _ := NewLLMRouter(logger, primary, fallback)
		_, err := router.Generate(ctx, req)
		assert.ErrorIs(t, err, context.Canceled)
		fallback.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}
