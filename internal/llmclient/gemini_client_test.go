package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

const geminiOK = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "{\"Name\": \"Ada\"}"}]},
    "finishReason": "STOP"
  }],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17}
}`

// newGeminiTestServer serves generateContent calls with the supplied handler
// and returns a client pointed at it.
func newGeminiTestServer(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := getValidLLMConfig()
	cfg.Endpoint = server.URL + "/"
	logger, _ := setupTestLogger(t)

	client, err := NewGeminiClient(context.Background(), cfg, logger)
	require.NoError(t, err)
	return client
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	cfg := getValidLLMConfig()
	cfg.APIKey = ""
	logger, _ := setupTestLogger(t)

	client, err := NewGeminiClient(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "API Key is required")
}

func TestGeminiClient_Generate(t *testing.T) {
	t.Run("returns candidate text and sends prompts", func(t *testing.T) {
		var body string
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "test-model:generateContent"), r.URL.Path)
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, geminiOK)
		})

		out, err := client.Generate(context.Background(), schemas.GenerationRequest{
			SystemPrompt: "system rules",
			UserPrompt:   "fill this form",
			Options:      schemas.GenerationOptions{Temperature: 0.4, ForceJSONFormat: true},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"Name": "Ada"}`, out)
		assert.Contains(t, body, "fill this form")
		assert.Contains(t, body, "system rules")
		assert.Contains(t, body, "application/json")
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		shortRetries(t)
		var calls int32
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": {"code": 400, "message": "bad prompt", "status": "INVALID_ARGUMENT"}}`)
		})

		_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("throttling is retried", func(t *testing.T) {
		shortRetries(t)
		var calls int32
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"error": {"code": 429, "message": "slow down", "status": "RESOURCE_EXHAUSTED"}}`)
				return
			}
			_, _ = io.WriteString(w, geminiOK)
		})

		out, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.NoError(t, err)
		assert.Contains(t, out, "Ada")
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("safety block is permanent", func(t *testing.T) {
		shortRetries(t)
		var calls int32
		client := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": []}, "finishReason": "SAFETY"}]}`)
		})

		_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SAFETY")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestGeminiClient_BuildConfig(t *testing.T) {
	cfg := getValidLLMConfig()
	cfg.MaxTokens = 2048
	cfg.SafetyFilters = map[string]string{"HARM_CATEGORY_HARASSMENT": "BLOCK_NONE"}
	logger, _ := setupTestLogger(t)
	client, err := NewGeminiClient(context.Background(), cfg, logger)
	require.NoError(t, err)

	genCfg := client.buildConfig(schemas.GenerationRequest{SystemPrompt: "s", Options: schemas.GenerationOptions{Temperature: 0.9}})
	require.NotNil(t, genCfg.Temperature)
	assert.InDelta(t, 0.9, *genCfg.Temperature, 1e-6)
	require.NotNil(t, genCfg.TopK)
	assert.Equal(t, float32(50), *genCfg.TopK)
	assert.Equal(t, int32(2048), genCfg.MaxOutputTokens)
	assert.Empty(t, genCfg.ResponseMIMEType)
	require.Len(t, genCfg.SafetySettings, 1)
	assert.Equal(t, "BLOCK_NONE", string(genCfg.SafetySettings[0].Threshold))
	require.NotNil(t, genCfg.SystemInstruction)
	assert.Equal(t, "s", genCfg.SystemInstruction.Parts[0].Text)
}
