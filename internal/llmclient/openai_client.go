// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// OpenAIClient implements schemas.LLMClient against the Chat Completions API
// or any compatible endpoint.
type OpenAIClient struct {
	client openai.Client
	logger *zap.Logger
	config config.LLMModelConfig
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or llm.api_key)")
	}

	// Retries are handled by backoff below.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.APITimeout))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Generate sends the prompts and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	params := c.buildParams(req)

	var responseContent string
	operation := func() error {
		startTime := time.Now()
		resp, err := c.client.Chat.Completions.New(ctx, params)
		duration := time.Since(startTime)
		if err != nil {
			return c.classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai API returned no choices"))
		}
		content := resp.Choices[0].Message.Content
		if content == "" {
			return fmt.Errorf("openai API returned empty content (Reason: %s)", resp.Choices[0].FinishReason)
		}

		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", duration),
			zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
			zap.Int64("total_tokens", resp.Usage.TotalTokens),
		)
		responseContent = content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (c *OpenAIClient) buildParams(req schemas.GenerationRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.config.Model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Options.Temperature)),
	}
	if c.config.TopP > 0 {
		params.TopP = openai.Float(float64(c.config.TopP))
	}
	if c.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.config.MaxTokens))
	}
	return params
}

func (c *OpenAIClient) classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		c.logger.Error("OpenAI API returned error status", zap.Int("status", apiErr.StatusCode), zap.Error(err))
		if isTransientStatus(apiErr.StatusCode) {
			return err
		}
		return backoff.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return err
}
