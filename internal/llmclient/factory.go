// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// NewModelClient creates the client for a single model configuration.
func NewModelClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch config.LLMProvider(strings.ToLower(string(cfg.Provider))) {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}

// NewClient builds the answer model client for the application config. When
// a fallback model is configured the result is an LLMRouter.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.LLMClient, error) {
	primary, err := NewModelClient(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize primary LLM client: %w", err)
	}
	if cfg.LLMFallback.Provider == "" {
		return primary, nil
	}

	fallback, err := NewModelClient(ctx, cfg.LLMFallback, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fallback LLM client: %w", err)
	}
	return NewLLMRouter(logger, primary, fallback)
}
