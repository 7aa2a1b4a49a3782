package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// LLMRouter implements schemas.LLMClient by sending each request to the
// primary client and, if that fails, to the fallback client.
type LLMRouter struct {
	logger   *zap.Logger
	primary  schemas.LLMClient
	fallback schemas.LLMClient
}

// NewLLMRouter creates a router. The fallback may be nil.
func NewLLMRouter(logger *zap.Logger, primary, fallback schemas.LLMClient) (*LLMRouter, error) {
	if primary == nil {
		return nil, fmt.Errorf("a primary LLM client must be provided")
	}
	return &LLMRouter{
		logger:   logger.Named("llm_router"),
		primary:  primary,
		fallback: fallback,
	}, nil
}

// Generate tries the primary client, then the fallback. Cancellation is
// never retried on the fallback.
func (r *LLMRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	out, err := r.primary.Generate(ctx, req)
	if err == nil {
		return out, nil
	}
	if r.fallback == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return "", err
	}

	r.logger.Warn("Primary LLM failed, routing to fallback", zap.Error(err))
	out, fbErr := r.fallback.Generate(ctx, req)
	if fbErr != nil {
		return "", fmt.Errorf("primary failed (%v) and fallback failed: %w", err, fbErr)
	}
	return out, nil
}
