package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/observability"
)

// ProviderConfig selects and configures one completion backend.
type ProviderConfig struct {
	Provider string
	HTTP     HTTPConfig
	Ark      ArkConfig
	Gemini   GeminiConfig
}

// NewCompleter builds the completer named by cfg.Provider. An empty provider means openai.
func NewCompleter(ctx context.Context, cfg ProviderConfig, metrics *observability.Metrics, logger *zap.Logger) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewHTTPCompleter(cfg.HTTP, metrics, logger), nil
	case ProviderArk:
		chatModel, err := NewArkChatModel(ctx, cfg.Ark)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChatModelCompleter(chatModel, ProviderArk, cfg.Ark.MaxTokens, metrics, logger), nil
	case ProviderGemini:
		c, err := NewGeminiCompleter(ctx, cfg.Gemini, metrics, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
