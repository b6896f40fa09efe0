package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/observability"
)

// ArkConfig 描述火山方舟模型配置。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	MaxTokens int
	Timeout   time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewArkChatModel 使用配置创建一个模型实例。
func NewArkChatModel(ctx context.Context, c ArkConfig) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: provide AI_API_KEY + AI_MODEL or an AK/SK pair")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}
	if c.MaxTokens > 0 {
		maxTokens := c.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	if c.Timeout > 0 {
		timeout := c.Timeout
		cfg.Timeout = &timeout
	}

	return ark.NewChatModel(ctx, cfg)
}

// ChatModelCompleter adapts an eino chat model to Completer.
type ChatModelCompleter struct {
	chatModel model.BaseChatModel
	provider  string
	maxTokens int
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewChatModelCompleter(chatModel model.BaseChatModel, provider string, maxTokens int, metrics *observability.Metrics, logger *zap.Logger) *ChatModelCompleter {
	if provider == "" {
		provider = ProviderArk
	}
	return &ChatModelCompleter{
		chatModel: chatModel,
		provider:  provider,
		maxTokens: maxTokens,
		metrics:   metrics,
		logger:    observability.Named(logger, "completion"),
	}
}

func (c *ChatModelCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	opts := []model.Option{model.WithTemperature(float32(req.temperature()))}
	if c.maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.chatModel.Generate(ctx, req.Messages, opts...)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = ErrEmptyCompletion
	}
	c.metrics.ObserveCompletion(c.provider, time.Since(start), err)
	if err != nil {
		c.metrics.IncUpstreamError(c.provider, "generate")
		c.logger.Warn("completion failed", zap.String("provider", c.provider), zap.Error(err))
		return "", &UpstreamError{Provider: c.provider, Err: fmt.Errorf("generate: %w", err)}
	}
	return resp.Content, nil
}
