package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-mentor/backend/internal/observability"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini API backend.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// GeminiCompleter implements Completer with google.golang.org/genai.
type GeminiCompleter struct {
	client    *genai.Client
	model     string
	maxTokens int
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig, metrics *observability.Metrics, logger *zap.Logger) (*GeminiCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini API key is required")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiCompleter{
		client:    client,
		model:     modelName,
		maxTokens: cfg.MaxTokens,
		metrics:   metrics,
		logger:    observability.Named(logger, "completion"),
	}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	system, contents := geminiContents(req.Messages)

	temp := float32(req.temperature())
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxTokens)
	}

	start := time.Now()
	text, err := c.generate(ctx, contents, cfg)
	c.metrics.ObserveCompletion(ProviderGemini, time.Since(start), err)
	if err != nil {
		c.metrics.IncUpstreamError(ProviderGemini, "generate")
		c.logger.Warn("completion failed", zap.Error(err))
		return "", &UpstreamError{Provider: ProviderGemini, Err: err}
	}
	return text, nil
}

func (c *GeminiCompleter) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// geminiContents folds system messages into one instruction and maps the rest onto
// user/model turns.
func geminiContents(messages []*schema.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			system = append(system, m.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
