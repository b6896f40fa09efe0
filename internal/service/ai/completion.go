package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

const (
	DefaultCompletionURL = "https://api.openai.com/v1/chat/completions"
	DefaultHTTPModel     = "gpt-4o-mini"
	DefaultTimeout       = 60 * time.Second
	DefaultMaxTokens     = 1024
)

// ErrEmptyCompletion is wrapped when the endpoint answers without any content.
var ErrEmptyCompletion = errors.New("empty completion")

// CompletionRequest is one non-streaming completion call.
type CompletionRequest struct {
	Messages    []*schema.Message
	Temperature float64
}

func (r CompletionRequest) temperature() float64 {
	if r.Temperature <= 0 {
		return persona.DefaultTemperature
	}
	return r.Temperature
}

// Completer sends a prompt to a chat-completion backend and returns the assistant text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// UpstreamError reports any failure talking to the completion backend. StatusCode is 0
// when no HTTP response was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// HTTPConfig configures an OpenAI-compatible endpoint.
type HTTPConfig struct {
	URL       string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// HTTPCompleter posts chat-completion requests over plain HTTP. It never retries.
type HTTPCompleter struct {
	url       string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewHTTPCompleter(cfg HTTPConfig, metrics *observability.Metrics, logger *zap.Logger) *HTTPCompleter {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultCompletionURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = DefaultHTTPModel
	}
	return &HTTPCompleter{
		url:       url,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
		metrics:   metrics,
		logger:    observability.Named(logger, "completion"),
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionBody struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HTTPCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, req)
	c.metrics.ObserveCompletion(ProviderOpenAI, time.Since(start), err)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			c.metrics.IncUpstreamError(ProviderOpenAI, statusLabel(upstream.StatusCode))
		}
		c.logger.Warn("completion failed", zap.Error(err))
		return "", err
	}
	return text, nil
}

func (c *HTTPCompleter) complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := completionBody{
		Model:       c.model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.temperature(),
		MaxTokens:   c.maxTokens,
	}
	for _, m := range req.Messages {
		if m == nil {
			continue
		}
		body.Messages = append(body.Messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Provider: ProviderOpenAI, Err: fmt.Errorf("send request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &UpstreamError{
			Provider:   ProviderOpenAI,
			StatusCode: res.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(detail))),
		}
	}

	var decoded completionResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", &UpstreamError{Provider: ProviderOpenAI, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", &UpstreamError{Provider: ProviderOpenAI, StatusCode: res.StatusCode, Err: ErrEmptyCompletion}
	}
	return decoded.Choices[0].Message.Content, nil
}

func statusLabel(code int) string {
	if code == 0 {
		return "transport"
	}
	return strconv.Itoa(code)
}
