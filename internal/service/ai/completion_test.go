package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestHTTPCompleterSuccess(t *testing.T) {
	var (
		got  capturedRequest
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Stay focused."}}]}`))
	}))
	defer srv.Close()

	c := ai.NewHTTPCompleter(ai.HTTPConfig{URL: srv.URL, APIKey: "secret", Model: "gpt-test", MaxTokens: 256}, nil, nil)
	text, err := c.Complete(context.Background(), ai.CompletionRequest{
		Messages: []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("hello")},
	})

	require.NoError(t, err)
	assert.Equal(t, "Stay focused.", text)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
}

func TestHTTPCompleterFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, wantStatus: 500},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `slow down`, wantStatus: 429},
		{name: "undecodable body", status: http.StatusOK, body: `not json`, wantStatus: 200},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantStatus: 200},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`, wantStatus: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			reg := prometheus.NewRegistry()
			metrics := observability.NewMetrics("test", reg)
			c := ai.NewHTTPCompleter(ai.HTTPConfig{URL: srv.URL}, metrics, nil)

			_, err := c.Complete(context.Background(), ai.CompletionRequest{Messages: []*schema.Message{schema.UserMessage("x")}})
			var upstream *ai.UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, tt.wantStatus, upstream.StatusCode)
			assert.Equal(t, ai.ProviderOpenAI, upstream.Provider)
			assert.Equal(t, 1, calls, "completer must not retry")
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Completions.WithLabelValues(ai.ProviderOpenAI, "error")))
		})
	}
}

func TestHTTPCompleterTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := ai.NewHTTPCompleter(ai.HTTPConfig{URL: url, Timeout: time.Second}, nil, nil)
	_, err := c.Complete(context.Background(), ai.CompletionRequest{})

	var upstream *ai.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Zero(t, upstream.StatusCode)
}

func TestHTTPCompleterUsesPersonaTemperature(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := ai.NewHTTPCompleter(ai.HTTPConfig{URL: srv.URL}, nil, nil)
	_, err := c.Complete(context.Background(), ai.CompletionRequest{Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, ai.DefaultMaxTokens, got.MaxTokens)
}

func TestNewCompleterUnknownProvider(t *testing.T) {
	_, err := ai.NewCompleter(context.Background(), ai.ProviderConfig{Provider: "llama"}, nil, nil)
	assert.Error(t, err)

	c, err := ai.NewCompleter(context.Background(), ai.ProviderConfig{}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &ai.HTTPCompleter{}, c)

	_, err = ai.NewCompleter(context.Background(), ai.ProviderConfig{Provider: "ark"}, nil, nil)
	assert.Error(t, err, "ark without credentials must fail")

	_, err = ai.NewCompleter(context.Background(), ai.ProviderConfig{Provider: "gemini"}, nil, nil)
	assert.Error(t, err, "gemini without key must fail")
}
