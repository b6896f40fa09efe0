package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mentor/backend/internal/config"
	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
)

func TestNewWiresInMemoryDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.AI.APIKey = "test"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, ok := a.Completer.(*ai.HTTPCompleter)
	assert.True(t, ok, "openai provider should use the HTTP completer")

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/personas", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewRejectsGeminiWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Provider = "gemini"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestProviderConfigMapping(t *testing.T) {
	got := ProviderConfig(config.AIConfig{
		Provider:  "ark",
		APIKey:    "k",
		Model:     "ep-123",
		Region:    "cn-beijing",
		MaxTokens: 512,
	})

	assert.Equal(t, "ark", got.Provider)
	assert.Equal(t, "ep-123", got.Ark.Model)
	assert.Equal(t, "cn-beijing", got.Ark.Region)
	assert.True(t, got.Ark.Enabled())
	assert.Equal(t, 512, got.Gemini.MaxTokens)
}
