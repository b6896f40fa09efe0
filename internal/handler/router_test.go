package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mentor/backend/internal/handler/handlertest"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	f := handlertest.New("Keep going.")
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("mentor_test", reg)
	metrics.IncIntent("parsed")

	return NewRouter(Deps{
		Personas:       f.Personas,
		Chat:           f.Chat,
		Planner:        f.Planner,
		Profiles:       f.Profiles,
		Gatherer:       reg,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mentor_test_intents_total{result="parsed"} 1`)
}

func TestRouterMountsAPI(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/personas", "/api/tasks", "/api/profile"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/abc/messages", strings.NewReader(`{"content":"hello mentor"}`))
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker([]string{"*"}))

	check := originChecker([]string{"https://app.example.com"})
	assert.True(t, check("https://app.example.com"))
	assert.False(t, check("https://other.example.com"))
}
