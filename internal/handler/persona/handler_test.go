package persona

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	personaModel "github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	personaService "github.com/zhouzirui/z-mentor/backend/internal/service/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := personaService.NewService(kv.NewMemoryStore(), kv.NewKeyLocker(), nil)
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListPersonasReturnsBuiltins(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/personas", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []personaModel.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, len(personaModel.Seed()))
	assert.Equal(t, personaModel.DefaultID, got[0].ID)
}

func TestSaveAndDeleteCustomPersona(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/personas", `{"name":"  Stoic  ","approach":"Focus on what you control."}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved personaModel.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "Stoic", saved.Name)
	assert.True(t, saved.IsCustom)

	rec = do(t, h, http.MethodGet, "/personas/"+saved.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/personas/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/personas/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSavePersonaRequiresName(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/personas", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/personas", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBuiltinPersonaIsForbidden(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodDelete, "/personas/"+personaModel.DefaultID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), personaModel.DefaultID)
}
