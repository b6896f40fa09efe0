package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mentor/backend/internal/handler/handlertest"
	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
	plannerModel "github.com/zhouzirui/z-mentor/backend/internal/model/planner"
	profileModel "github.com/zhouzirui/z-mentor/backend/internal/model/profile"
)

func setup(t *testing.T) (http.Handler, *handlertest.Fixture) {
	t.Helper()
	f := handlertest.New("")
	r := chi.NewRouter()
	New(f.Planner, f.Profiles, nil).RegisterRoutes(r)
	return r, f
}

func get(t *testing.T, h http.Handler, path string, out any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestEmptyCollectionsAreArrays(t *testing.T) {
	h, _ := setup(t)

	for _, path := range []string{"/tasks", "/goals", "/habits", "/reflections", "/metrics/entries"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}
}

func TestProfileDefaultsToNeutral(t *testing.T) {
	h, _ := setup(t)

	var got profileModel.UserProfile
	get(t, h, "/profile", &got)
	assert.Equal(t, profileModel.Neutral().Traits, got.Traits)
	assert.Zero(t, got.InteractionCount)
}

func TestFilteredListings(t *testing.T) {
	h, f := setup(t)
	ctx := context.Background()

	for _, p := range []intentModel.Payload{
		intentModel.CreateReflectionPayload{Content: "Good focus block", Tags: []string{"Work"}},
		intentModel.CreateReflectionPayload{Content: "Long walk", Tags: []string{"health"}},
		intentModel.TrackMetricPayload{Name: "sleep", Value: 7},
		intentModel.TrackMetricPayload{Name: "weight", Value: 70},
		intentModel.CreateTaskPayload{Title: "Ship it", Priority: plannerModel.PriorityHigh},
	} {
		_, err := f.Planner.Apply(ctx, intentModel.NewAction(p))
		require.NoError(t, err)
	}

	var reflections []plannerModel.Reflection
	get(t, h, "/reflections?tag=work", &reflections)
	require.Len(t, reflections, 1)
	assert.Equal(t, "Good focus block", reflections[0].Content)

	var metrics []plannerModel.MetricEntry
	get(t, h, "/metrics/entries?name=sleep", &metrics)
	require.Len(t, metrics, 1)
	assert.Equal(t, 7.0, metrics[0].Value)

	var tasks []plannerModel.Task
	get(t, h, "/tasks", &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, plannerModel.TaskPending, tasks[0].Status)
}
