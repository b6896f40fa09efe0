// Package planner exposes read-only views of the user's plan and profile.
// Mutations happen through intents in the chat pipeline.
package planner

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	plannerService "github.com/zhouzirui/z-mentor/backend/internal/service/planner"
	profileService "github.com/zhouzirui/z-mentor/backend/internal/service/profile"
	"github.com/zhouzirui/z-mentor/backend/pkg/utils"
)

type Handler struct {
	planner  *plannerService.Service
	profiles *profileService.Service
	logger   *zap.Logger
}

func New(planner *plannerService.Service, profiles *profileService.Service, logger *zap.Logger) *Handler {
	return &Handler{
		planner:  planner,
		profiles: profiles,
		logger:   observability.Named(logger, "http.planner"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleProfile)
	r.Get("/tasks", list(h, "tasks", func(r *http.Request) (any, error) {
		return h.planner.ListTasks(r.Context())
	}))
	r.Get("/goals", list(h, "goals", func(r *http.Request) (any, error) {
		return h.planner.ListGoals(r.Context())
	}))
	r.Get("/habits", list(h, "habits", func(r *http.Request) (any, error) {
		return h.planner.ListHabits(r.Context())
	}))
	r.Get("/reflections", list(h, "reflections", func(r *http.Request) (any, error) {
		return h.planner.ListReflections(r.Context(), strings.TrimSpace(r.URL.Query().Get("tag")))
	}))
	r.Get("/metrics/entries", list(h, "metrics", func(r *http.Request) (any, error) {
		return h.planner.ListMetrics(r.Context(), strings.TrimSpace(r.URL.Query().Get("name")))
	}))
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "profile service unavailable")
		return
	}
	p, err := h.profiles.Get(r.Context())
	if err != nil {
		h.logger.Error("load profile failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func list(h *Handler, name string, fetch func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := fetch(r)
		if err != nil {
			h.logger.Error("list failed", zap.String("collection", name), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "failed to load "+name)
			return
		}
		utils.RespondJSON(w, http.StatusOK, items)
	}
}
