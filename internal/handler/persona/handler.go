package persona

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
	logger   *zap.Logger
}

// New 创建persona处理器
func New(personas persona.Store, logger *zap.Logger) *Handler {
	return &Handler{
		personas: personas,
		logger:   observability.Named(logger, "http.persona"),
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Post("/personas", h.handleSavePersona)
	r.Get("/personas/{personaID}", h.handleGetPersona)
	r.Put("/personas/{personaID}", h.handleSavePersona)
	r.Delete("/personas/{personaID}", h.handleDeletePersona)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List(r.Context()))
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	p, ok := h.personas.Lookup(r.Context(), id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

// handleSavePersona 创建或更新自定义persona；PUT 时以路径中的 id 为准。
func (h *Handler) handleSavePersona(w http.ResponseWriter, r *http.Request) {
	var req persona.Profile
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id := chi.URLParam(r, "personaID"); id != "" {
		req.ID = id
	}

	saved, err := h.personas.Save(r.Context(), req)
	if err != nil {
		if errors.Is(err, persona.ErrNameRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("save persona failed", zap.String("persona_id", req.ID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save persona")
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	utils.RespondJSON(w, status, saved)
}

func (h *Handler) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "personaID")
	if err := h.personas.Delete(r.Context(), id); err != nil {
		if errors.Is(err, persona.ErrProtectedResource) {
			utils.RespondError(w, http.StatusForbidden, err.Error())
			return
		}
		h.logger.Error("delete persona failed", zap.String("persona_id", id), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete persona")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
