package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/service"
)

// ContactHandler maintains the profiles tokens are resolved against.
type ContactHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewContactHandler(svc *service.QueueService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{svc: svc, logger: logger}
}

// Upsert handles PUT /api/v1/contacts/{id}
//
// @Summary  Merge fields into a contact profile
// @Tags     contacts
// @Accept   json
// @Param    id    path  string          true  "Contact id"
// @Param    body  body  map[string]any  true  "Profile fields"
// @Success  204
// @Router   /api/v1/contacts/{id} [put]
func (h *ContactHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decodeJSON(r.Body, &fields); err != nil || fields == nil {
		respondError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	if err := h.svc.UpsertContact(r.Context(), chi.URLParam(r, "id"), fields); err != nil {
		h.logger.Warn("upsert contact failed", zap.Error(err))
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /api/v1/contacts/{id}
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
