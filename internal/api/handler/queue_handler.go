package handler

import (
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/lotdispatch/internal/api/middleware"
	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/service"
)

// QueueHandler handles single-recipient enqueue and queue inspection.
type QueueHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewQueueHandler(svc *service.QueueService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/queue
//
// @Summary  Queue one recipient under an action config
// @Tags     queue
// @Accept   json
// @Produce  json
// @Param    body  body      domain.EnqueueRequest  true  "Config and recipient"
// @Success  201   {object}  domain.EnqueueResponse
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/queue [post]
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.svc.QueueContact(r.Context(), req.Config, req.Recipient)
	if err != nil {
		h.logger.Warn("enqueue failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, domain.EnqueueResponse{ID: item.ID, ConfigHash: item.ConfigHash, Queued: 1})
}

// Stats handles GET /api/v1/queue/stats
//
// @Summary  Pending items per config hash
// @Tags     queue
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/queue/stats [get]
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	total := 0
	for _, s := range stats {
		total += s.Items
	}
	if stats == nil {
		stats = []domain.HashStat{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": stats, "total": total})
}
