package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/service"
)

// BatchHandler queues a whole audience in one request.
type BatchHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewBatchHandler(svc *service.QueueService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{svc: svc, logger: logger}
}

// EnqueueBatch handles POST /api/v1/queue/batch
//
// @Summary  Queue up to 1000 recipients under one action config
// @Tags     queue
// @Accept   json
// @Produce  json
// @Param    body  body      domain.EnqueueBatchRequest  true  "Config and recipients"
// @Success  201   {object}  domain.EnqueueResponse
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/queue/batch [post]
func (h *BatchHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueBatchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hash, items, err := h.svc.QueueBatch(r.Context(), req.Config, req.Recipients)
	if err != nil {
		h.logger.Warn("enqueue batch failed", zap.Int("queued", len(items)), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, domain.EnqueueResponse{ConfigHash: hash, Queued: len(items)})
}
