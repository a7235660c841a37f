package handler

import (
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/lotdispatch/internal/api/middleware"
	"github.com/notifyhub/lotdispatch/internal/service"
	"github.com/notifyhub/lotdispatch/internal/worker"
)

// DispatchHandler starts dispatch cycles on demand.
type DispatchHandler struct {
	runner *worker.Runner
	svc    *service.QueueService
	logger *zap.Logger
}

func NewDispatchHandler(runner *worker.Runner, svc *service.QueueService, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{runner: runner, svc: svc, logger: logger}
}

// Run handles POST /api/v1/dispatch?hash=
//
// @Summary  Run one dispatch cycle and return its counters
// @Tags     dispatch
// @Produce  json
// @Param    hash  query     string  false  "Only dispatch this config hash"
// @Success  200   {object}  domain.Report
// @Failure  409   {object}  map[string]string  "A cycle is already running"
// @Router   /api/v1/dispatch [post]
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	rep, err := h.runner.TryRun(r.Context(), r.URL.Query().Get("hash"))
	if err != nil {
		h.logger.Warn("dispatch cycle failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// Trigger handles POST /api/v1/dispatch/async?hash=
//
// @Summary  Queue a dispatch cycle for the background worker
// @Tags     dispatch
// @Produce  json
// @Success  202  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/dispatch/async [post]
func (h *DispatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.TriggerDispatch(r.URL.Query().Get("hash"), apimw.GetCorrelationID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "correlation_id": id})
}
