package handler

import (
	"net/http"

	"github.com/notifyhub/lotdispatch/internal/metrics"
	"github.com/notifyhub/lotdispatch/internal/queue"
)

// MetricsHandler serves a human-readable JSON snapshot of the trigger queue.
// Raw Prometheus metrics are served at /metrics.
type MetricsHandler struct {
	q *queue.TriggerQueue
	m *metrics.Metrics
}

// NewMetricsHandler builds the handler; m may be nil.
func NewMetricsHandler(q *queue.TriggerQueue, m *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{q: q, m: m}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Trigger queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	targeted, sweep := h.q.Depths()
	if h.m != nil {
		h.m.TriggerDepth.WithLabelValues("targeted").Set(float64(targeted))
		h.m.TriggerDepth.WithLabelValues("sweep").Set(float64(sweep))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"trigger_queue": map[string]int{
			"targeted": targeted,
			"sweep":    sweep,
			"total":    targeted + sweep,
		},
	})
}
