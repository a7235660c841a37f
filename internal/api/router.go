package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/api/handler"
	apimw "github.com/notifyhub/lotdispatch/internal/api/middleware"
	"github.com/notifyhub/lotdispatch/internal/metrics"
	"github.com/notifyhub/lotdispatch/internal/queue"
	"github.com/notifyhub/lotdispatch/internal/service"
	"github.com/notifyhub/lotdispatch/internal/worker"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Service  *service.QueueService
	Runner   *worker.Runner
	Triggers *queue.TriggerQueue
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   *handler.HealthHandler
	Logger   *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(4 << 20)) // batch bodies carry up to 1000 recipients
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(d.Logger))

	qh := handler.NewQueueHandler(d.Service, d.Logger)
	bh := handler.NewBatchHandler(d.Service, d.Logger)
	ch := handler.NewContactHandler(d.Service, d.Logger)
	dh := handler.NewDispatchHandler(d.Runner, d.Service, d.Logger)
	mh := handler.NewMetricsHandler(d.Triggers, d.Metrics)
	hh := d.Health
	if hh == nil {
		hh = handler.NewHealthHandler(nil)
	}

	r.Get("/health", hh.Health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/queue", qh.Enqueue)
		r.Post("/queue/batch", bh.EnqueueBatch)
		r.Get("/queue/stats", qh.Stats)

		r.Post("/dispatch", dh.Run)
		r.Post("/dispatch/async", dh.Trigger)

		r.Put("/contacts/{id}", ch.Upsert)
		r.Get("/contacts/{id}", ch.Get)

		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
