package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/lotdispatch/internal/dispatch"
	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/provider"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ItemsProcessed   prometheus.Counter
	ItemsScheduled   prometheus.Counter
	CycleDuration    prometheus.Histogram
	GroupsDispatched *prometheus.CounterVec
	GroupsSkipped    prometheus.Counter
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	TriggerDepth     *prometheus.GaugeVec
}

// New registers all instruments with reg. A custom registry keeps tests
// isolated from the global one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_items_processed_total",
			Help: "Queue items removed by dispatch cycles (sent or retries exhausted).",
		}),
		ItemsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_items_scheduled_total",
			Help: "Queue items whose retry counter was incremented.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_cycle_seconds",
			Help:    "Wall time of one dispatch cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		GroupsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_groups_total",
			Help: "Config-hash groups handled, by flow.",
		}, []string{"flow"}),
		GroupsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_groups_skipped_total",
			Help: "Groups skipped because their lease was held elsewhere.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Provider calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_request_seconds",
			Help:    "Provider call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		TriggerDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_trigger_queue_depth",
			Help: "Pending dispatch triggers by tier.",
		}, []string{"tier"}),
	}

	reg.MustRegister(
		m.ItemsProcessed,
		m.ItemsScheduled,
		m.CycleDuration,
		m.GroupsDispatched,
		m.GroupsSkipped,
		m.ProviderRequests,
		m.ProviderLatency,
		m.TriggerDepth,
	)

	return m
}

// DispatchHooks returns the callbacks the dispatcher fires.
func (m *Metrics) DispatchHooks() dispatch.MetricHooks {
	return dispatch.MetricHooks{
		OnCycle: func(r domain.Report, elapsed time.Duration) {
			m.ItemsProcessed.Add(float64(r.Processed))
			m.ItemsScheduled.Add(float64(r.Scheduled))
			m.CycleDuration.Observe(elapsed.Seconds())
		},
		OnGroup: func(f domain.Flow, _ domain.Outcome) {
			m.GroupsDispatched.WithLabelValues(string(f)).Inc()
		},
		OnSkippedGroup: func() {
			m.GroupsSkipped.Inc()
		},
	}
}

// ProviderHook observes every provider call.
func (m *Metrics) ProviderHook() provider.RequestHook {
	return func(op string, ok bool, latency time.Duration) {
		outcome := "ok"
		if !ok {
			outcome = "error"
		}
		m.ProviderRequests.WithLabelValues(op, outcome).Inc()
		m.ProviderLatency.WithLabelValues(op).Observe(latency.Seconds())
	}
}
