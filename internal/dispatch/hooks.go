package dispatch

import (
	"time"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// MetricHooks are optional callbacks fired by the Dispatcher. Nil fields
// are skipped, so tests can leave the struct empty.
type MetricHooks struct {
	OnCycle        func(r domain.Report, elapsed time.Duration)
	OnGroup        func(flow domain.Flow, o domain.Outcome)
	OnSkippedGroup func()
}

func (h MetricHooks) cycle(r domain.Report, elapsed time.Duration) {
	if h.OnCycle != nil {
		h.OnCycle(r, elapsed)
	}
}

func (h MetricHooks) group(f domain.Flow, o domain.Outcome) {
	if h.OnGroup != nil {
		h.OnGroup(f, o)
	}
}

func (h MetricHooks) skipped() {
	if h.OnSkippedGroup != nil {
		h.OnSkippedGroup()
	}
}
