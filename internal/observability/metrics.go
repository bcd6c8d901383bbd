// Package observability exposes Prometheus metrics for the Scheduler's
// core loop as package-level promauto collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/execsim/simcore/internal/agenda"
)

var (
	AgendaDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simcore_agenda_depth",
		Help: "Current number of pending entries in the agenda",
	})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simcore_dispatches_total",
		Help: "Total number of messages dispatched to the CommRelay, by kind",
	}, []string{"kind"})

	MissingManager = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simcore_missing_manager_total",
		Help: "Commands received with no registered CommandResponseManager",
	})

	Exhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simcore_exhausted_total",
		Help: "Commands received after their manager's entries were exhausted",
	})

	NullDefault = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simcore_null_default_total",
		Help: "Commands received with no indexed entry and no default registered",
	})

	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simcore_dispatch_latency_seconds",
		Help:    "Time spent inside a single CommRelay.SendResponse call",
		Buckets: prometheus.DefBuckets,
	})
)

// Recorder implements scheduler.Metrics over the package-level
// collectors above.
type Recorder struct{}

func (Recorder) ObserveAgendaDepth(n int) { AgendaDepth.Set(float64(n)) }

func (Recorder) CountDispatch(kind agenda.Kind) { Dispatches.WithLabelValues(kind.String()).Inc() }

func (Recorder) CountMissingManager() { MissingManager.Inc() }

func (Recorder) CountExhausted() { Exhausted.Inc() }

func (Recorder) CountNullDefault() { NullDefault.Inc() }

func (Recorder) ObserveDispatchLatency(d time.Duration) { DispatchLatency.Observe(d.Seconds()) }
