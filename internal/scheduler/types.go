package scheduler

import (
	"time"

	"github.com/execsim/simcore/internal/agenda"
	"github.com/execsim/simcore/internal/respval"
)

// CommRelay is the narrow outgoing side of the transport contract: the
// Scheduler's dispatch goroutine hands each due message to SendResponse
// and moves on. Implementations are free to call straight back into
// ScheduleCommandResponse or AnswerLookupNow from inside SendResponse —
// the Scheduler never holds its internal locks while SendResponse runs,
// so there is no deadlock risk on its side.
type CommRelay interface {
	SendResponse(msg agenda.Message)
}

// TelemetryMirror optionally observes every dispatched TELEMETRY value,
// e.g. to publish it somewhere external. A nil TelemetryMirror is a
// legal no-op.
type TelemetryMirror interface {
	Publish(name string, value respval.Value)
}

// Journal optionally records every dispatched message for later
// analysis. A nil Journal is a legal no-op.
type Journal interface {
	Record(msg agenda.Message, dispatchedAt time.Time)
}

// Admission optionally gates ScheduleCommandResponse and
// AnswerLookupNow against a flooding caller. Reserve reports whether
// key may proceed now and, if not, how long it would have to wait for
// its next token. A nil Admission admits everything; see
// internal/admission for a token-bucket implementation.
type Admission interface {
	Reserve(key string) (bool, time.Duration)
}

// Metrics optionally observes Scheduler activity. A nil Metrics is a
// legal no-op; see internal/observability for a Prometheus-backed
// implementation.
type Metrics interface {
	ObserveAgendaDepth(n int)
	CountDispatch(kind agenda.Kind)
	CountMissingManager()
	CountExhausted()
	CountNullDefault()
	ObserveDispatchLatency(d time.Duration)
}

// noopMetrics satisfies Metrics without recording anything.
type noopMetrics struct{}

func (noopMetrics) ObserveAgendaDepth(int)             {}
func (noopMetrics) CountDispatch(agenda.Kind)          {}
func (noopMetrics) CountMissingManager()               {}
func (noopMetrics) CountExhausted()                    {}
func (noopMetrics) CountNullDefault()                  {}
func (noopMetrics) ObserveDispatchLatency(time.Duration) {}

// Snapshot is a debug introspection surface reporting the Scheduler's
// current agenda depth, running state, and lookup cache.
type Snapshot struct {
	AgendaDepth int
	Running     bool
	SessionT0   time.Time
	Lookup      map[string]respval.Value
}
