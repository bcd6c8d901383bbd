// Package relay implements the CommRelay contract: the outgoing half
// (SendResponse, called by the Scheduler's dispatch goroutine) and the
// incoming half (reading commands/lookups off a transport and calling
// back into the Scheduler).
package relay

import (
	"github.com/execsim/simcore/internal/agenda"
)

// CommRelay restates the Scheduler-facing contract so callers outside
// internal/scheduler can depend on it without importing that package.
type CommRelay interface {
	SendResponse(msg agenda.Message)
}

// Scheduler is the narrow slice of *scheduler.Scheduler a relay needs
// to call back into on receipt of a command or lookup, declared
// locally in the consuming package rather than imported.
type Scheduler interface {
	ScheduleCommandResponse(name string, callerID any)
	AnswerLookupNow(name string, callerID any) (agenda.Message, bool)
}
