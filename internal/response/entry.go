// Package response implements the per-command response sequencer:
// ResponseEntry, CommandResponseManager, and the ResponseManagerMap
// that the Scheduler consults on every incoming command.
package response

import (
	"time"

	"github.com/execsim/simcore/internal/respval"
)

// Unlimited marks a ResponseEntry's remaining-use count as never
// exhausting. Used for default entries that should answer every
// invocation a script doesn't cover more specifically.
const Unlimited = -1

// Entry is an immutable description of one scripted reply.
type Entry struct {
	Name          string
	Value         respval.Value
	Delay         time.Duration
	remainingUses int // Unlimited, or a non-negative finite count
}

// NewEntry constructs an Entry. uses == Unlimited means the entry never
// exhausts; uses == 0 means the entry is born exhausted.
func NewEntry(name string, value respval.Value, delay time.Duration, uses int) Entry {
	return Entry{Name: name, Value: value, Delay: delay, remainingUses: uses}
}

// RemainingUses reports the entry's current use count (Unlimited for
// an infinite entry).
func (e Entry) RemainingUses() int { return e.remainingUses }

// exhausted reports whether the entry has no uses left.
func (e Entry) exhausted() bool {
	return e.remainingUses == 0
}

// consume returns a copy of e with one use subtracted, unless e is
// unlimited, in which case it is returned unchanged.
func (e Entry) consume() Entry {
	if e.remainingUses == Unlimited {
		return e
	}
	e.remainingUses--
	return e
}
