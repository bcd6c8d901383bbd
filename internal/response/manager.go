package response

import (
	"fmt"
	"log"
	"sync"
)

// Manager is the per-command-name response sequencer: it maps
// invocation index to a scripted Entry, with an optional default entry
// for unmatched indices, and a 1-based monotonic call counter.
type Manager struct {
	identifier string
	mu         sync.Mutex
	indexed    map[int]Entry
	hasDefault bool
	defaultE   Entry
	callCount  int // 1-based, incremented on every NextResponse call
	logger     *log.Logger
}

// NewManager creates an empty sequencer for the named command/state.
func NewManager(name string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		identifier: name,
		indexed:    make(map[int]Entry),
		callCount:  1,
		logger:     logger,
	}
}

// Identifier returns the command/state name this manager serves.
func (m *Manager) Identifier() string { return m.identifier }

// AddResponse registers an Entry under the given 1-based invocation
// index, or as the default entry when index == 0. A duplicate index is
// logged once and dropped; the first registration wins.
func (m *Manager) AddResponse(entry Entry, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index == 0 {
		if m.hasDefault {
			m.logger.Printf("CommandResponseManager %s: default entry already registered, ignoring duplicate", m.identifier)
			return
		}
		m.hasDefault = true
		m.defaultE = entry
		return
	}

	if _, exists := m.indexed[index]; exists {
		m.logger.Printf("CommandResponseManager %s: index %d already registered, ignoring duplicate", m.identifier, index)
		return
	}
	m.indexed[index] = entry
}

// NextResponse selects the entry for the current call count (indexed,
// falling back to default), advances the counter, and reports
// exhaustion or a missing default.
func (m *Manager) NextResponse() (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.callCount
	entry, ok := m.indexed[k]
	usedDefault := false
	if !ok {
		entry, ok = m.defaultE, m.hasDefault
		usedDefault = true
	}
	m.callCount++

	if !ok {
		return Entry{}, fmt.Errorf("command response manager %s: no indexed entry for invocation %d and no default entry registered", m.identifier, k)
	}

	if entry.exhausted() {
		return Entry{}, errExhausted{name: m.identifier}
	}

	consumed := entry.consume()
	if usedDefault {
		m.defaultE = consumed
	} else {
		m.indexed[k] = consumed
	}
	return consumed, nil
}

// State reports the FRESH/IN_USE/EXHAUSTED lifecycle value.
type State int

const (
	Fresh State = iota
	InUse
	Exhausted
)

func (s State) String() string {
	switch s {
	case InUse:
		return "IN_USE"
	case Exhausted:
		return "EXHAUSTED"
	default:
		return "FRESH"
	}
}

// State computes the manager's current lifecycle state. FRESH means no
// invocation has been dispatched yet; EXHAUSTED means every indexed
// entry and the default (if any) has hit zero remaining uses.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.callCount == 1 {
		return Fresh
	}

	usable := m.hasDefault && !m.defaultE.exhausted()
	if !usable {
		for _, e := range m.indexed {
			if !e.exhausted() {
				usable = true
				break
			}
		}
	}
	if usable {
		return InUse
	}
	return Exhausted
}

// errExhausted distinguishes "ran out of uses" from "no entry
// registered at all" for callers that want to log the two cases
// differently; both still result in no message being scheduled.
type errExhausted struct{ name string }

func (e errExhausted) Error() string {
	return fmt.Sprintf("command response manager %s: entry exhausted", e.name)
}

// IsExhausted reports whether err was produced because the selected
// entry ran out of uses (as opposed to no entry existing at all).
func IsExhausted(err error) bool {
	_, ok := err.(errExhausted)
	return ok
}

// Map owns the command-name -> Manager association. It is populated by
// the ScriptReader before the Scheduler starts and is read-only (safe
// for concurrent lookups without its own lock) thereafter.
type Map struct {
	managers map[string]*Manager
}

// NewMap creates an empty ResponseManagerMap.
func NewMap() *Map {
	return &Map{managers: make(map[string]*Manager)}
}

// Ensure returns the Manager for name, creating one if it doesn't
// already exist. Intended for use while building the map, before the
// Scheduler starts.
func (m *Map) Ensure(name string, logger *log.Logger) *Manager {
	if mgr, ok := m.managers[name]; ok {
		return mgr
	}
	mgr := NewManager(name, logger)
	m.managers[name] = mgr
	return mgr
}

// Lookup returns the Manager for name, or nil if no command
// declaration registered one.
func (m *Map) Lookup(name string) *Manager {
	return m.managers[name]
}

// Len reports the number of distinct command names registered.
func (m *Map) Len() int { return len(m.managers) }
