// Package scheduler owns the single background dispatch thread and
// single-shot timer that drain the Agenda at the right wall-clock
// times, and the two call-in points — ScheduleCommandResponse and
// AnswerLookupNow — that an independent I/O thread uses to inject
// commands and lookups.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/execsim/simcore/internal/agenda"
	"github.com/execsim/simcore/internal/respval"
	"github.com/execsim/simcore/internal/response"
)

// Scheduler is the core command/telemetry dispatch component.
type Scheduler struct {
	agenda   *agenda.Agenda
	managers *response.Map
	relay    CommRelay
	mirror   TelemetryMirror
	journal  Journal
	metrics  Metrics
	logger   *log.Logger

	mu        sync.Mutex // guards running/sessionT0/stopCh/timer lifecycle
	running   bool
	sessionT0 time.Time
	stopCh    chan struct{}
	wake      chan struct{}
	wg        sync.WaitGroup

	admissionMu sync.RWMutex // admission is swappable at runtime via SetAdmission
	admission   Admission

	cacheMu sync.RWMutex
	cache   map[string]respval.Value
}

// Option configures optional Scheduler collaborators.
type Option func(*Scheduler)

func WithTelemetryMirror(m TelemetryMirror) Option { return func(s *Scheduler) { s.mirror = m } }
func WithJournal(j Journal) Option                 { return func(s *Scheduler) { s.journal = j } }
func WithMetrics(m Metrics) Option                 { return func(s *Scheduler) { s.metrics = m } }
func WithAdmission(a Admission) Option             { return func(s *Scheduler) { s.admission = a } }
func WithLogger(l *log.Logger) Option              { return func(s *Scheduler) { s.logger = l } }

// SetRelay binds the CommRelay after construction, for callers whose
// CommRelay implementation needs a reference back to this Scheduler
// (e.g. to drive it from incoming transport frames) and so can't be
// built until the Scheduler itself exists. Must be called before
// Start.
func (s *Scheduler) SetRelay(relay CommRelay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relay = relay
}

// SetAdmission swaps the Admission collaborator at runtime, letting a
// config hot-reload retune the caller rate limit without restarting
// the Scheduler. Safe to call while running.
func (s *Scheduler) SetAdmission(a Admission) {
	s.admissionMu.Lock()
	defer s.admissionMu.Unlock()
	s.admission = a
}

func (s *Scheduler) getAdmission() Admission {
	s.admissionMu.RLock()
	defer s.admissionMu.RUnlock()
	return s.admission
}

// New constructs a Scheduler over the given Agenda and
// ResponseManagerMap, dispatching through relay.
func New(ag *agenda.Agenda, managers *response.Map, relay CommRelay, opts ...Option) *Scheduler {
	s := &Scheduler{
		agenda:   ag,
		managers: managers,
		relay:    relay,
		metrics:  noopMetrics{},
		logger:   log.Default(),
		cache:    make(map[string]respval.Value),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s
}

// Start spawns the dispatch goroutine. Fails if already running.
// Records the session start time T0, rebases seeded telemetry onto it
// via Agenda.ShiftAll, and arms the timer for the first due entry, if
// any.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.sessionT0 = time.Now()
	s.stopCh = make(chan struct{})
	s.wake = make(chan struct{}, 1)
	s.mu.Unlock()

	s.agenda.ShiftAll(s.sessionT0)

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop requests shutdown, cancels the outstanding timer, and waits for
// the dispatch goroutine to join. Idempotent: a second call returns
// immediately.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.agenda.Clear()
}

// ScheduleCommandResponse is called from the I/O thread on receipt of
// a command. It locates the CommandResponseManager for name, retrieves
// the next scripted Entry, and schedules the reply. An unknown name or
// an exhausted/unmatched manager is logged and silently dropped; no
// error is returned because these are expected, not exceptional.
func (s *Scheduler) ScheduleCommandResponse(name string, callerID any) {
	if admission := s.getAdmission(); admission != nil {
		if ok, delay := admission.Reserve(callerKey(callerID)); !ok {
			s.logger.Printf("scheduler: admission rejected command %q from %v, retry after %s", name, callerID, delay)
			return
		}
	}

	mgr := s.managers.Lookup(name)
	if mgr == nil {
		s.logger.Printf("scheduler: no response manager for command %q, ignoring", name)
		s.metrics.CountMissingManager()
		return
	}

	entry, err := mgr.NextResponse()
	if err != nil {
		if response.IsExhausted(err) {
			s.logger.Printf("scheduler: command %q exhausted, no reply scheduled", name)
			s.metrics.CountExhausted()
		} else {
			s.logger.Printf("scheduler: command %q: %v", name, err)
			s.metrics.CountNullDefault()
		}
		return
	}

	due := time.Now().Add(entry.Delay)
	msg := agenda.Message{Name: entry.Name, Value: entry.Value, Kind: agenda.CommandReply, CallerID: callerID}
	s.agenda.ScheduleResponse(due, msg)
	s.metrics.ObserveAgendaDepth(s.agenda.Size())
	s.nudge()
}

// AnswerLookupNow is called from the I/O thread on receipt of a
// lookup-now request. It returns the most recently dispatched
// TELEMETRY value for name, or false if none has ever been published.
func (s *Scheduler) AnswerLookupNow(name string, callerID any) (agenda.Message, bool) {
	if admission := s.getAdmission(); admission != nil {
		if ok, delay := admission.Reserve(callerKey(callerID)); !ok {
			s.logger.Printf("scheduler: admission rejected lookup %q from %v, retry after %s", name, callerID, delay)
			return agenda.Message{}, false
		}
	}

	s.cacheMu.RLock()
	v, ok := s.cache[name]
	s.cacheMu.RUnlock()
	if !ok {
		return agenda.Message{}, false
	}
	return agenda.Message{Name: name, Value: v, Kind: agenda.LookupReply, CallerID: callerID}, true
}

// Snapshot reports internal state for debugging.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.running
	t0 := s.sessionT0
	s.mu.Unlock()

	s.cacheMu.RLock()
	cacheCopy := make(map[string]respval.Value, len(s.cache))
	for k, v := range s.cache {
		cacheCopy[k] = v
	}
	s.cacheMu.RUnlock()

	return Snapshot{
		AgendaDepth: s.agenda.Size(),
		Running:     running,
		SessionT0:   t0,
		Lookup:      cacheCopy,
	}
}

// callerKey derives an admission-limiter key from an opaque callerID.
func callerKey(callerID any) string {
	return fmt.Sprintf("%v", callerID)
}

// nudge wakes the dispatch goroutine so it can re-evaluate the timer
// against a potentially-earlier new entry. Never blocks: if a wake is
// already pending, this is a no-op.
func (s *Scheduler) nudge() {
	s.mu.Lock()
	wake := s.wake
	s.mu.Unlock()
	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

// loop is the Scheduler's single background thread.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("scheduler: dispatch loop panic: %v", r)
		}
	}()

	timer := newDeadlineTimer()
	defer timer.cancel()

	s.rearm(timer)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C():
			s.drain(timer)
		case <-s.wake:
			s.drain(timer)
		}
	}
}

// drain pops and dispatches every agenda entry whose due time has
// arrived, then re-arms the timer for whatever is left.
func (s *Scheduler) drain(timer *deadlineTimer) {
	for {
		due, ok := s.agenda.PeekEarliestDueTime()
		if !ok {
			return
		}
		if due.After(time.Now()) {
			s.rearm(timer)
			return
		}

		_, msg, ok := s.agenda.PopEarliest()
		if !ok {
			return
		}
		s.metrics.ObserveAgendaDepth(s.agenda.Size())

		if msg.Kind == agenda.Telemetry {
			s.cacheMu.Lock()
			s.cache[msg.Name] = msg.Value
			s.cacheMu.Unlock()
			if s.mirror != nil {
				s.mirror.Publish(msg.Name, msg.Value)
			}
		}

		s.dispatch(msg)
	}
}

// dispatch hands msg to the CommRelay. The agenda lock is never held
// here: a panicking or misbehaving relay call is recovered and logged
// so the dispatch loop survives a single bad send.
func (s *Scheduler) dispatch(msg agenda.Message) {
	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Printf("scheduler: CommRelay.SendResponse panicked for %q: %v", msg.Name, r)
			}
		}()
		s.relay.SendResponse(msg)
	}()
	s.metrics.CountDispatch(msg.Kind)
	s.metrics.ObserveDispatchLatency(time.Since(start))
	if s.journal != nil {
		s.journal.Record(msg, start)
	}
}

// rearm arms timer for the agenda's current earliest due time. If that
// time has already passed, it drains immediately rather than arming a
// zero-or-negative deadline.
func (s *Scheduler) rearm(timer *deadlineTimer) {
	due, ok := s.agenda.PeekEarliestDueTime()
	if !ok {
		timer.cancel()
		return
	}
	d := time.Until(due)
	if d <= 0 {
		s.drain(timer)
		return
	}
	timer.arm(d)
}
