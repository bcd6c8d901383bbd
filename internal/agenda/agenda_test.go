package agenda

import (
	"testing"
	"time"

	"github.com/execsim/simcore/internal/respval"
)

func TestScheduleResponseOrdersByDueTime(t *testing.T) {
	a := New()
	now := time.Now()

	a.ScheduleResponse(now.Add(200*time.Millisecond), Message{Name: "A"})
	a.ScheduleResponse(now.Add(100*time.Millisecond), Message{Name: "B"})

	_, msg, ok := a.PopEarliest()
	if !ok || msg.Name != "B" {
		t.Fatalf("expected B first, got %+v (ok=%v)", msg, ok)
	}
	_, msg, ok = a.PopEarliest()
	if !ok || msg.Name != "A" {
		t.Fatalf("expected A second, got %+v (ok=%v)", msg, ok)
	}
}

func TestScheduleResponseStableOnTies(t *testing.T) {
	a := New()
	due := time.Now().Add(50 * time.Millisecond)

	a.ScheduleResponse(due, Message{Name: "first"})
	a.ScheduleResponse(due, Message{Name: "second"})
	a.ScheduleResponse(due, Message{Name: "third"})

	for _, want := range []string{"first", "second", "third"} {
		_, msg, ok := a.PopEarliest()
		if !ok || msg.Name != want {
			t.Fatalf("expected %s, got %+v (ok=%v)", want, msg, ok)
		}
	}
}

func TestPopEarliestOnEmpty(t *testing.T) {
	a := New()
	if _, _, ok := a.PopEarliest(); ok {
		t.Fatal("expected pop on empty agenda to report not-ok")
	}
	if !a.Empty() {
		t.Fatal("expected new agenda to be empty")
	}
}

func TestShiftAllPreservesOrder(t *testing.T) {
	a := New()
	a.ScheduleResponse(Epoch.Add(1*time.Second), Message{Name: "battery", Value: respval.NewReal(0.80)})
	a.ScheduleResponse(Epoch, Message{Name: "battery", Value: respval.NewReal(0.95)})

	t0 := time.Now()
	a.ShiftAll(t0)

	due1, msg1, _ := a.PopEarliest()
	if msg1.Name != "battery" {
		t.Fatalf("unexpected first message %+v", msg1)
	}
	if v, _ := msg1.Value.AsReal(); v != 0.95 {
		t.Fatalf("expected 0.95 first, got %v", v)
	}
	if due1.Before(t0) || due1.After(t0.Add(time.Millisecond)) {
		t.Fatalf("expected first due ~= t0, got %v (t0=%v)", due1, t0)
	}

	due2, msg2, _ := a.PopEarliest()
	if v, _ := msg2.Value.AsReal(); v != 0.80 {
		t.Fatalf("expected 0.80 second, got %v", v)
	}
	wantDue2 := t0.Add(1 * time.Second)
	if due2.Before(wantDue2.Add(-time.Millisecond)) || due2.After(wantDue2.Add(time.Millisecond)) {
		t.Fatalf("expected second due ~= t0+1s, got %v (want %v)", due2, wantDue2)
	}
}

func TestSizeAndClear(t *testing.T) {
	a := New()
	a.ScheduleResponse(time.Now(), Message{Name: "x"})
	a.ScheduleResponse(time.Now(), Message{Name: "y"})
	if a.Size() != 2 {
		t.Fatalf("expected size 2, got %d", a.Size())
	}
	a.Clear()
	if !a.Empty() {
		t.Fatal("expected agenda empty after Clear")
	}
}
