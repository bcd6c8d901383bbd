package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/execsim/simcore/internal/agenda"
	"github.com/execsim/simcore/internal/respval"
)

type fakeScheduler struct {
	mu       sync.Mutex
	commands []string
	lookup   func(name string) (agenda.Message, bool)
}

func (f *fakeScheduler) ScheduleCommandResponse(name string, callerID any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
}

func (f *fakeScheduler) AnswerLookupNow(name string, callerID any) (agenda.Message, bool) {
	if f.lookup == nil {
		return agenda.Message{}, false
	}
	return f.lookup(name)
}

func dialTestServer(t *testing.T, relay *WSRelay) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(relay)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestWSRelayRoutesCommandFrameToScheduler(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewWSRelay(sched, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	conn, closeAll := dialTestServer(t, r)
	defer closeAll()

	if err := conn.WriteJSON(frame{Type: "command", Name: "move"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sched.mu.Lock()
		n := len(sched.commands)
		sched.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for command to reach scheduler")
}

func TestWSRelaySendResponseWritesFrame(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewWSRelay(sched, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	conn, closeAll := dialTestServer(t, r)
	defer closeAll()

	// Give the server time to register the connection before we reach
	// in from a test goroutine pretending to be the dispatch loop.
	time.Sleep(20 * time.Millisecond)

	r.mu.Lock()
	var serverConn *websocket.Conn
	for c := range r.clients {
		serverConn = c
	}
	r.mu.Unlock()
	if serverConn == nil {
		t.Fatal("expected relay to have registered the server-side connection")
	}

	r.SendResponse(agenda.Message{Name: "move", Value: respval.NewInt(42), Kind: agenda.CommandReply, CallerID: serverConn})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != "move" {
		t.Fatalf("expected name move, got %+v", got)
	}
}
