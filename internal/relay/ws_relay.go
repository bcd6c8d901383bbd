package relay

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/execsim/simcore/internal/agenda"
	"github.com/execsim/simcore/internal/respval"
)

const maxWSConnections = 200

// frame is the wire format exchanged with a transport client. Type is
// only meaningful on incoming frames ("command" or "lookup"); outgoing
// frames carry the dispatched message's Kind as a string for
// diagnostics.
type frame struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// WSRelay is a CommRelay backed by gorilla/websocket. Each connection
// is tagged as the opaque callerID for every command or lookup it
// originates, so SendResponse can address the reply straight back to
// the connection that asked. The register/unregister/broadcast hub
// shape is the same one a dashboard-metrics broadcaster would use,
// repurposed here to carry command/response frames for one simulated
// agent.
type WSRelay struct {
	upgrader   websocket.Upgrader
	scheduler  Scheduler
	logger     *log.Logger
	mu         sync.Mutex
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewWSRelay builds a relay that will drive scheduler on incoming
// command/lookup frames.
func NewWSRelay(scheduler Scheduler, logger *log.Logger) *WSRelay {
	if logger == nil {
		logger = log.Default()
	}
	return &WSRelay{
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		scheduler:  scheduler,
		logger:     logger,
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// ServeHTTP upgrades the connection and spawns its read pump. Intended
// to be registered under the `-central` listen address.
func (r *WSRelay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("relay: upgrade failed: %v", err)
		return
	}
	r.register <- conn
	go r.readPump(conn)
}

// Run owns the register/unregister bookkeeping until ctx is cancelled.
func (r *WSRelay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case conn := <-r.register:
			r.mu.Lock()
			if len(r.clients) >= maxWSConnections {
				r.mu.Unlock()
				conn.Close()
				r.logger.Printf("relay: connection rejected, max connections (%d) reached", maxWSConnections)
				continue
			}
			r.clients[conn] = struct{}{}
			r.mu.Unlock()
		case conn := <-r.unregister:
			r.mu.Lock()
			if _, ok := r.clients[conn]; ok {
				delete(r.clients, conn)
				conn.Close()
			}
			r.mu.Unlock()
		}
	}
}

func (r *WSRelay) shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		conn.Close()
	}
	r.clients = make(map[*websocket.Conn]struct{})
}

// readPump reads command/lookup frames off conn and drives the
// Scheduler. Neither call blocks on the agenda mutex for more than the
// length of a map/slice operation, so running one pump per connection
// is safe even under many concurrent connections.
func (r *WSRelay) readPump(conn *websocket.Conn) {
	defer func() { r.unregister <- conn }()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Printf("relay: read error: %v", err)
			}
			return
		}
		switch f.Type {
		case "command":
			r.scheduler.ScheduleCommandResponse(f.Name, conn)
		case "lookup":
			msg, ok := r.scheduler.AnswerLookupNow(f.Name, conn)
			if ok {
				r.writeFrame(conn, msg)
			}
		default:
			r.logger.Printf("relay: unrecognized frame type %q", f.Type)
		}
	}
}

// SendResponse implements CommRelay. msg.CallerID must be the
// *websocket.Conn that originated the request it answers; the
// Scheduler never inspects it, it only threads it back here unchanged.
func (r *WSRelay) SendResponse(msg agenda.Message) {
	conn, ok := msg.CallerID.(*websocket.Conn)
	if !ok || conn == nil {
		r.logger.Printf("relay: dropping response for %q: no connection to answer on", msg.Name)
		return
	}
	r.writeFrame(conn, msg)
}

func (r *WSRelay) writeFrame(conn *websocket.Conn, msg agenda.Message) {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	f := frame{Type: msg.Kind.String(), Name: msg.Name, Value: rawValue(msg.Value)}
	if err := conn.WriteJSON(f); err != nil {
		r.logger.Printf("relay: write error for %q: %v", msg.Name, err)
		go func() { r.unregister <- conn }()
	}
}

// rawValue extracts a JSON-friendly payload from a tagged Value.
func rawValue(v respval.Value) any {
	switch v.Kind() {
	case respval.Bool:
		b, _ := v.AsBool()
		return b
	case respval.Int:
		i, _ := v.AsInt()
		return i
	case respval.Real:
		f, _ := v.AsReal()
		return f
	case respval.String:
		s, _ := v.AsString()
		return s
	case respval.BoolArray:
		a, _ := v.AsBoolArray()
		return a
	case respval.IntArray:
		a, _ := v.AsIntArray()
		return a
	case respval.RealArray:
		a, _ := v.AsRealArray()
		return a
	case respval.StringArray:
		a, _ := v.AsStringArray()
		return a
	default:
		return nil
	}
}
