package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/loicwouters/SDL/internal/logic/launch"
)

// StatusEvent is one SSE message. Log lines carry only Msg; launch
// events also carry Kind and Phase.
type StatusEvent struct {
	Time   string `json:"t"`
	Level  string `json:"l,omitempty"`
	Msg    string `json:"msg"`
	Kind   string `json:"kind,omitempty"`  // accepted, phase, fault, complete
	Phase  string `json:"phase,omitempty"` // spin_up, release_open, release_close, spin_down
	Power  int    `json:"power,omitempty"`
	HoldMs int64  `json:"hold_ms,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends a plain message to all subscribed clients.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.publish(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// LaunchEvent publishes a launch sequence event, making the broadcaster
// a launch.Observer.
func (b *StatusBroadcaster) LaunchEvent(e launch.Event) {
	evt := StatusEvent{
		Level:  "info",
		Kind:   string(e.Kind),
		Phase:  e.Phase,
		Power:  e.Power,
		HoldMs: e.Hold.Milliseconds(),
	}
	switch e.Kind {
	case launch.EventAccepted:
		evt.Msg = "Launch sequence started"
	case launch.EventPhase:
		evt.Msg = "Phase " + e.Phase
	case launch.EventFault:
		evt.Level = "error"
		evt.Msg = "Launch fault in " + e.Phase
		if e.Err != nil {
			evt.Msg += ": " + e.Err.Error()
		}
	case launch.EventComplete:
		evt.Msg = "Launch sequence complete"
		if e.Err != nil {
			evt.Level = "warn"
			evt.Msg = "Launch sequence ended after a fault"
		}
	}
	b.publish(evt)
}

// publish marshals evt and hands it to every client.
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) publish(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
