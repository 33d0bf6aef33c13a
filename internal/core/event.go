package core

import (
	"sort"
	"sync"

	"github.com/vovakirdan/roomrelay/internal/proto"
)

// EventKind is a notification the server emits to observers.
type EventKind int

const (
	// EventStarted fires once the listener is bound.
	EventStarted EventKind = iota
	// EventWaiting fires each time the accept loop blocks for the next client.
	EventWaiting
	// EventConnected fires when a session joins the live set.
	EventConnected
	// EventReceived fires for every decoded line before it is dispatched.
	EventReceived
	// EventDisconnected fires exactly once per session.
	EventDisconnected
	// EventStopped fires when the server returns to the stopped state.
	EventStopped

	// EventNote carries a chat note sent with msg.
	EventNote
	// EventRoomCreated carries a room registered by a client.
	EventRoomCreated
	// EventUnrecognized carries a line whose command name is unknown.
	EventUnrecognized
)

var eventKindNames = map[EventKind]string{
	EventStarted:      "started",
	EventWaiting:      "waiting",
	EventConnected:    "connected",
	EventReceived:     "received",
	EventDisconnected: "disconnected",
	EventStopped:      "stopped",
	EventNote:         "note",
	EventRoomCreated:  "room_created",
	EventUnrecognized: "unrecognized",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// SessionInfo identifies the session an event refers to.
type SessionInfo struct {
	ID         string
	RemoteAddr string
	RemoteIP   string
}

// Event describes what happened in the server.
type Event struct {
	Kind    EventKind
	Port    int
	Session SessionInfo
	Command *proto.Command
	Raw     string
	Text    string
	Room    *Room
	Err     error
}

// Observer receives server events.
// OnEvent is called synchronously from the emitting goroutine and must not block.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev Event) {
	f(ev)
}

// Observers is a concurrency-safe set of subscribers.
type Observers struct {
	mu   sync.RWMutex
	next int
	subs map[int]Observer
}

// Subscribe adds an observer and returns a function that removes it.
func (o *Observers) Subscribe(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]Observer)
	}
	id := o.next
	o.next++
	o.subs[id] = obs

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// Emit delivers ev to every subscriber in subscription order.
func (o *Observers) Emit(ev Event) {
	o.mu.RLock()
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	subs := make([]Observer, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, o.subs[id])
	}
	o.mu.RUnlock()

	for _, s := range subs {
		s.OnEvent(ev)
	}
}
