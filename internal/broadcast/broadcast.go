package broadcast

import (
	"encoding/json"
	"log"
	"sync"

	"quickpoll/internal/events"
)

// Sink receives every room event in bus order. Handle runs on the
// broadcaster goroutine, so slow sinks must queue work of their own.
type Sink interface {
	Handle(ev events.RoomEvent)
}

// SSEMessage is one server-sent event for spectators.
type SSEMessage struct {
	Event string
	Msg   string
}

type Broadcaster struct {
	Mu      sync.Mutex
	sinks   []Sink
	Clients map[string]map[chan SSEMessage]bool
}

// NewBroadcaster starts draining bus into sinks and spectator streams.
func NewBroadcaster(bus *events.Bus, sinks ...Sink) *Broadcaster {
	b := &Broadcaster{
		sinks:   sinks,
		Clients: make(map[string]map[chan SSEMessage]bool),
	}
	go func() {
		for ev := range bus.Events {
			b.Dispatch(ev)
		}
	}()
	return b
}

// AddSink registers another sink. Sinks added later miss earlier events.
func (b *Broadcaster) AddSink(s Sink) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Broadcaster) Dispatch(ev events.RoomEvent) {
	b.Mu.Lock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.Mu.Unlock()

	for _, s := range sinks {
		s.Handle(ev)
	}

	switch ev.Name {
	case events.StateUpdated, events.PollClosed:
		data, err := json.Marshal(ev.State)
		if err != nil {
			log.Printf("[Broadcast] Marshal error: %v\n", err)
			return
		}
		b.send(ev.RoomCode, SSEMessage{Event: ev.Name, Msg: string(data)})
	case events.RoomEvicted:
		b.closeRoom(ev.RoomCode)
	}
}

func (b *Broadcaster) Subscribe(roomCode string) chan SSEMessage {
	ch := make(chan SSEMessage, 10)
	b.Mu.Lock()
	defer b.Mu.Unlock()
	subs, ok := b.Clients[roomCode]
	if !ok {
		subs = make(map[chan SSEMessage]bool)
		b.Clients[roomCode] = subs
	}
	subs[ch] = true
	return ch
}

func (b *Broadcaster) Unsubscribe(roomCode string, ch chan SSEMessage) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	subs, ok := b.Clients[roomCode]
	if !ok || !subs[ch] {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.Clients, roomCode)
	}
	close(ch)
}

func (b *Broadcaster) send(roomCode string, msg SSEMessage) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients[roomCode] {
		select {
		case ch <- msg:
		default:
			// skip clients with full data channels
		}
	}
}

func (b *Broadcaster) closeRoom(roomCode string) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients[roomCode] {
		close(ch)
	}
	delete(b.Clients, roomCode)
}
