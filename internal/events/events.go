package events

import (
	"encoding/json"
	"fmt"
	"time"

	"quickpoll/internal/models"
)

// Client to server.
const (
	CreateRoom = "create_room"
	JoinRoom   = "join_room"
	Vote       = "vote"
)

// Server to client.
const (
	RoomCreated  = "room_created"
	Joined       = "joined"
	StateUpdated = "state_updated"
	PollClosed   = "poll_closed"
	AlreadyVoted = "already_voted"
	Error        = "error"
)

// Internal only, never sent to websocket clients.
const (
	UserJoined  = "user_joined"
	RoomEvicted = "room_evicted"
)

// Envelope is the frame format on the websocket: a named event with an
// optional JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an envelope. A nil data produces a frame without payload.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame into an envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decoding envelope: missing event name")
	}
	return env, nil
}

// RoomEvent records one state change of a room. State is a private copy
// and is nil for evictions.
type RoomEvent struct {
	Name     string            `json:"name"`
	RoomCode string            `json:"roomCode"`
	User     string            `json:"user,omitempty"`
	Option   string            `json:"option,omitempty"`
	State    *models.RoomState `json:"state,omitempty"`
	At       time.Time         `json:"at"`
}

// Bus carries room events, in publication order, from the room store to
// the broadcaster.
type Bus struct {
	Events chan RoomEvent
}

func NewBus(size int) *Bus {
	return &Bus{
		Events: make(chan RoomEvent, size),
	}
}

// Publish blocks while the bus is full.
func (b *Bus) Publish(ev RoomEvent) {
	b.Events <- ev
}
