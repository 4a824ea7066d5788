package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"quickpoll/internal/events"
	"quickpoll/internal/models"
	"quickpoll/internal/rooms"
	"quickpoll/internal/wshub"
)

const (
	msgInvalidMessage = "Invalid message"
	msgUnknownEvent   = "Unknown event"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("[WS] Accept error: %v\n", err)
		return
	}

	client := wshub.NewClient(conn)
	s.Hub.Register(client)
	if s.Metrics != nil {
		s.Metrics.Connections.Inc()
	}
	log.Printf("[WS] Client %s connected\n", client.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.Hub.Unregister(client.ID)
		if s.Metrics != nil {
			s.Metrics.Connections.Dec()
		}
		conn.Close(websocket.StatusNormalClosure, "")
		log.Printf("[WS] Client %s disconnected\n", client.ID)
	}()

	go client.WritePump(ctx)

	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					log.Printf("[WS] Read error from %s: %v\n", client.ID, err)
				}
			}
			return
		}
		s.dispatch(client.ID, frame)
	}
}

// dispatch handles one inbound frame from a connection. Replies go to that
// connection only; room-wide updates travel through the event bus.
func (s *Server) dispatch(clientID string, frame []byte) {
	env, err := events.Decode(frame)
	if err != nil {
		s.reply(clientID, events.Error, msgInvalidMessage)
		return
	}

	start := time.Now()
	switch env.Event {
	case events.CreateRoom:
		s.handleCreateRoom(clientID, env.Data)
	case events.JoinRoom:
		s.handleJoinRoom(clientID, env.Data)
	case events.Vote:
		s.handleVote(clientID, env.Data)
	default:
		s.reply(clientID, events.Error, msgUnknownEvent)
		return
	}
	if s.Metrics != nil {
		s.Metrics.HandleTime.WithLabelValues(env.Event).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) handleCreateRoom(clientID string, data json.RawMessage) {
	var req models.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.reply(clientID, events.Error, msgInvalidMessage)
		return
	}

	room, err := s.Rooms.Create(req.Name, req.Question, req.Options)
	if err != nil {
		s.reply(clientID, events.Error, errorMessage(err))
		return
	}

	// Group membership is in place by the time the sender sees the reply.
	s.Hub.Join(room.Code, clientID)
	s.reply(clientID, events.RoomCreated, models.RoomReply{RoomCode: room.Code, State: room.Snapshot()})
	log.Printf("[Router] %s created room %s\n", req.Name, room.Code)
}

func (s *Server) handleJoinRoom(clientID string, data json.RawMessage) {
	var req models.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.reply(clientID, events.Error, msgInvalidMessage)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	room, err := s.Rooms.Join(code, req.Name)
	if err != nil {
		s.reply(clientID, events.Error, errorMessage(err))
		return
	}

	s.Hub.Join(room.Code, clientID)
	s.reply(clientID, events.Joined, models.RoomReply{RoomCode: room.Code, State: room.Snapshot()})
	log.Printf("[Router] %s joined room %s\n", req.Name, room.Code)
}

func (s *Server) handleVote(clientID string, data json.RawMessage) {
	var req models.VoteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.reply(clientID, events.Error, msgInvalidMessage)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	_, err := s.Rooms.Vote(code, req.Name, req.Option)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, rooms.ErrRoomNotFound), errors.Is(err, rooms.ErrPollClosed):
		s.rejectVote("poll_closed")
		s.reply(clientID, events.PollClosed, nil)
	case errors.Is(err, rooms.ErrAlreadyVoted):
		s.rejectVote("already_voted")
		s.reply(clientID, events.AlreadyVoted, nil)
	case errors.Is(err, rooms.ErrUnknownUser):
		s.rejectVote("unknown_user")
		s.reply(clientID, events.Error, errorMessage(err))
	case errors.Is(err, rooms.ErrInvalidOption):
		s.rejectVote("invalid_option")
		s.reply(clientID, events.Error, errorMessage(err))
	default:
		s.reply(clientID, events.Error, errorMessage(err))
	}
}

func (s *Server) rejectVote(reason string) {
	if s.Metrics != nil {
		s.Metrics.VotesRejected.WithLabelValues(reason).Inc()
	}
}

func (s *Server) reply(clientID, event string, data any) {
	frame, err := events.Encode(event, data)
	if err != nil {
		log.Printf("[Router] Encode error: %v\n", err)
		return
	}
	if !s.Hub.SendTo(clientID, frame) {
		log.Printf("[Router] Dropped %s for %s\n", event, clientID)
	}
}

// errorMessage turns a room error into the text shown to users.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, rooms.ErrOptionCount):
		return "Poll must have 2 options"
	case errors.Is(err, rooms.ErrNameRequired):
		return "Name is required"
	case errors.Is(err, rooms.ErrBadOptions):
		return "Poll options must be distinct and non-empty"
	case errors.Is(err, rooms.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, rooms.ErrNameTaken):
		return "Name already taken in this room"
	case errors.Is(err, rooms.ErrUnknownUser):
		return "User not found in this room"
	case errors.Is(err, rooms.ErrInvalidOption):
		return "Invalid option"
	}
	log.Printf("[Router] Unexpected error: %v\n", err)
	return "Internal error"
}
