package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"quickpoll/internal/broadcast"
	"quickpoll/internal/db"
	"quickpoll/internal/metrics"
	"quickpoll/internal/mirror"
	"quickpoll/internal/models"
	"quickpoll/internal/rooms"
	"quickpoll/internal/wshub"
)

type Server struct {
	Rooms       *rooms.Store
	Hub         *wshub.Hub
	Broadcaster *broadcast.Broadcaster
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	DB          *db.DB              // nil if no database configured
	Mirror      *mirror.RedisMirror // nil if no redis configured
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] Encode error: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func roomCode(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
}

// handleRoomSnapshot serves the live state of a room, or the mirrored copy
// once the room has been evicted.
func (s *Server) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	if room := s.Rooms.Get(code); room != nil {
		writeJSON(w, http.StatusOK, models.RoomReply{RoomCode: code, State: room.Snapshot()})
		return
	}

	if s.Mirror != nil {
		state, err := s.Mirror.Load(r.Context(), code)
		if err == nil {
			writeJSON(w, http.StatusOK, models.RoomReply{RoomCode: code, State: *state})
			return
		}
		if !errors.Is(err, mirror.ErrNotFound) {
			log.Printf("[Redis] %v\n", err)
		}
	}
	writeError(w, http.StatusNotFound, "Room not found")
}

// handleEvents streams a room's state changes to a read-only spectator.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	room := s.Rooms.Get(code)
	if room == nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgChan := s.Broadcaster.Subscribe(code)
	defer s.Broadcaster.Unsubscribe(code, msgChan)

	// Current state first, so spectators do not wait for the next vote.
	snapshot, err := json.Marshal(room.Snapshot())
	if err == nil {
		writeSSE(w, broadcast.SSEMessage{Event: "state", Msg: string(snapshot)})
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			writeSSE(w, msg)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, msg broadcast.SSEMessage) {
	fmt.Fprintf(w, "event: %s\n", msg.Event)
	for _, line := range strings.Split(msg.Msg, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	if s.Mirror != nil {
		if err := s.Mirror.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
