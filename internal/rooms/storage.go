package rooms

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"quickpoll/internal/clock"
	"quickpoll/internal/events"
)

type Config struct {
	PollDuration time.Duration
	// ClosedTTL is how long a closed room stays addressable after its end
	// time. Zero keeps closed rooms for the life of the process.
	ClosedTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollDuration: 60 * time.Second,
		ClosedTTL:    10 * time.Minute,
	}
}

type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
	cfg   Config
	bus   *events.Bus
	clock clock.Clock
}

func NewStore(cfg Config, bus *events.Bus, clk clock.Clock) *Store {
	return &Store{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		bus:   bus,
		clock: clk,
	}
}

// Create validates the poll, registers the creator as its first user and
// schedules the closing deadline.
func (s *Store) Create(name, question string, options []string) (*Room, error) {
	if len(options) != 2 {
		return nil, ErrOptionCount
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(options[0]) == "" || strings.TrimSpace(options[1]) == "" || options[0] == options[1] {
		return nil, ErrBadOptions
	}

	s.mu.Lock()
	var room *Room
	// Try up to 10 times to generate a unique code
	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}
		room = newRoom(code, name, question, [2]string{options[0], options[1]}, s.clock, s.bus, s.cfg.PollDuration)
		s.rooms[code] = room
		break
	}
	if room == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to generate unique room code after 10 attempts")
	}
	room.mu.Lock()
	s.mu.Unlock()

	room.timer = s.clock.AfterFunc(room.EndTime.Sub(room.CreatedAt), func() {
		if room.Close() {
			log.Printf("[Rooms] Poll %s closed\n", room.Code)
		}
	})
	room.publishLocked(events.RoomCreated, name, "")
	room.mu.Unlock()
	return room, nil
}

func (s *Store) Get(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[code]
}

// Join adds name to the room with the given code.
func (s *Store) Join(code, name string) (*Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	room := s.Get(code)
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if _, err := room.Join(name); err != nil {
		return nil, err
	}
	return room, nil
}

// Vote casts name's vote in the room with the given code.
func (s *Store) Vote(code, name, option string) (*Room, error) {
	room := s.Get(code)
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if _, err := room.Vote(name, option); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Store) Delete(code string) {
	s.mu.Lock()
	room, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if ok {
		room.stopTimer()
	}
}

func (s *Store) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

// Sweep evicts closed rooms whose end time is at least ClosedTTL before now
// and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.cfg.ClosedTTL <= 0 {
		return 0
	}
	s.mu.Lock()
	var evicted []string
	for code, room := range s.rooms {
		if room.Closed() && now.Sub(room.EndTime) >= s.cfg.ClosedTTL {
			delete(s.rooms, code)
			evicted = append(evicted, code)
		}
	}
	s.mu.Unlock()

	for _, code := range evicted {
		if s.bus != nil {
			s.bus.Publish(events.RoomEvent{Name: events.RoomEvicted, RoomCode: code, At: now})
		}
	}
	return len(evicted)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.cfg.ClosedTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.clock.Now()); n > 0 {
				log.Printf("[Rooms] Evicted %d closed rooms\n", n)
			}
		}
	}
}
