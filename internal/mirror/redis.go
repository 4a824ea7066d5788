package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"quickpoll/internal/events"
	"quickpoll/internal/models"
)

var ErrNotFound = errors.New("snapshot not found")

// RedisMirror keeps the latest snapshot of every room in Redis so it can
// still be served for a while after the room has left memory.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	queue  chan events.RoomEvent
}

func NewRedisMirror(ctx context.Context, addr string, ttl time.Duration, size int) (*RedisMirror, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %v", err)
	}

	c := redis.NewClient(opts)

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("error connecting to redis: %v", err)
	}

	return &RedisMirror{
		client: c,
		ttl:    ttl,
		queue:  make(chan events.RoomEvent, size),
	}, nil
}

func Key(code string) string {
	return fmt.Sprintf("poll:%s", code)
}

// Expiry is how long a snapshot taken at now should live: the rest of the
// poll plus the closed-room retention.
func Expiry(state *models.RoomState, now time.Time, ttl time.Duration) time.Duration {
	remaining := time.UnixMilli(state.EndTime).Sub(now)
	if remaining < 0 || state.Closed {
		remaining = 0
	}
	exp := remaining + ttl
	if exp < time.Second {
		exp = time.Second
	}
	return exp
}

func (m *RedisMirror) Handle(ev events.RoomEvent) {
	switch ev.Name {
	case events.RoomCreated, events.UserJoined, events.StateUpdated, events.PollClosed, events.RoomEvicted:
	default:
		return
	}
	select {
	case m.queue <- ev:
	default:
		log.Printf("[Redis] Queue full, dropping %s for %s\n", ev.Name, ev.RoomCode)
	}
}

// Run applies queued events until ctx is done.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.queue:
			if err := m.apply(ctx, ev); err != nil {
				log.Printf("[Redis] %v\n", err)
			}
		}
	}
}

func (m *RedisMirror) apply(ctx context.Context, ev events.RoomEvent) error {
	// An evicted room keeps its last snapshot for one more retention period.
	if ev.Name == events.RoomEvicted {
		if err := m.client.Expire(ctx, Key(ev.RoomCode), m.ttl).Err(); err != nil {
			return fmt.Errorf("error extending %s: %v", ev.RoomCode, err)
		}
		return nil
	}
	if ev.State == nil {
		return nil
	}
	return m.Save(ctx, ev.RoomCode, ev.State, ev.At)
}

func (m *RedisMirror) Save(ctx context.Context, code string, state *models.RoomState, now time.Time) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error marshaling snapshot: %v", err)
	}
	if err := m.client.Set(ctx, Key(code), b, Expiry(state, now, m.ttl)).Err(); err != nil {
		return fmt.Errorf("error saving snapshot %s: %v", code, err)
	}
	return nil
}

func (m *RedisMirror) Load(ctx context.Context, code string) (*models.RoomState, error) {
	b, err := m.client.Get(ctx, Key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading snapshot %s: %v", code, err)
	}

	var state models.RoomState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("error decoding snapshot %s: %v", code, err)
	}
	return &state, nil
}

func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) Close() error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %v", err)
	}
	return nil
}
