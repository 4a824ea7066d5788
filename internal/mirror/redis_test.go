package mirror

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"quickpoll/internal/events"
	"quickpoll/internal/models"
)

func TestKey(t *testing.T) {
	if got := Key("ABC234"); got != "poll:ABC234" {
		t.Errorf("Key = %q", got)
	}
}

func TestExpiry(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	ttl := 10 * time.Minute

	open := &models.RoomState{EndTime: now.Add(45 * time.Second).UnixMilli()}
	if got := Expiry(open, now, ttl); got != 45*time.Second+ttl {
		t.Errorf("open poll expiry = %v", got)
	}

	closed := &models.RoomState{EndTime: now.Add(-time.Second).UnixMilli(), Closed: true}
	if got := Expiry(closed, now, ttl); got != ttl {
		t.Errorf("closed poll expiry = %v", got)
	}

	if got := Expiry(closed, now, 0); got != time.Second {
		t.Errorf("zero retention expiry = %v, want 1s floor", got)
	}
}

func TestHandle_IgnoresUnknownEvents(t *testing.T) {
	m := &RedisMirror{queue: make(chan events.RoomEvent, 4)}
	m.Handle(events.RoomEvent{Name: events.Error, RoomCode: "R1"})
	m.Handle(events.RoomEvent{Name: events.StateUpdated, RoomCode: "R1"})
	if len(m.queue) != 1 {
		t.Errorf("queue = %d, want 1", len(m.queue))
	}
}

func TestRedisMirror_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_URL")
	if addr == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}

	ctx := context.Background()
	m, err := NewRedisMirror(ctx, addr, time.Minute, 10)
	if err != nil {
		t.Fatalf("NewRedisMirror() error: %v", err)
	}
	defer m.Close()

	now := time.Now()
	state := &models.RoomState{
		Question: "Lunch?",
		Options:  [2]string{"Pizza", "Sushi"},
		Votes:    map[string]int{"Pizza": 2, "Sushi": 1},
		Users:    map[string]models.UserState{},
		EndTime:  now.Add(time.Minute).UnixMilli(),
	}
	if err := m.apply(ctx, events.RoomEvent{Name: events.StateUpdated, RoomCode: "ITG234", State: state, At: now}); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(ctx, "ITG234")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Question != "Lunch?" || got.Votes["Pizza"] != 2 {
		t.Errorf("Load() = %+v", got)
	}

	if err := m.apply(ctx, events.RoomEvent{Name: events.RoomEvicted, RoomCode: "ITG234"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(ctx, "ITG234"); err != nil {
		t.Errorf("Load() after eviction error: %v", err)
	}
	if ttl := m.client.TTL(ctx, Key("ITG234")).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL after eviction = %v, want (0, 1m]", ttl)
	}

	m.client.Del(ctx, Key("ITG234"))
	if _, err := m.Load(ctx, "ITG234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() of missing key err = %v, want ErrNotFound", err)
	}
}
