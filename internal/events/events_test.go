package events

import (
	"encoding/json"
	"testing"
	"time"

	"quickpoll/internal/models"
)

func TestEncode_WithPayload(t *testing.T) {
	frame, err := Encode(Error, "Room not found")
	if err != nil {
		t.Fatal(err)
	}
	if string(frame) != `{"event":"error","data":"Room not found"}` {
		t.Errorf("frame = %s", frame)
	}
}

func TestEncode_WithoutPayload(t *testing.T) {
	frame, err := Encode(PollClosed, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(frame) != `{"event":"poll_closed"}` {
		t.Errorf("frame = %s", frame)
	}
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"event":"vote","data":{"roomCode":"ABC234","name":"ann","option":"A"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if env.Event != Vote {
		t.Errorf("Event = %q, want %q", env.Event, Vote)
	}
	var req models.VoteRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.RoomCode != "ABC234" || req.Name != "ann" || req.Option != "A" {
		t.Errorf("decoded %+v", req)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, frame := range []string{`not json`, `{"data":1}`, `{"event":""}`} {
		if _, err := Decode([]byte(frame)); err == nil {
			t.Errorf("Decode(%q) should fail", frame)
		}
	}
}

func TestBus_PreservesOrder(t *testing.T) {
	bus := NewBus(10)
	for _, name := range []string{RoomCreated, StateUpdated, PollClosed} {
		bus.Publish(RoomEvent{Name: name, RoomCode: "ABC234"})
	}

	for _, want := range []string{RoomCreated, StateUpdated, PollClosed} {
		select {
		case ev := <-bus.Events:
			if ev.Name != want {
				t.Errorf("got %q, want %q", ev.Name, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}
