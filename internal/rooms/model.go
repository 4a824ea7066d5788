package rooms

import (
	"sync"
	"time"

	"quickpoll/internal/clock"
	"quickpoll/internal/events"
	"quickpoll/internal/models"
)

// Room is a two-option poll. Everything below mu is guarded by it, and every
// change is published on the bus while mu is held, so a room's events reach
// the bus in the order they happened.
type Room struct {
	Code      string
	Question  string
	Options   [2]string
	CreatedAt time.Time
	EndTime   time.Time

	mu     sync.Mutex
	votes  map[string]int
	users  map[string]*User
	closed bool
	timer  clock.Timer
	clock  clock.Clock
	bus    *events.Bus
}

// User is a registered participant. Voted is empty until the user votes.
type User struct {
	Voted string
}

func newRoom(code, creator, question string, options [2]string, clk clock.Clock, bus *events.Bus, duration time.Duration) *Room {
	now := clk.Now()
	return &Room{
		Code:      code,
		Question:  question,
		Options:   options,
		CreatedAt: now,
		EndTime:   now.Add(duration),
		votes:     map[string]int{options[0]: 0, options[1]: 0},
		users:     map[string]*User{creator: {}},
		clock:     clk,
		bus:       bus,
	}
}

func (r *Room) Snapshot() models.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() models.RoomState {
	state := models.RoomState{
		Question: r.Question,
		Options:  r.Options,
		Votes:    make(map[string]int, len(r.votes)),
		Users:    make(map[string]models.UserState, len(r.users)),
		EndTime:  r.EndTime.UnixMilli(),
		Closed:   r.closed,
	}
	for o, n := range r.votes {
		state.Votes[o] = n
	}
	for name, u := range r.users {
		var voted *string
		if u.Voted != "" {
			v := u.Voted
			voted = &v
		}
		state.Users[name] = models.UserState{Voted: voted}
	}
	return state
}

func (r *Room) publishLocked(name, user, option string) models.RoomState {
	state := r.snapshotLocked()
	if r.bus != nil {
		r.bus.Publish(events.RoomEvent{
			Name:     name,
			RoomCode: r.Code,
			User:     user,
			Option:   option,
			State:    &state,
			At:       r.clock.Now(),
		})
	}
	return state
}

// Join registers name as a new user of the room.
func (r *Room) Join(name string) (models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.users[name]; taken {
		return models.RoomState{}, ErrNameTaken
	}
	r.users[name] = &User{}
	return r.publishLocked(events.UserJoined, name, ""), nil
}

// Vote records a single vote for name. Checks run in order: open poll,
// registered user, first vote, valid option.
func (r *Room) Vote(name, option string) (models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.clock.Now().Before(r.EndTime) {
		return models.RoomState{}, ErrPollClosed
	}
	user, ok := r.users[name]
	if !ok {
		return models.RoomState{}, ErrUnknownUser
	}
	if user.Voted != "" {
		return models.RoomState{}, ErrAlreadyVoted
	}
	if option != r.Options[0] && option != r.Options[1] {
		return models.RoomState{}, ErrInvalidOption
	}

	r.votes[option]++
	user.Voted = option
	return r.publishLocked(events.StateUpdated, name, option), nil
}

// Close marks the poll closed and publishes the final state. Only the first
// call has an effect; it reports whether this call closed the room.
func (r *Room) Close() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.publishLocked(events.PollClosed, "", "")
	return true
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) HasUser(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[name]
	return ok
}

func (r *Room) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}
