package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"quickpoll/internal/events"
	"quickpoll/internal/models"
)

// ErrRejected is returned when the server refuses to create or join a room.
var ErrRejected = errors.New("rejected by server")

// Session drives one CLI run: enter a room, optionally vote, then follow
// the room until its poll closes.
type Session struct {
	conn  *Conn
	cache *VoteCache
	out   io.Writer

	name     string
	roomCode string
}

func NewSession(conn *Conn, cache *VoteCache, out io.Writer) *Session {
	return &Session{conn: conn, cache: cache, out: out}
}

func (s *Session) RoomCode() string {
	return s.roomCode
}

func (s *Session) Run(ctx context.Context, opts Options) error {
	s.name = opts.Name

	reply, err := s.enter(ctx, opts)
	if err != nil {
		return err
	}
	s.roomCode = reply.RoomCode
	fmt.Fprintf(s.out, "Room %s: %s\n", reply.RoomCode, reply.State.Question)
	s.printState(reply.State)

	if reply.State.Closed {
		return s.finish()
	}

	if opts.Vote != "" {
		if err := s.vote(ctx, opts.Vote); err != nil {
			return err
		}
	}

	for {
		msg, err := s.conn.Next(ctx)
		if err != nil {
			return err
		}

		switch msg.Event {
		case events.StateUpdated:
			var state models.RoomState
			if err := json.Unmarshal(msg.Data, &state); err != nil {
				log.Printf("[Client] Bad state: %v\n", err)
				continue
			}
			s.printState(state)
			s.remember(state)

		case events.PollClosed:
			if msg.Data != nil {
				var state models.RoomState
				if err := json.Unmarshal(msg.Data, &state); err == nil {
					fmt.Fprintln(s.out, "Poll closed. Final results:")
					s.printState(state)
				}
			} else {
				fmt.Fprintln(s.out, "Poll is closed.")
			}
			return s.finish()

		case events.AlreadyVoted:
			fmt.Fprintln(s.out, "You have already voted in this room.")

		case events.Error:
			fmt.Fprintf(s.out, "Error: %s\n", errorText(msg.Data))
		}
	}
}

func (s *Session) enter(ctx context.Context, opts Options) (models.RoomReply, error) {
	var want string
	if opts.RoomCode != "" {
		want = events.Joined
		err := s.conn.Send(ctx, events.JoinRoom, models.JoinRoomRequest{Name: opts.Name, RoomCode: opts.RoomCode})
		if err != nil {
			return models.RoomReply{}, err
		}
	} else {
		want = events.RoomCreated
		err := s.conn.Send(ctx, events.CreateRoom, models.CreateRoomRequest{
			Name:     opts.Name,
			Question: opts.Question,
			Options:  opts.Choices,
		})
		if err != nil {
			return models.RoomReply{}, err
		}
	}

	for {
		msg, err := s.conn.Next(ctx)
		if err != nil {
			return models.RoomReply{}, err
		}
		switch msg.Event {
		case want:
			var reply models.RoomReply
			if err := json.Unmarshal(msg.Data, &reply); err != nil {
				return models.RoomReply{}, fmt.Errorf("decoding %s: %w", want, err)
			}
			return reply, nil
		case events.Error:
			return models.RoomReply{}, fmt.Errorf("%w: %s", ErrRejected, errorText(msg.Data))
		}
	}
}

func (s *Session) vote(ctx context.Context, option string) error {
	key := VoteKey(s.roomCode, s.name)
	if prev, ok := s.cache.Get(key); ok {
		fmt.Fprintf(s.out, "Already voted for %q in this room.\n", prev)
		return nil
	}
	return s.conn.Send(ctx, events.Vote, models.VoteRequest{
		RoomCode: s.roomCode,
		Name:     s.name,
		Option:   option,
	})
}

// remember caches our own vote once the server has counted it.
func (s *Session) remember(state models.RoomState) {
	u, ok := state.Users[s.name]
	if !ok || u.Voted == nil {
		return
	}
	if err := s.cache.Set(VoteKey(s.roomCode, s.name), *u.Voted); err != nil {
		log.Printf("[Client] %v\n", err)
	}
}

func (s *Session) finish() error {
	if err := s.cache.Delete(VoteKey(s.roomCode, s.name)); err != nil {
		log.Printf("[Client] %v\n", err)
	}
	return nil
}

func (s *Session) printState(state models.RoomState) {
	parts := make([]string, 0, len(state.Options))
	for _, o := range state.Options {
		parts = append(parts, fmt.Sprintf("%s: %d", o, state.Votes[o]))
	}
	status := "open"
	if state.Closed {
		status = "closed"
	}
	fmt.Fprintf(s.out, "  %s  (%d users, %s)\n", strings.Join(parts, "  "), len(state.Users), status)
}

func errorText(data json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(data, &msg); err != nil {
		return string(data)
	}
	return msg
}
