// Package models holds the JSON shapes exchanged with poll clients.
package models

// UserState is the per-user record in a room snapshot. Voted is null until
// the user casts a vote.
type UserState struct {
	Voted *string `json:"voted"`
}

// RoomState is the full room snapshot sent to clients.
type RoomState struct {
	Question string               `json:"question"`
	Options  [2]string            `json:"options"`
	Votes    map[string]int       `json:"votes"`
	Users    map[string]UserState `json:"users"`
	EndTime  int64                `json:"endTime"` // epoch ms
	Closed   bool                 `json:"closed"`
}

// TotalVotes sums the tallies of both options.
func (s RoomState) TotalVotes() int {
	total := 0
	for _, n := range s.Votes {
		total += n
	}
	return total
}

type CreateRoomRequest struct {
	Name     string   `json:"name"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type JoinRoomRequest struct {
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
}

type VoteRequest struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	Option   string `json:"option"`
}

// RoomReply answers create_room and join_room.
type RoomReply struct {
	RoomCode string    `json:"roomCode"`
	State    RoomState `json:"state"`
}
