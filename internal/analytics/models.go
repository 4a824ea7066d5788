package analytics

import "time"

type PollSummary struct {
	ID        string     `json:"id"`
	Code      string     `json:"roomCode"`
	Question  string     `json:"question"`
	Options   [2]string  `json:"options"`
	Creator   string     `json:"creator"`
	CreatedAt time.Time  `json:"createdAt"`
	EndTime   time.Time  `json:"endTime"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	Votes     [2]int     `json:"votes"`
}

// Winner returns the option with more votes, or "" on a tie.
func (p PollSummary) Winner() string {
	switch {
	case p.Votes[0] > p.Votes[1]:
		return p.Options[0]
	case p.Votes[1] > p.Votes[0]:
		return p.Options[1]
	}
	return ""
}

type Ballot struct {
	Voter  string    `json:"voter"`
	Choice string    `json:"choice"`
	CastAt time.Time `json:"castAt"`
}

type PollDetail struct {
	PollSummary
	Ballots []Ballot `json:"ballots"`
}
