package analytics

import (
	"errors"
	"fmt"
	"time"

	"quickpoll/internal/db"
)

var ErrNotFound = errors.New("poll not found")

const pollColumns = `id, code, question, option_a, option_b, creator, created_at, end_time, closed_at, votes_a, votes_b`

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

func summaryFrom(p db.PollRecord) PollSummary {
	return PollSummary{
		ID:        p.ID,
		Code:      p.Code,
		Question:  p.Question,
		Options:   [2]string{p.OptionA, p.OptionB},
		Creator:   p.Creator,
		CreatedAt: p.CreatedAt,
		EndTime:   p.EndTime,
		ClosedAt:  p.ClosedAt,
		Votes:     [2]int{p.VotesA, p.VotesB},
	}
}

// RecentPolls returns archived polls, newest first.
func (q *Queries) RecentPolls(limit int) ([]PollSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.DB.Query(`
		SELECT `+pollColumns+`
		FROM polls
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing polls: %w", err)
	}
	records, err := db.ScanPolls(rows)
	if err != nil {
		return nil, err
	}

	out := make([]PollSummary, 0, len(records))
	for _, r := range records {
		out = append(out, summaryFrom(r))
	}
	return out, nil
}

// PollSummary returns the most recent poll archived under code with its ballots.
func (q *Queries) PollSummary(code string) (*PollDetail, error) {
	rows, err := q.DB.Query(`
		SELECT `+pollColumns+`
		FROM polls
		WHERE code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	if err != nil {
		return nil, fmt.Errorf("getting poll %s: %w", code, err)
	}
	records, err := db.ScanPolls(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	detail := &PollDetail{PollSummary: summaryFrom(records[0]), Ballots: []Ballot{}}

	ballots, err := q.DB.Query(`
		SELECT voter, choice, cast_at
		FROM votes
		WHERE poll_id = $1
		ORDER BY cast_at, voter
	`, detail.ID)
	if err != nil {
		return nil, fmt.Errorf("getting ballots: %w", err)
	}
	defer ballots.Close()

	for ballots.Next() {
		var (
			b      Ballot
			castAt int64
		)
		if err := ballots.Scan(&b.Voter, &b.Choice, &castAt); err != nil {
			return nil, err
		}
		b.CastAt = time.UnixMilli(castAt)
		detail.Ballots = append(detail.Ballots, b)
	}
	if err := ballots.Err(); err != nil {
		return nil, err
	}

	// Open polls have no stored tallies yet.
	if detail.ClosedAt == nil {
		detail.Votes = [2]int{}
		for _, b := range detail.Ballots {
			switch b.Choice {
			case detail.Options[0]:
				detail.Votes[0]++
			case detail.Options[1]:
				detail.Votes[1]++
			}
		}
	}
	return detail, nil
}
