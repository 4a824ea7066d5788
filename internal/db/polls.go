package db

import (
	"database/sql"
	"fmt"
	"time"
)

type PollRecord struct {
	ID        string
	Code      string
	Question  string
	OptionA   string
	OptionB   string
	Creator   string
	CreatedAt time.Time
	EndTime   time.Time
	ClosedAt  *time.Time
	VotesA    int
	VotesB    int
}

type VoteRecord struct {
	ID     string
	PollID string
	Voter  string
	Choice string
	CastAt time.Time
}

func (d *DB) CreatePoll(p PollRecord) error {
	_, err := d.Exec(`
		INSERT INTO polls (id, code, question, option_a, option_b, creator, created_at, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Code, p.Question, p.OptionA, p.OptionB, p.Creator, p.CreatedAt.UnixMilli(), p.EndTime.UnixMilli())
	if err != nil {
		return fmt.Errorf("creating poll: %w", err)
	}
	return nil
}

// ClosePoll stores the final tallies of a poll.
func (d *DB) ClosePoll(id string, closedAt time.Time, votesA, votesB int) error {
	_, err := d.Exec(`
		UPDATE polls SET closed_at = $2, votes_a = $3, votes_b = $4 WHERE id = $1
	`, id, closedAt.UnixMilli(), votesA, votesB)
	if err != nil {
		return fmt.Errorf("closing poll: %w", err)
	}
	return nil
}

func (d *DB) GetPoll(id string) (*PollRecord, error) {
	row := d.QueryRow(`
		SELECT id, code, question, option_a, option_b, creator, created_at, end_time, closed_at, votes_a, votes_b
		FROM polls WHERE id = $1
	`, id)
	p, err := scanPoll(row)
	if err != nil {
		return nil, fmt.Errorf("getting poll: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*PollRecord, error) {
	var (
		p                  PollRecord
		createdAt, endTime int64
		closedAt           sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Code, &p.Question, &p.OptionA, &p.OptionB, &p.Creator,
		&createdAt, &endTime, &closedAt, &p.VotesA, &p.VotesB)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdAt)
	p.EndTime = time.UnixMilli(endTime)
	if closedAt.Valid {
		t := time.UnixMilli(closedAt.Int64)
		p.ClosedAt = &t
	}
	return &p, nil
}

// ScanPolls reads every poll row from rows and closes it.
func ScanPolls(rows *sql.Rows) ([]PollRecord, error) {
	defer rows.Close()
	var out []PollRecord
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning poll: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (d *DB) RecordVote(v VoteRecord) error {
	_, err := d.Exec(`
		INSERT INTO votes (id, poll_id, voter, choice, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.PollID, v.Voter, v.Choice, v.CastAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording vote: %w", err)
	}
	return nil
}

func (d *DB) BatchRecordVotes(votes []VoteRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(d.rebind(`
		INSERT INTO votes (id, poll_id, voter, choice, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range votes {
		if _, err := stmt.Exec(v.ID, v.PollID, v.Voter, v.Choice, v.CastAt.UnixMilli()); err != nil {
			return fmt.Errorf("recording vote in batch: %w", err)
		}
	}

	return tx.Commit()
}
