package db

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"quickpoll/internal/events"
)

const (
	archiveBatchSize     = 50
	archiveFlushInterval = 500 * time.Millisecond
)

// Archiver is a broadcast sink that writes polls and their votes to the
// database. Handle only queues; Run does the writing.
type Archiver struct {
	db    *DB
	queue chan events.RoomEvent
	polls map[string]string // room code -> poll id, owned by Run
	batch []VoteRecord
}

func NewArchiver(database *DB, size int) *Archiver {
	return &Archiver{
		db:    database,
		queue: make(chan events.RoomEvent, size),
		polls: make(map[string]string),
		batch: make([]VoteRecord, 0, archiveBatchSize),
	}
}

func (a *Archiver) Handle(ev events.RoomEvent) {
	switch ev.Name {
	case events.RoomCreated, events.StateUpdated, events.PollClosed, events.RoomEvicted:
	default:
		return
	}
	select {
	case a.queue <- ev:
	default:
		log.Printf("[DB] Archive buffer full, dropping %s for %s\n", ev.Name, ev.RoomCode)
	}
}

// Run writes queued events until ctx is done, flushing votes in batches.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(archiveFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.drain()
			a.flush()
			return
		case ev := <-a.queue:
			a.apply(ev)
		case <-ticker.C:
			a.flush()
		}
	}
}

func (a *Archiver) drain() {
	for {
		select {
		case ev := <-a.queue:
			a.apply(ev)
		default:
			return
		}
	}
}

func (a *Archiver) apply(ev events.RoomEvent) {
	switch ev.Name {
	case events.RoomCreated:
		if ev.State == nil {
			return
		}
		id := uuid.New().String()
		err := a.db.CreatePoll(PollRecord{
			ID:        id,
			Code:      ev.RoomCode,
			Question:  ev.State.Question,
			OptionA:   ev.State.Options[0],
			OptionB:   ev.State.Options[1],
			Creator:   ev.User,
			CreatedAt: ev.At,
			EndTime:   time.UnixMilli(ev.State.EndTime),
		})
		if err != nil {
			log.Printf("[DB] CreatePoll error: %v\n", err)
			return
		}
		a.polls[ev.RoomCode] = id

	case events.StateUpdated:
		id, ok := a.polls[ev.RoomCode]
		if !ok {
			return
		}
		a.batch = append(a.batch, VoteRecord{
			ID:     uuid.New().String(),
			PollID: id,
			Voter:  ev.User,
			Choice: ev.Option,
			CastAt: ev.At,
		})
		if len(a.batch) >= archiveBatchSize {
			a.flush()
		}

	case events.PollClosed:
		id, ok := a.polls[ev.RoomCode]
		if !ok || ev.State == nil {
			return
		}
		a.flush()
		votesA := ev.State.Votes[ev.State.Options[0]]
		votesB := ev.State.Votes[ev.State.Options[1]]
		if err := a.db.ClosePoll(id, ev.At, votesA, votesB); err != nil {
			log.Printf("[DB] ClosePoll error: %v\n", err)
		}

	case events.RoomEvicted:
		delete(a.polls, ev.RoomCode)
	}
}

func (a *Archiver) flush() {
	if len(a.batch) == 0 {
		return
	}
	if err := a.db.BatchRecordVotes(a.batch); err != nil {
		log.Printf("[DB] BatchRecordVotes error: %v\n", err)
	}
	a.batch = a.batch[:0]
}
