package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quickpoll/internal/events"
	"quickpoll/internal/models"
)

// getTestDB uses TEST_DATABASE_URL when set and a throwaway SQLite file otherwise.
func getTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "sqlite://" + filepath.Join(t.TempDir(), "quickpoll.db")
	}
	database, err := Connect(dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		database.conn.Exec("DELETE FROM votes")
		database.conn.Exec("DELETE FROM polls")
		database.Close()
	})
	return database
}

func testPoll(id, code string) PollRecord {
	created := time.UnixMilli(1_700_000_000_000)
	return PollRecord{
		ID:        id,
		Code:      code,
		Question:  "Tabs or spaces?",
		OptionA:   "Tabs",
		OptionB:   "Spaces",
		Creator:   "alice",
		CreatedAt: created,
		EndTime:   created.Add(60 * time.Second),
	}
}

func TestDriverFor(t *testing.T) {
	cases := []struct {
		dsn, driver, source string
	}{
		{"postgres://u:p@localhost/quickpoll", DriverPostgres, "postgres://u:p@localhost/quickpoll"},
		{"postgresql://localhost/quickpoll", DriverPostgres, "postgresql://localhost/quickpoll"},
		{"sqlite:///var/lib/quickpoll.db", DriverSQLite, "/var/lib/quickpoll.db"},
		{"quickpoll.db", DriverSQLite, "quickpoll.db"},
	}
	for _, tc := range cases {
		driver, source := DriverFor(tc.dsn)
		if driver != tc.driver || source != tc.source {
			t.Errorf("DriverFor(%q) = %q, %q; want %q, %q", tc.dsn, driver, source, tc.driver, tc.source)
		}
	}
}

func TestRebind(t *testing.T) {
	d := &DB{driver: DriverSQLite}
	got := d.rebind("UPDATE polls SET closed_at = $2 WHERE id = $1 AND votes_a = $10")
	want := "UPDATE polls SET closed_at = ?2 WHERE id = ?1 AND votes_a = ?10"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	pg := &DB{driver: DriverPostgres}
	if q := pg.rebind("SELECT $1"); q != "SELECT $1" {
		t.Errorf("postgres query rewritten: %q", q)
	}
}

func TestConnect(t *testing.T) {
	database := getTestDB(t)
	if err := database.Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	database := getTestDB(t)
	if err := database.Migrate(); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
}

func TestCreateAndGetPoll(t *testing.T) {
	database := getTestDB(t)

	p := testPoll("poll-1", "ABC234")
	if err := database.CreatePoll(p); err != nil {
		t.Fatalf("CreatePoll() error: %v", err)
	}

	got, err := database.GetPoll("poll-1")
	if err != nil {
		t.Fatalf("GetPoll() error: %v", err)
	}
	if got.Code != "ABC234" || got.Question != p.Question || got.OptionA != "Tabs" || got.OptionB != "Spaces" {
		t.Errorf("GetPoll() = %+v", got)
	}
	if !got.EndTime.Equal(p.EndTime) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, p.EndTime)
	}
	if got.ClosedAt != nil {
		t.Error("new poll should not be closed")
	}
}

func TestGetPoll_NotFound(t *testing.T) {
	database := getTestDB(t)
	if _, err := database.GetPoll("missing"); err == nil {
		t.Error("GetPoll() should return error for nonexistent poll")
	}
}

func TestClosePoll(t *testing.T) {
	database := getTestDB(t)
	p := testPoll("poll-2", "DEF567")
	database.CreatePoll(p)

	if err := database.ClosePoll("poll-2", p.EndTime, 3, 4); err != nil {
		t.Fatalf("ClosePoll() error: %v", err)
	}

	got, _ := database.GetPoll("poll-2")
	if got.ClosedAt == nil || !got.ClosedAt.Equal(p.EndTime) {
		t.Errorf("ClosedAt = %v, want %v", got.ClosedAt, p.EndTime)
	}
	if got.VotesA != 3 || got.VotesB != 4 {
		t.Errorf("votes = %d/%d, want 3/4", got.VotesA, got.VotesB)
	}
}

func TestRecordVote_OnePerVoter(t *testing.T) {
	database := getTestDB(t)
	database.CreatePoll(testPoll("poll-3", "GHJ789"))

	now := time.Now()
	if err := database.RecordVote(VoteRecord{ID: "v1", PollID: "poll-3", Voter: "bob", Choice: "Tabs", CastAt: now}); err != nil {
		t.Fatalf("RecordVote() error: %v", err)
	}
	if err := database.RecordVote(VoteRecord{ID: "v2", PollID: "poll-3", Voter: "bob", Choice: "Spaces", CastAt: now}); err == nil {
		t.Error("second vote by the same voter should violate the unique constraint")
	}
}

func TestBatchRecordVotes(t *testing.T) {
	database := getTestDB(t)
	database.CreatePoll(testPoll("poll-4", "KMN234"))

	now := time.Now()
	votes := []VoteRecord{
		{ID: "b1", PollID: "poll-4", Voter: "a", Choice: "Tabs", CastAt: now},
		{ID: "b2", PollID: "poll-4", Voter: "b", Choice: "Spaces", CastAt: now},
		{ID: "b3", PollID: "poll-4", Voter: "c", Choice: "Tabs", CastAt: now},
	}
	if err := database.BatchRecordVotes(votes); err != nil {
		t.Fatalf("BatchRecordVotes() error: %v", err)
	}

	var count int
	database.QueryRow("SELECT COUNT(*) FROM votes WHERE poll_id = $1", "poll-4").Scan(&count)
	if count != 3 {
		t.Errorf("vote count = %d, want 3", count)
	}
}

func TestArchiver_WritesPollLifecycle(t *testing.T) {
	database := getTestDB(t)
	a := NewArchiver(database, 100)

	start := time.UnixMilli(1_700_000_000_000)
	state := &models.RoomState{
		Question: "Q",
		Options:  [2]string{"A", "B"},
		Votes:    map[string]int{"A": 0, "B": 0},
		EndTime:  start.Add(time.Minute).UnixMilli(),
	}
	final := &models.RoomState{
		Question: "Q",
		Options:  [2]string{"A", "B"},
		Votes:    map[string]int{"A": 1, "B": 1},
		EndTime:  state.EndTime,
		Closed:   true,
	}

	a.Handle(events.RoomEvent{Name: events.RoomCreated, RoomCode: "PQR234", User: "alice", State: state, At: start})
	a.Handle(events.RoomEvent{Name: events.UserJoined, RoomCode: "PQR234", User: "bob", State: state, At: start})
	a.Handle(events.RoomEvent{Name: events.StateUpdated, RoomCode: "PQR234", User: "alice", Option: "A", State: state, At: start})
	a.Handle(events.RoomEvent{Name: events.StateUpdated, RoomCode: "PQR234", User: "bob", Option: "B", State: state, At: start})
	a.Handle(events.RoomEvent{Name: events.PollClosed, RoomCode: "PQR234", State: final, At: start.Add(time.Minute)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	rows, err := database.Query(`
		SELECT id, code, question, option_a, option_b, creator, created_at, end_time, closed_at, votes_a, votes_b
		FROM polls WHERE code = $1
	`, "PQR234")
	if err != nil {
		t.Fatal(err)
	}
	polls, err := ScanPolls(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(polls) != 1 {
		t.Fatalf("archived polls = %d, want 1", len(polls))
	}
	p := polls[0]
	if p.Creator != "alice" || p.ClosedAt == nil || p.VotesA != 1 || p.VotesB != 1 {
		t.Errorf("archived poll = %+v", p)
	}

	var count int
	database.QueryRow("SELECT COUNT(*) FROM votes WHERE poll_id = $1", p.ID).Scan(&count)
	if count != 2 {
		t.Errorf("archived votes = %d, want 2", count)
	}
}

func TestArchiver_DropsWhenFull(t *testing.T) {
	a := NewArchiver(nil, 1)
	a.Handle(events.RoomEvent{Name: events.StateUpdated, RoomCode: "X"})
	// Should not block
	a.Handle(events.RoomEvent{Name: events.StateUpdated, RoomCode: "X"})
	if len(a.queue) != 1 {
		t.Errorf("queue = %d, want 1", len(a.queue))
	}
}
