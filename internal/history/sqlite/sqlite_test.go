package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/devrun/internal/history"
)

func TestSinkWritesEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventLaunch, OccurredAt: time.Now(), Service: "backend", PID: 100},
		{Type: history.EventStop, OccurredAt: time.Now(), Service: "backend", PID: 100},
		{Type: history.EventTerminateFailed, OccurredAt: time.Now(), Service: "frontend", PID: 101, Detail: "no such process"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Send(%s): %v", e.Type, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open for verification: %v", err)
	}
	defer func() { _ = db.Close() }()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM session_history`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(events) {
		t.Fatalf("row count = %d, want %d", n, len(events))
	}

	var detail string
	err = db.QueryRow(
		`SELECT detail FROM session_history WHERE event = ?`,
		string(history.EventTerminateFailed),
	).Scan(&detail)
	if err != nil {
		t.Fatalf("select detail: %v", err)
	}
	if detail != "no such process" {
		t.Fatalf("detail = %q", detail)
	}
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestNewInMemory(t *testing.T) {
	sink, err := New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	defer func() { _ = sink.Close() }()
	e := history.Event{Type: history.EventLaunch, OccurredAt: time.Now(), Service: "svc", PID: 1}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
