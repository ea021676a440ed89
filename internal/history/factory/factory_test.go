package factory

import (
	"context"
	"testing"
	"time"

	"github.com/loykin/devrun/internal/history"
)

func TestEmptyDSNRejected(t *testing.T) {
	if _, err := NewSinkFromDSN(""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, err := NewSinkFromDSN("   "); err == nil {
		t.Fatalf("expected error for blank DSN")
	}
}

func TestUnsupportedSchemeRejected(t *testing.T) {
	if _, err := NewSinkFromDSN("redis://localhost:6379"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestSQLiteDSNVariants(t *testing.T) {
	for _, dsn := range []string{"sqlite://:memory:", ":memory:"} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("NewSinkFromDSN(%q): %v", dsn, err)
		}
		e := history.Event{Type: history.EventLaunch, OccurredAt: time.Now(), Service: "svc", PID: 1}
		if err := sink.Send(context.Background(), e); err != nil {
			t.Fatalf("Send via %q: %v", dsn, err)
		}
		_ = sink.Close()
	}
}
