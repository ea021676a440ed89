package history

import (
	"context"
	"time"
)

// EventType defines the kind of session lifecycle event.
type EventType string

const (
	EventLaunch          EventType = "launch"
	EventExit            EventType = "exit"
	EventStop            EventType = "stop"
	EventTerminateFailed EventType = "terminate_failed"
)

// Event is one audit entry for a service in a session. Detail carries
// free-form context such as the exit error or the tolerated termination
// failure reason.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Service    string    `json:"service"`
	PID        int       `json:"pid"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for session history events. Implementations must be
// safe for concurrent use. Sinks are audit-only: callers log send failures
// and carry on.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
