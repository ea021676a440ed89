package devrun

import (
	"io"
	"log/slog"

	"github.com/loykin/devrun/internal/history"
	"github.com/loykin/devrun/internal/history/factory"
	"github.com/loykin/devrun/internal/logger"
	"github.com/loykin/devrun/internal/registry"
	"github.com/loykin/devrun/internal/relay"
	"github.com/loykin/devrun/internal/service"
	"github.com/loykin/devrun/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = service.Spec

type Status = supervisor.Status

type State = supervisor.State

const (
	StateRunning      = supervisor.StateRunning
	StateShuttingDown = supervisor.StateShuttingDown
	StateStopped      = supervisor.StateStopped
)

type Supervisor = supervisor.Supervisor

type Option = supervisor.Option

type HistorySink = history.Sink

// Replacement rewrites one glyph (or mojibake byte sequence) in relayed
// output to an ASCII substitute before the generic non-ASCII strip runs.
type Replacement = relay.Replacement

// Sanitizer normalizes relayed output lines to plain ASCII.
type Sanitizer = relay.Sanitizer

// DefaultReplacements is the substitution table a supervisor uses unless
// overridden with WithSanitizer.
var DefaultReplacements = relay.DefaultReplacements

// New builds a session supervisor recording pidfiles under pidDir and
// relaying child output to out.
func New(pidDir string, out io.Writer, log *slog.Logger, opts ...Option) *Supervisor {
	return supervisor.New(registry.New(pidDir), out, log, opts...)
}

// WithHistory routes session lifecycle events into sink.
func WithHistory(sink HistorySink) Option { return supervisor.WithHistory(sink) }

// WithGlobalEnv appends extra K=V pairs to every child's environment.
func WithGlobalEnv(kvs []string) Option { return supervisor.WithGlobalEnv(kvs) }

// NewSanitizer builds a sanitizer from a substitution table. Extend
// DefaultReplacements with additional entries rather than replacing it when
// the stock glyph handling should be kept.
func NewSanitizer(reps []Replacement) *Sanitizer { return relay.NewSanitizer(reps) }

// WithSanitizer overrides the relay glyph substitution table for every
// service of the session.
func WithSanitizer(s *Sanitizer) Option { return supervisor.WithSanitizer(s) }

// NewHistorySink builds a history sink from a DSN (sqlite or postgres).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// DefaultLogger returns the colored stderr logger the CLI uses.
func DefaultLogger() *slog.Logger { return logger.Default() }
