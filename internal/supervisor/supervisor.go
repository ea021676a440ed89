package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/devrun/internal/history"
	"github.com/loykin/devrun/internal/metrics"
	"github.com/loykin/devrun/internal/registry"
	"github.com/loykin/devrun/internal/relay"
	"github.com/loykin/devrun/internal/service"
)

// State of the shutdown machine. ShuttingDown is entered exactly once per
// session; a repeated interrupt after Stopped is a no-op.
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateStopped
)

// LaunchError wraps a child start failure. It is fatal to the whole start
// sequence: a development session with a missing service is useless.
type LaunchError struct {
	Service string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Service, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Child is the runtime binding produced by launching a service spec. The PID
// is referenced, never owned; the OS keeps ownership of the process.
type Child struct {
	Spec      service.Spec
	PID       int
	StartedAt time.Time

	cmd   *exec.Cmd
	stdin io.WriteCloser // present only for interactive specs

	mu      sync.Mutex
	running bool
}

// Running reports whether the child's output stream is still open.
func (c *Child) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Child) markExited() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Status is a point-in-time view of a child, JSON-shaped for the status API.
type Status struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
}

// Supervisor launches the configured services, relays their output, and
// coordinates shutdown. One supervisor runs one session.
type Supervisor struct {
	reg        *registry.Registry
	logger     *slog.Logger
	out        io.Writer // sync writer shared by all relays
	hist       history.Sink
	sanitizer  *relay.Sanitizer
	globalEnv  []string
	labelWidth int

	mu       sync.Mutex
	children []*Child
	state    State
	sealed   bool // launch sequence finished; done may now close

	wg           sync.WaitGroup
	done         chan struct{}
	doneOnce     sync.Once
	shutdownOnce sync.Once
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithHistory routes session lifecycle events into sink. Send failures are
// logged, never fatal.
func WithHistory(sink history.Sink) Option {
	return func(s *Supervisor) { s.hist = sink }
}

// WithSanitizer overrides the relay glyph substitution table.
func WithSanitizer(sz *relay.Sanitizer) Option {
	return func(s *Supervisor) { s.sanitizer = sz }
}

// WithGlobalEnv appends extra K=V pairs to every child's environment.
func WithGlobalEnv(kvs []string) Option {
	return func(s *Supervisor) { s.globalEnv = kvs }
}

// New builds a supervisor writing relayed output to out and recording PIDs in
// reg. All relays share one synchronized writer so lines never interleave.
func New(reg *registry.Registry, out io.Writer, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		reg:    reg,
		logger: logger,
		out:    relay.NewSyncWriter(out),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LaunchAll starts every spec in order. The first failure aborts the
// sequence; whatever already launched stays recorded so a stop cycle can
// clean it up. Once LaunchAll returns, the launch sequence is sealed and
// Done may close; an early exit of the first child while later children are
// still being launched never ends the session.
func (s *Supervisor) LaunchAll(specs []service.Spec) error {
	defer s.seal()
	width := 0
	for _, sp := range specs {
		if len(sp.Name) > width {
			width = len(sp.Name)
		}
	}
	s.labelWidth = width
	for i := range specs {
		if _, err := s.Launch(specs[i]); err != nil {
			return err
		}
	}
	return nil
}

// seal marks the launch sequence complete. If every launched child already
// exited before sealing, done closes here instead of in reap.
func (s *Supervisor) seal() {
	s.mu.Lock()
	s.sealed = true
	allDone := len(s.children) > 0 && s.countRunning() == 0
	s.mu.Unlock()
	if allDone {
		s.wg.Wait()
		s.doneOnce.Do(func() { close(s.done) })
	}
}

// Launch starts one child: stderr merged into stdout, stdin piped only for
// interactive specs, PID recorded before the first line is relayed.
func (s *Supervisor) Launch(spec service.Spec) (*Child, error) {
	if err := spec.Validate(); err != nil {
		return nil, &LaunchError{Service: spec.Name, Err: err}
	}

	cmd := spec.BuildCommand()
	if env := append(append([]string{}, s.globalEnv...), spec.Env...); len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	setSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Service: spec.Name, Err: err}
	}
	// One reader suffices: the pipe's write end doubles as stderr.
	cmd.Stderr = cmd.Stdout

	var stdin io.WriteCloser
	if spec.Interactive {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return nil, &LaunchError{Service: spec.Name, Err: err}
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Service: spec.Name, Err: err}
	}

	child := &Child{
		Spec:      spec,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
		cmd:       cmd,
		stdin:     stdin,
		running:   true,
	}

	// The registry entry must exist before any output is relayed, so a crash
	// during early output never leaves termination untracked.
	if err := s.reg.Record(spec.Name, child.PID); err != nil {
		s.logger.Error("record pid", "service", spec.Name, "pid", child.PID, "err", err)
	}

	s.mu.Lock()
	s.children = append(s.children, child)
	running := s.countRunning()
	s.mu.Unlock()

	metrics.IncLaunch(spec.Name)
	metrics.SetRunning(running)
	s.sendHistory(history.Event{
		Type: history.EventLaunch, OccurredAt: child.StartedAt,
		Service: spec.Name, PID: child.PID,
	})
	s.logger.Info("service launched", "service", spec.Name, "pid", child.PID)

	width := s.labelWidth
	if width == 0 {
		width = len(spec.Name)
	}
	opts := []relay.Option{}
	if s.sanitizer != nil {
		opts = append(opts, relay.WithSanitizer(s.sanitizer))
	}
	if spec.Log.Enabled() {
		opts = append(opts, relay.WithCapture(spec.Log.Writer(spec.Name)))
	}
	rl := relay.New(spec.Name, spec.Label(width), relay.Palette[spec.Color], s.out, s.logger, opts...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rl.Run(stdout)
		s.reap(child)
	}()

	return child, nil
}

// reap waits for the child after its output stream closed and records the
// exit. It runs on the relay goroutine, keeping a single waiter per child.
func (s *Supervisor) reap(child *Child) {
	err := child.cmd.Wait()
	child.markExited()

	s.mu.Lock()
	running := s.countRunning()
	allDone := s.sealed && running == 0
	s.mu.Unlock()
	metrics.SetRunning(running)

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.sendHistory(history.Event{
		Type: history.EventExit, OccurredAt: time.Now(),
		Service: child.Spec.Name, PID: child.PID, Detail: detail,
	})
	s.logger.Info("service exited", "service", child.Spec.Name, "pid", child.PID, "err", err)

	if allDone {
		s.doneOnce.Do(func() { close(s.done) })
	}
}

// Done is closed once the launch sequence has completed and every child has
// been reaped. It never closes while LaunchAll is still starting children,
// even if an earlier child has already exited.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Wait blocks until all children exit or ctx is cancelled (typically by an
// interrupt signal).
func (s *Supervisor) Wait(ctx context.Context) {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

// State returns the current shutdown state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Statuses returns a snapshot of every launched child.
func (s *Supervisor) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, Status{
			Name: c.Spec.Name, PID: c.PID, Running: c.Running(), StartedAt: c.StartedAt,
		})
	}
	return out
}

// Shutdown performs the interrupt-driven teardown: confirm interactive
// children, then terminate everything still recorded in the registry.
// It is idempotent; only the first call does any work.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		s.setState(StateShuttingDown)
		s.confirmInteractive()
		s.TerminateRecorded(ctx)
		s.setState(StateStopped)
		// A stopped session launches nothing further, so sealing here lets
		// Done close for sessions built from individual Launch calls.
		s.seal()
	})
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// confirmInteractive writes a single confirmation line to each interactive
// child that is still running, so children prompting before exit ("Terminate
// batch job (Y/N)?") do not hang the teardown. Write failures are expected
// when the child already died and never abort the shutdown.
func (s *Supervisor) confirmInteractive() {
	s.mu.Lock()
	children := append([]*Child(nil), s.children...)
	s.mu.Unlock()

	for _, c := range children {
		if !c.Spec.Interactive || c.stdin == nil || !c.Running() {
			continue
		}
		if _, err := io.WriteString(c.stdin, "y\n"); err != nil {
			s.logger.Warn("send exit confirmation", "service", c.Spec.Name, "err", err)
		}
		// Closing flushes the pipe and signals EOF to children that read
		// stdin in a loop.
		if err := c.stdin.Close(); err != nil {
			s.logger.Warn("close child stdin", "service", c.Spec.Name, "err", err)
		}
	}
}

// TerminateRecorded requests termination of every process recorded in the
// registry. Missing, inaccessible, and zombie processes are tolerated and
// logged; each record is cleared after its attempt regardless of outcome.
func (s *Supervisor) TerminateRecorded(ctx context.Context) {
	recs, err := s.reg.All()
	if err != nil {
		s.logger.Error("read pid registry", "dir", s.reg.Dir(), "err", err)
		return
	}
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		s.terminateRecord(rec)
	}
}

func (s *Supervisor) terminateRecord(rec registry.Record) {
	defer func() {
		if err := s.reg.Clear(rec.Name); err != nil {
			s.logger.Warn("clear pid record", "service", rec.Name, "err", err)
		}
	}()

	if reason, ok := terminate(rec.PID); !ok {
		// Never silently drop a failure: always report which pid survived.
		s.logger.Warn("process could not be terminated",
			"service", rec.Name, "pid", rec.PID, "reason", reason)
		metrics.IncTerminationFailure(rec.Name)
		s.sendHistory(history.Event{
			Type: history.EventTerminateFailed, OccurredAt: time.Now(),
			Service: rec.Name, PID: rec.PID, Detail: reason,
		})
		return
	}

	metrics.IncStop(rec.Name)
	s.sendHistory(history.Event{
		Type: history.EventStop, OccurredAt: time.Now(),
		Service: rec.Name, PID: rec.PID,
	})
	s.logger.Info("termination requested", "service", rec.Name, "pid", rec.PID)
}

// ProcessExists reports whether pid is alive, using a null signal probe.
func ProcessExists(pid int) bool { return processExists(pid) }

// countRunning must be called with s.mu held.
func (s *Supervisor) countRunning() int {
	n := 0
	for _, c := range s.children {
		if c.Running() {
			n++
		}
	}
	return n
}

func (s *Supervisor) sendHistory(e history.Event) {
	if s.hist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.hist.Send(ctx, e); err != nil {
		s.logger.Warn("history sink", "event", string(e.Type), "service", e.Service, "err", err)
	}
}
