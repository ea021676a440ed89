package relay

import (
	"bufio"
	"io"
	"log/slog"
	"sync"

	"github.com/loykin/devrun/internal/metrics"
)

// ANSI escapes used for service labels. Config color names map onto these.
const (
	Reset       = "\033[0m"
	ColorRed    = "\033[91m"
	ColorGreen  = "\033[92m"
	ColorYellow = "\033[93m"
	ColorBlue   = "\033[94m"
	ColorPurple = "\033[95m"
	ColorCyan   = "\033[96m"
)

// Palette maps config color names to ANSI escapes. The zero name maps to no
// color at all so labels degrade cleanly on dumb terminals.
var Palette = map[string]string{
	"":       "",
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"purple": ColorPurple,
	"cyan":   ColorCyan,
}

// maxLine bounds a single relayed line; dev servers occasionally dump large
// minified bundles in one line.
const maxLine = 1024 * 1024

// Relay drains one child's combined output stream line by line, sanitizes each
// line to ASCII, and writes it to the supervisor's output prefixed with a
// colored service label. It owns the stream and closes it on every exit path.
type Relay struct {
	name      string
	label     string
	color     string
	sanitizer *Sanitizer
	sink      io.Writer
	capture   io.WriteCloser // optional rotated capture file
	logger    *slog.Logger
}

// syncWriter serializes writes from relays sharing one destination.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// NewSyncWriter wraps w so that each Write is atomic with respect to other
// writers of the returned value. Hand the same wrapped writer to every relay
// of a session so lines from different children never interleave mid-line.
func NewSyncWriter(w io.Writer) io.Writer { return &syncWriter{w: w} }

// Option configures a Relay.
type Option func(*Relay)

// WithCapture tees sanitized lines (without color escapes) into w. The relay
// closes w when the stream ends.
func WithCapture(w io.WriteCloser) Option {
	return func(r *Relay) { r.capture = w }
}

// WithSanitizer overrides the default substitution table.
func WithSanitizer(s *Sanitizer) Option {
	return func(r *Relay) { r.sanitizer = s }
}

// New builds a relay for the named service, labeling lines with label in the
// given ANSI color and writing them to sink. The relay does not start reading
// until Run is called.
func New(name, label, color string, sink io.Writer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		name:      name,
		label:     label,
		color:     color,
		sanitizer: DefaultSanitizer(),
		sink:      sink,
		logger:    logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run consumes rc until end of stream. Read errors other than a clean close
// are logged and treated as end of stream. rc and any capture writer are
// closed before Run returns, regardless of how it exits.
func (r *Relay) Run(rc io.ReadCloser) {
	defer func() {
		_ = rc.Close()
		if r.capture != nil {
			_ = r.capture.Close()
		}
	}()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		r.emit(r.sanitizer.Clean(sc.Text()))
		metrics.AddRelayLines(r.name, 1)
	}
	if err := sc.Err(); err != nil {
		r.logger.Warn("output stream ended unexpectedly", "service", r.name, "err", err)
	}
}

func (r *Relay) emit(line string) {
	// One Write call per line so a sync sink keeps lines whole.
	buf := make([]byte, 0, len(r.color)+len(r.label)+len(Reset)+len(line)+3)
	buf = append(buf, r.color...)
	buf = append(buf, r.label...)
	buf = append(buf, ':')
	buf = append(buf, Reset...)
	buf = append(buf, ' ')
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := r.sink.Write(buf); err != nil {
		r.logger.Warn("write relayed line", "service", r.name, "err", err)
	}

	if r.capture != nil {
		_, _ = io.WriteString(r.capture, r.label+": "+line+"\n")
	}
}
