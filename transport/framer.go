package transport

import (
	"bufio"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Real-time single-byte commands bypass the line queue entirely (spec
// §6). They are checked against every byte read, line-buffered or
// not, before that byte is ever appended to the current line.
const (
	RTStatusReport byte = '?'
	RTFeedHold     byte = '!'
	RTCycleStart   byte = '~'
	RTReset        byte = 0x18
)

// Core is the subset of machine.Core the framer drives. Kept as an
// interface so this package doesn't import machine (avoiding an
// import cycle risk as the two packages grow) and so tests can supply
// a stub.
type Core interface {
	AppendLine(target [4]float64, feedRate float64, rapid bool) error
	EmergencyStop()
	FeedHold()
	CycleStart()
	StatusLine() string
}

// LineHandler parses one non-real-time line of input (a G-code
// command) and applies it via core. Per spec §6, a planner append has
// exactly two non-retry outcomes — accepted, or permanently rejected
// as an empty move — and both get one "ok" back to the host; only
// BUFFER_FULL withholds "ok" and asks the framer to retry the same
// line.
type LineHandler interface {
	// Handle returns retry=true when the line must be resubmitted
	// unchanged (buffer full); retry=false means the line is done with
	// (accepted or discarded) and the framer should ack it.
	Handle(line string) (retry bool)
}

// Framer implements the request/response-with-one-ok-per-line
// protocol contract from spec §6 over a Port, dispatching real-time
// bytes to core immediately and queuing everything else for
// LineHandler with retry-until-ok semantics.
type Framer struct {
	port    Port
	handler LineHandler
	core    Core
	log     *zap.SugaredLogger
}

// NewFramer builds a Framer reading lines from port and applying them
// via handler, with core wired for the four real-time commands.
func NewFramer(port Port, handler LineHandler, core Core, log *zap.SugaredLogger) *Framer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Framer{port: port, handler: handler, core: core, log: log}
}

// Run reads lines until the port closes or returns a non-EOF error.
// Each line the handler is done with, accepted or discarded, gets
// exactly one "ok\n" written back; no "error" reply is sent. Retryable lines are
// retried without consuming further input until they succeed — this
// is the flow-control mechanism spec §6 describes: withholding "ok"
// is how the host learns to stop sending.
func (f *Framer) Run() error {
	scanner := bufio.NewScanner(newRealtimeFilter(f.port, f.core))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "?" {
			f.writeStatus()
			continue
		}
		for f.handler.Handle(line) {
			// Retryable (buffer full): spin without acking, per spec
			// §6. A real host-facing loop would yield here; this
			// reference implementation is driven by Run's caller's
			// own pacing (e.g. a test calling Handle via a ticking
			// machine.Core.Tick loop).
		}
		fmt.Fprint(f.port, "ok\n")
	}
	return scanner.Err()
}

func (f *Framer) writeStatus() {
	fmt.Fprintln(f.port, f.core.StatusLine())
}

// realtimeFilter wraps a Port, intercepting the four real-time bytes
// before they reach the line scanner and dispatching them to core
// immediately, exactly as spec §6 describes ("bypass the line
// queue").
type realtimeFilter struct {
	port Port
	core Core
}

func newRealtimeFilter(port Port, core Core) *realtimeFilter {
	return &realtimeFilter{port: port, core: core}
}

func (r *realtimeFilter) Read(p []byte) (int, error) {
	n, err := r.port.Read(p)
	if n == 0 {
		return n, err
	}
	out := p[:0]
	for _, b := range p[:n] {
		switch b {
		case RTFeedHold:
			r.core.FeedHold()
		case RTCycleStart:
			r.core.CycleStart()
		case RTReset:
			r.core.EmergencyStop()
		case RTStatusReport:
			fmt.Fprintln(r.port, r.core.StatusLine())
		default:
			out = append(out, b)
		}
	}
	return len(out), err
}
