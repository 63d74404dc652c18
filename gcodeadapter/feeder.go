package gcodeadapter

import (
	"errors"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/planner"
	"go.uber.org/zap"
)

// Appender is the minimal surface a LineFeeder needs from the motion
// core: append one decoded move, returning exactly what
// planner.Planner.Append returns (ErrBufferFull, ErrEmptyBlock, or
// nil). machine.Core satisfies this directly.
type Appender interface {
	Append(target axis.Vector, line planner.LineData) error
}

// LineFeeder turns one line of G-code text into transport's
// LineHandler contract: parse it with Adapter, try to append it, and
// report retry=true only for ErrBufferFull so the framer withholds
// "ok" until the planner actually accepts the block (spec §6's
// flow-control hook). Every other outcome — accepted, empty, a parse
// error, or an unsupported command — is final for this line; the
// framer acks it and moves on.
type LineFeeder struct {
	adapter *Adapter
	core    Appender
	log     *zap.SugaredLogger
}

// NewLineFeeder builds a LineFeeder driving core from G-code text,
// starting the adapter's modal state at the machine origin.
func NewLineFeeder(core Appender, log *zap.SugaredLogger) *LineFeeder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LineFeeder{adapter: New(), core: core, log: log}
}

// Handle implements transport.LineHandler.
func (f *LineFeeder) Handle(line string) (retry bool) {
	saved := *f.adapter
	parsed, ok, err := f.adapter.ParseLine(line)
	if err != nil {
		f.log.Warnw("line rejected", "line", line, "error", err)
		return false
	}
	if !ok {
		return false
	}

	err = f.core.Append(parsed.Target, parsed.Line)
	switch {
	case err == nil:
		return false
	case errors.Is(err, planner.ErrBufferFull):
		// Undo this parse's modal-state changes: the same line is parsed
		// again on retry, and a relative move must not advance twice.
		*f.adapter = saved
		return true
	default:
		f.log.Debugw("line discarded", "line", line, "error", err)
		return false
	}
}
