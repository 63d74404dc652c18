package machine

import (
	"fmt"
	"strings"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/planner"
)

// AppendLine adapts one already-decoded motion command to the
// transport package's line-handling contract (transport.Core):
// an absolute target in millimeters, a programmed feed rate, and
// whether the move is a rapid (G0). The only retryable outcome is
// ErrBufferFull; an empty move is accepted and discarded exactly like
// any other line, per spec §6's "acknowledge and discard."
//
// The fixed [4]float64 shape (rather than axis.Vector) is what lets
// transport stay free of an axis import; the conversion here is the
// one place that assumption is spelled out.
func (c *Core) AppendLine(target [4]float64, feedRate float64, rapid bool) error {
	cond := planner.Condition(0)
	if rapid {
		cond |= planner.ConditionRapid
	}
	return c.Append(axis.Vector(target), planner.LineData{FeedRate: feedRate, Condition: cond})
}

// StatusLine renders the read-only status surface (spec §6) as a
// GRBL-style "<State|MPos:...|FS:...|Bf:...>" report for transport's
// '?' real-time command.
func (c *Core) StatusLine() string {
	s := c.Status()
	cfg := c.Settings.Get()

	var b strings.Builder
	fmt.Fprintf(&b, "<%s", titleCase(s.State.String()))
	b.WriteString("|MPos:")
	for a := 0; a < axis.Count; a++ {
		if a > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%.3f", float64(s.MachinePosition[a])/cfg.StepsPerMM[a])
	}
	fmt.Fprintf(&b, "|FS:%.0f,%.0f", s.ProgrammedRate, s.InstantaneousRate)
	fmt.Fprintf(&b, "|Bf:%d,%d>", s.BlockRingFree, s.BlockRingCount)
	return b.String()
}

// titleCase upper-cases just the leading byte, matching GRBL's
// "<Idle|...>" / "<Run|...>" capitalization of its state names.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
