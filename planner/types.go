package planner

import "errors"

// Condition packs the per-block flags the parser attaches to a move:
// whether it's a rapid (G0) vs. feed-rate move, whether it's a
// system-motion move (homing, jogging — exempt from junction-speed
// limiting against its neighbors), and the spindle/coolant state to
// apply when the block becomes active.
type Condition uint16

const (
	ConditionRapid Condition = 1 << iota
	ConditionSystemMotion
	ConditionNoFeedOverride
	ConditionSpindleCW
	ConditionSpindleCCW
	ConditionCoolantFlood
	ConditionCoolantMist
)

func (c Condition) Rapid() bool          { return c&ConditionRapid != 0 }
func (c Condition) SystemMotion() bool   { return c&ConditionSystemMotion != 0 }
func (c Condition) NoFeedOverride() bool { return c&ConditionNoFeedOverride != 0 }

// LineData is what the parser hands to Append for one linear move:
// the programmed feed rate (ignored for rapids, which use the
// axis-limited rapid rate instead), the condition flags, and the
// spindle speed to latch when the block runs.
type LineData struct {
	FeedRate     float64
	Condition    Condition
	SpindleSpeed float64
}

// Append outcomes. BufferFull is transient — the caller must retry,
// never drop the move. EmptyBlock is permanent — the move rounded to
// zero steps on every axis and should be acknowledged-and-discarded.
// ErrResyncRequired means a bypass of the planner (alarm, homing, G92)
// happened and SyncPosition must run before the next Append.
var (
	ErrBufferFull     = errors.New("planner: block ring full")
	ErrEmptyBlock     = errors.New("planner: move rounds to zero steps")
	ErrResyncRequired = errors.New("planner: position resync required before next append")
	ErrNonFinite      = errors.New("planner: target contains a non-finite value")
)
