package planner

import "github.com/Davec6505/gocnc-motion/axis"

// SCurveProfile is the seven-segment jerk-limited timing structure
// carried for data-model parity with the wider source family. Per
// spec §9, no code in this module reads it: the shipping profile is
// trapezoidal with junction deviation. A future port that wants true
// S-curve motion would populate and consume this from the executor
// instead of the trapezoid math in Executor.profileSpeed; until then it is
// dead weight kept only so the Block layout matches what a hardware
// successor (with an S-curve option) would expect.
type SCurveProfile struct {
	AccelJerkTicks   uint32
	AccelTicks       uint32
	AccelDecelTicks  uint32
	CruiseTicks      uint32
	DecelJerkTicks   uint32
	DecelTicks       uint32
	DecelDecelTicks  uint32
}

// Block is the planner's unit of work: one linear move, decorated
// with everything the executor needs to turn it into segments without
// ever touching the parser's original units again.
type Block struct {
	Steps          [axis.Count]uint32 // absolute step magnitude per axis
	DirectionBits  axis.DirectionBits
	StepEventCount uint32  // max(Steps[]) — dominant-axis step count
	Millimeters    float64 // Euclidean length of the move, mm

	// Squared-velocity fields. Stored squared so recalculation never
	// needs a square root; the executor takes the one sqrt it needs
	// (entry/exit speed) when it adopts the block.
	EntrySpeedSqr       float64
	MaxEntrySpeedSqr    float64
	MaxJunctionSpeedSqr float64
	NominalSpeedSqr     float64 // ProgrammedRate², the block's cruise target squared

	Acceleration   float64 // axis-limited, mm/min²
	RapidRate      float64 // axis-limited, mm/min
	ProgrammedRate float64 // feed rate (or rapid rate for G0), mm/min

	Condition    Condition
	SpindleSpeed float64

	UnitVec axis.Vector // direction of travel, used for the *next* append's junction calc

	SCurve SCurveProfile // unused, see type doc

	// planned marks whether this block has been frozen by recalculate
	// (i.e. lies at or before the ring's planned index). It mirrors
	// the ring's planned pointer for convenience when inspecting a
	// single block outside the ring (status reporting, tests); the
	// ring's planned index is the authoritative boundary the executor
	// relies on.
	planned bool
}

// CanDecelerateTo reports whether this block, entering at its current
// EntrySpeedSqr, can decelerate to exitSpeedSqr within its own length
// without exceeding Acceleration. This is the invariant from spec §8:
// entry_speed_sqr ≤ exit_speed_sqr + 2·acceleration·millimeters.
func (b *Block) CanDecelerateTo(exitSpeedSqr float64) bool {
	return b.EntrySpeedSqr <= exitSpeedSqr+2*b.Acceleration*b.Millimeters+epsilon
}

// epsilon absorbs float64 rounding in the invariant checks above; it
// is not a physical tolerance, just a guard against a few ULPs of
// accumulated error tripping a strict "<=" comparison.
const epsilon = 1e-6
