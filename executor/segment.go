// Package executor turns the planner's blocks into the short,
// constant-velocity segments the step dispatcher actually pulses out.
// It owns the trapezoidal profile math (spec §4.2): given a block's
// entry/nominal/exit speeds, decide how far the next segment runs and
// at what rate, then precompute the Bresenham coordination state the
// dispatcher ISR needs to keep subordinate axes in lockstep with the
// dominant one.
package executor

import "github.com/Davec6505/gocnc-motion/axis"

// Segment is a constant-velocity chunk of a single block's travel.
// Once enqueued it is never mutated — the dispatcher ISR only reads
// it, replaying the Bresenham state it was handed rather than
// reaching back into block or executor state.
//
// The Bresenham counter for each subordinate axis is carried across
// segments within a block (the remainder from one segment's rounding
// feeds the next), so StartCounter is this segment's snapshot of that
// running state, not a value recomputed from scratch per segment.
type Segment struct {
	Dominant      axis.Axis
	NStep         uint32 // dominant-axis steps in this segment
	Period        uint32 // pulse-generator ticks per dominant step
	DirectionBits axis.DirectionBits

	// Per-subordinate-axis Bresenham coordination. Increment and Denom
	// are the block's totals (steps[subordinate] and steps[dominant]
	// respectively) and are constant for every segment of the block;
	// StartCounter is this segment's carried-in running value. The
	// dominant axis's own entries are unused.
	SubIncrement [axis.Count]uint32
	SubDenom     uint32
	StartCounter [axis.Count]int64
}

// StepBresenham advances one subordinate axis's counter by one
// dominant pulse, reporting whether that pulse should also emit a
// subordinate step. Pure function so the dispatcher ISR and executor
// tests exercise identical arithmetic.
func StepBresenham(counter int64, increment, denom uint32) (next int64, emit bool) {
	counter += int64(increment)
	if counter >= 0 {
		counter -= int64(denom)
		return counter, true
	}
	return counter, false
}
