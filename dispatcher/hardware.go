// Package dispatcher is the step dispatcher (spec §4.3): it drives
// one hardware pulse generator per dominant axis, bit-bangs
// subordinate-axis steps off the dominant pulse using the Bresenham
// state baked into each segment, and exposes the hardware abstraction
// a port wires to its actual timers and GPIO.
package dispatcher

import "github.com/Davec6505/gocnc-motion/axis"

// PulseGenerator is the per-axis timer-driven pulse source. Only the
// axis acting as dominant for the current segment has its generator
// armed; since dominant identity can change segment to segment, every
// axis needs one.
type PulseGenerator interface {
	SetPeriod(ticks uint32)
	Enable()
	Disable()
}

// DirectionOutput latches the travel sign for one axis. Must be set
// before the first pulse of a segment (spec §5 ordering guarantee).
type DirectionOutput interface {
	SetDirection(negative bool)
}

// StepOutput is the manual step toggle used for subordinate axes: the
// dispatcher raises it, holds for the driver's minimum high time, and
// lowers it, entirely from the dominant axis's pulse-completion
// handler.
type StepOutput interface {
	Step()
}

// EnableOutput is the active-low driver enable line.
type EnableOutput interface {
	SetEnabled(enabled bool)
}

// AxisHardware bundles one axis's four outputs. Pulse is nil-able in
// principle for a build that hardwires which axis can ever be
// dominant, but the canonical port wires one per axis.
type AxisHardware struct {
	Pulse     PulseGenerator
	Direction DirectionOutput
	Step      StepOutput
	Enable    EnableOutput
}

// Hardware is the full per-axis table the dispatcher drives.
type Hardware [axis.Count]AxisHardware
