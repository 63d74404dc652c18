package dispatcher

import (
	"sync/atomic"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/executor"
	"go.uber.org/zap"
)

// SegmentSource is the dispatcher-facing slice of executor.Executor.
type SegmentSource interface {
	NextSegment() *executor.Segment
	RetireSegment()
}

// Resettable is the control surface the dispatcher reaches for on
// emergency stop: clear buffered work and mark position stale.
type Resettable interface {
	EmergencyStop()
}

// Dispatcher is the step dispatcher (spec §4.3). It owns no timer
// itself — TickActiveGenerator (when a SimPulseGenerator's Tick
// completes a pulse) or a real ISR calls OnPulse — but it
// owns the per-segment bookkeeping: which axis is dominant right now,
// the Bresenham counters for the others, and the disable-everything
// path for emergency stop.
type Dispatcher struct {
	hw  Hardware
	seg SegmentSource
	log *zap.SugaredLogger

	active        bool
	current       *executor.Segment
	pulsesEmitted uint32
	counter       [axis.Count]int64

	// execPos is the execution position (spec §5, "written by
	// dispatcher only"). One atomic word per axis: main-context status
	// reporters take a plain Load per axis, tolerating the small
	// multi-axis snapshot inconsistency the spec explicitly allows.
	execPos [axis.Count]atomic.Int64
}

// ExecutionPosition returns a snapshot of the machine's actual step
// position, as advanced by emitted pulses. Safe to call from any
// context; axes are read independently so a concurrent pulse can
// leave the snapshot very slightly inconsistent across axes, which
// the spec accepts.
func (d *Dispatcher) ExecutionPosition() axis.StepVector {
	var pos axis.StepVector
	for a := 0; a < axis.Count; a++ {
		pos[a] = d.execPos[a].Load()
	}
	return pos
}

// SyncExecutionPosition overwrites the execution position directly,
// for homing and G92-style resynchronization.
func (d *Dispatcher) SyncExecutionPosition(pos axis.StepVector) {
	for a := 0; a < axis.Count; a++ {
		d.execPos[a].Store(pos[a])
	}
}

// New creates a Dispatcher driving hw, pulling segments from seg.
func New(hw Hardware, seg SegmentSource, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{hw: hw, seg: seg, log: log}
}

// Active reports whether a segment is currently being pulsed out.
func (d *Dispatcher) Active() bool { return d.active }

// PollAndActivate checks for the next ready segment and, if the
// dispatcher is idle, activates it. Call this from the same
// cooperative loop as Executor.Prep whenever the dispatcher is not
// already mid-segment; real ports may instead call it once from
// OnPulse's "ring has another segment" branch and never poll.
func (d *Dispatcher) PollAndActivate() {
	if d.active {
		return
	}
	seg := d.seg.NextSegment()
	if seg == nil {
		return
	}
	d.activate(seg)
}

// activate latches direction outputs, arms the dominant generator,
// and resets per-segment counters — spec §4.3 step 1.
func (d *Dispatcher) activate(seg *executor.Segment) {
	for a := 0; a < axis.Count; a++ {
		d.hw[a].Direction.SetDirection(seg.DirectionBits.Negative(axis.Axis(a)))
		d.counter[a] = seg.StartCounter[a]
	}
	d.current = seg
	d.pulsesEmitted = 0
	d.active = true

	dom := &d.hw[seg.Dominant]
	dom.Enable.SetEnabled(true)
	dom.Pulse.SetPeriod(seg.Period)
	dom.Pulse.Enable()
}

// OnPulse is the dominant-axis pulse-completion handler (spec §4.3
// step 2) — the one function meant to run at ISR priority on real
// hardware. It is bounded: one dominant pulse's bookkeeping plus at
// most axis.Count-1 subordinate toggles.
func (d *Dispatcher) OnPulse() {
	if !d.active || d.current == nil {
		return
	}
	seg := d.current
	d.pulsesEmitted++
	d.advancePosition(seg.Dominant, seg.DirectionBits)

	for a := 0; a < axis.Count; a++ {
		if axis.Axis(a) == seg.Dominant {
			continue
		}
		next, emit := executor.StepBresenham(d.counter[a], seg.SubIncrement[a], seg.SubDenom)
		d.counter[a] = next
		if emit {
			d.hw[a].Step.Step()
			d.advancePosition(axis.Axis(a), seg.DirectionBits)
		}
	}

	if d.pulsesEmitted < seg.NStep {
		return
	}

	d.hw[seg.Dominant].Pulse.Disable()
	d.seg.RetireSegment()
	d.active = false
	d.current = nil

	// Activate the next segment immediately if one is ready, so the
	// dominant pulse train never gaps between segments of the same
	// block (spec §4.3 step 2, "activate it immediately").
	d.PollAndActivate()
}

// advancePosition applies one emitted step's sign to the execution
// position of axis a.
func (d *Dispatcher) advancePosition(a axis.Axis, dir axis.DirectionBits) {
	if dir.Negative(a) {
		d.execPos[a].Add(-1)
	} else {
		d.execPos[a].Add(1)
	}
}

// TickActiveGenerator advances the currently-armed dominant
// generator's simulated timer by one tick, firing OnPulse when it
// completes a pulse. Only meaningful against the software simulation
// backend built by NewSimHardware.
func (d *Dispatcher) TickActiveGenerator(gens *[axis.Count]SimPulseGenerator) {
	if !d.active || d.current == nil {
		return
	}
	if gens[d.current.Dominant].Tick() {
		d.OnPulse()
	}
}

// Pause disables the currently-armed dominant generator without
// clearing any state, for feed-hold — spec §6 feed_hold(): "pulses
// disabled, blocks preserved, resumable."
func (d *Dispatcher) Pause() {
	if !d.active || d.current == nil {
		return
	}
	d.hw[d.current.Dominant].Pulse.Disable()
}

// Resume re-arms the dominant generator for the segment that was
// in flight when Pause was called, for cycle-start.
func (d *Dispatcher) Resume() {
	if !d.active || d.current == nil {
		return
	}
	dom := &d.hw[d.current.Dominant]
	dom.Pulse.SetPeriod(d.current.Period)
	dom.Pulse.Enable()
}

// EmergencyStop disables every pulse generator and driver-enable line,
// drops the in-flight segment, and tells ctl (the planner) to clear
// its buffers and require a position resync — spec §4.3, "Emergency
// stop."
func (d *Dispatcher) EmergencyStop(ctl Resettable) {
	for a := 0; a < axis.Count; a++ {
		d.hw[a].Pulse.Disable()
		d.hw[a].Enable.SetEnabled(false)
	}
	d.active = false
	d.current = nil
	d.pulsesEmitted = 0
	ctl.EmergencyStop()
}
