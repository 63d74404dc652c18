// Package planner implements the look-ahead velocity planner: the
// fixed-capacity ring of motion blocks, junction-speed decoration on
// append, and the reverse/forward recalculation passes that settle
// entry speeds across the unplanned tail of the ring.
//
// ═══════════════════════════════════════════════════════════════════════════
// DESIGN PHILOSOPHY
// ═══════════════════════════════════════════════════════════════════════════
//
//  1. Squared velocities everywhere except the one place that needs
//     an actual speed (the executor, at block adoption). Avoids a
//     sqrt on every recalculation pass over the whole window.
//  2. The planned index is the freeze boundary, not a lock. Below it,
//     blocks are done changing; at or above it, only the append/
//     recalculate context touches them.
//  3. Reverse-then-forward settling, bounded by the ring itself —
//     there is no separate "recalc window," the window is whatever is
//     between planned and head at the moment Append runs.
//  4. Malformed input (NaN, Inf, non-positive settings) is rejected at
//     the boundary, never carried into the geometry.
package planner

import (
	"math"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/settings"
	"go.uber.org/zap"
)

// SettingsSource is the read side of settings.Store the planner needs.
// Kept as an interface so this package doesn't depend on how settings
// are stored or reloaded, only on "give me the current snapshot."
type SettingsSource interface {
	Get() settings.Settings
}

// Planner is the look-ahead velocity planner described in spec §4.1.
type Planner struct {
	ring ring

	settings SettingsSource
	log      *zap.SugaredLogger

	plannerPosition axis.StepVector

	havePrevBlock       bool
	prevUnitVec         axis.Vector
	prevNominalSpeedSqr float64

	resyncRequired bool
}

// New creates a Planner reading configuration from src and logging
// through log (nil is fine; a no-op logger is substituted).
func New(src SettingsSource, log *zap.SugaredLogger) *Planner {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Planner{settings: src, log: log}
}

// PlannerPosition returns where the planner believes the machine will
// be once every buffered block completes.
func (p *Planner) PlannerPosition() axis.StepVector { return p.plannerPosition }

// SyncPosition resynchronizes the planner's position to steps, to be
// called after homing, soft reset, or G92. It also clears the
// resync-required flag set by EmergencyStop-equivalent events.
func (p *Planner) SyncPosition(steps axis.StepVector) {
	p.plannerPosition = steps
	p.havePrevBlock = false
	p.resyncRequired = false
}

// ResyncRequired reports whether Append will refuse to run until
// SyncPosition is called (spec §7, "resync-required").
func (p *Planner) ResyncRequired() bool { return p.resyncRequired }

// requireResync is called by emergency-stop-style events to mark the
// planner position stale.
func (p *Planner) requireResync() {
	p.resyncRequired = true
}

// BufferCount returns the number of blocks currently queued.
func (p *Planner) BufferCount() int { return int(p.ring.count()) }

// BufferFree returns the number of additional blocks Append could
// accept right now.
func (p *Planner) BufferFree() int { return capacity - int(p.ring.count()) }

// CurrentBlock returns the block the executor should be consuming
// (the block at the ring's tail), or nil if no block is queued. This
// is the executor's only read access into the block ring; it must
// copy out the fields it needs immediately (see executor.adopt).
func (p *Planner) CurrentBlock() *Block { return p.ring.currentBlock() }

// DiscardCurrent tells the planner the executor has finished with the
// block at tail, advancing the ring past it.
func (p *Planner) DiscardCurrent() {
	if !p.ring.empty() {
		p.ring.advanceTail()
	}
}

// SuccessorEntrySpeedSqr returns the entry_speed_sqr of the block
// immediately following the one at tail, for the executor's
// adoption-time exit-speed lookup (spec §4.1, "the executor also
// reads its own successor for exit speed"). ok is false if no
// successor is queued yet, in which case the executor should plan to
// stop at the current block's end.
func (p *Planner) SuccessorEntrySpeedSqr() (sqr float64, ok bool) {
	if p.ring.empty() {
		return 0, false
	}
	n := p.ring.successorAt(p.ring.tail.Load())
	if n == nil {
		return 0, false
	}
	return n.EntrySpeedSqr, true
}

// Reset clears the block ring (soft-reset semantics at the planner
// level, used by machine.Core.Reset and EmergencyStop — does not touch
// plannerPosition).
func (p *Planner) Reset() {
	p.ring = ring{}
}

// EmergencyStop clears the block ring and marks the planner position
// stale: execution position reflects whatever pulses were actually
// emitted, and the caller must SyncPosition before the next Append
// (spec §7, §9 — "the source preserves position where pulses
// stopped").
func (p *Planner) EmergencyStop() {
	p.Reset()
	p.requireResync()
}

// Append accepts one parsed linear move. target is absolute machine
// position in millimeters. Returns ErrBufferFull (retry), ErrEmptyBlock
// (permanent, acknowledge-and-discard), ErrResyncRequired, ErrNonFinite
// (a NaN or infinite target or feed rate), or nil.
func (p *Planner) Append(target axis.Vector, line LineData) error {
	if p.resyncRequired {
		return ErrResyncRequired
	}
	if !finite(line.FeedRate) {
		return ErrNonFinite
	}
	for a := 0; a < axis.Count; a++ {
		if !finite(target[a]) {
			return ErrNonFinite
		}
	}
	if p.ring.full() {
		return ErrBufferFull
	}

	cfg := p.settings.Get()

	var targetSteps [axis.Count]int64
	var steps [axis.Count]uint32
	var dir axis.DirectionBits
	var stepEventCount uint32

	for a := 0; a < axis.Count; a++ {
		targetSteps[a] = int64(math.Round(target[a] * cfg.StepsPerMM[a]))
		delta := targetSteps[a] - p.plannerPosition[a]
		if delta < 0 {
			steps[a] = uint32(-delta)
			dir = dir.Set(axis.Axis(a), true)
		} else {
			steps[a] = uint32(delta)
		}
		if steps[a] > stepEventCount {
			stepEventCount = steps[a]
		}
	}
	if stepEventCount == 0 {
		return ErrEmptyBlock
	}

	var deltaMM axis.Vector
	sumSq := 0.0
	for a := 0; a < axis.Count; a++ {
		targetDelta := float64(targetSteps[a]-p.plannerPosition[a]) / cfg.StepsPerMM[a]
		deltaMM[a] = targetDelta
		sumSq += targetDelta * targetDelta
	}
	millimeters := math.Sqrt(sumSq)
	if millimeters <= 0 || !finite(millimeters) {
		return ErrEmptyBlock
	}
	invMM := 1.0 / millimeters

	var unit axis.Vector
	for a := 0; a < axis.Count; a++ {
		unit[a] = deltaMM[a] * invMM
	}

	acceleration := math.Inf(1)
	rapidRate := math.Inf(1)
	for a := 0; a < axis.Count; a++ {
		mag := math.Abs(unit[a])
		if mag <= 0 {
			continue
		}
		if v := cfg.MaxAccel[a] / mag; v < acceleration {
			acceleration = v
		}
		if v := cfg.MaxRate[a] / mag; v < rapidRate {
			rapidRate = v
		}
	}

	programmedRate := rapidRate
	if !line.Condition.Rapid() {
		programmedRate = line.FeedRate
		if programmedRate < cfg.MinFeedRateMMPerMin {
			programmedRate = cfg.MinFeedRateMMPerMin
		}
		if programmedRate > rapidRate {
			programmedRate = rapidRate
		}
	}
	nominalSpeedSqr := programmedRate * programmedRate

	maxJunctionSpeedSqr := p.junctionSpeedSqr(unit, acceleration, line.Condition, cfg)

	maxEntrySpeedSqr := maxJunctionSpeedSqr
	if p.havePrevBlock && p.prevNominalSpeedSqr < maxEntrySpeedSqr {
		maxEntrySpeedSqr = p.prevNominalSpeedSqr
	}
	if nominalSpeedSqr < maxEntrySpeedSqr {
		maxEntrySpeedSqr = nominalSpeedSqr
	}

	entrySpeedSqr := maxEntrySpeedSqr
	if decelBound := 2 * acceleration * millimeters; decelBound < entrySpeedSqr {
		entrySpeedSqr = decelBound
	}

	blk := p.ring.pushSlot()
	*blk = Block{
		Steps:               steps,
		DirectionBits:       dir,
		StepEventCount:      stepEventCount,
		Millimeters:         millimeters,
		EntrySpeedSqr:       entrySpeedSqr,
		MaxEntrySpeedSqr:    maxEntrySpeedSqr,
		MaxJunctionSpeedSqr: maxJunctionSpeedSqr,
		NominalSpeedSqr:     nominalSpeedSqr,
		Acceleration:        acceleration,
		RapidRate:           rapidRate,
		ProgrammedRate:      programmedRate,
		Condition:           line.Condition,
		SpindleSpeed:        line.SpindleSpeed,
		UnitVec:             unit,
	}

	p.plannerPosition = axis.StepVector(targetSteps)
	p.prevUnitVec = unit
	p.prevNominalSpeedSqr = nominalSpeedSqr
	p.havePrevBlock = true

	p.ring.publish()
	p.recalculate()
	return nil
}

const (
	// cosThetaReversalThreshold: cos(theta) above this means the move
	// very nearly reverses course (theta ~ 180°) — forced to a near
	// stop.
	cosThetaReversalThreshold = 0.999999
	// cosThetaCollinearThreshold: cos(theta) below this (i.e. very
	// negative) means the move is very nearly collinear with its
	// predecessor — junction speed is effectively unbounded.
	cosThetaCollinearThreshold = -0.999999
	// unboundedJunctionSpeedSqr stands in for "no junction limit."
	// Large enough to never bind against any reasonable nominal speed
	// squared, small enough that downstream arithmetic (×2×accel×mm)
	// stays far from float64 overflow.
	unboundedJunctionSpeedSqr = 1e12
)

func (p *Planner) junctionSpeedSqr(unit axis.Vector, acceleration float64, cond Condition, cfg settings.Settings) float64 {
	minJunctionSqr := cfg.MinimumJunctionSpeedMMPerMin * cfg.MinimumJunctionSpeedMMPerMin

	if !p.havePrevBlock || cond.SystemMotion() {
		return minJunctionSqr
	}

	cosTheta := 0.0
	for a := 0; a < axis.Count; a++ {
		cosTheta -= p.prevUnitVec[a] * unit[a]
	}

	switch {
	case cosTheta > cosThetaReversalThreshold:
		return minJunctionSqr
	case cosTheta < cosThetaCollinearThreshold:
		return unboundedJunctionSpeedSqr
	default:
		sinThetaD2 := math.Sqrt(0.5 * (1 - cosTheta))
		denom := 1 - sinThetaD2
		if denom <= 0 {
			return unboundedJunctionSpeedSqr
		}
		return acceleration * cfg.JunctionDeviationMM * sinThetaD2 / denom
	}
}

// recalculate runs the reverse pass (newest back to planned) followed
// by the forward pass (planned to newest), settling entry_speed_sqr
// for every live block and advancing planned past blocks whose entry
// speed has stopped changing.
func (p *Planner) recalculate() {
	head := p.ring.head.Load()
	planned := p.ring.planned.Load()
	if head == planned {
		return
	}

	// Reverse pass: chain ends at rest beyond the newest block.
	nextEntrySpeedSqr := 0.0
	for i := head; i > planned; i-- {
		b := p.ring.at(i - 1)
		if b.EntrySpeedSqr == b.MaxEntrySpeedSqr {
			// Already at its ceiling; the exit-from-this-block bound
			// can only ever lower entry, so nothing to do except
			// seed the next iteration.
			nextEntrySpeedSqr = b.EntrySpeedSqr
			continue
		}
		bound := nextEntrySpeedSqr + 2*b.Acceleration*b.Millimeters
		if bound < b.MaxEntrySpeedSqr {
			b.EntrySpeedSqr = bound
		} else {
			b.EntrySpeedSqr = b.MaxEntrySpeedSqr
		}
		nextEntrySpeedSqr = b.EntrySpeedSqr
	}

	// Forward pass: settle against the predecessor's achievable exit
	// speed, then freeze leading blocks whose entry sits at its
	// ceiling (safe to execute — no future append can lower it
	// further, since a ceiling is set by this block's own geometry
	// and its immediate predecessor, both already fixed).
	var prevExitSpeedSqr float64
	havePrev := false
	newPlanned := planned
	for i := planned; i < head; i++ {
		b := p.ring.at(i)
		if havePrev {
			prev := p.ring.at(i - 1)
			bound := prevExitSpeedSqr + 2*prev.Acceleration*prev.Millimeters
			if bound < b.EntrySpeedSqr {
				b.EntrySpeedSqr = bound
			}
		}
		prevExitSpeedSqr = b.EntrySpeedSqr
		havePrev = true

		if i == newPlanned && b.EntrySpeedSqr >= b.MaxEntrySpeedSqr-epsilon && i+1 < head {
			b.planned = true
			newPlanned = i + 1
		}
	}

	if newPlanned > planned {
		p.ring.planned.Store(newPlanned)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
