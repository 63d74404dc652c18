// Package machine wires the look-ahead planner, segment executor, and
// step dispatcher into one owning aggregate (spec §9's "single owning
// aggregate passed by mutable reference into the planner API and by
// shared reference into the dispatcher's ISR hook"), and exposes the
// tiny system-level state machine and control surface external
// callers (a parser/transport layer, a CLI, a test harness) drive.
package machine

import (
	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/dispatcher"
	"github.com/Davec6505/gocnc-motion/executor"
	"github.com/Davec6505/gocnc-motion/planner"
	"github.com/Davec6505/gocnc-motion/settings"
	"go.uber.org/zap"
)

// Status is the read-only, pollable snapshot described in spec §6.
type Status struct {
	MachinePosition   axis.StepVector
	PlannerPosition   axis.StepVector
	BlockRingCount    int
	BlockRingFree     int
	State             State
	ProgrammedRate    float64
	InstantaneousRate float64
}

// Core aggregates the three motion components and the settings store
// behind them. Exactly one Core exists per controller (spec §9's
// "there is one motion subsystem per controller").
type Core struct {
	Planner    *planner.Planner
	Executor   *executor.Executor
	Dispatcher *dispatcher.Dispatcher
	Settings   *settings.Store

	log *zap.SugaredLogger

	held bool // feed-hold latched; blocks preserved, pulses disabled
}

// New assembles a Core from its three components. Callers build the
// planner, executor, and dispatcher themselves (each needs the
// others' interfaces, e.g. executor.New(planner, ...), dispatcher.New
// needs executor) and pass them in, so the wiring order stays visible
// at the call site instead of hidden inside one constructor.
func New(p *planner.Planner, e *executor.Executor, d *dispatcher.Dispatcher, st *settings.Store, log *zap.SugaredLogger) *Core {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Core{Planner: p, Executor: e, Dispatcher: d, Settings: st, log: log}
}

// Tick runs one cooperative cycle: executor prep followed by a
// dispatcher poll, so a new segment that just became available is
// activated without waiting for a second call. Intended to be called
// from the main loop at whatever cadence the host loop runs (spec
// §4.2, "called periodically, e.g. every ~10ms").
func (c *Core) Tick() {
	if c.held {
		return
	}
	c.Executor.Prep()
	c.Dispatcher.PollAndActivate()
}

// Append forwards to the planner; see planner.Planner.Append.
func (c *Core) Append(target axis.Vector, line planner.LineData) error {
	return c.Planner.Append(target, line)
}

// Status reports the read-only surface from spec §6.
func (c *Core) Status() Status {
	s := Status{
		MachinePosition: c.Dispatcher.ExecutionPosition(),
		PlannerPosition: c.Planner.PlannerPosition(),
		BlockRingCount:  c.Planner.BufferCount(),
		BlockRingFree:   c.Planner.BufferFree(),
		State:           c.state(),
	}
	if prog, inst, ok := c.Executor.ActiveRates(); ok {
		s.ProgrammedRate = prog
		s.InstantaneousRate = inst
	}
	return s
}

func (c *Core) state() State {
	switch {
	case c.Planner.ResyncRequired():
		return StateAlarm
	case c.held:
		return StateHold
	case c.Dispatcher.Active():
		return StateRunning
	case c.Planner.BufferCount() > 0:
		return StateQueued
	default:
		return StateIdle
	}
}

// EmergencyStop disables pulses, clears both rings, and marks the
// planner position stale — spec §4.3/§6 emergency_stop.
func (c *Core) EmergencyStop() {
	c.Dispatcher.EmergencyStop(c.Planner)
	c.Executor.Reset()
	c.held = false
}

// Reset clears buffered blocks while preserving the current machine
// position — spec §6 reset(). Unlike EmergencyStop, the dispatcher is
// not forced idle first, so the segment ring is left alone: clearing
// it out from under a mid-flight dispatcher would zero the very
// segment struct it's pulsing through. Reset is meant to be called
// once the machine has actually stopped (e.g. after a feed hold), the
// same assumption GRBL's own soft reset makes.
func (c *Core) Reset() {
	c.Planner.Reset()
	c.held = false
}

// SyncPosition resynchronizes planner position and execution position
// to steps, for homing or G92 — spec §6 sync_position.
func (c *Core) SyncPosition(steps axis.StepVector) {
	c.Planner.SyncPosition(steps)
	c.Dispatcher.SyncExecutionPosition(steps)
}

// FeedHold transitions to hold: pulses stop, blocks and segments are
// preserved, and CycleStart resumes exactly where the dispatcher left
// off — spec §6 feed_hold(). Unlike EmergencyStop, nothing is cleared
// and no resync is required.
func (c *Core) FeedHold() {
	c.Dispatcher.Pause()
	c.held = true
}

// CycleStart resumes from hold — spec §6 cycle_start().
func (c *Core) CycleStart() {
	c.held = false
	c.Dispatcher.Resume()
}
