package dispatcher

import (
	"context"
	"time"

	"github.com/Davec6505/gocnc-motion/axis"
)

// SimPulseGenerator is a tick-counted stand-in for a hardware timer
// compare channel, in the style of the teacher's cycle-stepped
// simulation core: state only advances when Tick is called, so a test
// can single-step a segment pulse by pulse with no wall-clock
// dependency, and a real runner can drive Tick from an actual ticker.
type SimPulseGenerator struct {
	period    uint32
	remaining uint32
	enabled   bool
}

func (g *SimPulseGenerator) SetPeriod(ticks uint32) { g.period = ticks; g.remaining = ticks }
func (g *SimPulseGenerator) Enable()                { g.enabled = true; g.remaining = g.period }
func (g *SimPulseGenerator) Disable()               { g.enabled = false }

// Tick advances one hardware timer tick, returning true exactly on
// the tick a pulse edge completes — a free-running compare-match
// counter that reloads and keeps going, so every pulse in a run costs
// exactly period ticks with no gap between them.
func (g *SimPulseGenerator) Tick() bool {
	if !g.enabled || g.period == 0 {
		return false
	}
	g.remaining--
	if g.remaining == 0 {
		g.remaining = g.period
		return true
	}
	return false
}

// SimDirectionOutput records the last latched direction for
// inspection in tests.
type SimDirectionOutput struct {
	Negative bool
}

func (d *SimDirectionOutput) SetDirection(negative bool) { d.Negative = negative }

// SimStepOutput counts pulses emitted, standing in for a GPIO toggle.
type SimStepOutput struct {
	Count uint32
}

func (s *SimStepOutput) Step() { s.Count++ }

// SimEnableOutput records driver-enable state.
type SimEnableOutput struct {
	Enabled bool
}

func (e *SimEnableOutput) SetEnabled(enabled bool) { e.Enabled = enabled }

// NewSimHardware builds a full simulated axis table, useful for tests
// and for the cmd/gcodesim demo binary.
func NewSimHardware() (Hardware, *[axis.Count]SimPulseGenerator) {
	var hw Hardware
	gens := new([axis.Count]SimPulseGenerator)
	for a := range hw {
		hw[a] = AxisHardware{
			Pulse:     &gens[a],
			Direction: &SimDirectionOutput{},
			Step:      &SimStepOutput{},
			Enable:    &SimEnableOutput{},
		}
	}
	return hw, gens
}

// RunSimClock drives the active dominant generator's Tick (via
// TickActiveGenerator) at the given wall-clock tick period until ctx
// is cancelled, calling the
// dispatcher's OnPulse whenever the active generator completes a
// pulse. This is the wall-clock counterpart to the step-by-step Tick
// calls tests use directly.
func RunSimClock(ctx context.Context, d *Dispatcher, gens *[axis.Count]SimPulseGenerator, tickEvery time.Duration) {
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.TickActiveGenerator(gens)
		}
	}
}
