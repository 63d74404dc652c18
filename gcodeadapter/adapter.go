// Package gcodeadapter is a thin bridge from G-code text to
// planner.Append calls. It is not a general-purpose G-code
// interpreter (arcs, canned cycles, and the rest of the grammar stay
// out of scope per spec.md §1); it understands exactly enough of
// G0/G1/G90/G91/G92/F/G20/G21/S and the spindle/coolant M-codes
// (M3/M4/M5/M7/M8/M9) to drive the demo binary and integration tests
// end to end.
package gcodeadapter

import (
	"errors"
	"fmt"

	"github.com/256dpi/gcode"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/planner"
)

// ErrArcsUnsupported is returned for G2/G3: arc interpolation is out
// of scope per spec.md §1 and is rejected explicitly rather than
// silently dropped or mis-executed as a straight line.
var ErrArcsUnsupported = errors.New("gcodeadapter: arc motion (G2/G3) is not supported")

// AppendTarget is what Adapter hands to a planner for one parsed
// line: the absolute target in millimeters and the line data the
// planner's Append expects.
type AppendTarget struct {
	Target axis.Vector
	Line   planner.LineData
}

const mmPerInch = 25.4

// Adapter tracks the small amount of modal state a G-code stream
// carries between lines: current position (for relative moves and
// target resolution across multiple lines), absolute/relative
// distance mode, unit mode, the last programmed feed rate, and the
// modal spindle/coolant state M3/M4/M5/M8/M9 latch until changed.
type Adapter struct {
	position axis.Vector
	absolute bool
	inches   bool
	feedRate float64

	spindleCond  planner.Condition // ConditionSpindleCW/CCW, or 0 if off
	spindleSpeed float64
	coolantCond  planner.Condition // ConditionCoolantFlood/Mist bits, OR'd
}

// New creates an Adapter starting at the machine origin in absolute,
// millimeter mode — GRBL's default modal state.
func New() *Adapter {
	return &Adapter{absolute: true}
}

// Position returns the adapter's current modal position (mm,
// machine/absolute frame).
func (a *Adapter) Position() axis.Vector { return a.position }

// SyncPosition resets the adapter's modal position, for use alongside
// planner.SyncPosition after a homing cycle or G92 applied elsewhere.
func (a *Adapter) SyncPosition(pos axis.Vector) { a.position = pos }

// ParseLine tokenizes one line of G-code via github.com/256dpi/gcode
// and translates it into zero or one AppendTarget. Lines that only
// change modal state (F, G90/G91, G20/G21) return ok=false with no
// error — there is nothing to append yet, the state takes effect on
// the next motion command.
func (a *Adapter) ParseLine(line string) (target AppendTarget, ok bool, err error) {
	doc, err := gcode.ParseLine(line)
	if err != nil {
		return AppendTarget{}, false, fmt.Errorf("gcodeadapter: parsing %q: %w", line, err)
	}

	var (
		haveMotion   bool
		rapid        bool
		arcRequested bool
		setPosition  bool
		targetMM     = a.position
	)

	for _, code := range doc.Codes {
		switch code.Letter {
		case 'G':
			switch int(code.Value) {
			case 0:
				haveMotion, rapid = true, true
			case 1:
				haveMotion, rapid = true, false
			case 2, 3:
				arcRequested = true
			case 20:
				a.inches = true
			case 21:
				a.inches = false
			case 90:
				a.absolute = true
			case 91:
				a.absolute = false
			case 92:
				setPosition = true
			}
		case 'M':
			switch int(code.Value) {
			case 3:
				a.spindleCond = planner.ConditionSpindleCW
			case 4:
				a.spindleCond = planner.ConditionSpindleCCW
			case 5:
				a.spindleCond = 0
			case 7:
				a.coolantCond |= planner.ConditionCoolantMist
			case 8:
				a.coolantCond |= planner.ConditionCoolantFlood
			case 9:
				a.coolantCond = 0
			}
		case 'F':
			a.feedRate = a.toMM(code.Value)
		case 'S':
			a.spindleSpeed = code.Value
		case 'X', 'Y', 'Z', 'A':
			ax := letterAxis(code.Letter)
			v := a.toMM(code.Value)
			if a.absolute {
				targetMM[ax] = v
			} else {
				targetMM[ax] = a.position[ax] + v
			}
		}
	}

	if arcRequested {
		return AppendTarget{}, false, ErrArcsUnsupported
	}
	if setPosition {
		// G92 redefines the current position in place; any axis words on
		// the same line set that axis's new value, unmentioned axes keep
		// their current one. It never moves the machine, so it takes
		// effect regardless of whether a motion code was also present.
		a.position = targetMM
		return AppendTarget{}, false, nil
	}
	if !haveMotion {
		return AppendTarget{}, false, nil
	}

	cond := planner.Condition(0)
	if rapid {
		cond |= planner.ConditionRapid
	}
	cond |= a.spindleCond | a.coolantCond

	a.position = targetMM
	return AppendTarget{
		Target: targetMM,
		Line: planner.LineData{
			FeedRate:     a.feedRate,
			Condition:    cond,
			SpindleSpeed: a.spindleSpeed,
		},
	}, true, nil
}

func (a *Adapter) toMM(v float64) float64 {
	if a.inches {
		return v * mmPerInch
	}
	return v
}

func letterAxis(letter byte) axis.Axis {
	switch letter {
	case 'X':
		return axis.X
	case 'Y':
		return axis.Y
	case 'Z':
		return axis.Z
	default:
		return axis.A
	}
}
