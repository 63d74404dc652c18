// Package settings holds the flat, GRBL-numbered machine configuration
// the planner reads at block-append time.
//
// ═══════════════════════════════════════════════════════════════════════════
// WHY A FLAT RECORD
// ═══════════════════════════════════════════════════════════════════════════
//
// Real GRBL-family firmware exposes settings as a flat "$N=value" list
// addressed by number, not as a nested config tree, because the host
// protocol (outside this module's scope) round-trips them one line at
// a time. We keep that shape here even though we load/save it from
// TOML on disk: the TOML keys below are named after the setting they
// back, but Settings itself stays a plain struct of arrays so the
// planner's read path is a field access, never a map lookup.
//
// Settings are read-only during motion. A reload (see Store) takes
// effect only for blocks appended after the reload; per spec, changes
// during motion never retroactively affect already-queued blocks.
package settings

import (
	"fmt"

	"github.com/Davec6505/gocnc-motion/axis"
)

// Settings is the per-build machine configuration.
type Settings struct {
	// Per-axis, GRBL $100-$103 (steps/mm), $110-$113 (max rate mm/min),
	// $120-$123 (max accel mm/min²), $130-$133 (max travel mm).
	StepsPerMM    axis.Vector
	MaxRate       axis.Vector
	MaxAccel      axis.Vector
	MaxTravel     axis.Vector

	// $11: junction deviation, mm. Governs how aggressively corners
	// may be taken without exceeding centripetal acceleration.
	JunctionDeviationMM float64

	// $36 (not standard GRBL; this core's addition): minimum feed
	// rate, mm/min, floor applied when clamping programmed_rate.
	MinFeedRateMMPerMin float64

	// MinimumJunctionSpeedMMPerMin is the floor applied at a reversal
	// or first-block junction (spec §4.1 step 5). With the default of
	// 0 such a block enters from rest; a positive value lets it enter
	// at that speed instead.
	MinimumJunctionSpeedMMPerMin float64
}

// Default returns a reasonable default configuration for a small
// benchtop router: 80 steps/mm, 6 m/min max rate on X/Y (2 m/min Z,
// 3 m/min A), 500 mm/min² acceleration on X/Y (250 Z, 400 A), and
// GRBL's usual 0.01 mm junction deviation.
func Default() Settings {
	return Settings{
		StepsPerMM:                   axis.Vector{80, 80, 80, 80},
		MaxRate:                      axis.Vector{6000, 6000, 2000, 3000},
		MaxAccel:                     axis.Vector{500, 500, 250, 400},
		MaxTravel:                    axis.Vector{300, 300, 100, 360},
		JunctionDeviationMM:          0.01,
		MinFeedRateMMPerMin:          1.0,
		MinimumJunctionSpeedMMPerMin: 0.0,
	}
}

// Validate rejects settings that would make the planner's geometry
// undefined (zero or negative steps/mm, non-positive limits).
func (s Settings) Validate() error {
	for a := axis.Axis(0); int(a) < axis.Count; a++ {
		if s.StepsPerMM[a] <= 0 {
			return fmt.Errorf("settings: axis %s steps/mm must be positive, got %g", a, s.StepsPerMM[a])
		}
		if s.MaxRate[a] <= 0 {
			return fmt.Errorf("settings: axis %s max rate must be positive, got %g", a, s.MaxRate[a])
		}
		if s.MaxAccel[a] <= 0 {
			return fmt.Errorf("settings: axis %s max acceleration must be positive, got %g", a, s.MaxAccel[a])
		}
	}
	if s.JunctionDeviationMM <= 0 {
		return fmt.Errorf("settings: junction deviation must be positive, got %g", s.JunctionDeviationMM)
	}
	if s.MinimumJunctionSpeedMMPerMin < 0 {
		return fmt.Errorf("settings: minimum junction speed cannot be negative, got %g", s.MinimumJunctionSpeedMMPerMin)
	}
	return nil
}

// file is the on-disk TOML shape. Kept separate from Settings so the
// in-memory record never carries struct tags into the hot path and so
// the on-disk numbering (GRBL $-style) can be documented independently
// of the Go field names.
type file struct {
	Axes struct {
		StepsPerMM [axis.Count]float64 `toml:"steps_per_mm"`
		MaxRate    [axis.Count]float64 `toml:"max_rate_mm_per_min"`
		MaxAccel   [axis.Count]float64 `toml:"max_accel_mm_per_min2"`
		MaxTravel  [axis.Count]float64 `toml:"max_travel_mm"`
	} `toml:"axes"`
	JunctionDeviationMM          float64 `toml:"junction_deviation_mm"`           // $11
	MinFeedRateMMPerMin          float64 `toml:"min_feed_rate_mm_per_min"`        // $36
	MinimumJunctionSpeedMMPerMin float64 `toml:"minimum_junction_speed_mm_per_min"`
}

func toFile(s Settings) file {
	var f file
	f.Axes.StepsPerMM = [axis.Count]float64(s.StepsPerMM)
	f.Axes.MaxRate = [axis.Count]float64(s.MaxRate)
	f.Axes.MaxAccel = [axis.Count]float64(s.MaxAccel)
	f.Axes.MaxTravel = [axis.Count]float64(s.MaxTravel)
	f.JunctionDeviationMM = s.JunctionDeviationMM
	f.MinFeedRateMMPerMin = s.MinFeedRateMMPerMin
	f.MinimumJunctionSpeedMMPerMin = s.MinimumJunctionSpeedMMPerMin
	return f
}

func fromFile(f file) Settings {
	return Settings{
		StepsPerMM:                   axis.Vector(f.Axes.StepsPerMM),
		MaxRate:                      axis.Vector(f.Axes.MaxRate),
		MaxAccel:                     axis.Vector(f.Axes.MaxAccel),
		MaxTravel:                    axis.Vector(f.Axes.MaxTravel),
		JunctionDeviationMM:          f.JunctionDeviationMM,
		MinFeedRateMMPerMin:          f.MinFeedRateMMPerMin,
		MinimumJunctionSpeedMMPerMin: f.MinimumJunctionSpeedMMPerMin,
	}
}
