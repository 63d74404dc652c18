package planner

import (
	"math"
	"testing"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/settings"
	"github.com/stretchr/testify/require"
)

// fixedSettings is a constant SettingsSource for tests — no TOML file,
// no fsnotify watch, just the knobs each scenario cares about.
type fixedSettings struct {
	s settings.Settings
}

func (f fixedSettings) Get() settings.Settings { return f.s }

func benchSettings() settings.Settings {
	s := settings.Default()
	for a := 0; a < axis.Count; a++ {
		s.StepsPerMM[a] = 80
		s.MaxRate[a] = 6000
		s.MaxAccel[a] = 500
	}
	s.JunctionDeviationMM = 0.01
	s.MinimumJunctionSpeedMMPerMin = 0 // keep the scenario-1 math exact
	return s
}

func newTestPlanner(s settings.Settings) *Planner {
	return New(fixedSettings{s}, nil)
}

// Scenario 1: first block from rest.
func TestAppend_FirstBlockFromRest(t *testing.T) {
	p := newTestPlanner(benchSettings())

	err := p.Append(axis.Vector{10, 0, 0, 0}, LineData{FeedRate: 600})
	require.NoError(t, err)
	require.EqualValues(t, 1, p.BufferCount())

	b := p.CurrentBlock()
	require.NotNil(t, b)
	require.Equal(t, [axis.Count]uint32{800, 0, 0, 0}, b.Steps)
	require.EqualValues(t, 0, b.DirectionBits)
	require.InDelta(t, 10, b.Millimeters, 1e-9)
	require.InDelta(t, 500, b.Acceleration, 1e-9)
	require.InDelta(t, 0, b.MaxJunctionSpeedSqr, 1e-9)
	require.InDelta(t, 0, b.EntrySpeedSqr, 1e-9)
}

// Scenario 2: collinear two-block symmetric junction.
func TestAppend_CollinearSymmetricJunction(t *testing.T) {
	p := newTestPlanner(benchSettings())

	require.NoError(t, p.Append(axis.Vector{10, 0, 0, 0}, LineData{FeedRate: 1500}))
	require.NoError(t, p.Append(axis.Vector{20, 0, 0, 0}, LineData{FeedRate: 1500}))

	b2 := p.ring.at(p.ring.tail.Load() + 1)
	require.Greater(t, b2.MaxJunctionSpeedSqr, 1e6) // unbounded sentinel

	want := 500.0 * 20 // a * 2 * 10mm
	require.InDelta(t, want, b2.EntrySpeedSqr, 1e-6)

	b1 := p.ring.at(p.ring.tail.Load())
	require.InDelta(t, b2.EntrySpeedSqr, b1.EntrySpeedSqr+2*b1.Acceleration*b1.Millimeters, 1e-6)
}

// Scenario 3: 45-degree exterior angle junction, finite bounded speed.
func TestAppend_FortyFiveDegreeJunction(t *testing.T) {
	p := newTestPlanner(benchSettings())

	require.NoError(t, p.Append(axis.Vector{10, 0, 0, 0}, LineData{FeedRate: 6000}))
	require.NoError(t, p.Append(axis.Vector{10, 10, 0, 0}, LineData{FeedRate: 6000}))

	b2 := p.ring.at(p.ring.tail.Load() + 1)
	require.True(t, finite(b2.MaxJunctionSpeedSqr))
	require.Less(t, b2.MaxJunctionSpeedSqr, b2.NominalSpeedSqr)
	require.Greater(t, b2.EntrySpeedSqr, 0.0)
}

// Scenario 4: 180-degree reversal forces minimum junction speed.
func TestAppend_ReversalForcesMinimumJunctionSpeed(t *testing.T) {
	s := benchSettings()
	s.MinimumJunctionSpeedMMPerMin = 0
	p := newTestPlanner(s)

	require.NoError(t, p.Append(axis.Vector{10, 0, 0, 0}, LineData{FeedRate: 1500}))
	require.NoError(t, p.Append(axis.Vector{0, 0, 0, 0}, LineData{FeedRate: 1500}))

	b2 := p.ring.at(p.ring.tail.Load() + 1)
	require.InDelta(t, 0, b2.MaxJunctionSpeedSqr, 1e-9)
	require.InDelta(t, 0, b2.EntrySpeedSqr, 1e-9)
}

// Scenario 5: buffer-full, then succeeds again after a discard.
func TestAppend_BufferFullThenRetryAfterDiscard(t *testing.T) {
	p := newTestPlanner(benchSettings())

	for i := 0; i < capacity; i++ {
		x := float64(i+1) * 0.1
		require.NoError(t, p.Append(axis.Vector{x, 0, 0, 0}, LineData{FeedRate: 600}))
	}
	require.True(t, p.ring.full())

	err := p.Append(axis.Vector{100, 0, 0, 0}, LineData{FeedRate: 600})
	require.ErrorIs(t, err, ErrBufferFull)

	p.DiscardCurrent()
	require.NoError(t, p.Append(axis.Vector{100, 0, 0, 0}, LineData{FeedRate: 600}))
}

// Scenario 6 (planner-position half): planner position tracks the
// append target exactly, independent of any execution-side polling
// (execution position is an executor/dispatcher concern exercised in
// that package's tests).
func TestAppend_PlannerPositionMatchesTarget(t *testing.T) {
	p := newTestPlanner(benchSettings())

	require.NoError(t, p.Append(axis.Vector{100, 0, 0, 0}, LineData{FeedRate: 600}))
	got := p.PlannerPosition()
	require.EqualValues(t, 8000, got[axis.X])
}

func TestAppend_ZeroLengthMoveIsEmptyBlock(t *testing.T) {
	p := newTestPlanner(benchSettings())
	err := p.Append(axis.Vector{}, LineData{FeedRate: 600})
	require.ErrorIs(t, err, ErrEmptyBlock)
}

func TestAppend_NonFiniteTargetRejected(t *testing.T) {
	p := newTestPlanner(benchSettings())
	err := p.Append(axis.Vector{math.Inf(1), 0, 0, 0}, LineData{FeedRate: 600})
	require.ErrorIs(t, err, ErrNonFinite)
}

func TestAppend_ResyncRequiredBlocksAppend(t *testing.T) {
	p := newTestPlanner(benchSettings())
	p.EmergencyStop()

	err := p.Append(axis.Vector{10, 0, 0, 0}, LineData{FeedRate: 600})
	require.ErrorIs(t, err, ErrResyncRequired)

	p.SyncPosition(axis.StepVector{})
	require.NoError(t, p.Append(axis.Vector{10, 0, 0, 0}, LineData{FeedRate: 600}))
}

// Quantified invariant: every block in the ring satisfies the
// predecessor/successor decel bounds after a burst of appends with
// varied geometry.
func TestRecalculate_InvariantsHoldAcrossBurst(t *testing.T) {
	p := newTestPlanner(benchSettings())

	moves := []axis.Vector{
		{5, 0, 0, 0}, {10, 0, 0, 0}, {10, 5, 0, 0}, {0, 5, 0, 0}, {0, 0, 0, 0}, {-5, 0, 0, 0},
	}
	pos := axis.Vector{0, 0, 0, 0}
	for _, m := range moves {
		pos[0] += m[0]
		pos[1] += m[1]
		if err := p.Append(pos, LineData{FeedRate: 3000}); err != nil {
			continue // a zero-length step in the sequence is expected and fine
		}
	}

	tail := p.ring.tail.Load()
	head := p.ring.head.Load()
	for i := tail; i < head; i++ {
		b := p.ring.at(i)
		require.LessOrEqual(t, b.EntrySpeedSqr, b.MaxJunctionSpeedSqr+1e-3)
		require.LessOrEqual(t, b.EntrySpeedSqr, b.NominalSpeedSqr+1e-3)

		if i+1 < head {
			n := p.ring.at(i + 1)
			require.True(t, b.CanDecelerateTo(n.EntrySpeedSqr))
		}
		if i > tail {
			prev := p.ring.at(i - 1)
			require.LessOrEqual(t, b.EntrySpeedSqr, prev.EntrySpeedSqr+2*prev.Acceleration*prev.Millimeters+1e-3)
		}
	}
}

// Round-trip: sync_position then append computes deltas against
// exactly the synced position.
func TestSyncPosition_NextAppendUsesSyncedPosition(t *testing.T) {
	p := newTestPlanner(benchSettings())
	p.SyncPosition(axis.StepVector{800, 0, 0, 0}) // 10mm at 80 steps/mm

	require.NoError(t, p.Append(axis.Vector{20, 0, 0, 0}, LineData{FeedRate: 600}))
	b := p.CurrentBlock()
	require.Equal(t, [axis.Count]uint32{800, 0, 0, 0}, b.Steps)
}
