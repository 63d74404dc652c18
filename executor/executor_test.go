package executor

import (
	"testing"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/planner"
	"github.com/Davec6505/gocnc-motion/settings"
	"github.com/stretchr/testify/require"
)

type fixedSettings struct{ s settings.Settings }

func (f fixedSettings) Get() settings.Settings { return f.s }

func benchSettings() settings.Settings {
	s := settings.Default()
	for a := 0; a < axis.Count; a++ {
		s.StepsPerMM[a] = 80
		s.MaxRate[a] = 6000
		s.MaxAccel[a] = 500
	}
	s.JunctionDeviationMM = 0.01
	return s
}

// runToCompletion drains Prep until the block the executor adopted
// has fully retired, collecting every segment it emitted.
func runToCompletion(t *testing.T, e *Executor) []Segment {
	t.Helper()
	var segs []Segment
	for i := 0; i < 100000; i++ {
		before := e.BlockActive()
		e.Prep()
		if seg := e.ring.peek(); seg != nil {
			segs = append(segs, *seg)
			e.ring.retire()
		}
		if before && !e.BlockActive() {
			break
		}
	}
	return segs
}

func TestPrep_DominantStepTotalMatchesBlock(t *testing.T) {
	cfg := benchSettings()
	p := planner.New(stubSettingsSource{cfg}, nil)
	require.NoError(t, p.Append(axis.Vector{50, 0, 0, 0}, planner.LineData{FeedRate: 3000}))

	e := New(p, fixedSettings{cfg}, nil)
	segs := runToCompletion(t, e)
	require.NotEmpty(t, segs)

	var total uint32
	for _, s := range segs {
		total += s.NStep
		require.Equal(t, axis.X, s.Dominant)
	}
	require.EqualValues(t, 50*80, total)
}

func TestPrep_SubordinateStepTotalsExact(t *testing.T) {
	cfg := benchSettings()
	p := planner.New(stubSettingsSource{cfg}, nil)
	require.NoError(t, p.Append(axis.Vector{30, 10, 0, 0}, planner.LineData{FeedRate: 3000}))

	e := New(p, fixedSettings{cfg}, nil)

	dominant := axis.X // 30mm dominates 10mm at equal steps/mm
	wantSub := uint32(10 * 80)

	var subTotal uint32
	var total uint32
	for i := 0; i < 100000; i++ {
		before := e.BlockActive()
		e.Prep()
		if seg := e.ring.peek(); seg != nil {
			require.Equal(t, dominant, seg.Dominant)
			c := seg.StartCounter[axis.Y]
			for s := uint32(0); s < seg.NStep; s++ {
				var emit bool
				c, emit = StepBresenham(c, seg.SubIncrement[axis.Y], seg.SubDenom)
				if emit {
					subTotal++
				}
			}
			total += seg.NStep
			e.ring.retire()
		}
		if before && !e.BlockActive() {
			break
		}
	}

	require.EqualValues(t, 30*80, total)
	require.EqualValues(t, wantSub, subTotal)
}

func TestPrep_CurrentSpeedAtBlockEndMatchesSuccessorEntry(t *testing.T) {
	cfg := benchSettings()
	p := planner.New(stubSettingsSource{cfg}, nil)
	require.NoError(t, p.Append(axis.Vector{20, 0, 0, 0}, planner.LineData{FeedRate: 3000}))
	require.NoError(t, p.Append(axis.Vector{40, 0, 0, 0}, planner.LineData{FeedRate: 3000}))

	successorEntrySqr, ok := p.SuccessorEntrySpeedSqr()
	require.True(t, ok)

	e := New(p, fixedSettings{cfg}, nil)
	runToCompletion(t, e)

	want := successorEntrySqr
	got := e.currentSpeed * e.currentSpeed
	require.InDelta(t, want, got, 1.0)
}

func TestPrep_NoBlockIsNoOp(t *testing.T) {
	cfg := benchSettings()
	p := planner.New(stubSettingsSource{cfg}, nil)
	e := New(p, fixedSettings{cfg}, nil)
	e.Prep()
	require.False(t, e.BlockActive())
	require.Nil(t, e.NextSegment())
}

type stubSettingsSource struct{ s settings.Settings }

func (s stubSettingsSource) Get() settings.Settings { return s.s }
