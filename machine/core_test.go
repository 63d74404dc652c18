package machine

import (
	"testing"

	"github.com/Davec6505/gocnc-motion/axis"
	"github.com/Davec6505/gocnc-motion/dispatcher"
	"github.com/Davec6505/gocnc-motion/executor"
	"github.com/Davec6505/gocnc-motion/planner"
	"github.com/Davec6505/gocnc-motion/settings"
	"github.com/stretchr/testify/require"
)

type fixedSettingsSource struct{ s settings.Settings }

func (f fixedSettingsSource) Get() settings.Settings { return f.s }

func benchSettings() settings.Settings {
	s := settings.Default()
	for a := 0; a < axis.Count; a++ {
		s.StepsPerMM[a] = 80
		s.MaxRate[a] = 6000
		s.MaxAccel[a] = 500
	}
	return s
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	cfg := benchSettings()
	src := fixedSettingsSource{cfg}

	p := planner.New(src, nil)
	e := executor.New(p, src, nil)
	hw, gens := dispatcher.NewSimHardware()
	d := dispatcher.New(hw, e, nil)
	_ = gens

	return New(p, e, d, nil, nil)
}

func TestCore_IdleUntilAppend(t *testing.T) {
	c := newTestCore(t)
	require.Equal(t, StateIdle, c.Status().State)

	require.NoError(t, c.Append(axis.Vector{10, 0, 0, 0}, planner.LineData{FeedRate: 600}))
	require.Equal(t, StateQueued, c.Status().State)
}

func TestCore_TickActivatesDispatcher(t *testing.T) {
	c := newTestCore(t)
	require.NoError(t, c.Append(axis.Vector{10, 0, 0, 0}, planner.LineData{FeedRate: 600}))

	c.Tick()
	require.Equal(t, StateRunning, c.Status().State)
}

func TestCore_EmergencyStopRequiresResync(t *testing.T) {
	c := newTestCore(t)
	require.NoError(t, c.Append(axis.Vector{10, 0, 0, 0}, planner.LineData{FeedRate: 600}))
	c.Tick()

	c.EmergencyStop()
	require.Equal(t, StateAlarm, c.Status().State)

	err := c.Append(axis.Vector{20, 0, 0, 0}, planner.LineData{FeedRate: 600})
	require.ErrorIs(t, err, planner.ErrResyncRequired)

	c.SyncPosition(axis.StepVector{})
	require.NoError(t, c.Append(axis.Vector{20, 0, 0, 0}, planner.LineData{FeedRate: 600}))
}

func TestCore_FeedHoldStopsTicksThenCycleStartResumes(t *testing.T) {
	c := newTestCore(t)
	require.NoError(t, c.Append(axis.Vector{10, 0, 0, 0}, planner.LineData{FeedRate: 600}))
	c.Tick()
	require.Equal(t, StateRunning, c.Status().State)

	c.FeedHold()
	require.Equal(t, StateHold, c.Status().State)

	before := c.Status().MachinePosition
	c.Tick() // held: must be a no-op
	require.Equal(t, before, c.Status().MachinePosition)

	c.CycleStart()
	require.Equal(t, StateRunning, c.Status().State)
}
