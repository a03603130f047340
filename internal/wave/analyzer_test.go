package wave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/ringwave/internal/ring"
	"github.com/cxd309/ringwave/internal/vehicle"
)

// scriptedStepper replays a fixed sequence of population states.
type scriptedStepper struct {
	frames [][]vehicle.Snapshot
	cur    int
	failAt int
	road   ring.Road
	dt     float64
}

func (s *scriptedStepper) Step() error {
	if s.failAt > 0 && s.cur+1 == s.failAt {
		return errors.New("boom")
	}
	if s.cur < len(s.frames)-1 {
		s.cur++
	}
	return nil
}

func (s *scriptedStepper) States() []vehicle.Snapshot { return s.frames[s.cur] }
func (s *scriptedStepper) Road() ring.Road            { return s.road }
func (s *scriptedStepper) TimeStep() float64          { return s.dt }

// slowPointFrames puts a slow car at positions[k] in frame k, two fast cars elsewhere.
func slowPointFrames(positions ...float64) [][]vehicle.Snapshot {
	frames := make([][]vehicle.Snapshot, len(positions))
	for k, p := range positions {
		frames[k] = []vehicle.Snapshot{
			{Velocity: 10, Position: 500},
			{Velocity: 2, Position: p},
			{Velocity: 9, Position: 250},
		}
	}
	return frames
}

func TestSimulate_BackwardWave(t *testing.T) {
	// Slow point drifts backwards across the origin: 20, 10, 0, 990, 980.
	s := &scriptedStepper{
		frames: slowPointFrames(20, 10, 0, 990, 980),
		road:   ring.Road{Length: 1000},
		dt:     0.5,
	}

	res, err := Simulate(s, Options{Ticks: 4, StartTick: 0, StopTick: 4})
	require.NoError(t, err)

	assert.Equal(t, []float64{20, 10, 0, -10, -20}, res.Trace)
	assert.InDelta(t, -20.0, res.Speed, 1e-12) // -40 m over 2 s
	// 9 >= 0.95*10 is false, so the 9 m/s car also counts.
	assert.Equal(t, 2, res.Size)
	assert.Equal(t, 8.0, res.Depth)
}

func TestSimulate_Window(t *testing.T) {
	s := &scriptedStepper{
		frames: slowPointFrames(0, 0, 30, 60, 60),
		road:   ring.Road{Length: 1000},
		dt:     1,
	}
	res, err := Simulate(s, Options{Ticks: 4, StartTick: 1, StopTick: 3, SlowFraction: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 30.0, res.Speed, 1e-12)
	assert.Equal(t, 1, res.Size)
}

func TestSimulate_InvalidRange(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "start equals stop", opts: Options{Ticks: 10, StartTick: 5, StopTick: 5}},
		{name: "start after stop", opts: Options{Ticks: 10, StartTick: 6, StopTick: 5}},
		{name: "stop beyond ticks", opts: Options{Ticks: 10, StartTick: 0, StopTick: 11}},
		{name: "negative start", opts: Options{Ticks: 10, StartTick: -1, StopTick: 5}},
		{name: "no ticks", opts: Options{Ticks: 0, StartTick: 0, StopTick: 0}},
		{name: "bad fraction", opts: Options{Ticks: 10, StartTick: 0, StopTick: 5, SlowFraction: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedStepper{frames: slowPointFrames(0), road: ring.Road{Length: 100}, dt: 1}
			_, err := Simulate(s, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidRange)
			assert.Equal(t, 0, s.cur, "no ticks should run for an invalid window")
		})
	}
}

func TestSimulate_StepError(t *testing.T) {
	s := &scriptedStepper{frames: slowPointFrames(0, 1, 2), road: ring.Road{Length: 100}, dt: 1, failAt: 2}
	_, err := Simulate(s, Options{Ticks: 2, StartTick: 0, StopTick: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick 2")
}

func TestSize(t *testing.T) {
	states := []vehicle.Snapshot{{Velocity: 100}, {Velocity: 96}, {Velocity: 94}, {Velocity: 0}}
	assert.Equal(t, 2, Size(states, 0.95))
	assert.Equal(t, 0, Size(nil, 0.95))

	uniform := []vehicle.Snapshot{{Velocity: 40}, {Velocity: 40}}
	assert.Equal(t, 0, Size(uniform, 0.95))
}

func TestSlowestPositionTieGoesToLowestID(t *testing.T) {
	road := ring.Road{Length: 100}
	states := []vehicle.Snapshot{{Velocity: 5, Position: 10}, {Velocity: 1, Position: 70}, {Velocity: 1, Position: 30}}
	assert.Equal(t, -30.0, SlowestPosition(states, road))
}

func TestSpeedErrors(t *testing.T) {
	_, err := Speed([]float64{0, 1}, 0, 2, 1)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = Speed([]float64{0, 1}, 0, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}
