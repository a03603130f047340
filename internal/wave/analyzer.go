// Package wave measures stop-and-go waves on a running ring-road simulation.
//
// The analyzer drives a Stepper for a fixed number of ticks and reports:
//
//   - size: how many vehicles are in the slow cluster at the end of the run,
//     i.e. below SlowFraction of the fastest vehicle's speed;
//   - speed: how fast the slowest point moves along the ring between two
//     ticks. Congestion waves travel against the traffic, so it is normally
//     negative;
//   - depth: the spread between the fastest and slowest vehicle at the end.
package wave

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/cxd309/ringwave/internal/ring"
	"github.com/cxd309/ringwave/internal/vehicle"
)

// ErrInvalidRange is returned for a measurement window that the run cannot
// cover.
var ErrInvalidRange = errors.New("invalid range")

// DefaultSlowFraction is used when Options.SlowFraction is zero.
const DefaultSlowFraction = 0.95

// Stepper is the part of the simulation engine the analyzer drives.
type Stepper interface {
	Step() error
	States() []vehicle.Snapshot
	Road() ring.Road
	TimeStep() float64
}

// Options configures a measurement run.
type Options struct {
	Ticks        int     // ticks to execute
	StartTick    int     // speed window start, 0 = before the first tick
	StopTick     int     // speed window end, <= Ticks
	SlowFraction float64 // fraction of the fastest speed below which a car counts as slowed
}

// Result is the outcome of one measurement run.
type Result struct {
	Size  int       `json:"wave_size"`
	Speed float64   `json:"wave_speed"` // m/s, negative when travelling against traffic
	Depth float64   `json:"wave_depth"` // m/s
	Trace []float64 `json:"trace"`      // unwrapped slowest position, index k = after tick k
}

func (o Options) validate() error {
	switch {
	case o.Ticks < 1:
		return fmt.Errorf("%w: ticks must be positive, got %d", ErrInvalidRange, o.Ticks)
	case o.StartTick < 0:
		return fmt.Errorf("%w: start tick %d is negative", ErrInvalidRange, o.StartTick)
	case o.StartTick >= o.StopTick:
		return fmt.Errorf("%w: start tick %d not before stop tick %d", ErrInvalidRange, o.StartTick, o.StopTick)
	case o.StopTick > o.Ticks:
		return fmt.Errorf("%w: stop tick %d beyond %d executed ticks", ErrInvalidRange, o.StopTick, o.Ticks)
	case o.SlowFraction < 0 || o.SlowFraction > 1:
		return fmt.Errorf("%w: slow fraction %v outside [0, 1]", ErrInvalidRange, o.SlowFraction)
	}
	return nil
}

// Simulate runs s for opts.Ticks ticks and measures the wave. The trace is
// allocated per call and handed back in the Result.
func Simulate(s Stepper, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	if opts.SlowFraction == 0 {
		opts.SlowFraction = DefaultSlowFraction
	}

	road := s.Road()
	trace := make([]float64, 0, opts.Ticks+1)
	trace = append(trace, SlowestPosition(s.States(), road))
	for k := 0; k < opts.Ticks; k++ {
		if err := s.Step(); err != nil {
			return Result{}, fmt.Errorf("tick %d: %w", k+1, err)
		}
		trace = append(trace, SlowestPosition(s.States(), road))
	}

	speed, err := Speed(trace, opts.StartTick, opts.StopTick, s.TimeStep())
	if err != nil {
		return Result{}, err
	}
	final := s.States()
	return Result{
		Size:  Size(final, opts.SlowFraction),
		Speed: speed,
		Depth: Depth(final),
		Trace: trace,
	}, nil
}

// Size counts the vehicles moving slower than fraction of the fastest one.
func Size(states []vehicle.Snapshot, fraction float64) int {
	if len(states) == 0 {
		return 0
	}
	fastest := lo.MaxBy(states, func(a, b vehicle.Snapshot) bool { return a.Velocity > b.Velocity })
	return lo.CountBy(states, func(s vehicle.Snapshot) bool {
		return s.Velocity < fraction*fastest.Velocity
	})
}

// Depth returns the speed spread between the fastest and slowest vehicle.
func Depth(states []vehicle.Snapshot) float64 {
	if len(states) == 0 {
		return 0
	}
	fastest := lo.MaxBy(states, func(a, b vehicle.Snapshot) bool { return a.Velocity > b.Velocity })
	slowest := lo.MinBy(states, func(a, b vehicle.Snapshot) bool { return a.Velocity < b.Velocity })
	return fastest.Velocity - slowest.Velocity
}

// SlowestPosition returns the unwrapped position of the slowest vehicle. Ties
// go to the lowest id.
func SlowestPosition(states []vehicle.Snapshot, road ring.Road) float64 {
	if len(states) == 0 {
		return 0
	}
	slowest := lo.MinBy(states, func(a, b vehicle.Snapshot) bool { return a.Velocity < b.Velocity })
	return road.Unwrap(slowest.Position)
}

// Speed returns the net displacement of the traced point between start and
// stop divided by the elapsed time.
func Speed(trace []float64, start, stop int, dt float64) (float64, error) {
	if start < 0 || start >= stop || stop >= len(trace) {
		return 0, fmt.Errorf("%w: window [%d, %d] outside trace of %d samples", ErrInvalidRange, start, stop, len(trace))
	}
	if !(dt > 0) {
		return 0, fmt.Errorf("%w: time step must be positive, got %v", ErrInvalidRange, dt)
	}
	return (trace[stop] - trace[start]) / (float64(stop-start) * dt), nil
}
