// Package engine implements the ring-road simulation loop.
//
// The simulation advances in fixed ticks. Each tick has two phases:
//
//  1. Compute - every vehicle evaluates the car-following rule against its
//     leader's delayed state from the reaction buffer and its leader's live
//     start-of-tick state. Results go to a scratch row; no vehicle is touched.
//
//  2. Commit - all new states are applied, then the buffer is advanced with
//     the start-of-tick states, so a driver always reacts to what the car ahead
//     was doing, never to what it is about to do.
//
// Because compute only reads committed data, vehicles can be evaluated in any
// order or in parallel.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cxd309/ringwave/internal/config"
	"github.com/cxd309/ringwave/internal/following"
	"github.com/cxd309/ringwave/internal/reaction"
	"github.com/cxd309/ringwave/internal/ring"
	"github.com/cxd309/ringwave/internal/vehicle"
	"github.com/cxd309/ringwave/internal/wave"
)

// New constructs an Engine over an existing population. The reaction buffer
// is sized to the deepest reaction delay and seeded with the current states.
func New(road ring.Road, vehicles vehicle.Population, rule following.Rule, opts Options) (*Engine, error) {
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("%w: no vehicles", vehicle.ErrInvalidParameter)
	}
	for _, v := range vehicles {
		if !road.Contains(v.Position) {
			return nil, fmt.Errorf("%w: vehicle %d position %v off the road", vehicle.ErrInvalidParameter, v.ID, v.Position)
		}
	}
	buffer, err := reaction.NewBuffer(vehicles.MaxReactionTicks(), vehicles.Snapshots())
	if err != nil {
		return nil, fmt.Errorf("seeding reaction buffer: %w", err)
	}

	id := opts.SimulationID
	if id == "" {
		id = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		meta: SimulationMeta{
			SimulationID: id,
			Vehicles:     len(vehicles),
			RoadLength:   road.Length,
			TimeStep:     rule.TimeStep,
			Policy:       string(rule.Policy),
		},
		road:      road,
		rule:      rule,
		vehicles:  vehicles,
		buffer:    buffer,
		workers:   opts.Workers,
		record:    opts.Record,
		logger:    logger.With("simulation_id", id),
		decisions: make([]following.Decision, len(vehicles)),
		start:     make(reaction.Row, len(vehicles)),
	}, nil
}

// NewFromConfig builds the population described by cfg (evenly spaced, every
// vehicle at the configured fraction of its v_max, per-vehicle overrides
// applied), seeds the reaction buffer, then applies the perturbations.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := cfg.Simulation

	road, err := ring.NewRoad(s.RoadLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vehicle.ErrInvalidParameter, err)
	}
	policy, err := following.ParsePolicy(s.Policy)
	if err != nil {
		return nil, err
	}
	rule, err := following.NewRule(policy, s.TimeStep, road, s.EffectiveCollisionBand(), s.BrakeScale)
	if err != nil {
		return nil, fmt.Errorf("building car-following rule: %w", err)
	}

	params := make([]vehicle.Params, s.Vehicles)
	for i := range params {
		params[i] = s.Vehicle
	}
	for _, o := range s.Overrides {
		params[o.VehicleID] = o.Apply(params[o.VehicleID])
	}

	vs := make([]*vehicle.Vehicle, s.Vehicles)
	for i, p := range params {
		v, err := vehicle.New(i, p, road.EvenSpacing(i, s.Vehicles), s.InitialVelocityFraction*p.VMax, road)
		if err != nil {
			return nil, fmt.Errorf("creating vehicle %d: %w", i, err)
		}
		vs[i] = v
	}
	pop, err := vehicle.NewPopulation(vs)
	if err != nil {
		return nil, err
	}

	e, err := New(road, pop, rule, Options{
		SimulationID: s.ID,
		Workers:      s.Parallel,
		Record:       s.Record,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	// Perturbations land after the buffer is seeded, so followers only see
	// them once their reaction delay has elapsed.
	for _, p := range s.Perturbations {
		if err := e.vehicles[p.VehicleID].SetVelocity(p.Velocity); err != nil {
			return nil, fmt.Errorf("perturbation: %w", err)
		}
	}
	return e, nil
}

// Step advances the simulation by one tick.
func (e *Engine) Step() error {
	n := len(e.vehicles)

	// Phase A: compute. Only reads vehicles and the committed buffer.
	for i, v := range e.vehicles {
		e.start[i] = v.Snapshot()
	}
	if err := e.compute(); err != nil {
		return fmt.Errorf("tick %d: %w", e.tick+1, err)
	}

	e.tick++
	for i, d := range e.decisions {
		if !d.NearCollision {
			continue
		}
		e.collisions++
		leader := ring.Leader(i, n)
		e.logger.Warn("near collision: follower ahead of leader",
			"tick", e.tick,
			"follower", i,
			"leader", leader,
			"separation", e.road.Separation(e.start[i].Position, e.start[leader].Position),
		)
	}

	// Phase B: commit.
	for i, v := range e.vehicles {
		v.Apply(e.decisions[i].Snapshot)
	}
	if err := e.buffer.Advance(e.start); err != nil {
		return fmt.Errorf("tick %d: advancing reaction buffer: %w", e.tick, err)
	}

	if e.record {
		e.output = append(e.output, e.row())
	}
	return nil
}

// compute fills e.decisions, fanning out across workers when configured.
func (e *Engine) compute() error {
	n := len(e.vehicles)
	workers := e.workers
	if workers <= 1 || n < 2 {
		return e.computeRange(0, n)
	}
	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		from, to := w*chunk, min((w+1)*chunk, n)
		if from >= to {
			break
		}
		wg.Add(1)
		go func(w, from, to int) {
			defer wg.Done()
			errs[w] = e.computeRange(from, to)
		}(w, from, to)
	}
	// Barrier: the buffer must not advance until every read has happened.
	wg.Wait()
	return errors.Join(errs...)
}

func (e *Engine) computeRange(from, to int) error {
	n := len(e.vehicles)
	for i := from; i < to; i++ {
		v := e.vehicles[i]
		leader := ring.Leader(i, n)
		delayed, err := e.buffer.Read(leader, v.Params().ReactionTicks-1)
		if err != nil {
			return fmt.Errorf("vehicle %d reading leader %d: %w", i, leader, err)
		}
		e.decisions[i] = e.rule.Next(v, delayed, e.start[leader])
	}
	return nil
}

// Run executes ticks steps and returns the log.
func (e *Engine) Run(ticks int) (SimulationLog, error) {
	for k := 0; k < ticks; k++ {
		if err := e.Step(); err != nil {
			return SimulationLog{}, err
		}
	}
	return e.Log(), nil
}

func (e *Engine) row() SimulationLogRow {
	logs := make([]vehicle.VehicleLog, len(e.vehicles))
	for i, v := range e.vehicles {
		logs[i] = v.GetLog()
	}
	return SimulationLogRow{
		Tick:      e.tick,
		Timestamp: float64(e.tick) * e.rule.TimeStep,
		Vehicles:  logs,
	}
}

// Log returns the run record so far. Output is empty unless recording is on.
func (e *Engine) Log() SimulationLog {
	return SimulationLog{
		Meta:           e.meta,
		NearCollisions: e.collisions,
		Output:         e.output,
	}
}

// Meta returns the run identity.
func (e *Engine) Meta() SimulationMeta { return e.meta }

// Tick returns the number of completed ticks.
func (e *Engine) Tick() int { return e.tick }

// NearCollisions returns the number of near-collision diagnostics raised so far.
func (e *Engine) NearCollisions() int { return e.collisions }

// States returns every vehicle's current state, indexed by id.
func (e *Engine) States() []vehicle.Snapshot { return e.vehicles.Snapshots() }

// Vehicles returns a point-in-time copy of every vehicle.
func (e *Engine) Vehicles() []vehicle.VehicleLog { return e.row().Vehicles }

// Delayed returns a copy of the reaction buffer row at age.
func (e *Engine) Delayed(age int) (reaction.Row, error) { return e.buffer.Row(age) }

// Road returns the ring the engine runs on.
func (e *Engine) Road() ring.Road { return e.road }

// TimeStep returns dt in seconds.
func (e *Engine) TimeStep() float64 { return e.rule.TimeStep }

// Analyze runs the wave analysis configured in cfg on a fresh engine.
func Analyze(cfg *config.Config, logger *slog.Logger) (AnalysisOutput, error) {
	e, err := NewFromConfig(cfg, logger)
	if err != nil {
		return AnalysisOutput{}, err
	}
	a := cfg.Analysis
	res, err := wave.Simulate(e, wave.Options{
		Ticks:        a.Ticks,
		StartTick:    a.StartTick,
		StopTick:     a.StopTick,
		SlowFraction: a.SlowFraction,
	})
	if err != nil {
		return AnalysisOutput{}, fmt.Errorf("wave analysis: %w", err)
	}
	e.logger.Info("analysis finished",
		"ticks", e.tick,
		"wave_size", res.Size,
		"wave_speed", res.Speed,
		"near_collisions", e.collisions,
	)
	return AnalysisOutput{
		Meta:           e.meta,
		Wave:           res,
		NearCollisions: e.collisions,
		Output:         e.output,
	}, nil
}

// RunJSON is the entry point shared by the CLI and WASM targets. It accepts a
// YAML or JSON scenario, runs the wave analysis, and returns the JSON-encoded
// AnalysisOutput.
func RunJSON(input string, logger *slog.Logger) (string, error) {
	cfg, err := config.Parse([]byte(input))
	if err != nil {
		return "", err
	}

	out, err := Analyze(cfg, logger)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(data), nil
}
