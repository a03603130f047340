package engine

import (
	"log/slog"

	"github.com/cxd309/ringwave/internal/following"
	"github.com/cxd309/ringwave/internal/reaction"
	"github.com/cxd309/ringwave/internal/ring"
	"github.com/cxd309/ringwave/internal/vehicle"
	"github.com/cxd309/ringwave/internal/wave"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	Vehicles     int     `json:"vehicles"`
	RoadLength   float64 `json:"road_length"` // metres
	TimeStep     float64 `json:"time_step"`   // seconds
	Policy       string  `json:"policy"`
}

// SimulationLogRow is the state of all vehicles at the end of a single tick.
type SimulationLogRow struct {
	Tick      int                  `json:"tick"`
	Timestamp float64              `json:"timestamp"` // seconds
	Vehicles  []vehicle.VehicleLog `json:"vehicles"`
}

// SimulationLog is the per-tick record of a run.
type SimulationLog struct {
	Meta           SimulationMeta     `json:"simulation_meta"`
	NearCollisions int                `json:"near_collisions"`
	Output         []SimulationLogRow `json:"output,omitempty"`
}

// AnalysisOutput is the JSON result of RunJSON.
type AnalysisOutput struct {
	Meta           SimulationMeta     `json:"simulation_meta"`
	Wave           wave.Result        `json:"wave"`
	NearCollisions int                `json:"near_collisions"`
	Output         []SimulationLogRow `json:"output,omitempty"`
}

// Options tune how the engine runs without changing what it computes.
type Options struct {
	SimulationID string
	Workers      int  // Phase A goroutines; <= 1 runs sequentially
	Record       bool // keep a SimulationLogRow per tick
	Logger       *slog.Logger
}

// NearCollision is the diagnostic raised when a follower is found just ahead of
// its leader at the start of a tick.
type NearCollision struct {
	Tick       int
	Follower   vehicle.ID
	Leader     vehicle.ID
	Separation float64 // negative, metres
}

// Engine is the ring-road simulation state.
type Engine struct {
	meta     SimulationMeta
	road     ring.Road
	rule     following.Rule
	vehicles vehicle.Population
	buffer   *reaction.Buffer
	workers  int
	record   bool
	logger   *slog.Logger

	tick       int
	collisions int
	output     []SimulationLogRow

	// Phase A scratch, reused every tick.
	decisions []following.Decision
	start     reaction.Row
}
