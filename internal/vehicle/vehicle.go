// Package vehicle defines the vehicle state container used by the ring-road
// simulation, its immutable kinematic parameters and the Snapshot value the
// reaction buffer stores.
package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/cxd309/ringwave/internal/kinematics"
	"github.com/cxd309/ringwave/internal/ring"
)

// ErrInvalidParameter is returned for construction arguments that can never
// describe a valid vehicle.
var ErrInvalidParameter = errors.New("invalid parameter")

// ID is the stable 0-based identity of a vehicle.
type ID = int

// Params holds the per-vehicle kinematic parameters fixed at creation.
// Deceleration is stored as a non-negative magnitude; a negative value is
// accepted on input and its sign dropped.
type Params struct {
	VMax          float64 `json:"v_max" yaml:"v_max"`                   // m/s
	ReactionTicks int     `json:"reaction_ticks" yaml:"reaction_ticks"` // ticks, >= 1
	Acceleration  float64 `json:"acceleration" yaml:"acceleration"`     // m/s²
	Deceleration  float64 `json:"deceleration" yaml:"deceleration"`     // m/s², magnitude
}

// Validate checks the parameters, returning an error wrapping
// ErrInvalidParameter on the first violation.
func (p Params) Validate() error {
	switch {
	case !(p.VMax > 0) || math.IsInf(p.VMax, 1):
		return fmt.Errorf("%w: v_max must be positive and finite, got %v", ErrInvalidParameter, p.VMax)
	case p.ReactionTicks < 1:
		return fmt.Errorf("%w: reaction_ticks must be at least 1, got %d", ErrInvalidParameter, p.ReactionTicks)
	case !(p.Acceleration > 0):
		return fmt.Errorf("%w: acceleration must be positive, got %v", ErrInvalidParameter, p.Acceleration)
	case math.IsNaN(p.Deceleration):
		return fmt.Errorf("%w: deceleration is NaN", ErrInvalidParameter)
	}
	return nil
}

// Snapshot is one vehicle's observable state at one tick.
type Snapshot struct {
	Velocity float64 `json:"velocity"` // m/s
	Position float64 `json:"position"` // metres along the ring
}

// Vehicle is a single car on the ring.
type Vehicle struct {
	ID       ID      `json:"id"`
	Position float64 `json:"position"` // metres, [0, D)
	Velocity float64 `json:"velocity"` // m/s, [0, VMax]
	params   Params
}

// New validates its arguments and returns a Vehicle placed on road.
func New(id ID, p Params, position, velocity float64, road ring.Road) (*Vehicle, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: vehicle id must be non-negative, got %d", ErrInvalidParameter, id)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("vehicle %d: %w", id, err)
	}
	p.Deceleration = math.Abs(p.Deceleration)
	if !road.Contains(position) {
		return nil, fmt.Errorf("%w: vehicle %d position %v outside [0, %v)", ErrInvalidParameter, id, position, road.Length)
	}
	if !(velocity >= 0 && velocity <= p.VMax) {
		return nil, fmt.Errorf("%w: vehicle %d velocity %v outside [0, %v]", ErrInvalidParameter, id, velocity, p.VMax)
	}
	return &Vehicle{
		ID:       id,
		Position: position,
		Velocity: velocity,
		params:   p,
	}, nil
}

// Params returns the vehicle's immutable parameters.
func (v *Vehicle) Params() Params { return v.params }

// Kinematics returns the motion model described by the vehicle's parameters.
func (v *Vehicle) Kinematics() kinematics.MotionModel {
	return kinematics.ConstantAcceleration{
		AAcc:    v.params.Acceleration,
		ADcc:    v.params.Deceleration,
		VMaxVal: v.params.VMax,
	}
}

// Snapshot returns the vehicle's current observable state.
func (v *Vehicle) Snapshot() Snapshot {
	return Snapshot{Velocity: v.Velocity, Position: v.Position}
}

// Apply overwrites the vehicle's state with s.
func (v *Vehicle) Apply(s Snapshot) {
	v.Velocity = s.Velocity
	v.Position = s.Position
}

// SetVelocity overrides the current velocity, used to seed a disturbance after
// setup. The value must stay within [0, VMax].
func (v *Vehicle) SetVelocity(velocity float64) error {
	if !(velocity >= 0 && velocity <= v.params.VMax) {
		return fmt.Errorf("%w: vehicle %d velocity override %v outside [0, %v]", ErrInvalidParameter, v.ID, velocity, v.params.VMax)
	}
	v.Velocity = velocity
	return nil
}

// GetLog returns a point-in-time copy of the vehicle state.
func (v *Vehicle) GetLog() VehicleLog {
	return VehicleLog{ID: v.ID, Position: v.Position, Velocity: v.Velocity}
}

// VehicleLog is a point-in-time snapshot of a Vehicle's state.
type VehicleLog struct {
	ID       ID      `json:"id"`
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
}
