// Package following implements the car-following rule: the per-tick state
// transition that turns a vehicle's current state and its view of the car
// ahead into its next velocity and position.
//
// Three policies share one decision skeleton:
//
//   - basic: match the leader's delayed speed, accelerating or braking at the
//     vehicle's traction rate.
//   - distance-scaled: accelerate freely while the live gap exceeds the
//     stopping distance; otherwise brake in proportion to the closing speed
//     squared over the gap, capped at the nominal deceleration.
//   - live-leader: the basic rule, plus emergency braking at the nominal
//     deceleration when closing on the live leader inside the stopping distance.
package following

import (
	"fmt"
	"math"

	"github.com/cxd309/ringwave/internal/kinematics"
	"github.com/cxd309/ringwave/internal/ring"
	"github.com/cxd309/ringwave/internal/vehicle"
)

// ErrInvalidParameter is shared with the vehicle package so callers can check
// a single sentinel for all construction failures.
var ErrInvalidParameter = vehicle.ErrInvalidParameter

// Policy selects the velocity decision variant.
type Policy string

const (
	PolicyBasic          Policy = "basic"
	PolicyDistanceScaled Policy = "distance-scaled"
	PolicyLiveLeader     Policy = "live-leader"
)

// Policies lists every supported policy.
var Policies = []Policy{PolicyBasic, PolicyDistanceScaled, PolicyLiveLeader}

// DefaultBrakeScale is the closing-speed multiplier used by the
// distance-scaled policy.
const DefaultBrakeScale = 1.1

// ParsePolicy maps a config string onto a Policy. The empty string selects
// PolicyBasic.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return PolicyBasic, nil
	}
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown car-following policy %q", ErrInvalidParameter, s)
}

// Rule is a configured car-following rule. It is a value type with no mutable
// state, so a single Rule may be shared across goroutines.
type Rule struct {
	Policy        Policy
	TimeStep      float64 // dt, seconds
	Road          ring.Road
	CollisionBand float64 // width of the negative-separation band reported as a near collision
	BrakeScale    float64 // distance-scaled closing-speed multiplier
}

// NewRule validates and returns a Rule. A zero collisionBand disables
// near-collision reporting; a zero brakeScale selects DefaultBrakeScale.
func NewRule(policy Policy, dt float64, road ring.Road, collisionBand, brakeScale float64) (Rule, error) {
	if _, err := ParsePolicy(string(policy)); err != nil {
		return Rule{}, err
	}
	if policy == "" {
		policy = PolicyBasic
	}
	if !(dt > 0) {
		return Rule{}, fmt.Errorf("%w: time step must be positive, got %v", ErrInvalidParameter, dt)
	}
	if !(road.Length > 0) {
		return Rule{}, fmt.Errorf("%w: road length must be positive, got %v", ErrInvalidParameter, road.Length)
	}
	if collisionBand < 0 {
		return Rule{}, fmt.Errorf("%w: collision band must be non-negative, got %v", ErrInvalidParameter, collisionBand)
	}
	if brakeScale < 0 {
		return Rule{}, fmt.Errorf("%w: brake scale must be non-negative, got %v", ErrInvalidParameter, brakeScale)
	}
	if brakeScale == 0 {
		brakeScale = DefaultBrakeScale
	}
	return Rule{
		Policy:        policy,
		TimeStep:      dt,
		Road:          road,
		CollisionBand: collisionBand,
		BrakeScale:    brakeScale,
	}, nil
}

// Decision is the outcome of one rule evaluation.
type Decision struct {
	vehicle.Snapshot
	Gap           float64 // live forward gap to the leader at the start of the tick
	NearCollision bool    // follower was found just ahead of its leader
}

// Next computes self's state at the end of the tick. delayed is the leader's
// state as the driver perceives it (reaction_ticks old); live is the leader's
// actual state at the start of the tick. self is not modified.
func (r Rule) Next(self *vehicle.Vehicle, delayed, live vehicle.Snapshot) Decision {
	p := self.Params()
	m := self.Kinematics()
	dt := r.TimeStep

	v := math.Min(self.Velocity, p.VMax)
	gap := r.Road.Gap(self.Position, live.Position)
	sep := r.Road.Separation(self.Position, live.Position)
	stopping := m.StoppingDistance(v, float64(p.ReactionTicks)*dt)

	switch r.Policy {
	case PolicyDistanceScaled:
		switch {
		case stopping < gap && v < p.VMax:
			v = m.AccelerateStep(v, dt)
		case v > delayed.Velocity:
			v = m.DecelerateStep(v, r.scaledBrakeRate(v-delayed.Velocity, gap, p.Deceleration), dt)
		case v < delayed.Velocity:
			v = m.AccelerateStep(v, dt)
		}
	case PolicyLiveLeader:
		if v > live.Velocity && gap < stopping {
			v = m.DecelerateStep(v, p.Deceleration, dt)
		} else {
			v = basic(m, v, delayed.Velocity, p, dt)
		}
	default:
		v = basic(m, v, delayed.Velocity, p, dt)
	}

	return Decision{
		Snapshot: vehicle.Snapshot{
			Velocity: v,
			Position: r.Road.Wrap(self.Position + v*dt),
		},
		Gap:           gap,
		NearCollision: sep < 0 && sep > -r.CollisionBand,
	}
}

// basic slows down when faster than the perceived leader, holds at the limit,
// and speeds up when slower. Both directions use the traction rate.
func basic(m kinematics.MotionModel, v, leader float64, p vehicle.Params, dt float64) float64 {
	switch {
	case v > leader:
		return m.DecelerateStep(v, p.Acceleration, dt)
	case v >= p.VMax:
		return p.VMax
	case v < leader:
		return m.AccelerateStep(v, dt)
	}
	return v
}

// scaledBrakeRate returns scale·Δv²/(2·gap), capped at the nominal deceleration.
func (r Rule) scaledBrakeRate(closing, gap, nominal float64) float64 {
	if gap <= 0 {
		return nominal
	}
	return math.Min(r.BrakeScale*closing*closing/(2*gap), nominal)
}
