// Package kinematics defines the MotionModel interface for vehicle traction and braking
// physics on a discrete timestep, along with the built-in constant-rate model.
//
// Car-following rules only talk to MotionModel, so a new physics model can be
// introduced without touching the rules or the stepper.
package kinematics

// MotionModel is the physics contract every kinematics implementation must satisfy.
// Distances are in metres, velocities in m/s and time in seconds.
type MotionModel interface {
	// VMax returns the vehicle's maximum permissible speed (m/s).
	VMax() float64

	// BrakingDistance returns the distance needed to stop from velocity v at the
	// nominal deceleration.
	BrakingDistance(v float64) float64

	// StoppingDistance returns BrakingDistance plus the distance covered at v
	// while the driver is still reacting (reaction seconds).
	StoppingDistance(v, reaction float64) float64

	// AccelerateStep returns the velocity after accelerating from v for dt
	// seconds, capped at VMax.
	AccelerateStep(v, dt float64) float64

	// DecelerateStep returns the velocity after braking from v at the given
	// rate (positive, m/s²) for dt seconds, floored at 0.
	DecelerateStep(v, rate, dt float64) float64
}
