package kinematics

import (
	"math"

	"github.com/samber/lo"
)

// ConstantAcceleration implements MotionModel using fixed acceleration and deceleration rates.
type ConstantAcceleration struct {
	AAcc    float64 `json:"a_acc"` // traction acceleration, m/s²
	ADcc    float64 `json:"a_dcc"` // nominal braking deceleration, m/s² (positive)
	VMaxVal float64 `json:"v_max"` // maximum speed, m/s
}

func (c ConstantAcceleration) VMax() float64 { return c.VMaxVal }

func (c ConstantAcceleration) BrakingDistance(v float64) float64 {
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * c.ADcc)
}

func (c ConstantAcceleration) StoppingDistance(v, reaction float64) float64 {
	return c.BrakingDistance(v) + reaction*v
}

func (c ConstantAcceleration) AccelerateStep(v, dt float64) float64 {
	return lo.Clamp(v+c.AAcc*dt, 0, c.VMaxVal)
}

func (c ConstantAcceleration) DecelerateStep(v, rate, dt float64) float64 {
	return math.Max(v-rate*dt, 0)
}
