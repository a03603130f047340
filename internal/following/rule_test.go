package following

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/ringwave/internal/ring"
	"github.com/cxd309/ringwave/internal/vehicle"
)

var testRoad = ring.Road{Length: 30000}

func testParams() vehicle.Params {
	return vehicle.Params{VMax: 400, ReactionTicks: 4, Acceleration: 50, Deceleration: 70}
}

func newVehicle(t *testing.T, p vehicle.Params, pos, v float64, road ring.Road) *vehicle.Vehicle {
	t.Helper()
	veh, err := vehicle.New(0, p, pos, v, road)
	require.NoError(t, err)
	return veh
}

func newRule(t *testing.T, policy Policy, dt float64, road ring.Road) Rule {
	t.Helper()
	r, err := NewRule(policy, dt, road, 600, 0)
	require.NoError(t, err)
	return r
}

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyBasic, got)

	_, err = ParsePolicy("psychic")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewRuleValidation(t *testing.T) {
	_, err := NewRule(PolicyBasic, 0, testRoad, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewRule(PolicyBasic, 1, ring.Road{}, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewRule(PolicyBasic, 1, testRoad, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewRule("nope", 1, testRoad, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	r, err := NewRule("", 1, testRoad, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, PolicyBasic, r.Policy)
	assert.Equal(t, DefaultBrakeScale, r.BrakeScale)
}

func TestSteadyStateAllPolicies(t *testing.T) {
	for _, policy := range Policies {
		t.Run(string(policy), func(t *testing.T) {
			r := newRule(t, policy, 0.1, testRoad)
			self := newVehicle(t, testParams(), 1200, 400, testRoad)
			leader := vehicle.Snapshot{Velocity: 400, Position: 1800}

			d := r.Next(self, leader, leader)
			assert.Equal(t, 400.0, d.Velocity)
			assert.InDelta(t, 1240.0, d.Position, 1e-9)
			assert.InDelta(t, 600.0, d.Gap, 1e-9)
			assert.False(t, d.NearCollision)

			// self is read-only.
			assert.Equal(t, 1200.0, self.Position)
		})
	}
}

func TestBoundaryWrapAllPolicies(t *testing.T) {
	road := ring.Road{Length: 10}
	p := vehicle.Params{VMax: 1, ReactionTicks: 1, Acceleration: 1, Deceleration: 1}
	for _, policy := range Policies {
		t.Run(string(policy), func(t *testing.T) {
			r, err := NewRule(policy, 1, road, 0, 0)
			require.NoError(t, err)
			self := newVehicle(t, p, 9.5, 1, road)
			leader := vehicle.Snapshot{Velocity: 1, Position: 4.5}

			d := r.Next(self, leader, leader)
			assert.Equal(t, 1.0, d.Velocity)
			assert.InDelta(t, 0.5, d.Position, 1e-12)
		})
	}
}

func TestBasicDecisions(t *testing.T) {
	r := newRule(t, PolicyBasic, 0.1, testRoad)

	tests := []struct {
		name    string
		v       float64
		delayed float64
		want    float64
	}{
		{name: "faster than leader brakes at traction rate", v: 300, delayed: 200, want: 295},
		{name: "slower than leader accelerates", v: 200, delayed: 300, want: 205},
		{name: "acceleration capped at v_max", v: 398, delayed: 400, want: 400},
		{name: "braking floored at zero", v: 3, delayed: 0, want: 0},
		{name: "matching speed holds", v: 250, delayed: 250, want: 250},
		{name: "at v_max holds", v: 400, delayed: 400, want: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			self := newVehicle(t, testParams(), 0, tt.v, testRoad)
			leader := vehicle.Snapshot{Velocity: tt.delayed, Position: 600}
			d := r.Next(self, leader, leader)
			assert.InDelta(t, tt.want, d.Velocity, 1e-9)
			assert.InDelta(t, d.Velocity*0.1, d.Position, 1e-9)
		})
	}
}

func TestClampBeforeDecision(t *testing.T) {
	r := newRule(t, PolicyBasic, 0.1, testRoad)
	self := newVehicle(t, testParams(), 0, 400, testRoad)
	self.Velocity = 450

	leader := vehicle.Snapshot{Velocity: 400, Position: 600}
	d := r.Next(self, leader, leader)
	assert.Equal(t, 400.0, d.Velocity)
}

func TestDistanceScaled(t *testing.T) {
	r := newRule(t, PolicyDistanceScaled, 0.1, testRoad)

	tests := []struct {
		name    string
		v       float64
		delayed float64
		gap     float64
		want    float64
	}{
		// stopping distance at 300 is 300²/140 + 0.4·300 ≈ 763
		{name: "free road accelerates past slower leader", v: 300, delayed: 100, gap: 5000, want: 305},
		{name: "scaled braking", v: 300, delayed: 200, gap: 500, want: 300 - 0.1*1.1*100*100/1000},
		{name: "scaled braking capped at nominal", v: 300, delayed: 200, gap: 50, want: 293},
		{name: "close but slower accelerates", v: 300, delayed: 350, gap: 500, want: 305},
		{name: "at v_max on free road holds", v: 400, delayed: 400, gap: 5000, want: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			self := newVehicle(t, testParams(), 100, tt.v, testRoad)
			delayed := vehicle.Snapshot{Velocity: tt.delayed, Position: 100 + tt.gap}
			d := r.Next(self, delayed, delayed)
			assert.InDelta(t, tt.want, d.Velocity, 1e-9)
		})
	}
}

func TestDistanceScaledZeroGapUsesNominal(t *testing.T) {
	r := newRule(t, PolicyDistanceScaled, 0.1, testRoad)
	self := newVehicle(t, testParams(), 100, 300, testRoad)
	d := r.Next(self, vehicle.Snapshot{Velocity: 0, Position: 100}, vehicle.Snapshot{Velocity: 0, Position: 100})
	assert.InDelta(t, 293.0, d.Velocity, 1e-9)
}

func TestLiveLeaderEmergencyBrake(t *testing.T) {
	self := newVehicle(t, testParams(), 1000, 300, testRoad)
	// The driver still perceives the leader at cruising speed.
	delayed := vehicle.Snapshot{Velocity: 300, Position: 1100}
	live := vehicle.Snapshot{Velocity: 0, Position: 1100}

	basicRule := newRule(t, PolicyBasic, 0.1, testRoad)
	assert.InDelta(t, 300.0, basicRule.Next(self, delayed, live).Velocity, 1e-9)

	liveRule := newRule(t, PolicyLiveLeader, 0.1, testRoad)
	assert.InDelta(t, 293.0, liveRule.Next(self, delayed, live).Velocity, 1e-9)

	// Far enough away, the live rule falls back to the basic decision.
	far := vehicle.Snapshot{Velocity: 0, Position: 5000}
	assert.InDelta(t, 300.0, liveRule.Next(self, delayed, far).Velocity, 1e-9)
}

func TestNearCollisionIsReportedNotPrevented(t *testing.T) {
	r := newRule(t, PolicyBasic, 0.1, testRoad)
	// Follower has overtaken its leader by 20 m.
	self := newVehicle(t, testParams(), 1020, 300, testRoad)
	leader := vehicle.Snapshot{Velocity: 300, Position: 1000}

	d := r.Next(self, leader, leader)
	assert.True(t, d.NearCollision)
	assert.InDelta(t, 1050.0, d.Position, 1e-9)

	narrow, err := NewRule(PolicyBasic, 0.1, testRoad, 10, 0)
	require.NoError(t, err)
	assert.False(t, narrow.Next(self, leader, leader).NearCollision)

	off, err := NewRule(PolicyBasic, 0.1, testRoad, 0, 0)
	require.NoError(t, err)
	assert.False(t, off.Next(self, leader, leader).NearCollision)
}

func TestNearCollisionAcrossOrigin(t *testing.T) {
	r := newRule(t, PolicyBasic, 0.1, testRoad)
	self := newVehicle(t, testParams(), 5, 300, testRoad)
	leader := vehicle.Snapshot{Velocity: 300, Position: 29990}

	d := r.Next(self, leader, leader)
	assert.True(t, d.NearCollision)
}
