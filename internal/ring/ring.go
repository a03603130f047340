// Package ring provides the closed circular road the simulation runs on.
//
// Positions are distances in metres measured along the ring from an arbitrary
// origin and always live in [0, Length). Vehicles are ordered by id around the
// ring in the direction of travel, so the leader of vehicle i is vehicle i+1
// (wrapping back to 0).
package ring

import (
	"fmt"
	"math"
)

// Road is a one-dimensional circular track of fixed circumference.
type Road struct {
	Length float64 `json:"length"` // circumference D, metres
}

// NewRoad builds a Road, returning an error if the length is not a positive
// finite number.
func NewRoad(length float64) (Road, error) {
	if !(length > 0) || math.IsInf(length, 1) {
		return Road{}, fmt.Errorf("road length must be positive and finite, got %v", length)
	}
	return Road{Length: length}, nil
}

// Wrap folds an arbitrary position onto [0, Length).
func (r Road) Wrap(pos float64) float64 {
	p := math.Mod(pos, r.Length)
	if p < 0 {
		p += r.Length
	}
	// math.Mod of a value a hair below a multiple of Length can round up to Length.
	if p >= r.Length {
		p -= r.Length
	}
	return p
}

// Contains reports whether pos is a valid wrapped position.
func (r Road) Contains(pos float64) bool {
	return pos >= 0 && pos < r.Length
}

// Gap returns the forward distance from follower to leader, in [0, Length).
func (r Road) Gap(follower, leader float64) float64 {
	return r.Wrap(leader - follower)
}

// Separation returns the signed circular difference leader - follower folded
// onto (-Length/2, Length/2]. A negative value means the follower is ahead of
// the vehicle it is supposed to be following.
func (r Road) Separation(follower, leader float64) float64 {
	s := r.Wrap(leader - follower)
	if s > r.Length/2 {
		s -= r.Length
	}
	return s
}

// Unwrap maps a position onto (-Length/2, Length/2] using the midpoint
// convention, so that a point oscillating around the origin yields a
// continuous trace.
func (r Road) Unwrap(pos float64) float64 {
	if pos > r.Length/2 {
		return pos - r.Length
	}
	return pos
}

// Leader returns the index of the vehicle directly ahead of vehicle i in a
// population of n.
func Leader(i, n int) int {
	return (i + 1) % n
}

// EvenSpacing returns the position of vehicle i when n vehicles are spread
// evenly around the ring starting at the origin.
func (r Road) EvenSpacing(i, n int) float64 {
	return r.Wrap(float64(i) / float64(n) * r.Length)
}
