package vehicle

import (
	"fmt"

	"github.com/samber/lo"
)

// Population is the fixed set of vehicles on the ring, indexed by id.
type Population []*Vehicle

// NewPopulation checks that vs holds ids 0..len(vs)-1 in order, which is what
// the leader convention relies on.
func NewPopulation(vs []*Vehicle) (Population, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: population is empty", ErrInvalidParameter)
	}
	for i, v := range vs {
		if v == nil {
			return nil, fmt.Errorf("%w: vehicle %d is nil", ErrInvalidParameter, i)
		}
		if v.ID != i {
			return nil, fmt.Errorf("%w: vehicle at index %d has id %d", ErrInvalidParameter, i, v.ID)
		}
	}
	return Population(vs), nil
}

// MaxReactionTicks returns the deepest reaction delay in the population.
func (p Population) MaxReactionTicks() int {
	return lo.MaxBy(p, func(a, b *Vehicle) bool {
		return a.params.ReactionTicks > b.params.ReactionTicks
	}).params.ReactionTicks
}

// Snapshots returns the current state of every vehicle, indexed by id.
func (p Population) Snapshots() []Snapshot {
	return lo.Map(p, func(v *Vehicle, _ int) Snapshot { return v.Snapshot() })
}
