// Package reaction implements the bounded history of committed vehicle states
// that gives every driver a delayed view of the car ahead.
//
// The buffer holds a fixed number of rows, one per past tick, each row carrying
// a Snapshot for every vehicle. Age 0 is the most recently committed tick.
// Advance is the only mutator and must be called exactly once per tick, after
// every read for that tick has completed.
package reaction

import (
	"errors"
	"fmt"

	"github.com/cxd309/ringwave/internal/vehicle"
)

// ErrOutOfRange is returned when a read asks for an age or vehicle the buffer
// does not hold.
var ErrOutOfRange = errors.New("out of range")

// Row is one tick's snapshots, indexed by vehicle id.
type Row = []vehicle.Snapshot

// Buffer is a fixed-capacity ring of rows. rows is the arena; head points at
// the age-0 row and moves backwards on every Advance so no row is ever
// reallocated.
type Buffer struct {
	rows  [][]vehicle.Snapshot
	head  int
	width int
}

// NewBuffer creates a buffer of the given depth with every row set to a copy
// of initial, so delayed reads at the start of a run return the initial state.
func NewBuffer(depth int, initial Row) (*Buffer, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: buffer depth must be at least 1, got %d", vehicle.ErrInvalidParameter, depth)
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: initial row is empty", vehicle.ErrInvalidParameter)
	}
	b := &Buffer{
		rows:  make([][]vehicle.Snapshot, depth),
		width: len(initial),
	}
	for i := range b.rows {
		b.rows[i] = make([]vehicle.Snapshot, b.width)
		copy(b.rows[i], initial)
	}
	return b, nil
}

// Depth returns the number of rows held.
func (b *Buffer) Depth() int { return len(b.rows) }

// Width returns the number of vehicles per row.
func (b *Buffer) Width() int { return b.width }

func (b *Buffer) index(age int) (int, error) {
	if age < 0 || age >= len(b.rows) {
		return 0, fmt.Errorf("%w: age %d not in [0, %d)", ErrOutOfRange, age, len(b.rows))
	}
	return (b.head + age) % len(b.rows), nil
}

// Read returns the snapshot of vehicle id committed age ticks ago.
func (b *Buffer) Read(id vehicle.ID, age int) (vehicle.Snapshot, error) {
	i, err := b.index(age)
	if err != nil {
		return vehicle.Snapshot{}, err
	}
	if id < 0 || id >= b.width {
		return vehicle.Snapshot{}, fmt.Errorf("%w: vehicle %d not in [0, %d)", ErrOutOfRange, id, b.width)
	}
	return b.rows[i][id], nil
}

// Row returns a copy of the whole row at age.
func (b *Buffer) Row(age int) (Row, error) {
	i, err := b.index(age)
	if err != nil {
		return nil, err
	}
	out := make([]vehicle.Snapshot, b.width)
	copy(out, b.rows[i])
	return out, nil
}

// Advance evicts the oldest row and stores a copy of row at age 0.
func (b *Buffer) Advance(row Row) error {
	if len(row) != b.width {
		return fmt.Errorf("%w: row has %d snapshots, buffer width is %d", vehicle.ErrInvalidParameter, len(row), b.width)
	}
	// The oldest row sits just behind head; it becomes the new head.
	b.head = (b.head - 1 + len(b.rows)) % len(b.rows)
	copy(b.rows[b.head], row)
	return nil
}
