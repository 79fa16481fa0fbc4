// Package debounce turns noisy raw matrix samples into stable edges.
//
// Each position is a small state machine. A raw sample that disagrees with
// the stable level starts a settling run; the run must see the new level on
// threshold consecutive ticks before an edge fires. Any sample that agrees
// with the old level again cancels the run and resets its counter.
package debounce

import (
	"fmt"

	"github.com/dshills/keyfirm/internal/input/key"
)

// DefaultThreshold is the number of consecutive agreeing ticks required
// before an edge fires.
const DefaultThreshold = 3

// State is the settling state of one position.
type State uint8

const (
	// Idle means the raw signal matches the stable level.
	Idle State = iota
	// SettlingPress means the signal has been high for fewer than threshold ticks.
	SettlingPress
	// SettlingRelease means the signal has been low for fewer than threshold ticks.
	SettlingRelease
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SettlingPress:
		return "settling-press"
	case SettlingRelease:
		return "settling-release"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

type cell struct {
	pressed bool
	state   State
	count   uint8
}

// Debouncer holds the per-position state for a fixed-size matrix.
// It is owned by the scan task and is not safe for concurrent use.
type Debouncer struct {
	rows      uint8
	cols      uint8
	threshold uint8
	cells     []cell
}

// New creates a debouncer for a rows x cols matrix. A threshold of zero
// selects DefaultThreshold.
func New(rows, cols, threshold uint8) *Debouncer {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Debouncer{
		rows:      rows,
		cols:      cols,
		threshold: threshold,
		cells:     make([]cell, int(rows)*int(cols)),
	}
}

// Threshold returns the configured stability threshold in ticks.
func (d *Debouncer) Threshold() uint8 {
	return d.threshold
}

func (d *Debouncer) cell(pos key.Position) *cell {
	if pos.Row >= d.rows || pos.Col >= d.cols {
		return nil
	}
	return &d.cells[int(pos.Row)*int(d.cols)+int(pos.Col)]
}

// Update feeds one raw sample for pos and reports whether it completed a
// stable edge. Positions outside the matrix never fire.
//
// A tick whose read failed must not be fed at all; skipping it leaves the
// position's state untouched.
func (d *Debouncer) Update(pos key.Position, raw bool) (key.Edge, bool) {
	c := d.cell(pos)
	if c == nil {
		return key.Released, false
	}

	if raw == c.pressed {
		// Back at the stable level: any run in progress is noise.
		c.state = Idle
		c.count = 0
		return key.Released, false
	}

	want := SettlingRelease
	if raw {
		want = SettlingPress
	}
	if c.state != want {
		c.state = want
		c.count = 0
	}
	c.count++
	if c.count < d.threshold {
		return key.Released, false
	}

	c.pressed = raw
	c.state = Idle
	c.count = 0
	if raw {
		return key.Pressed, true
	}
	return key.Released, true
}

// State returns the settling state and run length of pos.
func (d *Debouncer) State(pos key.Position) (State, uint8) {
	c := d.cell(pos)
	if c == nil {
		return Idle, 0
	}
	return c.state, c.count
}

// IsPressed returns the stable level of pos.
func (d *Debouncer) IsPressed(pos key.Position) bool {
	c := d.cell(pos)
	return c != nil && c.pressed
}

// AnyPressed returns true if any position is stably pressed.
func (d *Debouncer) AnyPressed() bool {
	for i := range d.cells {
		if d.cells[i].pressed {
			return true
		}
	}
	return false
}

// Settling returns true if any position has a run in progress.
func (d *Debouncer) Settling() bool {
	for i := range d.cells {
		if d.cells[i].state != Idle {
			return true
		}
	}
	return false
}

// Reset returns every position to released and idle.
func (d *Debouncer) Reset() {
	clear(d.cells)
}
