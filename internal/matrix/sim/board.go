// Package sim provides in-memory matrix pins for tests and the host
// simulator.
//
// A Board models the switch grid electrically: an input line reads high
// when any output line crossing it is driven high through a closed switch.
package sim

import (
	"context"
	"sync"

	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/matrix"
)

// Board is a virtual switch matrix. It is safe for concurrent use.
type Board struct {
	mu        sync.Mutex
	rows      uint8
	cols      uint8
	direction matrix.Direction
	closed    []bool
	driven    []bool
	faults    []error
	changed   chan struct{}
}

// NewBoard creates a board with every switch open.
func NewBoard(rows, cols uint8, dir matrix.Direction) *Board {
	b := &Board{
		rows:      rows,
		cols:      cols,
		direction: dir,
		closed:    make([]bool, int(rows)*int(cols)),
		changed:   make(chan struct{}),
	}
	b.driven = make([]bool, b.outputCount())
	b.faults = make([]error, b.inputCount())
	return b
}

func (b *Board) inputCount() int {
	if b.direction == matrix.Row2Col {
		return int(b.cols)
	}
	return int(b.rows)
}

func (b *Board) outputCount() int {
	if b.direction == matrix.Row2Col {
		return int(b.rows)
	}
	return int(b.cols)
}

func (b *Board) position(in, out int) key.Position {
	if b.direction == matrix.Row2Col {
		return key.Pos(uint8(out), uint8(in))
	}
	return key.Pos(uint8(in), uint8(out))
}

// notify wakes edge waiters. Callers hold mu.
func (b *Board) notify() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// Set closes or opens the switch at pos. Out of range positions are ignored.
func (b *Board) Set(pos key.Position, pressed bool) {
	if pos.Row >= b.rows || pos.Col >= b.cols {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed[int(pos.Row)*int(b.cols)+int(pos.Col)] = pressed
	b.notify()
}

// Press closes the switch at pos.
func (b *Board) Press(pos key.Position) { b.Set(pos, true) }

// Release opens the switch at pos.
func (b *Board) Release(pos key.Position) { b.Set(pos, false) }

// IsPressed returns whether the switch at pos is closed.
func (b *Board) IsPressed(pos key.Position) bool {
	if pos.Row >= b.rows || pos.Col >= b.cols {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed[int(pos.Row)*int(b.cols)+int(pos.Col)]
}

// SetFault makes reads of input line i fail with err until cleared with a
// nil err.
func (b *Board) SetFault(i int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= 0 && i < len(b.faults) {
		b.faults[i] = err
	}
}

// Inputs returns the board's input pins.
func (b *Board) Inputs() []*Input {
	pins := make([]*Input, b.inputCount())
	for i := range pins {
		pins[i] = &Input{board: b, line: i}
	}
	return pins
}

// Outputs returns the board's output pins.
func (b *Board) Outputs() []*Output {
	pins := make([]*Output, b.outputCount())
	for i := range pins {
		pins[i] = &Output{board: b, line: i}
	}
	return pins
}

// Matrix returns a scanner wired to the board's pins.
func (b *Board) Matrix() *matrix.Matrix[*Input, *Output] {
	m, err := matrix.New(b.Inputs(), b.Outputs(), b.direction)
	if err != nil {
		// Only a board with zero rows or cols fails.
		panic(err)
	}
	return m
}

// level computes input line i. Callers hold mu.
func (b *Board) level(i int) bool {
	for o, high := range b.driven {
		if !high {
			continue
		}
		pos := b.position(i, o)
		if b.closed[int(pos.Row)*int(b.cols)+int(pos.Col)] {
			return true
		}
	}
	return false
}

// Input is a simulated input line.
type Input struct {
	board *Board
	line  int
}

// IsHigh implements matrix.InputPin.
func (p *Input) IsHigh() (bool, error) {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	if err := p.board.faults[p.line]; err != nil {
		return false, err
	}
	return p.board.level(p.line), nil
}

// WaitForHigh implements matrix.EdgeWaiter.
func (p *Input) WaitForHigh(ctx context.Context) error {
	for {
		p.board.mu.Lock()
		high := p.board.faults[p.line] == nil && p.board.level(p.line)
		changed := p.board.changed
		p.board.mu.Unlock()

		if high {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Output is a simulated output line.
type Output struct {
	board *Board
	line  int
}

// SetHigh implements matrix.OutputPin.
func (p *Output) SetHigh() error {
	p.set(true)
	return nil
}

// SetLow implements matrix.OutputPin.
func (p *Output) SetLow() error {
	p.set(false)
	return nil
}

func (p *Output) set(high bool) {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	if p.board.driven[p.line] != high {
		p.board.driven[p.line] = high
		p.board.notify()
	}
}
