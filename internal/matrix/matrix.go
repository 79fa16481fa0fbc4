// Package matrix scans a key switch matrix through abstract pin
// capabilities.
//
// The scanner drives each output line high in turn and samples every input
// line. Which physical lines are inputs depends on the diode direction:
//
//   - Col2Row: rows are inputs, columns are outputs
//   - Row2Col: columns are inputs, rows are outputs
//
// Matrix is generic over the concrete pin types so board code keeps its
// driver types and no interface boxing happens per sample.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/keyfirm/internal/input/key"
)

// InputPin reads a digital level.
type InputPin interface {
	IsHigh() (bool, error)
}

// OutputPin drives a digital level.
type OutputPin interface {
	SetHigh() error
	SetLow() error
}

// EdgeWaiter is implemented by input pins that can block until the line
// goes high. Low-power scanning requires every input to implement it.
type EdgeWaiter interface {
	WaitForHigh(ctx context.Context) error
}

// Direction is the diode orientation of the matrix.
type Direction uint8

const (
	// Col2Row means rows are read and columns are driven.
	Col2Row Direction = iota
	// Row2Col means columns are read and rows are driven.
	Row2Col
)

// String returns "col2row" or "row2col".
func (d Direction) String() string {
	if d == Row2Col {
		return "row2col"
	}
	return "col2row"
}

// ParseDirection parses "col2row" or "row2col".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "col2row":
		return Col2Row, nil
	case "row2col":
		return Row2Col, nil
	}
	return Col2Row, fmt.Errorf("unknown matrix direction %q", s)
}

// Errors returned by the scanner.
var (
	ErrNoPins       = errors.New("matrix needs at least one input and one output")
	ErrTooManyPins  = errors.New("matrix supports at most 255 lines per side")
	ErrNoEdgeWaiter = errors.New("input pins cannot wait for edges")
)

// Fault is a pin error seen during a scan. The samples it affects are
// discarded for that scan.
type Fault struct {
	// Output is the driven line index, Input the read line index or -1 if
	// driving the output failed.
	Output int
	Input  int
	Err    error
}

// Error implements error.
func (f Fault) Error() string {
	if f.Input < 0 {
		return fmt.Sprintf("drive output %d: %v", f.Output, f.Err)
	}
	return fmt.Sprintf("read input %d (output %d): %v", f.Input, f.Output, f.Err)
}

// Unwrap returns the pin error.
func (f Fault) Unwrap() error {
	return f.Err
}

// Matrix scans a fixed set of pins.
type Matrix[In InputPin, Out OutputPin] struct {
	inputs    []In
	outputs   []Out
	direction Direction
}

// New creates a scanner. The matrix has len(inputs) rows and len(outputs)
// columns for Col2Row, and the reverse for Row2Col.
func New[In InputPin, Out OutputPin](inputs []In, outputs []Out, dir Direction) (*Matrix[In, Out], error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, ErrNoPins
	}
	if len(inputs) > 255 || len(outputs) > 255 {
		return nil, ErrTooManyPins
	}
	return &Matrix[In, Out]{inputs: inputs, outputs: outputs, direction: dir}, nil
}

// Rows returns the number of matrix rows.
func (m *Matrix[In, Out]) Rows() uint8 {
	if m.direction == Row2Col {
		return uint8(len(m.outputs))
	}
	return uint8(len(m.inputs))
}

// Cols returns the number of matrix columns.
func (m *Matrix[In, Out]) Cols() uint8 {
	if m.direction == Row2Col {
		return uint8(len(m.inputs))
	}
	return uint8(len(m.outputs))
}

// Direction returns the diode direction.
func (m *Matrix[In, Out]) Direction() Direction {
	return m.direction
}

func (m *Matrix[In, Out]) position(in, out int) key.Position {
	if m.direction == Row2Col {
		return key.Pos(uint8(out), uint8(in))
	}
	return key.Pos(uint8(in), uint8(out))
}

// Scan samples every position once, calling visit for each successful read.
// Pin errors are collected and returned; the affected samples are skipped
// and the scan continues with the next line.
func (m *Matrix[In, Out]) Scan(visit func(pos key.Position, high bool)) []Fault {
	var faults []Fault
	for o, out := range m.outputs {
		if err := out.SetHigh(); err != nil {
			faults = append(faults, Fault{Output: o, Input: -1, Err: err})
			_ = out.SetLow()
			continue
		}
		for i, in := range m.inputs {
			high, err := in.IsHigh()
			if err != nil {
				faults = append(faults, Fault{Output: o, Input: i, Err: err})
				continue
			}
			visit(m.position(i, o), high)
		}
		if err := out.SetLow(); err != nil {
			faults = append(faults, Fault{Output: o, Input: -1, Err: err})
		}
	}
	return faults
}

// CanWait reports whether every input implements EdgeWaiter.
func (m *Matrix[In, Out]) CanWait() bool {
	for _, in := range m.inputs {
		if _, ok := any(in).(EdgeWaiter); !ok {
			return false
		}
	}
	return true
}

// WaitForAnyKey drives every output high and blocks until any input goes
// high or ctx ends. Outputs are driven low again before returning.
func (m *Matrix[In, Out]) WaitForAnyKey(ctx context.Context) error {
	if !m.CanWait() {
		return ErrNoEdgeWaiter
	}

	for _, out := range m.outputs {
		if err := out.SetHigh(); err != nil {
			m.releaseOutputs()
			return fmt.Errorf("drive outputs: %w", err)
		}
	}
	defer m.releaseOutputs()

	// The first input to go high ends the wait and cancels the others.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	woke := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(waitCtx)
	for _, in := range m.inputs {
		w := any(in).(EdgeWaiter)
		g.Go(func() error {
			if err := w.WaitForHigh(gctx); err != nil {
				return err
			}
			select {
			case woke <- struct{}{}:
			default:
			}
			cancel()
			return nil
		})
	}
	err := g.Wait()

	select {
	case <-woke:
		return nil
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m *Matrix[In, Out]) releaseOutputs() {
	for _, out := range m.outputs {
		_ = out.SetLow()
	}
}
