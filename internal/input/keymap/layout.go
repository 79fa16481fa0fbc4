package keymap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
)

// Layout errors.
var (
	ErrDimensionMismatch = errors.New("layout dimensions do not match matrix")
	ErrOutOfRange        = errors.New("position out of range")
	ErrLayerOutOfRange   = errors.New("layer index out of range")
	ErrTransparentBase   = errors.New("base layer binding is transparent")
)

// Dimensions are the fixed sizes of the matrix and layout.
type Dimensions struct {
	Layers uint8
	Rows   uint8
	Cols   uint8
}

// Validate checks that every dimension is non-zero.
func (d Dimensions) Validate() error {
	if d.Layers == 0 || d.Rows == 0 || d.Cols == 0 {
		return fmt.Errorf("%w: %d layers x %d rows x %d cols", ErrDimensionMismatch, d.Layers, d.Rows, d.Cols)
	}
	return nil
}

// Contains returns true if pos is inside the matrix.
func (d Dimensions) Contains(pos key.Position) bool {
	return pos.Row < d.Rows && pos.Col < d.Cols
}

// Positions returns the number of matrix positions.
func (d Dimensions) Positions() int {
	return int(d.Rows) * int(d.Cols)
}

// Binding is one layout entry: the action bound at a position on a layer.
type Binding struct {
	Layer    uint8
	Position key.Position
	Action   action.Action
}

// String returns e.g. "L1(0,2)=MO(2)".
func (b Binding) String() string {
	return fmt.Sprintf("L%d%s=%s", b.Layer, b.Position, b.Action)
}

// MacroChecker reports whether a macro id is defined.
type MacroChecker func(id uint8) bool

// Layout is the [layer][row][col] action table.
//
// Reads come from the resolver on every press while writes only happen on
// remap, so access is guarded by a RWMutex.
type Layout struct {
	mu      sync.RWMutex
	dims    Dimensions
	actions []action.Action
	macros  MacroChecker
}

// New creates a layout from a fully materialized table. The table shape must
// match dims exactly.
func New(dims Dimensions, layers [][][]action.Action) (*Layout, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	if len(layers) != int(dims.Layers) {
		return nil, fmt.Errorf("%w: %d layers in keymap, want %d", ErrDimensionMismatch, len(layers), dims.Layers)
	}

	l := &Layout{
		dims:    dims,
		actions: make([]action.Action, int(dims.Layers)*dims.Positions()),
	}
	for li, layer := range layers {
		if len(layer) != int(dims.Rows) {
			return nil, fmt.Errorf("%w: layer %d has %d rows, want %d", ErrDimensionMismatch, li, len(layer), dims.Rows)
		}
		for r, row := range layer {
			if len(row) != int(dims.Cols) {
				return nil, fmt.Errorf("%w: layer %d row %d has %d cols, want %d", ErrDimensionMismatch, li, r, len(row), dims.Cols)
			}
			for c, a := range row {
				l.actions[l.index(uint8(li), key.Pos(uint8(r), uint8(c)))] = a
			}
		}
	}

	if err := l.Validate(nil); err != nil {
		return nil, err
	}
	return l, nil
}

// Dimensions returns the fixed layout dimensions.
func (l *Layout) Dimensions() Dimensions {
	return l.dims
}

func (l *Layout) index(layer uint8, pos key.Position) int {
	return (int(layer)*int(l.dims.Rows)+int(pos.Row))*int(l.dims.Cols) + int(pos.Col)
}

// SetMacroChecker installs the lookup used to validate Macro bindings.
func (l *Layout) SetMacroChecker(check MacroChecker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.macros = check
}

// Validate checks every binding. A non-nil check overrides the installed
// macro checker for this call.
func (l *Layout) Validate(check MacroChecker) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if check == nil {
		check = l.macros
	}
	for li := uint8(0); li < l.dims.Layers; li++ {
		for r := uint8(0); r < l.dims.Rows; r++ {
			for c := uint8(0); c < l.dims.Cols; c++ {
				b := Binding{Layer: li, Position: key.Pos(r, c), Action: l.actions[l.index(li, key.Pos(r, c))]}
				if err := l.checkBinding(b, check); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *Layout) checkBinding(b Binding, check MacroChecker) error {
	if b.Layer >= l.dims.Layers {
		return fmt.Errorf("%w: layer %d, layout has %d", ErrLayerOutOfRange, b.Layer, l.dims.Layers)
	}
	if !l.dims.Contains(b.Position) {
		return fmt.Errorf("%w: %s", ErrOutOfRange, b.Position)
	}
	if b.Layer == 0 && b.Action.IsTransparent() {
		return fmt.Errorf("%w at %s", ErrTransparentBase, b.Position)
	}
	if target, ok := b.Action.TargetLayer(); ok && target >= l.dims.Layers {
		return fmt.Errorf("%w: %s references layer %d, layout has %d", ErrLayerOutOfRange, b, target, l.dims.Layers)
	}
	switch b.Action.Kind {
	case action.KindKey, action.KindKeyWithModifier, action.KindTapHoldLayer:
		if !b.Action.Code.IsValid() {
			return fmt.Errorf("%w: %s has unassigned code %s", action.ErrInvalidAction, b, b.Action.Code)
		}
	case action.KindMacro:
		if check != nil && !check(b.Action.Macro) {
			return fmt.Errorf("%w: %s references undefined macro %d", action.ErrInvalidAction, b, b.Action.Macro)
		}
	}
	return nil
}

// At returns the action bound at pos on layer. Out-of-range lookups return No.
func (l *Layout) At(layer uint8, pos key.Position) action.Action {
	if layer >= l.dims.Layers || !l.dims.Contains(pos) {
		return action.No()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.actions[l.index(layer, pos)]
}

// Resolve scans active from last (topmost) to first and returns the first
// non-Transparent binding at pos together with the layer it came from. The
// base layer is always consulted last, so resolution always terminates.
func (l *Layout) Resolve(pos key.Position, active []uint8) (action.Action, uint8) {
	if !l.dims.Contains(pos) {
		return action.No(), 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(active) - 1; i >= 0; i-- {
		layer := active[i]
		if layer == 0 || layer >= l.dims.Layers {
			continue
		}
		if a := l.actions[l.index(layer, pos)]; !a.IsTransparent() {
			return a, layer
		}
	}
	return l.actions[l.index(0, pos)], 0
}

// Set replaces one binding after validating it.
func (l *Layout) Set(b Binding) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkBinding(b, l.macros); err != nil {
		return err
	}
	l.actions[l.index(b.Layer, b.Position)] = b.Action
	return nil
}

// Apply sets each binding in order. It stops at the first invalid binding
// and returns how many were applied.
func (l *Layout) Apply(overlay []Binding) (int, error) {
	for i, b := range overlay {
		if err := l.Set(b); err != nil {
			return i, fmt.Errorf("overlay entry %d (%s): %w", i, b, err)
		}
	}
	return len(overlay), nil
}

// Snapshot returns a deep copy of the table as [layer][row][col].
func (l *Layout) Snapshot() [][][]action.Action {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([][][]action.Action, l.dims.Layers)
	for li := range out {
		out[li] = make([][]action.Action, l.dims.Rows)
		for r := range out[li] {
			row := make([]action.Action, l.dims.Cols)
			start := l.index(uint8(li), key.Pos(uint8(r), 0))
			copy(row, l.actions[start:start+int(l.dims.Cols)])
			out[li][r] = row
		}
	}
	return out
}

// Diff returns the bindings of other that differ from l. Both layouts must
// have the same dimensions.
func (l *Layout) Diff(other *Layout) ([]Binding, error) {
	if l.dims != other.dims {
		return nil, fmt.Errorf("%w: %+v vs %+v", ErrDimensionMismatch, l.dims, other.dims)
	}
	mine := l.Snapshot()
	theirs := other.Snapshot()

	var out []Binding
	for li := range mine {
		for r := range mine[li] {
			for c := range mine[li][r] {
				if mine[li][r][c] != theirs[li][r][c] {
					out = append(out, Binding{
						Layer:    uint8(li),
						Position: key.Pos(uint8(r), uint8(c)),
						Action:   theirs[li][r][c],
					})
				}
			}
		}
	}
	return out, nil
}
