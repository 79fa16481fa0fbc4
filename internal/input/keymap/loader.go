package keymap

import (
	"fmt"

	"github.com/dshills/keyfirm/internal/input/action"
)

// FromNotation parses a [layer][row][col] table of action strings and builds
// a layout. Shape is checked before any string is parsed so that dimension
// errors are reported first.
func FromNotation(dims Dimensions, layers [][][]string) (*Layout, error) {
	if err := checkShape(dims, layers); err != nil {
		return nil, err
	}

	table := make([][][]action.Action, len(layers))
	for li, layer := range layers {
		table[li] = make([][]action.Action, len(layer))
		for r, row := range layer {
			table[li][r] = make([]action.Action, len(row))
			for c, s := range row {
				a, err := action.Parse(s)
				if err != nil {
					return nil, fmt.Errorf("layer %d row %d col %d: %w", li, r, c, err)
				}
				table[li][r][c] = a
			}
		}
	}
	return New(dims, table)
}

// ToNotation renders the layout back into strings.
func (l *Layout) ToNotation() [][][]string {
	snap := l.Snapshot()
	out := make([][][]string, len(snap))
	for li, layer := range snap {
		out[li] = make([][]string, len(layer))
		for r, row := range layer {
			out[li][r] = make([]string, len(row))
			for c, a := range row {
				out[li][r][c] = a.String()
			}
		}
	}
	return out
}

func checkShape(dims Dimensions, layers [][][]string) error {
	if err := dims.Validate(); err != nil {
		return err
	}
	if len(layers) != int(dims.Layers) {
		return fmt.Errorf("%w: layer number in keymap is %d, matrix has %d layers", ErrDimensionMismatch, len(layers), dims.Layers)
	}
	for li, layer := range layers {
		if len(layer) != int(dims.Rows) {
			return fmt.Errorf("%w: layer %d has %d rows, matrix has %d", ErrDimensionMismatch, li, len(layer), dims.Rows)
		}
		for r, row := range layer {
			if len(row) != int(dims.Cols) {
				return fmt.Errorf("%w: layer %d row %d has %d cols, matrix has %d", ErrDimensionMismatch, li, r, len(row), dims.Cols)
			}
		}
	}
	return nil
}
