// Package keymap holds the layout: a fixed [layer][row][col] table of
// actions sized once at construction.
//
// Layer 0 is the base layer and must bind every position to a concrete
// (non-Transparent) action, so top-down resolution through any stack of
// active layers always terminates. The table never grows or shrinks; the
// only mutation is replacing a single binding, either while hydrating a
// stored overlay at boot or on an explicit remap command.
//
// # Notation
//
// Layouts are usually built from the string notation used in keyboard
// configuration files (see action.Parse):
//
//	layers := [][][]string{
//	    {{"A", "MO(1)"}, {"LShift", "LT(1, Space)"}},
//	    {{"B", "TRNS"}, {"TRNS", "TRNS"}},
//	}
//	l, err := keymap.FromNotation(keymap.Dimensions{Layers: 2, Rows: 2, Cols: 2}, layers)
package keymap
