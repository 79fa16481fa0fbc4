// Package config loads and validates the keyboard configuration.
//
// A configuration file is TOML (keyboard.toml) or YAML (keyboard.yaml),
// picked by extension. Environment variables prefixed with KEYFIRM_
// override file values:
//
//	KEYFIRM_MATRIX_DEBOUNCE_TICKS=5     matrix.debounce_ticks
//	KEYFIRM_BEHAVIOR_TAP_HOLD_TIMEOUT   behavior.tap_hold_timeout
//	KEYFIRM_LOG_LEVEL=debug             log.level
//
// # Sections
//
//	[keyboard]   name, vendor_id, product_id
//	[matrix]     rows, cols, layers, direction, input_pins, output_pins,
//	             scan_interval, debounce_ticks, idle_ticks
//	[behavior]   tap_hold_timeout, one_shot_timeout, channel_capacity
//	[layout]     keymap: layers of rows of action strings
//	[[macros]]   id, keys or lua
//	[storage]    backend, path, flash_size
//	[transport]  mode
//	[log]        level, format
//	[metrics]    listen
//
// # Layout notation
//
//	A, Enter, ...      key
//	_ or ___           no action
//	TRNS               fall through to the next active layer
//	MO(n) TG(n) OSL(n) TT(n)
//	LM(n, LShift|RCtrl)
//	LT(n, Space)
//	WM(A, LCtrl)
//	MACRO(id)
//
// Load returns a validated Config. Build materializes the layout and the
// macro table from it. Every problem found by either is reported as an
// *Error naming the offending field.
package config
