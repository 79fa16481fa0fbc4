package config

import (
	"fmt"

	"github.com/dshills/keyfirm/internal/logging"
	"github.com/dshills/keyfirm/internal/matrix"
	"github.com/dshills/keyfirm/internal/storage"
	"github.com/dshills/keyfirm/internal/transport"
)

// Validate checks every field that can be checked without building the
// layout. It returns the first problem as an *Error.
func (c *Config) Validate() error {
	m := c.Matrix
	if m.Rows == 0 {
		return fieldError("matrix.rows", "must be greater than zero")
	}
	if m.Cols == 0 {
		return fieldError("matrix.cols", "must be greater than zero")
	}
	if m.Layers == 0 {
		return fieldError("matrix.layers", "must be greater than zero")
	}
	dir, err := matrix.ParseDirection(m.Direction)
	if err != nil {
		return wrapField("matrix.direction", err)
	}
	inputs, outputs := int(m.Rows), int(m.Cols)
	if dir == matrix.Row2Col {
		inputs, outputs = outputs, inputs
	}
	if len(m.InputPins) > 0 && len(m.InputPins) != inputs {
		return fieldError("matrix.input_pins", "%d pins, %s matrix needs %d", len(m.InputPins), dir, inputs)
	}
	if len(m.OutputPins) > 0 && len(m.OutputPins) != outputs {
		return fieldError("matrix.output_pins", "%d pins, %s matrix needs %d", len(m.OutputPins), dir, outputs)
	}
	if m.ScanInterval <= 0 {
		return fieldError("matrix.scan_interval", "must be positive")
	}
	if m.DebounceTicks <= 0 || m.DebounceTicks > 255 {
		return fieldError("matrix.debounce_ticks", "must be between 1 and 255")
	}
	if m.IdleTicks < 0 {
		return fieldError("matrix.idle_ticks", "must not be negative")
	}

	b := c.Behavior
	if b.TapHoldTimeout <= 0 {
		return fieldError("behavior.tap_hold_timeout", "must be positive")
	}
	if b.OneShotTimeout <= 0 {
		return fieldError("behavior.one_shot_timeout", "must be positive")
	}
	if b.ChannelCapacity <= 0 {
		return fieldError("behavior.channel_capacity", "must be greater than zero")
	}

	if len(c.Layout.Keymap) == 0 {
		return fieldError("layout.keymap", "no layers defined")
	}

	seen := make(map[uint8]int, len(c.Macros))
	for i, mc := range c.Macros {
		field := fmt.Sprintf("macros[%d]", i)
		if prev, dup := seen[mc.ID]; dup {
			return fieldError(field+".id", "macro %d already defined by macros[%d]", mc.ID, prev)
		}
		seen[mc.ID] = i
		switch {
		case len(mc.Keys) > 0 && mc.Lua != "":
			return fieldError(field, "set either keys or lua, not both")
		case len(mc.Keys) == 0 && mc.Lua == "":
			return fieldError(field, "needs keys or lua")
		}
	}

	switch c.Storage.Backend {
	case "", storage.BackendNone, storage.BackendFlash:
	case storage.BackendSQLite:
		if c.Storage.Path == "" {
			return fieldError("storage.path", "sqlite backend needs a path")
		}
	default:
		return fieldError("storage.backend", "unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.FlashSize < 0 {
		return fieldError("storage.flash_size", "must not be negative")
	}

	if _, err := transport.ParseMode(c.Transport.Mode); err != nil {
		return wrapField("transport.mode", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return wrapField("log.level", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return wrapField("log.format", err)
	}
	return nil
}
