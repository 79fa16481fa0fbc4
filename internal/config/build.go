package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/keymap"
	"github.com/dshills/keyfirm/internal/input/macro"
)

// Built is the runtime material derived from a configuration.
type Built struct {
	Layout *keymap.Layout
	Macros *macro.Table
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	compiler *macro.Compiler
}

// WithCompiler sets the Lua compiler used for scripted macros.
func WithCompiler(c *macro.Compiler) BuildOption {
	return func(o *buildOptions) {
		o.compiler = c
	}
}

// Build compiles the macros and materializes the layout. Dimension
// mismatches, bad modifiers, out-of-range layers, transparent base
// bindings and undefined macros are all reported as *Error.
func Build(ctx context.Context, cfg *Config, opts ...BuildOption) (*Built, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.compiler == nil {
		o.compiler = macro.NewCompiler()
	}

	macros := macro.NewTable()
	for i, mc := range cfg.Macros {
		var (
			steps []macro.Step
			err   error
			field string
		)
		if mc.Lua != "" {
			field = fmt.Sprintf("macros[%d].lua", i)
			steps, err = o.compiler.Compile(ctx, mc.Lua)
		} else {
			field = fmt.Sprintf("macros[%d].keys", i)
			steps, err = macro.ParseSteps(mc.Keys)
		}
		if err == nil {
			err = macros.Define(mc.ID, steps)
		}
		if err != nil {
			return nil, wrapField(field, err)
		}
	}

	layout, err := BuildLayout(cfg)
	if err != nil {
		return nil, err
	}
	layout.SetMacroChecker(macros.Has)
	if err := layout.Validate(nil); err != nil {
		return nil, wrapField("layout.keymap", err)
	}
	return &Built{Layout: layout, Macros: macros}, nil
}

// BuildLayout materializes only the layout. Macro bindings are not checked
// against a macro table.
func BuildLayout(cfg *Config) (*keymap.Layout, error) {
	layout, err := keymap.FromNotation(cfg.Dimensions(), cfg.Layout.Keymap)
	if err != nil {
		msg := ""
		switch {
		case errors.Is(err, keymap.ErrDimensionMismatch):
			msg = "shape does not match matrix"
		case errors.Is(err, action.ErrInvalidAction):
			msg = "invalid binding"
		}
		return nil, &Error{Field: "layout.keymap", Msg: msg, Err: err}
	}
	return layout, nil
}
