package config

import (
	"github.com/dshills/keyfirm/internal/config/loader"
	"github.com/dshills/keyfirm/internal/input/keymap"
)

// LayoutChanges re-reads the configuration at path and returns the
// bindings of its layout that differ from current. Matrix dimensions
// cannot change at runtime.
func LayoutChanges(path string, current *keymap.Layout) ([]keymap.Binding, error) {
	return LayoutChangesWith(loader.DefaultFS(), path, loader.NewEnvLoader(loader.DefaultEnvPrefix), current)
}

// LayoutChangesWith is LayoutChanges with an explicit file system and
// override source.
func LayoutChangesWith(fsys loader.FileSystem, path string, env loader.Loader, current *keymap.Layout) ([]keymap.Binding, error) {
	cfg, err := LoadWith(fsys, path, env)
	if err != nil {
		return nil, err
	}
	if cfg.Dimensions() != current.Dimensions() {
		return nil, fieldError("matrix", "dimensions changed from %+v to %+v, restart required", current.Dimensions(), cfg.Dimensions())
	}
	next, err := BuildLayout(cfg)
	if err != nil {
		return nil, err
	}
	return current.Diff(next)
}
