package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/config"
	"github.com/dshills/keyfirm/internal/config/watcher"
)

// WatchConfig re-reads the layout whenever the file at path changes and
// submits every differing binding as a remap. The returned function stops
// watching.
func (k *Keyboard) WatchConfig(ctx context.Context, path string) (func(), error) {
	w := watcher.New(watcher.WithLogger(k.logger.Named("watcher")))
	if err := w.Watch(path); err != nil {
		return nil, err
	}
	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			return
		}
		k.ReloadLayout(ctx, ev.Path)
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w.Stop, nil
}

// ReloadLayout applies the layout in the configuration at path as remaps
// and returns how many bindings changed. Problems are logged; the running
// layout is kept.
func (k *Keyboard) ReloadLayout(ctx context.Context, path string) int {
	changes, err := config.LayoutChanges(path, k.layout)
	if err != nil {
		k.logger.Warn("config reload rejected", zap.String("path", path), zap.Error(err))
		return 0
	}

	applied := 0
	for _, r := range changes {
		if err := k.Remap(ctx, r); err != nil {
			k.logger.Warn("reloaded binding rejected", zap.Error(err))
			continue
		}
		applied++
	}
	k.logger.Info("config reloaded", zap.String("path", path), zap.Int("remaps", applied))
	return applied
}
