package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/channel"
	"github.com/dshills/keyfirm/internal/input/debounce"
	"github.com/dshills/keyfirm/internal/input/layer"
	"github.com/dshills/keyfirm/internal/input/resolver"
	"github.com/dshills/keyfirm/internal/report"
	"github.com/dshills/keyfirm/internal/storage"
	"github.com/dshills/keyfirm/internal/transport"
)

// bootstrapper initializes the pipeline leaf first and closes the store
// if a later step fails.
type bootstrapper struct {
	k    *Keyboard
	opts options
}

func newBootstrapper(k *Keyboard, opts options) *bootstrapper {
	return &bootstrapper{k: k, opts: opts}
}

func (b *bootstrapper) bootstrap(ctx context.Context) error {
	b.initStore()
	if err := b.loadOverlay(ctx); err != nil {
		b.cleanup()
		return err
	}
	b.initPipeline()
	b.initDispatcher()
	return nil
}

func (b *bootstrapper) initStore() {
	b.k.store = storage.NewPersistent(b.opts.store, b.k.logger.Named("storage"), b.k.metrics)
}

// loadOverlay applies saved remaps on top of the configured layout. Entries
// that no longer fit the layout are skipped.
func (b *bootstrapper) loadOverlay(ctx context.Context) error {
	k := b.k
	overlay, err := k.store.Load(ctx)
	if err != nil {
		return &InitError{Component: "storage", Err: err}
	}
	k.layout.SetMacroChecker(k.macros.Has)

	applied := 0
	rest := overlay
	for len(rest) > 0 {
		n, err := k.layout.Apply(rest)
		applied += n
		if err == nil {
			break
		}
		k.logger.Warn("skipping stored remap", zap.Error(err))
		rest = rest[n+1:]
	}
	if len(overlay) > 0 {
		k.logger.Info("storage overlay applied",
			zap.Int("remaps", len(overlay)),
			zap.Int("applied", applied),
		)
	}
	return nil
}

func (b *bootstrapper) initPipeline() {
	k := b.k
	cfg := k.cfg
	dims := k.layout.Dimensions()

	k.debouncer = debounce.New(dims.Rows, dims.Cols, uint8(cfg.Matrix.DebounceTicks))

	k.stack = layer.NewStack(dims.Layers)
	k.publishLayers(k.stack.Active())
	k.stack.OnChange(k.publishLayers)

	k.resolver = resolver.New(k.layout, k.stack, k.macros,
		resolver.WithClock(k.clock),
		resolver.WithLogger(k.logger.Named("resolver")),
		resolver.WithTapHoldTimeout(cfg.Behavior.TapHoldTimeout.Std()),
		resolver.WithOneShotTimeout(cfg.Behavior.OneShotTimeout.Std()),
	)
	k.aggregator = report.NewAggregator(
		report.WithLogger(k.logger.Named("report")),
		report.WithMetrics(k.metrics),
	)
	k.ch = channel.New[report.Message](cfg.Behavior.ChannelCapacity,
		channel.WithDepthObserver[report.Message](k.metrics.SetChannelDepth),
	)
}

func (b *bootstrapper) initDispatcher() {
	k := b.k
	k.dispatcher = transport.NewDispatcher(k.ch,
		transport.WithLogger(k.logger.Named("transport")),
		transport.WithMetrics(k.metrics),
		transport.WithClock(k.clock),
		transport.WithSessionReset(k.resetSession),
	)
}

func (b *bootstrapper) cleanup() {
	if b.k.store != nil {
		_ = b.k.store.Close()
	}
}
