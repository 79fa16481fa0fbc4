// Package app wires the keyboard runtime together.
//
// A Keyboard owns one scan task, which is the only goroutine touching the
// debouncer, the layer stack, the resolver and the aggregator. It feeds
// messages into the report channel; the transport dispatcher drains it to
// the host. Remaps and snapshots may be requested from any goroutine.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/channel"
	"github.com/dshills/keyfirm/internal/config"
	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/debounce"
	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/input/keymap"
	"github.com/dshills/keyfirm/internal/input/layer"
	"github.com/dshills/keyfirm/internal/input/macro"
	"github.com/dshills/keyfirm/internal/input/resolver"
	"github.com/dshills/keyfirm/internal/matrix"
	"github.com/dshills/keyfirm/internal/metrics"
	"github.com/dshills/keyfirm/internal/report"
	"github.com/dshills/keyfirm/internal/storage"
	"github.com/dshills/keyfirm/internal/transport"
)

// Scanner samples the key matrix. *matrix.Matrix satisfies it for any pin
// types.
type Scanner interface {
	Rows() uint8
	Cols() uint8
	Scan(visit func(pos key.Position, high bool)) []matrix.Fault
	CanWait() bool
	WaitForAnyKey(ctx context.Context) error
}

// Snapshot is a read-only view of the running keyboard.
type Snapshot struct {
	Layout     [][][]action.Action
	Layers     []uint8
	Connection transport.ConnectionState
	Session    string
	ScanFaults uint64
	Degraded   bool
}

// Keyboard is the firmware runtime.
type Keyboard struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock

	scanner    Scanner
	layout     *keymap.Layout
	macros     *macro.Table
	debouncer  *debounce.Debouncer
	stack      *layer.Stack
	resolver   *resolver.Resolver
	aggregator *report.Aggregator
	ch         *channel.Channel[report.Message]
	dispatcher *transport.Dispatcher
	store      *storage.Persistent

	remapMu sync.Mutex
	layers  atomic.Pointer[[]uint8]
	faults  atomic.Uint64
	running atomic.Bool

	// Scan task state.
	idle int
}

// Option configures a Keyboard.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock
	store   storage.Store
}

// WithLogger sets the root logger. Components log through named children.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock sets the clock for scanning and timers.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithStore sets the remap store. Without one, remaps last until restart.
func WithStore(s storage.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// New assembles a keyboard from a validated configuration, the layout and
// macros built from it, and a matrix scanner. The store's overlay is
// applied to the layout before New returns.
func New(ctx context.Context, cfg *config.Config, built *config.Built, scanner Scanner, opts ...Option) (*Keyboard, error) {
	o := options{
		logger: zap.NewNop(),
		clock:  clockwork.NewRealClock(),
		store:  storage.Noop{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	dims := built.Layout.Dimensions()
	if scanner.Rows() != dims.Rows || scanner.Cols() != dims.Cols {
		return nil, fmt.Errorf("%w: scanner is %dx%d, layout is %dx%d",
			ErrMatrixMismatch, scanner.Rows(), scanner.Cols(), dims.Rows, dims.Cols)
	}

	k := &Keyboard{
		cfg:     cfg,
		logger:  o.logger,
		metrics: o.metrics,
		clock:   o.clock,
		scanner: scanner,
		layout:  built.Layout,
		macros:  built.Macros,
	}

	b := newBootstrapper(k, o)
	if err := b.bootstrap(ctx); err != nil {
		return nil, err
	}
	return k, nil
}

// Remap binds a new action at one position, effective from the next
// press, and persists it. Remaps are serialized.
func (k *Keyboard) Remap(ctx context.Context, r storage.Remap) error {
	k.remapMu.Lock()
	defer k.remapMu.Unlock()

	if err := k.layout.Set(r); err != nil {
		k.metrics.RecordRemap("rejected")
		return &RemapError{Remap: r, Err: err}
	}
	if err := k.store.Save(ctx, r); err != nil {
		// Persistent absorbs backend faults; only a cancelled ctx lands here.
		k.logger.Warn("remap not persisted", zap.Stringer("remap", r), zap.Error(err))
	}
	k.metrics.RecordRemap("applied")
	k.logger.Info("remap applied", zap.Stringer("remap", r))
	return nil
}

// Snapshot returns the current layout, active layers and connection.
func (k *Keyboard) Snapshot() Snapshot {
	var layers []uint8
	if p := k.layers.Load(); p != nil {
		layers = append(layers, (*p)...)
	}
	return Snapshot{
		Layout:     k.layout.Snapshot(),
		Layers:     layers,
		Connection: k.dispatcher.State(),
		Session:    k.dispatcher.SessionID(),
		ScanFaults: k.faults.Load(),
		Degraded:   k.store.Degraded(),
	}
}

// Dimensions returns the matrix and layout size.
func (k *Keyboard) Dimensions() keymap.Dimensions {
	return k.layout.Dimensions()
}

// Close releases the store.
func (k *Keyboard) Close() error {
	k.ch.Close()
	return k.store.Close()
}

func (k *Keyboard) publishLayers(active []uint8) {
	cp := append([]uint8(nil), active...)
	k.layers.Store(&cp)
}

func (k *Keyboard) scanInterval() time.Duration {
	return k.cfg.Matrix.ScanInterval.Std()
}
