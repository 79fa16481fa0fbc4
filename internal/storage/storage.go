// Package storage persists runtime remaps.
//
// A Store returns the remaps saved so far at boot (the overlay applied on
// top of the configured layout) and appends new ones on explicit remap
// commands. Backends:
//
//   - Noop: no storage configured; nothing is loaded, saves are discarded
//   - Flash: an append-only record log on a NOR flash region
//   - SQLite: a table of bindings, for host builds
//
// Persistent wraps any backend and turns the first I/O fault into no-op
// behaviour for the rest of the session, so storage trouble never stops
// the keyboard.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/input/keymap"
	"github.com/dshills/keyfirm/internal/metrics"
)

// Remap is one binding change: a new action for a position on a layer.
type Remap = keymap.Binding

// Store is a remap persistence backend.
type Store interface {
	// Load returns every saved remap in save order. Later entries for the
	// same layer and position win.
	Load(ctx context.Context) ([]Remap, error)

	// Save persists one remap.
	Save(ctx context.Context, r Remap) error

	Close() error
}

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendFlash  = "flash"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for unrecognised backend names.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Path      string
	FlashSize int
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendNone:
		return Noop{}, nil
	case BackendFlash:
		if opts.Path == "" {
			return NewFlash(NewMemFlash(opts.FlashSize)), nil
		}
		f, err := OpenFileFlash(opts.Path, opts.FlashSize)
		if err != nil {
			return nil, err
		}
		return NewFlash(f), nil
	case BackendSQLite:
		return OpenSQLite(ctx, opts.Path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}

// Noop is the store used when no storage is configured.
type Noop struct{}

// Load returns no overlay.
func (Noop) Load(context.Context) ([]Remap, error) { return nil, nil }

// Save discards r.
func (Noop) Save(context.Context, Remap) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// Persistent serializes access to a backend and degrades it to Noop after
// the first fault.
type Persistent struct {
	mu       sync.Mutex
	inner    Store
	degraded atomic.Bool
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewPersistent wraps inner. logger and m may be nil.
func NewPersistent(inner Store, logger *zap.Logger, m *metrics.Metrics) *Persistent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistent{inner: inner, logger: logger, metrics: m}
}

// Degraded reports whether the store has fallen back to no-op.
func (p *Persistent) Degraded() bool {
	return p.degraded.Load()
}

func (p *Persistent) degrade(op string, err error) {
	p.metrics.RecordStorageFault()
	p.metrics.SetStorageDegraded(true)
	if !p.degraded.Swap(true) {
		p.logger.Warn("storage fault, continuing without persistence",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

// Load returns the saved overlay, or none if the backend fails.
func (p *Persistent) Load(ctx context.Context) ([]Remap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.degraded.Load() {
		return nil, nil
	}
	remaps, err := p.inner.Load(ctx)
	if err != nil {
		p.degrade("load", err)
		return nil, nil
	}
	return remaps, nil
}

// Save persists r. A backend fault is absorbed and disables persistence.
func (p *Persistent) Save(ctx context.Context, r Remap) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.degraded.Load() {
		return nil
	}
	if err := p.inner.Save(ctx, r); err != nil {
		p.degrade("save", err)
	}
	return nil
}

// Close closes the backend.
func (p *Persistent) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.Close()
}
