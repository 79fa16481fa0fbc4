package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/keyfirm/internal/channel"
	"github.com/dshills/keyfirm/internal/metrics"
	"github.com/dshills/keyfirm/internal/report"
)

// DefaultRetryDelay is the pause after a failed advertisement.
const DefaultRetryDelay = 500 * time.Millisecond

// Race branch indices in a BLE session.
const (
	branchProducer = iota
	branchFlow
	branchDisconnect
)

var branchNames = [...]string{"producer", "report flow", "disconnect"}

// Dispatcher moves messages from the report channel to the active
// transport. Only one Run method may be active at a time.
type Dispatcher struct {
	ch      *channel.Channel[report.Message]
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock

	retryDelay time.Duration
	onSession  func()

	state   atomic.Int32
	mu      sync.Mutex
	session string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithClock sets the clock used for retry delays.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithRetryDelay sets the pause after a failed advertisement.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.retryDelay = delay
	}
}

// WithSessionReset sets the function called after every BLE session ends,
// once the producer has stopped. It discards resolver and report state so
// nothing carries into the next session.
func WithSessionReset(fn func()) Option {
	return func(d *Dispatcher) {
		d.onSession = fn
	}
}

// NewDispatcher creates a dispatcher consuming ch.
func NewDispatcher(ch *channel.Channel[report.Message], opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ch:         ch,
		logger:     zap.NewNop(),
		clock:      clockwork.NewRealClock(),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the connection state.
func (d *Dispatcher) State() ConnectionState {
	return ConnectionState(d.state.Load())
}

// SessionID returns the id of the current BLE session, or "" if none.
func (d *Dispatcher) SessionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Dispatcher) setState(s ConnectionState) {
	d.state.Store(int32(s))
	d.metrics.SetConnectionState(int(s))
}

func (d *Dispatcher) setSession(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = id
}

// RunUSB runs producer and the report flow to w until ctx ends. Write
// errors are logged and the message is dropped; the next report brings the
// host back in sync.
func (d *Dispatcher) RunUSB(ctx context.Context, w ReportWriter, producer Producer) error {
	d.setState(Connected)
	defer d.setState(Disconnected)
	d.logger.Info("usb transport running")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return producer(gctx) })
	g.Go(func() error { return d.flow(gctx, w, "usb", false) })

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// RunBLE runs the advertise/connect/disconnect loop until ctx ends.
func (d *Dispatcher) RunBLE(ctx context.Context, p Peripheral, producer Producer) error {
	defer d.setState(Disconnected)

	for ctx.Err() == nil {
		d.setState(Advertising)
		d.logger.Debug("advertising")

		sess, err := p.Advertise(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			d.logger.Warn("advertise failed", zap.Error(err))
			d.setState(Disconnected)
			select {
			case <-d.clock.After(d.retryDelay):
			case <-ctx.Done():
			}
			continue
		}

		d.runSession(ctx, sess, producer)
	}
	return nil
}

func (d *Dispatcher) runSession(ctx context.Context, sess Session, producer Producer) {
	id := uuid.NewString()
	logger := d.logger.With(zap.String("session", id))
	d.setSession(id)
	d.setState(Connected)
	d.metrics.RecordBLESession()
	logger.Info("ble connected")

	winner, err := Race(ctx,
		func(ctx context.Context) error { return producer(ctx) },
		func(ctx context.Context) error { return d.flow(ctx, sess, "ble", true) },
		sess.WaitDisconnect,
	)

	d.setState(Disconnected)
	d.setSession("")

	// Every branch has returned, so the producer's state is ours to reset.
	dropped := d.ch.Clear()
	if d.onSession != nil {
		d.onSession()
	}

	fields := []zap.Field{
		zap.String("ended_by", branchNames[winner]),
		zap.Int("dropped", dropped),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fields = append(fields, zap.Error(err))
	}
	logger.Info("ble session ended", fields...)
}

// flow writes messages to w in channel order until ctx ends. With
// fatalWrite set, a write error ends the flow.
func (d *Dispatcher) flow(ctx context.Context, w ReportWriter, transport string, fatalWrite bool) error {
	for {
		msg, err := d.ch.Receive(ctx)
		if err != nil {
			return err
		}
		if !msg.HasReport() {
			d.logger.Debug("layer change", zap.Uint64("seq", msg.Seq), zap.Uint8s("layers", msg.Layers))
			continue
		}

		if err := w.WriteReport(ctx, msg.Report); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.metrics.RecordWriteError(transport)
			if fatalWrite {
				return fmt.Errorf("write report #%d: %w", msg.Seq, err)
			}
			d.logger.Warn("write report failed",
				zap.String("transport", transport),
				zap.Uint64("seq", msg.Seq),
				zap.Error(err),
			)
			continue
		}
		d.metrics.RecordReport(transport, msg.Report.Kind.String())
	}
}
