package transport

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dshills/keyfirm/internal/report"
)

// SimPeripheral is an in-memory BLE peripheral. Centrals "connect" by
// calling Connect, and sessions end on Disconnect.
type SimPeripheral struct {
	host    ReportWriter
	pending chan *SimSession

	mu      sync.Mutex
	current *SimSession
}

// NewSimPeripheral creates a peripheral whose sessions forward reports to
// host.
func NewSimPeripheral(host ReportWriter) *SimPeripheral {
	return &SimPeripheral{
		host:    host,
		pending: make(chan *SimSession, 1),
	}
}

// Connect makes a central available to the next Advertise call and returns
// its session. At most one connection may be waiting.
func (p *SimPeripheral) Connect() *SimSession {
	s := &SimSession{host: p.host, gone: make(chan struct{})}
	p.pending <- s
	return s
}

// Advertise implements Peripheral.
func (p *SimPeripheral) Advertise(ctx context.Context) (Session, error) {
	select {
	case s := <-p.pending:
		p.mu.Lock()
		p.current = s
		p.mu.Unlock()
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the session handed out by the last Advertise.
func (p *SimPeripheral) Current() *SimSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Churn connects a central, keeps it for hold, disconnects, and repeats
// until ctx ends. The simulator uses it to exercise reconnection.
func (p *SimPeripheral) Churn(ctx context.Context, clock clockwork.Clock, hold time.Duration) {
	for {
		s := &SimSession{host: p.host, gone: make(chan struct{})}
		select {
		case p.pending <- s:
		case <-ctx.Done():
			return
		}
		select {
		case <-clock.After(hold):
			s.Disconnect()
		case <-ctx.Done():
			return
		}
	}
}

// SimSession is one simulated connection.
type SimSession struct {
	host ReportWriter
	gone chan struct{}
	once sync.Once
}

// WriteReport implements ReportWriter.
func (s *SimSession) WriteReport(ctx context.Context, r report.Report) error {
	select {
	case <-s.gone:
		return ErrDisconnected
	default:
	}
	return s.host.WriteReport(ctx, r)
}

// WaitDisconnect implements Session.
func (s *SimSession) WaitDisconnect(ctx context.Context) error {
	select {
	case <-s.gone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect ends the session. It is safe to call more than once.
func (s *SimSession) Disconnect() {
	s.once.Do(func() { close(s.gone) })
}
