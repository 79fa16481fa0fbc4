package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/input/resolver"
)

// scan is the producer task: it scans on every tick until ctx ends. Scan
// faults never stop it.
func (k *Keyboard) scan(ctx context.Context) error {
	ticker := k.clock.NewTicker(k.scanInterval())
	defer ticker.Stop()
	k.idle = 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		if err := k.ScanOnce(ctx); err != nil {
			return err
		}
		if err := k.maybeSleep(ctx); err != nil {
			return err
		}
	}
}

// ScanOnce runs one scan tick: sample the matrix, debounce, resolve, fire
// timers and queue the resulting messages. It blocks while the report
// channel is full and returns only ctx errors.
//
// ScanOnce must not be called concurrently with a running scan task.
func (k *Keyboard) ScanOnce(ctx context.Context) error {
	now := k.clock.Now()

	var edges []key.Event
	faults := k.scanner.Scan(func(pos key.Position, high bool) {
		if edge, ok := k.debouncer.Update(pos, high); ok {
			edges = append(edges, key.NewEvent(pos, edge, now))
		}
	})
	for _, f := range faults {
		k.faults.Add(1)
		k.metrics.RecordScanFault()
		k.logger.Debug("scan fault", zap.Error(f))
	}
	k.metrics.ObserveScan(k.clock.Since(now))

	var effects []resolver.Effect
	for _, ev := range edges {
		k.metrics.RecordEdge(ev.Edge.String())
		effects = append(effects, k.resolver.Process(ev)...)
	}
	effects = append(effects, k.resolver.Tick()...)

	return k.publish(ctx, effects)
}

func (k *Keyboard) publish(ctx context.Context, effects []resolver.Effect) error {
	for _, e := range effects {
		k.metrics.RecordEffect(e.Kind.String())
		for _, msg := range k.aggregator.Apply(e) {
			if err := k.ch.Send(ctx, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// idleNow reports whether nothing is held, settling or timing.
func (k *Keyboard) idleNow() bool {
	return !k.debouncer.AnyPressed() && !k.debouncer.Settling() && k.resolver.Idle()
}

// maybeSleep suspends scanning until a key goes down once the matrix has
// been idle for idle_ticks scans and every input can wait for an edge.
func (k *Keyboard) maybeSleep(ctx context.Context) error {
	limit := k.cfg.Matrix.IdleTicks
	if limit <= 0 || !k.scanner.CanWait() {
		return nil
	}
	if !k.idleNow() {
		k.idle = 0
		return nil
	}
	k.idle++
	if k.idle < limit {
		return nil
	}

	k.logger.Debug("matrix idle, waiting for a key", zap.Int("ticks", k.idle))
	k.idle = 0
	if err := k.scanner.WaitForAnyKey(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		k.logger.Warn("edge wait failed, polling", zap.Error(err))
	}
	return nil
}

// resetSession discards resolver and report state after a BLE session.
// The dispatcher calls it once the scan task has returned.
func (k *Keyboard) resetSession() {
	k.resolver.Reset()
	// The next session starts from an empty report on the host side, so
	// the all-clear messages have nowhere to go.
	cleared := k.aggregator.Reset(k.clock.Now())
	k.idle = 0
	k.logger.Debug("session state reset", zap.Int("cleared_reports", len(cleared)))
}
