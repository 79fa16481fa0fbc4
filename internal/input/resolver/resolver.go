// Package resolver turns debounced key edges into report effects.
//
// The resolver looks up each press in the layout through the active layer
// stack, remembers the action per position so the release undoes exactly
// what the press did, and runs the deferred behaviours: tap-hold decisions
// and one-shot layers.
//
// # Tap-Hold
//
// A TapHoldLayer or TapToggle press starts a pending decision. While it is
// pending, every later edge is buffered in arrival order. The decision is:
//
//   - tap, if the same key is released before the hold timeout and before
//     any other key is pressed
//   - hold, if the timeout passes or any other key is pressed first
//
// Releases of other keys are buffered but do not force a decision. Once
// decided, the buffered edges are replayed in order; a replayed tap-hold
// press starts the next decision, so overlapping tap-hold keys resolve
// strictly in press order.
//
// # One-Shot
//
// OneShotLayer pushes its layer and arms a one-shot. The next Key,
// KeyWithModifier or Macro press consumes it, and the layer is popped as
// soon as that key is released. An unconsumed one-shot is popped after the
// one-shot timeout.
package resolver

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/input/action"
	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/input/layer"
	"github.com/dshills/keyfirm/internal/input/macro"
)

// Default timer settings.
const (
	DefaultTapHoldTimeout = 200 * time.Millisecond
	DefaultOneShotTimeout = time.Second
)

// Layout resolves a position through the active layers.
type Layout interface {
	Resolve(pos key.Position, active []uint8) (action.Action, uint8)
}

// MacroSource looks up macros by id.
type MacroSource interface {
	Get(id uint8) (macro.Macro, bool)
}

// record is what a press did, kept until the matching release.
type record struct {
	act       action.Action
	handle    layer.Handle
	hasHandle bool
}

type pendingTapHold struct {
	pos key.Position
	act action.Action
	at  time.Time
}

type oneShot struct {
	layer  uint8
	handle layer.Handle
	at     time.Time

	// consumer is the position of the key that used the one-shot.
	consumer key.Position
	consumed bool
}

// Resolver is owned by the scan task and is not safe for concurrent use.
type Resolver struct {
	layout Layout
	stack  *layer.Stack
	macros MacroSource
	clock  clockwork.Clock
	logger *zap.Logger

	tapHoldTimeout time.Duration
	oneShotTimeout time.Duration

	held    map[key.Position]record
	pending *pendingTapHold
	queue   []key.Event
	oneShot *oneShot

	// out collects effects for the call in progress.
	out []Effect
	now time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used by Tick.
func WithClock(c clockwork.Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithTapHoldTimeout sets how long a tap-hold key must be held to resolve as
// hold.
func WithTapHoldTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.tapHoldTimeout = d
		}
	}
}

// WithOneShotTimeout sets how long an unused one-shot layer stays active.
func WithOneShotTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.oneShotTimeout = d
		}
	}
}

// New creates a resolver over layout and stack. macros may be nil if the
// layout binds no macros.
func New(layout Layout, stack *layer.Stack, macros MacroSource, opts ...Option) *Resolver {
	r := &Resolver{
		layout:         layout,
		stack:          stack,
		macros:         macros,
		clock:          clockwork.NewRealClock(),
		logger:         zap.NewNop(),
		tapHoldTimeout: DefaultTapHoldTimeout,
		oneShotTimeout: DefaultOneShotTimeout,
		held:           make(map[key.Position]record),
	}
	for _, opt := range opts {
		opt(r)
	}
	stack.OnChange(func(active []uint8) {
		r.emit(Effect{Kind: EffectLayers, Layers: active})
	})
	return r
}

// Process handles one debounced edge and returns the effects it produced,
// in order. Edges arriving while a tap-hold decision is pending may produce
// no effects until the decision is made.
func (r *Resolver) Process(ev key.Event) []Effect {
	r.begin(ev.Timestamp)
	r.queue = append(r.queue, ev)
	r.drain()
	return r.finish()
}

// Tick fires expired timers and returns the effects they produced.
func (r *Resolver) Tick() []Effect {
	r.begin(r.clock.Now())

	if r.pending != nil && r.now.Sub(r.pending.at) >= r.tapHoldTimeout {
		r.logger.Debug("tap-hold timeout", zap.Stringer("pos", r.pending.pos))
		r.resolveHold()
		r.drain()
	}
	if shot := r.oneShot; shot != nil && !shot.consumed && r.now.Sub(shot.at) >= r.oneShotTimeout {
		r.logger.Debug("one-shot timeout", zap.Uint8("layer", shot.layer))
		r.releaseOneShot()
	}

	return r.finish()
}

// Reset discards every piece of session state: the pending decision, the
// buffered edges, the one-shot and all press records. Momentary layers are
// released; toggled layers stay. Keys still physically held are ignored
// until they are pressed again.
func (r *Resolver) Reset() {
	r.pending = nil
	r.queue = nil
	r.oneShot = nil
	clear(r.held)
	r.stack.ReleaseMomentary()
	r.out = nil
}

// Pending returns true while a tap-hold decision is outstanding.
func (r *Resolver) Pending() bool {
	return r.pending != nil
}

// Idle returns true when no key is held and no timer is running.
func (r *Resolver) Idle() bool {
	return r.pending == nil && r.oneShot == nil && len(r.held) == 0
}

func (r *Resolver) begin(now time.Time) {
	if now.IsZero() {
		now = r.clock.Now()
	}
	r.now = now
	r.out = nil
}

func (r *Resolver) finish() []Effect {
	out := r.out
	r.out = nil
	return out
}

func (r *Resolver) emit(e Effect) {
	if e.At.IsZero() {
		e.At = r.now
	}
	r.out = append(r.out, e)
}

// drain handles queued edges until the queue is empty or a decision is
// pending with nothing in the queue to decide it.
func (r *Resolver) drain() {
	for len(r.queue) > 0 {
		if r.pending == nil {
			ev := r.queue[0]
			r.queue = r.queue[1:]
			r.handle(ev)
			continue
		}

		idx, tap := r.decision()
		if idx < 0 {
			return
		}
		if tap {
			// Everything queued ahead of the tap's release is a release of
			// another key; it happened while the tap key was down.
			earlier := append([]key.Event(nil), r.queue[:idx]...)
			r.queue = r.queue[idx+1:]
			r.resolveTap(earlier)
		} else {
			// The interleaving press stays queued and is replayed after the
			// hold takes effect.
			r.resolveHold()
		}
	}
}

// decision scans the queue for the first edge that decides the pending
// tap-hold. It returns -1 if none does yet. An edge stamped after the hold
// timeout decides hold even if Tick has not run yet.
func (r *Resolver) decision() (int, bool) {
	for i, ev := range r.queue {
		if !ev.Timestamp.IsZero() && ev.Timestamp.Sub(r.pending.at) >= r.tapHoldTimeout {
			return i, false
		}
		if ev.Position == r.pending.pos && !ev.IsPress() {
			return i, true
		}
		if ev.IsPress() {
			return i, false
		}
	}
	return -1, false
}

func (r *Resolver) handle(ev key.Event) {
	if ev.IsPress() {
		r.press(ev.Position)
	} else {
		r.release(ev.Position)
	}
}

func (r *Resolver) press(pos key.Position) {
	act, from := r.layout.Resolve(pos, r.stack.Active())
	r.logger.Debug("press",
		zap.Stringer("pos", pos),
		zap.Stringer("action", act),
		zap.Uint8("layer", from),
	)

	rec := record{act: act}
	switch act.Kind {
	case action.KindKey:
		r.keyDown(pos, act.Code)
	case action.KindKeyWithModifier:
		r.emit(Effect{Kind: EffectModsDown, Mods: act.Mods, Position: pos})
		r.keyDown(pos, act.Code)
	case action.KindMomentaryLayer:
		rec.handle, rec.hasHandle = r.push(act.Layer)
	case action.KindLayerWithModifier:
		rec.handle, rec.hasHandle = r.push(act.Layer)
		r.emit(Effect{Kind: EffectModsDown, Mods: act.Mods, Position: pos})
	case action.KindToggleLayer:
		r.toggle(act.Layer)
	case action.KindOneShotLayer:
		r.armOneShot(act.Layer)
	case action.KindTapHoldLayer, action.KindTapToggle:
		r.pending = &pendingTapHold{pos: pos, act: act, at: r.now}
		return
	case action.KindMacro:
		r.playMacro(pos, act.Macro)
	}

	switch act.Kind {
	case action.KindKey, action.KindKeyWithModifier, action.KindMacro:
		r.consumeOneShot(pos)
	}
	r.held[pos] = rec
}

func (r *Resolver) release(pos key.Position) {
	rec, ok := r.held[pos]
	if !ok {
		return
	}
	delete(r.held, pos)

	act := rec.act
	switch act.Kind {
	case action.KindKey:
		r.emit(Effect{Kind: EffectKeyUp, Code: act.Code, Position: pos})
	case action.KindKeyWithModifier:
		r.emit(Effect{Kind: EffectKeyUp, Code: act.Code, Position: pos})
		r.emit(Effect{Kind: EffectModsUp, Mods: act.Mods, Position: pos})
	case action.KindLayerWithModifier:
		r.emit(Effect{Kind: EffectModsUp, Mods: act.Mods, Position: pos})
	}
	if rec.hasHandle {
		r.stack.Pop(rec.handle)
	}

	if shot := r.oneShot; shot != nil && shot.consumed && shot.consumer == pos {
		r.releaseOneShot()
	}
}

func (r *Resolver) keyDown(pos key.Position, c key.Code) {
	r.emit(Effect{Kind: EffectKeyDown, Code: c, Position: pos})
}

func (r *Resolver) push(n uint8) (layer.Handle, bool) {
	h, err := r.stack.Push(n)
	if err != nil {
		// Layouts are validated against the layer count before use.
		r.logger.Error("push layer", zap.Error(err))
		return 0, false
	}
	return h, true
}

func (r *Resolver) toggle(n uint8) {
	if _, err := r.stack.Toggle(n); err != nil {
		r.logger.Error("toggle layer", zap.Error(err))
	}
}

// resolveTap taps the pending key. earlier holds the edges that arrived
// between its press and release; they are replayed while the tap key is
// down.
func (r *Resolver) resolveTap(earlier []key.Event) {
	p := r.pending
	r.pending = nil
	r.logger.Debug("tap", zap.Stringer("pos", p.pos), zap.Stringer("action", p.act))

	switch p.act.Kind {
	case action.KindTapHoldLayer:
		r.keyDown(p.pos, p.act.Code)
		r.consumeOneShot(p.pos)
		for _, ev := range earlier {
			r.handle(ev)
		}
		r.emit(Effect{Kind: EffectKeyUp, Code: p.act.Code, Position: p.pos})
		if shot := r.oneShot; shot != nil && shot.consumed && shot.consumer == p.pos {
			r.releaseOneShot()
		}
	case action.KindTapToggle:
		r.toggle(p.act.Layer)
		for _, ev := range earlier {
			r.handle(ev)
		}
	}
}

func (r *Resolver) resolveHold() {
	p := r.pending
	r.pending = nil
	r.logger.Debug("hold", zap.Stringer("pos", p.pos), zap.Stringer("action", p.act))

	rec := record{act: p.act}
	if p.act.Kind == action.KindTapHoldLayer {
		rec.handle, rec.hasHandle = r.push(p.act.Layer)
	} else {
		// A held TapToggle does nothing, including on release.
		rec.act = action.No()
	}
	r.held[p.pos] = rec
}

func (r *Resolver) armOneShot(n uint8) {
	if r.oneShot != nil {
		r.releaseOneShot()
	}
	h, ok := r.push(n)
	if !ok {
		return
	}
	r.oneShot = &oneShot{layer: n, handle: h, at: r.now}
}

func (r *Resolver) consumeOneShot(pos key.Position) {
	if shot := r.oneShot; shot != nil && !shot.consumed {
		shot.consumed = true
		shot.consumer = pos
	}
}

func (r *Resolver) releaseOneShot() {
	shot := r.oneShot
	r.oneShot = nil
	r.stack.Pop(shot.handle)
}

func (r *Resolver) playMacro(pos key.Position, id uint8) {
	if r.macros == nil {
		return
	}
	m, ok := r.macros.Get(id)
	if !ok {
		r.logger.Warn("undefined macro", zap.Uint8("id", id))
		return
	}
	for _, s := range m.Steps {
		if !s.Mods.IsEmpty() {
			r.emit(Effect{Kind: EffectModsDown, Mods: s.Mods, Position: pos})
		}
		r.emit(Effect{Kind: EffectKeyDown, Code: s.Code, Position: pos})
		r.emit(Effect{Kind: EffectKeyUp, Code: s.Code, Position: pos})
		if !s.Mods.IsEmpty() {
			r.emit(Effect{Kind: EffectModsUp, Mods: s.Mods, Position: pos})
		}
	}
}
