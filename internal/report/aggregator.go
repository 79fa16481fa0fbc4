package report

import (
	"time"

	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/input/resolver"
	"github.com/dshills/keyfirm/internal/metrics"
)

// DefaultMouseStep is the cursor distance per mouse report while a mouse
// motion key is held.
const DefaultMouseStep = 8

// Aggregator accumulates effects into report state. It is owned by the scan
// task and is not safe for concurrent use.
type Aggregator struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	seq uint64

	// slots keep their position while held; a release empties its slot and
	// the next press fills the first empty one.
	slots     [Slots]key.Code
	keyCount  map[key.Code]int
	dropped   map[droppedKey]int
	modCount  [8]int
	modifiers key.Modifier

	consumerCode key.Code
	consumer     uint16
	systemCode   key.Code
	system       uint8

	mouseHeld map[key.Code]int
	mouseStep int8
	mouse     MouseReport
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// WithMetrics sets the metrics sink for rollover drops.
func WithMetrics(m *metrics.Metrics) AggregatorOption {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithMouseStep sets the cursor distance per report.
func WithMouseStep(step int8) AggregatorOption {
	return func(a *Aggregator) {
		if step > 0 {
			a.mouseStep = step
		}
	}
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		logger:    zap.NewNop(),
		keyCount:  make(map[key.Code]int),
		dropped:   make(map[droppedKey]int),
		mouseHeld: make(map[key.Code]int),
		mouseStep: DefaultMouseStep,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply folds one effect into the report state and returns the messages for
// every observable change, in order. Effects that change nothing the host
// can see return no messages.
func (a *Aggregator) Apply(e resolver.Effect) []Message {
	switch e.Kind {
	case resolver.EffectKeyDown:
		return a.keyDown(e.Code, e.Position, e.At)
	case resolver.EffectKeyUp:
		return a.keyUp(e.Code, e.Position, e.At)
	case resolver.EffectModsDown:
		return a.modsDown(e.Mods, e.At)
	case resolver.EffectModsUp:
		return a.modsUp(e.Mods, e.At)
	case resolver.EffectLayers:
		return []Message{a.message(ChangeLayers, key.CodeNone, Report{}, e.At, e.Layers)}
	}
	return nil
}

// ApplyAll applies effects in order and concatenates their messages.
func (a *Aggregator) ApplyAll(effects []resolver.Effect) []Message {
	var out []Message
	for _, e := range effects {
		out = append(out, a.Apply(e)...)
	}
	return out
}

// Keyboard returns the current keyboard report.
func (a *Aggregator) Keyboard() KeyboardReport {
	return KeyboardReport{Modifier: a.modifiers, Keycodes: a.slots}
}

// Empty returns true if nothing is held.
func (a *Aggregator) Empty() bool {
	return len(a.keyCount) == 0 && a.modifiers == key.ModNone &&
		a.consumer == 0 && a.system == 0 && len(a.mouseHeld) == 0
}

// Reset clears all state. If anything was held, it returns the release
// messages that bring the host back to an empty state.
func (a *Aggregator) Reset(at time.Time) []Message {
	var out []Message
	if len(a.keyCount) > 0 || a.modifiers != key.ModNone {
		a.slots = [Slots]key.Code{}
		a.modifiers = key.ModNone
		out = append(out, a.message(ChangeKeyRemove, key.CodeNone, a.keyboardReport(), at, nil))
	}
	if a.consumer != 0 {
		a.consumer = 0
		out = append(out, a.message(ChangeConsumer, key.CodeNone, a.consumerReport(), at, nil))
	}
	if a.system != 0 {
		a.system = 0
		out = append(out, a.message(ChangeSystem, key.CodeNone, a.systemReport(), at, nil))
	}
	if len(a.mouseHeld) > 0 {
		clear(a.mouseHeld)
		a.mouse = MouseReport{}
		out = append(out, a.message(ChangeMouse, key.CodeNone, a.mouseReport(), at, nil))
	}

	a.slots = [Slots]key.Code{}
	clear(a.keyCount)
	clear(a.dropped)
	a.modCount = [8]int{}
	a.modifiers = key.ModNone
	a.consumerCode, a.systemCode = key.CodeNone, key.CodeNone
	return out
}

func (a *Aggregator) message(c Change, code key.Code, r Report, at time.Time, layers []uint8) Message {
	a.seq++
	return Message{Seq: a.seq, Change: c, Code: code, Report: r, At: at, Layers: layers}
}

func (a *Aggregator) keyboardReport() Report {
	return Report{Kind: KindKeyboard, Keyboard: a.Keyboard()}
}

func (a *Aggregator) consumerReport() Report {
	return Report{Kind: KindConsumer, Consumer: ConsumerReport{Usage: a.consumer}}
}

func (a *Aggregator) systemReport() Report {
	return Report{Kind: KindSystem, System: SystemReport{Usage: a.system}}
}

func (a *Aggregator) mouseReport() Report {
	return Report{Kind: KindMouse, Mouse: a.mouse}
}

// droppedKey identifies a rollover drop by the position that pressed it, so
// only that position's release is swallowed.
type droppedKey struct {
	code key.Code
	pos  key.Position
}

func (a *Aggregator) keyDown(c key.Code, pos key.Position, at time.Time) []Message {
	switch c.Class() {
	case key.ClassModifier:
		return a.modsDown(c.Modifier(), at)
	case key.ClassKeyboard:
		if a.keyCount[c] > 0 {
			a.keyCount[c]++
			return nil
		}
		slot := -1
		for i, s := range a.slots {
			if s == key.CodeNone {
				slot = i
				break
			}
		}
		if slot < 0 {
			a.dropped[droppedKey{c, pos}]++
			a.metrics.RecordRolloverDrop()
			a.logger.Debug("rollover drop", zap.Stringer("code", c))
			return nil
		}
		a.slots[slot] = c
		a.keyCount[c] = 1
		return []Message{a.message(ChangeKeyAdd, c, a.keyboardReport(), at, nil)}
	case key.ClassConsumer:
		usage, _ := c.ConsumerUsage()
		a.consumerCode, a.consumer = c, usage
		return []Message{a.message(ChangeConsumer, c, a.consumerReport(), at, nil)}
	case key.ClassSystem:
		usage, _ := c.SystemUsage()
		a.systemCode, a.system = c, usage
		return []Message{a.message(ChangeSystem, c, a.systemReport(), at, nil)}
	case key.ClassMouse:
		a.mouseHeld[c]++
		a.updateMouse()
		return []Message{a.message(ChangeMouse, c, a.mouseReport(), at, nil)}
	}
	return nil
}

func (a *Aggregator) keyUp(c key.Code, pos key.Position, at time.Time) []Message {
	switch c.Class() {
	case key.ClassModifier:
		return a.modsUp(c.Modifier(), at)
	case key.ClassKeyboard:
		if dk := (droppedKey{c, pos}); a.dropped[dk] > 0 {
			a.dropped[dk]--
			if a.dropped[dk] == 0 {
				delete(a.dropped, dk)
			}
			return nil
		}
		n := a.keyCount[c]
		if n == 0 {
			return nil
		}
		if n > 1 {
			a.keyCount[c] = n - 1
			return nil
		}
		delete(a.keyCount, c)
		for i, s := range a.slots {
			if s == c {
				a.slots[i] = key.CodeNone
			}
		}
		return []Message{a.message(ChangeKeyRemove, c, a.keyboardReport(), at, nil)}
	case key.ClassConsumer:
		if a.consumerCode != c {
			return nil
		}
		a.consumerCode, a.consumer = key.CodeNone, 0
		return []Message{a.message(ChangeConsumer, c, a.consumerReport(), at, nil)}
	case key.ClassSystem:
		if a.systemCode != c {
			return nil
		}
		a.systemCode, a.system = key.CodeNone, 0
		return []Message{a.message(ChangeSystem, c, a.systemReport(), at, nil)}
	case key.ClassMouse:
		if a.mouseHeld[c] == 0 {
			return nil
		}
		a.mouseHeld[c]--
		if a.mouseHeld[c] == 0 {
			delete(a.mouseHeld, c)
		}
		a.updateMouse()
		return []Message{a.message(ChangeMouse, c, a.mouseReport(), at, nil)}
	}
	return nil
}

func (a *Aggregator) modsDown(m key.Modifier, at time.Time) []Message {
	for i := 0; i < 8; i++ {
		if m&(1<<i) != 0 {
			a.modCount[i]++
		}
	}
	return a.syncModifiers(at)
}

func (a *Aggregator) modsUp(m key.Modifier, at time.Time) []Message {
	for i := 0; i < 8; i++ {
		if m&(1<<i) != 0 && a.modCount[i] > 0 {
			a.modCount[i]--
		}
	}
	return a.syncModifiers(at)
}

// syncModifiers recomputes the modifier byte from the holder counts.
func (a *Aggregator) syncModifiers(at time.Time) []Message {
	var m key.Modifier
	for i, n := range a.modCount {
		if n > 0 {
			m |= 1 << i
		}
	}
	if m == a.modifiers {
		return nil
	}
	a.modifiers = m
	return []Message{a.message(ChangeModifiers, key.CodeNone, a.keyboardReport(), at, nil)}
}

func (a *Aggregator) updateMouse() {
	held := func(c key.Code) bool { return a.mouseHeld[c] > 0 }
	axis := func(neg, pos key.Code, step int8) int8 {
		var v int8
		if held(neg) {
			v -= step
		}
		if held(pos) {
			v += step
		}
		return v
	}

	var buttons uint8
	for i := 0; i < 8; i++ {
		if held(key.CodeMouseBtn1 + key.Code(i)) {
			buttons |= 1 << i
		}
	}
	a.mouse = MouseReport{
		Buttons: buttons,
		X:       axis(key.CodeMouseLeft, key.CodeMouseRight, a.mouseStep),
		Y:       axis(key.CodeMouseUp, key.CodeMouseDown, a.mouseStep),
		Wheel:   axis(key.CodeMouseWheelDown, key.CodeMouseWheelUp, 1),
		Pan:     axis(key.CodeMouseWheelLeft, key.CodeMouseWheelRight, 1),
	}
}
