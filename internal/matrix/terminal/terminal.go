// Package terminal drives a simulated board from a tcell screen.
//
// Terminals report key presses but not releases, so a key stroke closes
// the switch for a short hold and then opens it again. The shifted form
// of a key latches its switch closed until the key is struck again, which
// is how holds, layer keys and chords are exercised.
package terminal

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"

	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/matrix/sim"
)

// DefaultHold is how long a struck key stays closed.
const DefaultHold = 60 * time.Millisecond

// rows maps the host keyboard onto matrix positions.
var rows = []string{
	"1234567890",
	"qwertyuiop",
	"asdfghjkl;",
	"zxcvbnm,./",
}

var shifted = map[rune]rune{
	'!': '1', '@': '2', '#': '3', '$': '4', '%': '5',
	'^': '6', '&': '7', '*': '8', '(': '9', ')': '0',
	':': ';', '<': ',', '>': '.', '?': '/',
}

// Position returns the matrix position for a host key and whether the key
// was shifted.
func Position(r rune) (key.Position, bool, bool) {
	shift := false
	if base, ok := shifted[r]; ok {
		r, shift = base, true
	} else if unicode.IsUpper(r) {
		r, shift = unicode.ToLower(r), true
	}
	for row, line := range rows {
		for col, c := range line {
			if c == r {
				return key.Pos(uint8(row), uint8(col)), shift, true
			}
		}
	}
	return key.Position{}, false, false
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithScreen uses s instead of the process terminal.
func WithScreen(s tcell.Screen) Option {
	return func(t *Terminal) { t.screen = s }
}

// WithClock sets the clock timing key holds.
func WithClock(c clockwork.Clock) Option {
	return func(t *Terminal) { t.clock = c }
}

// WithHold sets how long a struck key stays closed.
func WithHold(d time.Duration) Option {
	return func(t *Terminal) { t.hold = d }
}

// Terminal renders the board and feeds it host key strokes.
type Terminal struct {
	screen tcell.Screen
	board  *sim.Board
	clock  clockwork.Clock
	hold   time.Duration
	labels [][]string

	mu      sync.Mutex
	latched map[key.Position]bool
	timers  map[key.Position]clockwork.Timer
	status  string
}

// New creates a terminal for board. labels holds the base layer names by
// row and column.
func New(board *sim.Board, labels [][]string, opts ...Option) (*Terminal, error) {
	t := &Terminal{
		board:   board,
		clock:   clockwork.NewRealClock(),
		hold:    DefaultHold,
		labels:  labels,
		latched: make(map[key.Position]bool),
		timers:  make(map[key.Position]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("open terminal: %w", err)
		}
		t.screen = screen
	}
	return t, nil
}

// Init takes over the terminal.
func (t *Terminal) Init() error {
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.HideCursor()
	t.draw()
	return nil
}

// Shutdown restores the terminal and opens every switch.
func (t *Terminal) Shutdown() {
	t.mu.Lock()
	for pos, timer := range t.timers {
		timer.Stop()
		delete(t.timers, pos)
	}
	t.mu.Unlock()
	t.screen.Fini()
}

// SetStatus replaces the status line.
func (t *Terminal) SetStatus(format string, args ...any) {
	t.mu.Lock()
	t.status = fmt.Sprintf(format, args...)
	t.mu.Unlock()
	t.draw()
}

// Run handles key strokes until Escape or Ctrl-C is pressed or ctx ends.
func (t *Terminal) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	for {
		switch ev := t.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return nil
			}
		case *tcell.EventResize:
			t.screen.Sync()
			t.draw()
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				return nil
			case tcell.KeyRune:
				t.strike(ev.Rune())
			}
		}
	}
}

func (t *Terminal) strike(r rune) {
	pos, shift, ok := Position(r)
	if !ok {
		return
	}

	t.mu.Lock()
	switch {
	case t.latched[pos]:
		delete(t.latched, pos)
		t.board.Release(pos)
	case shift:
		t.stopTimer(pos)
		t.latched[pos] = true
		t.board.Press(pos)
	default:
		t.stopTimer(pos)
		t.board.Press(pos)
		t.timers[pos] = t.clock.AfterFunc(t.hold, func() { t.expire(pos) })
	}
	t.mu.Unlock()
	t.draw()
}

// stopTimer cancels a pending release. Callers hold mu.
func (t *Terminal) stopTimer(pos key.Position) {
	if timer, ok := t.timers[pos]; ok {
		timer.Stop()
		delete(t.timers, pos)
	}
}

func (t *Terminal) expire(pos key.Position) {
	t.mu.Lock()
	if _, ok := t.timers[pos]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, pos)
	t.board.Release(pos)
	t.mu.Unlock()
	t.draw()
}

// Latched returns whether the switch at pos is latched closed.
func (t *Terminal) Latched(pos key.Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latched[pos]
}

const cellWidth = 8

func (t *Terminal) draw() {
	t.mu.Lock()
	status := t.status
	t.mu.Unlock()

	t.screen.Clear()
	normal := tcell.StyleDefault
	pressed := normal.Reverse(true)
	latched := normal.Reverse(true).Bold(true)

	for r, row := range t.labels {
		for c, label := range row {
			pos := key.Pos(uint8(r), uint8(c))
			style := normal
			switch {
			case t.Latched(pos):
				style = latched
			case t.board.IsPressed(pos):
				style = pressed
			}
			text := label
			if hint := hostKey(pos); hint != 0 {
				text = fmt.Sprintf("%c:%s", hint, label)
			}
			t.print(c*cellWidth, r*2, cellWidth-1, text, style)
		}
	}
	t.print(0, len(t.labels)*2+1, 0, status, normal)
	t.print(0, len(t.labels)*2+2, 0, "shift latches  esc quits", normal.Dim(true))
	t.screen.Show()
}

func (t *Terminal) print(x, y, width int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		if width > 0 && i >= width {
			break
		}
		t.screen.SetContent(x+i, y, r, nil, style)
	}
}

func hostKey(pos key.Position) rune {
	if int(pos.Row) >= len(rows) {
		return 0
	}
	line := []rune(rows[pos.Row])
	if int(pos.Col) >= len(line) {
		return 0
	}
	return line[pos.Col]
}
