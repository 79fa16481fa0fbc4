package terminal

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/matrix"
	"github.com/dshills/keyfirm/internal/matrix/sim"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		in    rune
		pos   key.Position
		shift bool
		ok    bool
	}{
		{'1', key.Pos(0, 0), false, true},
		{'q', key.Pos(1, 0), false, true},
		{'Q', key.Pos(1, 0), true, true},
		{';', key.Pos(2, 9), false, true},
		{':', key.Pos(2, 9), true, true},
		{'!', key.Pos(0, 0), true, true},
		{'~', key.Position{}, false, false},
	}
	for _, tt := range tests {
		pos, shift, ok := Position(tt.in)
		assert.Equal(t, tt.ok, ok, "%q", tt.in)
		assert.Equal(t, tt.pos, pos, "%q", tt.in)
		assert.Equal(t, tt.shift, shift, "%q", tt.in)
	}
}

func newTerminal(t *testing.T) (*Terminal, *sim.Board, tcell.SimulationScreen, *clockwork.FakeClock) {
	t.Helper()
	board := sim.NewBoard(2, 2, matrix.Col2Row)
	screen := tcell.NewSimulationScreen("")
	clock := clockwork.NewFakeClock()
	term, err := New(board, [][]string{{"A", "MO(1)"}, {"B", "C"}},
		WithScreen(screen), WithClock(clock), WithHold(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, term.Init())
	t.Cleanup(term.Shutdown)
	return term, board, screen, clock
}

func TestStrikeReleasesAfterHold(t *testing.T) {
	term, board, _, clock := newTerminal(t)

	term.strike('q')
	assert.True(t, board.IsPressed(key.Pos(1, 0)))

	clock.Advance(10 * time.Millisecond)
	assert.Eventually(t, func() bool { return !board.IsPressed(key.Pos(1, 0)) }, time.Second, time.Millisecond)
}

func TestShiftLatches(t *testing.T) {
	term, board, _, _ := newTerminal(t)
	pos := key.Pos(0, 1)

	term.strike('@')
	assert.True(t, term.Latched(pos))
	assert.True(t, board.IsPressed(pos))

	term.strike('2')
	assert.False(t, term.Latched(pos))
	assert.False(t, board.IsPressed(pos))
}

func TestRunQuitsOnEscape(t *testing.T) {
	_, board, screen, clock := newTerminal(t)
	term, err := New(board, nil, WithScreen(screen), WithClock(clock))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- term.Run(context.Background()) }()

	screen.InjectKey(tcell.KeyRune, 'a', tcell.ModNone)
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	term, _, _, _ := newTerminal(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
