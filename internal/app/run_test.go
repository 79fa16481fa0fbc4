package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keyfirm/internal/config"
	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/matrix"
	"github.com/dshills/keyfirm/internal/matrix/sim"
	"github.com/dshills/keyfirm/internal/metrics"
	"github.com/dshills/keyfirm/internal/report"
	"github.com/dshills/keyfirm/internal/transport"
)

const eventually = 2 * time.Second

func runInBackground(t *testing.T, k *Keyboard, host Host) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx, host) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(eventually):
			t.Error("Run did not return after cancel")
		}
	})
}

func hasKey(reports []report.Report, c key.Code) bool {
	for _, r := range reports {
		if r.Kind != report.KindKeyboard {
			continue
		}
		for _, p := range r.Keyboard.Pressed() {
			if p == c {
				return true
			}
		}
	}
	return false
}

func TestRunUSB(t *testing.T) {
	cfg := testConfig(scenario)
	cfg.Matrix.IdleTicks = 5
	board := sim.NewBoard(2, 2, matrix.Col2Row)
	k := newKeyboard(t, cfg, board)
	host := transport.NewRecorder()

	runInBackground(t, k, Host{Mode: transport.ModeUSB, Writer: host})
	require.Eventually(t, func() bool { return k.dispatcher.State() == transport.Connected }, eventually, time.Millisecond)

	// Give the scanner time to go idle and wait for an edge.
	time.Sleep(20 * time.Millisecond)

	board.Press(key.Pos(0, 0))
	require.Eventually(t, func() bool { return hasKey(host.Reports(), key.CodeA) }, eventually, time.Millisecond)
	board.Release(key.Pos(0, 0))
	require.Eventually(t, func() bool { return host.Len() >= 2 }, eventually, time.Millisecond)
	assert.Empty(t, host.Reports()[host.Len()-1].Keyboard.Pressed())
}

// A BLE disconnect drops the pending tap-hold: after reconnecting, letting
// go of the tap-hold key types nothing.
func TestBLEDisconnectDiscardsPendingTapHold(t *testing.T) {
	cfg := testConfig(scenario)
	cfg.Behavior.TapHoldTimeout = config.Duration(time.Hour)
	board := sim.NewBoard(2, 2, matrix.Col2Row)
	m := metrics.New(prometheus.NewRegistry())
	k := newKeyboard(t, cfg, board, WithMetrics(m))

	host := transport.NewRecorder()
	radio := transport.NewSimPeripheral(host)
	runInBackground(t, k, Host{Mode: transport.ModeBLE, Peripheral: radio})

	edges := func(edge string) float64 {
		return testutil.ToFloat64(m.DebounceEdges.WithLabelValues(edge))
	}
	connected := func() bool { return k.dispatcher.State() == transport.Connected }

	first := radio.Connect()
	require.Eventually(t, connected, eventually, time.Millisecond)

	board.Press(key.Pos(1, 0))
	require.Eventually(t, func() bool { return edges("pressed") == 1 }, eventually, time.Millisecond)

	first.Disconnect()
	require.Eventually(t, func() bool { return k.dispatcher.State() == transport.Advertising }, eventually, time.Millisecond)

	radio.Connect()
	require.Eventually(t, connected, eventually, time.Millisecond)

	board.Release(key.Pos(1, 0))
	require.Eventually(t, func() bool { return edges("released") == 1 }, eventually, time.Millisecond)
	board.Press(key.Pos(1, 1))
	require.Eventually(t, func() bool { return hasKey(host.Reports(), key.CodeC) }, eventually, time.Millisecond)

	assert.False(t, hasKey(host.Reports(), key.CodeSpace), "pending tap-hold leaked into the next session")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BLESessions))
}
