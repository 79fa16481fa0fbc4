package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/keyfirm/internal/app"
	"github.com/dshills/keyfirm/internal/config"
	"github.com/dshills/keyfirm/internal/input/key"
	"github.com/dshills/keyfirm/internal/logging"
	"github.com/dshills/keyfirm/internal/matrix"
	"github.com/dshills/keyfirm/internal/matrix/sim"
	"github.com/dshills/keyfirm/internal/matrix/terminal"
	"github.com/dshills/keyfirm/internal/metrics"
	"github.com/dshills/keyfirm/internal/report"
	"github.com/dshills/keyfirm/internal/storage"
	"github.com/dshills/keyfirm/internal/transport"
)

type simOptions struct {
	ble      bool
	churn    time.Duration
	headless bool
	logFile  string
}

func newSimCmd(opts *options) *cobra.Command {
	so := &simOptions{}
	cmd := &cobra.Command{
		Use:   "sim [config]",
		Short: "Run the firmware against a simulated board",
		Long: `Run the full pipeline against a virtual switch matrix.

In the terminal UI each host key strikes one switch (1-0, q-p, a-;, z-/).
Shifted keys latch a switch closed until struck again. Reports go to the
log; use --log-file to keep them while the UI owns the screen.

With --ble the link is a simulated BLE peripheral that a central connects
to and drops every --churn interval.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configArg(opts, args)
			return runSim(cmd.Context(), opts, so)
		},
	}
	cmd.Flags().BoolVar(&so.ble, "ble", false, "use the BLE transport")
	cmd.Flags().DurationVar(&so.churn, "churn", 30*time.Second, "BLE connection lifetime")
	cmd.Flags().BoolVar(&so.headless, "headless", false, "run without the terminal UI")
	cmd.Flags().StringVar(&so.logFile, "log-file", "", "write logs here instead of stderr")
	return cmd
}

func runSim(ctx context.Context, opts *options, so *simOptions) error {
	cfg, built, err := load(ctx, opts)
	if err != nil {
		return err
	}
	if so.ble {
		cfg.Transport.Mode = "ble"
	}
	mode, err := transport.ParseMode(cfg.Transport.Mode)
	if err != nil {
		return err
	}
	dir, err := matrix.ParseDirection(cfg.Matrix.Direction)
	if err != nil {
		return err
	}
	board := sim.NewBoard(cfg.Matrix.Rows, cfg.Matrix.Cols, dir)

	logOut, closeLog, err := logOutput(so)
	if err != nil {
		return err
	}
	defer closeLog()

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: logOut})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Metrics.Listen, reg, logger.Named("metrics"))
		})
	}

	store, err := storage.Open(ctx, storage.Options{
		Backend:   cfg.Storage.Backend,
		Path:      cfg.Storage.Path,
		FlashSize: cfg.Storage.FlashSize,
	})
	if err != nil {
		return err
	}

	kb, err := app.New(ctx, cfg, built, board.Matrix(),
		app.WithLogger(logger.Logger),
		app.WithMetrics(m),
		app.WithStore(store),
	)
	if err != nil {
		return err
	}
	defer func() { _ = kb.Close() }()

	if stopWatch, err := kb.WatchConfig(ctx, opts.configPath); err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	} else {
		defer stopWatch()
	}

	var host transport.ReportWriter = transport.NewLogWriter(logger.Named("host"))
	if !so.headless {
		term, err := terminal.New(board, baseLabels(built))
		if err != nil {
			return err
		}
		if err := term.Init(); err != nil {
			return err
		}
		defer term.Shutdown()

		host = &statusWriter{next: host, term: term, kb: kb}
		term.SetStatus("%s over %s", kb.Snapshot().Connection, mode)
		g.Go(func() error {
			defer cancel()
			return term.Run(ctx)
		})
	}

	h := app.Host{Mode: mode}
	switch mode {
	case transport.ModeBLE:
		radio := transport.NewSimPeripheral(host)
		h.Peripheral = radio
		g.Go(func() error {
			radio.Churn(ctx, clockwork.NewRealClock(), so.churn)
			return nil
		})
	default:
		h.Writer = host
	}

	g.Go(func() error { return kb.Run(ctx, h) })
	return g.Wait()
}

func logOutput(so *simOptions) (io.Writer, func(), error) {
	switch {
	case so.logFile != "":
		f, err := os.OpenFile(so.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	case so.headless:
		return os.Stderr, func() {}, nil
	default:
		// The terminal UI owns the screen.
		return io.Discard, func() {}, nil
	}
}

func baseLabels(built *config.Built) [][]string {
	dims := built.Layout.Dimensions()
	labels := make([][]string, dims.Rows)
	for r := range labels {
		labels[r] = make([]string, dims.Cols)
		for c := range labels[r] {
			labels[r][c] = built.Layout.At(0, key.Pos(uint8(r), uint8(c))).String()
		}
	}
	return labels
}

// statusWriter shows each report on the terminal status line before
// passing it on.
type statusWriter struct {
	next transport.ReportWriter
	term *terminal.Terminal
	kb   *app.Keyboard
}

func (w *statusWriter) WriteReport(ctx context.Context, r report.Report) error {
	snap := w.kb.Snapshot()
	w.term.SetStatus("%s  layers %v  %s", snap.Connection, snap.Layers, r)
	return w.next.WriteReport(ctx, r)
}
