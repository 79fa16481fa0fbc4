package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/keyfirm/internal/report"
)

// LogWriter writes reports to a logger. The simulator uses it as its host.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a writer logging at info level.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

// WriteReport implements ReportWriter.
func (w *LogWriter) WriteReport(_ context.Context, r report.Report) error {
	w.logger.Info("report",
		zap.Stringer("kind", r.Kind),
		zap.Binary("bytes", r.Bytes()),
	)
	return nil
}

// Recorder keeps every report written to it. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	reports []report.Report
	notify  chan struct{}
	err     error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// WriteReport implements ReportWriter.
func (r *Recorder) WriteReport(_ context.Context, rep report.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reports = append(r.reports, rep)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// FailWith makes subsequent writes return err; nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []report.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report.Report(nil), r.reports...)
}

// Len returns the number of recorded reports.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

// Written is signalled after writes. Several writes may share one signal.
func (r *Recorder) Written() <-chan struct{} {
	return r.notify
}
