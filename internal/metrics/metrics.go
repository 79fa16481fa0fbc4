// Package metrics exposes the keyboard pipeline's Prometheus metrics.
//
// Every method is safe to call on a nil *Metrics, so components can be
// built without metrics in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "keyfirm"

// Metrics holds the pipeline collectors.
type Metrics struct {
	DebounceEdges   *prometheus.CounterVec
	ScanFaults      prometheus.Counter
	ScanDuration    prometheus.Histogram
	Actions         *prometheus.CounterVec
	RolloverDrops   prometheus.Counter
	ReportsSent     *prometheus.CounterVec
	WriteErrors     *prometheus.CounterVec
	ChannelDepth    prometheus.Gauge
	ConnectionState prometheus.Gauge
	BLESessions     prometheus.Counter
	Remaps          *prometheus.CounterVec
	StorageFaults   prometheus.Counter
	StorageDegraded prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DebounceEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_edges_total",
			Help:      "Stable edges emitted by the debouncer, by edge.",
		}, []string{"edge"}),
		ScanFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_faults_total",
			Help:      "Pin read or drive errors during matrix scans.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one full matrix scan and resolve pass.",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_total",
			Help:      "Resolved effects, by kind.",
		}, []string{"kind"}),
		RolloverDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollover_drops_total",
			Help:      "Key presses dropped because all six report slots were full.",
		}),
		ReportsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_sent_total",
			Help:      "HID reports written to the host, by transport and report kind.",
		}, []string{"transport", "kind"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_write_errors_total",
			Help:      "Failed report writes, by transport.",
		}, []string{"transport"}),
		ChannelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_channel_depth",
			Help:      "Messages queued between the resolver and the transport.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Transport connection state (0=disconnected, 1=advertising, 2=connected).",
		}),
		BLESessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ble_sessions_total",
			Help:      "BLE sessions established.",
		}),
		Remaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remaps_total",
			Help:      "Remap commands, by result.",
		}, []string{"result"}),
		StorageFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_faults_total",
			Help:      "Persistent store I/O faults.",
		}),
		StorageDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_degraded",
			Help:      "1 if the persistent store fell back to in-memory operation.",
		}),
	}

	reg.MustRegister(
		m.DebounceEdges, m.ScanFaults, m.ScanDuration, m.Actions,
		m.RolloverDrops, m.ReportsSent, m.WriteErrors, m.ChannelDepth,
		m.ConnectionState, m.BLESessions, m.Remaps, m.StorageFaults,
		m.StorageDegraded,
	)
	return m
}

// NewRegistry returns a registry with the Go and process collectors
// installed, as used by the keyfirm binary.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// RecordEdge counts a debounced edge.
func (m *Metrics) RecordEdge(edge string) {
	if m == nil {
		return
	}
	m.DebounceEdges.WithLabelValues(edge).Inc()
}

// RecordScanFault counts a pin fault.
func (m *Metrics) RecordScanFault() {
	if m == nil {
		return
	}
	m.ScanFaults.Inc()
}

// ObserveScan records the duration of one scan pass.
func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(d.Seconds())
}

// RecordEffect counts a resolved effect.
func (m *Metrics) RecordEffect(kind string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(kind).Inc()
}

// RecordRolloverDrop counts a key dropped by the rollover limit.
func (m *Metrics) RecordRolloverDrop() {
	if m == nil {
		return
	}
	m.RolloverDrops.Inc()
}

// RecordReport counts a report written to the host.
func (m *Metrics) RecordReport(transport, kind string) {
	if m == nil {
		return
	}
	m.ReportsSent.WithLabelValues(transport, kind).Inc()
}

// RecordWriteError counts a failed report write.
func (m *Metrics) RecordWriteError(transport string) {
	if m == nil {
		return
	}
	m.WriteErrors.WithLabelValues(transport).Inc()
}

// SetChannelDepth records the report channel length.
func (m *Metrics) SetChannelDepth(n int) {
	if m == nil {
		return
	}
	m.ChannelDepth.Set(float64(n))
}

// SetConnectionState records the transport connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

// RecordBLESession counts an established BLE session.
func (m *Metrics) RecordBLESession() {
	if m == nil {
		return
	}
	m.BLESessions.Inc()
}

// RecordRemap counts a remap command by result ("ok" or "error").
func (m *Metrics) RecordRemap(result string) {
	if m == nil {
		return
	}
	m.Remaps.WithLabelValues(result).Inc()
}

// RecordStorageFault counts a persistent store fault.
func (m *Metrics) RecordStorageFault() {
	if m == nil {
		return
	}
	m.StorageFaults.Inc()
}

// SetStorageDegraded records whether the store fell back to no-op.
func (m *Metrics) SetStorageDegraded(degraded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if degraded {
		v = 1
	}
	m.StorageDegraded.Set(v)
}

// Serve exposes reg on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
