// Package metrics implements the observability hook: per-flow and
// per-channel counters for records_in, records_dropped, records_written,
// retries, and permanent_drops, backed by
// github.com/prometheus/client_golang. Transport (whether anything
// scrapes these) is delegated to the caller — Serve only starts a
// listener when explicitly asked to.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// readCounter extracts the current value out of a prometheus.Counter
// without scraping HTTP, used by tests that assert on counter values
// directly.
func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Metrics owns the counter vectors for one process. The zero value is
// not usable; construct with New.
type Metrics struct {
	registry *prometheus.Registry

	recordsIn      *prometheus.CounterVec
	recordsDropped *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
	retries        *prometheus.CounterVec
	permanentDrops *prometheus.CounterVec
}

// New constructs a fresh counter set registered against its own
// registry, so multiple Metrics instances (e.g. one per test) never
// collide on prometheus's global default registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		recordsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflow_records_in_total",
			Help: "Records read from an input driver, per flow.",
		}, []string{"flow"}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflow_records_dropped_total",
			Help: "Records dropped by a filter or by a parse or format failure, per flow and stage.",
		}, []string{"flow", "stage"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflow_records_written_total",
			Help: "Records successfully written to an output, per flow.",
		}, []string{"flow"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflow_channel_retries_total",
			Help: "Messages requeued for redelivery, per channel.",
		}, []string{"channel"}),
		permanentDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logflow_channel_permanent_drops_total",
			Help: "Messages dropped after exhausting their retry limit, per channel.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.recordsIn, m.recordsDropped, m.recordsWritten, m.retries, m.permanentDrops)
	return m
}

// RecordIn increments the records_in counter for flow.
func (m *Metrics) RecordIn(flow string) { m.recordsIn.WithLabelValues(flow).Inc() }

// RecordDropped increments the records_dropped counter for flow/stage.
func (m *Metrics) RecordDropped(flow, stage string) {
	m.recordsDropped.WithLabelValues(flow, stage).Inc()
}

// RecordWritten increments the records_written counter for flow.
func (m *Metrics) RecordWritten(flow string) { m.recordsWritten.WithLabelValues(flow).Inc() }

// Retry increments the retries counter for channel.
func (m *Metrics) Retry(channel string) { m.retries.WithLabelValues(channel).Inc() }

// PermanentDrop increments the permanent_drops counter for channel.
func (m *Metrics) PermanentDrop(channel string) { m.permanentDrops.WithLabelValues(channel).Inc() }

// RetriesValue returns the current retries count for channel.
func (m *Metrics) RetriesValue(channel string) float64 {
	return readCounter(m.retries.WithLabelValues(channel))
}

// PermanentDropsValue returns the current permanent_drops count for channel.
func (m *Metrics) PermanentDropsValue(channel string) float64 {
	return readCounter(m.permanentDrops.WithLabelValues(channel))
}

// DroppedValue returns the current records_dropped count for flow/stage.
func (m *Metrics) DroppedValue(flow, stage string) float64 {
	return readCounter(m.recordsDropped.WithLabelValues(flow, stage))
}

// WrittenValue returns the current records_written count for flow.
func (m *Metrics) WrittenValue(flow string) float64 {
	return readCounter(m.recordsWritten.WithLabelValues(flow))
}

// Handler returns the /metrics http.Handler, for embedders that want to
// register it on a multiplexer they already own instead of letting Serve
// spawn a dedicated listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics at addr until ctx is
// cancelled. Only called when settings.metrics_addr is configured; the
// core never requires a network listener to function.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
