// Package service is logflow's embedding API: a fluent
// builder-then-build surface for constructing a pipeline
// programmatically (as an alternative, or a supplement, to the
// `logflow` CLI and its INI file), plus an Environment for registering
// custom components without reaching into the internal registries
// directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/component/filter"
	"github.com/arrowstream/logflow/internal/component/format"
	"github.com/arrowstream/logflow/internal/component/input"
	"github.com/arrowstream/logflow/internal/component/output"
	"github.com/arrowstream/logflow/internal/component/parser"
	"github.com/arrowstream/logflow/internal/component/tracer"
	"github.com/arrowstream/logflow/internal/config"
	"github.com/arrowstream/logflow/internal/logx"
	"github.com/arrowstream/logflow/internal/metrics"
	"github.com/arrowstream/logflow/internal/supervisor"
)

// StreamBuilder accumulates flows, channels, and settings from one or
// more INI snippets or files, plus embedder-level overrides (logger,
// tracer, HTTP mux for metrics), and produces a runnable Stream.
//
// Streams built with a StreamBuilder never start an HTTP listener
// unless asked to; an embedder that wants /metrics served must either
// set settings.metrics_addr in its configuration or call SetHTTPMux.
type StreamBuilder struct {
	flows    []config.FlowConfig
	channels map[string]config.ChannelConfig
	settings map[string]string

	logger     *slog.Logger
	tracerConf tracer.Config
	httpMux    HTTPMultiplexer
}

// NewStreamBuilder creates an empty StreamBuilder.
func NewStreamBuilder() *StreamBuilder {
	return &StreamBuilder{
		channels:   map[string]config.ChannelConfig{},
		settings:   map[string]string{},
		tracerConf: tracer.NewConfig(),
	}
}

// SetLogger overrides the default stderr logger with l.
func (s *StreamBuilder) SetLogger(l *slog.Logger) {
	s.logger = l
}

// SetTracer overrides the default no-op tracer.
func (s *StreamBuilder) SetTracer(conf tracer.Config) {
	s.tracerConf = conf
}

// HTTPMultiplexer is the narrow interface a caller's own HTTP server
// needs to satisfy for SetHTTPMux, matching the single method most
// muxes (net/http.ServeMux, gorilla/mux, chi, ...) already implement.
type HTTPMultiplexer interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// SetHTTPMux registers the built Stream's /metrics handler on m at Build
// time. It does not suppress the dedicated listener: when
// settings.metrics_addr is set, Run still serves /metrics on that
// address as well.
func (s *StreamBuilder) SetHTTPMux(m HTTPMultiplexer) {
	s.httpMux = m
}

// AddFlowINI parses an in-memory INI document (one or more [flow.<name>]
// and [channel.<name>] sections, plus an optional [settings] section) and
// merges it into the builder. Later settings values win over earlier
// ones with the same key, and a later channel declaration replaces an
// earlier one with the same name; flow names must be unique across
// every AddFlowINI/AddFlowFile call, checked at Build time.
func (s *StreamBuilder) AddFlowINI(conf string) error {
	rc, err := config.LoadString(conf)
	if err != nil {
		return err
	}
	s.merge(rc)
	return nil
}

// AddFlowFile loads path (resolving any [use] include glob relative to
// its directory) and merges it into the builder.
func (s *StreamBuilder) AddFlowFile(path string) error {
	rc, err := config.Load(path)
	if err != nil {
		return err
	}
	s.merge(rc)
	return nil
}

func (s *StreamBuilder) merge(rc *config.RuntimeConfig) {
	s.flows = append(s.flows, rc.Flows...)
	for name, cc := range rc.Channels {
		s.channels[name] = cc
	}
	for k, v := range rc.Settings {
		s.settings[k] = v
	}
}

// Build validates the accumulated configuration and returns a Stream
// ready to Run. Flow names must be unique and at least one flow must
// have been added.
func (s *StreamBuilder) Build() (*Stream, error) {
	if len(s.flows) == 0 {
		return nil, errors.New("service: at least one flow is required")
	}
	seen := make(map[string]bool, len(s.flows))
	for _, fc := range s.flows {
		if seen[fc.Name] {
			return nil, fmt.Errorf("service: duplicate flow name %q", fc.Name)
		}
		seen[fc.Name] = true
	}

	logger := s.logger
	if logger == nil {
		logger = logx.New("info")
	}

	m := metrics.New()
	trc := tracer.New(s.tracerConf)
	if s.httpMux != nil {
		s.httpMux.HandleFunc("/metrics", m.Handler().ServeHTTP)
	}

	rc := &config.RuntimeConfig{Flows: s.flows, Channels: s.channels, Settings: s.settings}
	return &Stream{
		rc:      rc,
		metrics: m,
		sup:     supervisor.New(supervisor.Options{Logger: logger, Metrics: m, Tracer: trc}),
	}, nil
}

// Stream is a built, not-yet-running pipeline: every flow from its
// StreamBuilder plus the supervisor that will own them.
type Stream struct {
	rc      *config.RuntimeConfig
	metrics *metrics.Metrics
	sup     *supervisor.Supervisor
}

// Run starts every flow and blocks until ctx is cancelled, then stops
// them all. Equivalent to the CLI's run command but without the cobra
// flag parsing or OS signal wiring, which the embedder owns instead.
// When settings.metrics_addr is configured, a /metrics listener is
// served on that address for the lifetime of the run.
func (r *Stream) Run(ctx context.Context) error {
	if err := r.sup.Start(ctx, r.rc); err != nil {
		return err
	}
	if addr := r.rc.Settings["metrics_addr"]; addr != "" {
		go func() { _ = r.metrics.Serve(ctx, addr) }()
	}
	return r.sup.Run(ctx)
}

// Stop stops every flow and releases every shared channel without
// waiting for ctx to be cancelled; used by embedders that manage their
// own shutdown sequencing instead of calling Run.
func (r *Stream) Stop(ctx context.Context) error {
	return r.sup.Stop(ctx)
}

// Metrics returns the Prometheus counters backing this stream's
// records_in/records_dropped/records_written/retries/permanent_drops
// observability hook, for embedders that scrape or assert on them
// programmatically rather than through an HTTP listener.
func (r *Stream) Metrics() *metrics.Metrics {
	return r.metrics
}

// Environment groups the five component registries (input, parser,
// filter, output, format) behind one handle, so an embedder can register
// custom component types without importing each internal registry
// package directly.
type Environment struct{}

// GlobalEnvironment returns the process-wide Environment; every built-in
// and every custom registration made through it is visible to every
// StreamBuilder.
func GlobalEnvironment() *Environment { return &Environment{} }

// RegisterInput installs a custom InputDriver factory under name,
// overwriting any existing registration (including a built-in) under
// that name.
func (e *Environment) RegisterInput(name string, ctor func(opts map[string]string) (input.Driver, error), summary string) {
	input.Registry.Register(name, component.TypeSpec[input.Driver]{Constructor: ctor, Summary: summary})
}

// RegisterParser installs a custom Parser factory under name.
func (e *Environment) RegisterParser(name string, ctor func(opts map[string]string) (parser.Parser, error), summary string) {
	parser.Registry.Register(name, component.TypeSpec[parser.Parser]{Constructor: ctor, Summary: summary})
}

// RegisterFilter installs a custom Filter factory under name.
func (e *Environment) RegisterFilter(name string, ctor func(opts map[string]string) (filter.Filter, error), summary string) {
	filter.Registry.Register(name, component.TypeSpec[filter.Filter]{Constructor: ctor, Summary: summary})
}

// RegisterOutput installs a custom Output factory under name.
func (e *Environment) RegisterOutput(name string, ctor func(opts map[string]string) (output.Output, error), summary string) {
	output.Registry.Register(name, component.TypeSpec[output.Output]{Constructor: ctor, Summary: summary})
}

// RegisterFormat installs a custom OutputFormat factory under name.
func (e *Environment) RegisterFormat(name string, ctor func(opts map[string]string) (format.Format, error), summary string) {
	format.Registry.Register(name, component.TypeSpec[format.Format]{Constructor: ctor, Summary: summary})
}
