// Package flow implements the per-flow pipeline: exactly one input, one
// parser, one output, zero-or-one format, an ordered set of stage
// filters, and a reliability channel interposed between the parse and
// write halves. A Flow owns exactly two long-running goroutines (ingest
// and drain), coordinated with context cancellation and a
// sync.WaitGroup rather than an additional concurrency-helper
// dependency.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/arrowstream/logflow/internal/channel"
	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/component/filter"
	"github.com/arrowstream/logflow/internal/component/format"
	"github.com/arrowstream/logflow/internal/component/input"
	"github.com/arrowstream/logflow/internal/component/output"
	"github.com/arrowstream/logflow/internal/component/parser"
	"github.com/arrowstream/logflow/internal/component/tracer"
	"github.com/arrowstream/logflow/internal/config"
	"github.com/arrowstream/logflow/internal/metrics"
	"github.com/arrowstream/logflow/internal/record"
)

// idleBackoff bounds how long ingest sleeps after an input reports "no
// data right now", so an idle input never busy-spins a goroutine.
const idleBackoff = time.Millisecond

// inputErrorThreshold is the number of consecutive Read errors an input
// may produce before ingest escalates to flow termination. The runtime
// does not auto-restart a terminated flow; that decision belongs to the
// supervisor's caller.
const inputErrorThreshold = 20

type namedFilter struct {
	name string
	f    filter.Filter
}

// item is the payload carried between ingest and drain through the
// reliability channel: the structured record (for output-stage filters)
// and its already-rendered bytes (what Output.Write receives).
type item struct {
	rec      *record.Record
	rendered []byte
	spanEnd  func()
}

// Flow wires one set of components together and runs its ingest and
// drain goroutines. The zero value is not usable; construct with New.
type Flow struct {
	name string

	in             input.Driver
	par            parser.Parser
	out            output.Output
	outFormat      format.Format // nil when no output_format is configured
	filtersByStage map[filter.Stage][]namedFilter

	ch          *channel.Channel
	ownsChannel bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer

	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  chan error
}

// Deps bundles the collaborators a Flow needs beyond its own
// configuration: the channel it will use (already constructed, and
// already Start()ed if shared), process-scoped observability, and the
// metrics sink.
type Deps struct {
	Channel     *channel.Channel
	OwnsChannel bool
	ChannelName string
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Tracer      tracer.Tracer
}

// New constructs a Flow's components from cfg but does not start them;
// call Start to open components and launch the ingest/drain goroutines.
func New(cfg config.FlowConfig, deps Deps) (*Flow, error) {
	in, err := input.New(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("flow %s: input: %w", cfg.Name, err)
	}
	par, err := parser.New(cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("flow %s: parser: %w", cfg.Name, err)
	}
	out, err := output.New(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("flow %s: output: %w", cfg.Name, err)
	}
	var fm format.Format
	if cfg.OutputFormat != "" {
		fm, err = format.New(component.Config{Type: cfg.OutputFormat, Options: cfg.FormatOptions})
		if err != nil {
			return nil, fmt.Errorf("flow %s: format: %w", cfg.Name, err)
		}
	}

	byStage := map[filter.Stage][]namedFilter{}
	for _, fc := range cfg.Filters {
		f, err := filter.New(fc.Component)
		if err != nil {
			return nil, fmt.Errorf("flow %s: filter %s: %w", cfg.Name, fc.Name, err)
		}
		byStage[fc.Stage] = append(byStage[fc.Stage], namedFilter{name: fc.Name, f: f})
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Flow{
		name:           cfg.Name,
		in:             in,
		par:            par,
		out:            out,
		outFormat:      fm,
		filtersByStage: byStage,
		ch:             deps.Channel,
		ownsChannel:    deps.OwnsChannel,
		logger:         logger.With("flow", cfg.Name, "channel", deps.ChannelName),
		metrics:        deps.Metrics,
		tracer:         deps.Tracer,
		fatal:          make(chan error, 1),
	}, nil
}

// Start opens every component in fixed order (input, parser, output,
// format, filters; the channel is started separately — by the flow
// itself when private, by the channel registry when shared) and
// launches the ingest and drain goroutines.
func (f *Flow) Start(ctx context.Context) error {
	if err := f.in.Start(ctx); err != nil {
		return fmt.Errorf("flow %s: start input: %w", f.name, err)
	}
	if err := f.par.Start(ctx); err != nil {
		return fmt.Errorf("flow %s: start parser: %w", f.name, err)
	}
	if err := f.out.Start(ctx); err != nil {
		return fmt.Errorf("flow %s: start output: %w", f.name, err)
	}
	if f.outFormat != nil {
		if err := f.outFormat.Start(ctx); err != nil {
			return fmt.Errorf("flow %s: start format: %w", f.name, err)
		}
	}
	for _, fs := range f.filtersByStage {
		for _, nf := range fs {
			if err := nf.f.Start(ctx); err != nil {
				return fmt.Errorf("flow %s: start filter %s: %w", f.name, nf.name, err)
			}
		}
	}
	if f.ownsChannel {
		if err := f.ch.Start(ctx); err != nil {
			return fmt.Errorf("flow %s: start channel: %w", f.name, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(2)
	go f.ingest(runCtx)
	go f.drain(runCtx)
	return nil
}

// Stop cancels the flow's goroutines, awaits them, then closes
// components in the reverse of Start's order. A private channel is
// closed here; a shared channel is left to its registry.
func (f *Flow) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()

	if f.ownsChannel {
		if err := f.ch.Stop(ctx); err != nil {
			f.logger.Error("stop channel", "error", err)
		}
	}

	var errs []error
	for _, fs := range f.filtersByStage {
		for _, nf := range fs {
			if err := nf.f.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("filter %s: %w", nf.name, err))
			}
		}
	}
	if f.outFormat != nil {
		if err := f.outFormat.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("format: %w", err))
		}
	}
	if err := f.out.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if err := f.par.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("parser: %w", err))
	}
	if err := f.in.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("input: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("flow %s: stop: %w", f.name, errors.Join(errs...))
	}
	return nil
}

// Fatal returns a channel that receives at most one error if ingest
// escalates to flow termination. The caller (supervisor) decides
// whether to treat this as fatal to the process; the flow itself never
// restarts.
func (f *Flow) Fatal() <-chan error { return f.fatal }

// Name returns the flow's configured name.
func (f *Flow) Name() string { return f.name }

// Output returns the flow's constructed Output component, for tests and
// embedders that need to inspect what was written without a network
// round trip (e.g. asserting against the built-in memory output).
func (f *Flow) Output() output.Output { return f.out }

// Input returns the flow's constructed InputDriver component, for tests
// and embedders that stream additional lines into a running flow (e.g.
// sending on the built-in memory input's Feed after Start).
func (f *Flow) Input() input.Driver { return f.in }

func (f *Flow) ingest(ctx context.Context) {
	defer f.wg.Done()
	consecutiveErrs := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, ok, err := f.in.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if errors.Is(err, input.ErrExhausted) {
				return
			}
			consecutiveErrs++
			f.logger.Error("input read failed", "error", err, "consecutive", consecutiveErrs)
			if consecutiveErrs >= inputErrorThreshold {
				select {
				case f.fatal <- fmt.Errorf("flow %s: input failing repeatedly: %w", f.name, err):
				default:
				}
				return
			}
			continue
		}
		consecutiveErrs = 0
		if !ok {
			runtime.Gosched()
			time.Sleep(idleBackoff)
			continue
		}

		if f.metrics != nil {
			f.metrics.RecordIn(f.name)
		}
		f.processLine(ctx, line)
	}
}

func (f *Flow) processLine(ctx context.Context, line string) {
	raw := record.New()
	raw.Set("raw", line)
	if !f.applyFilters(filter.StageInput, raw) {
		f.drop(filter.StageInput)
		return
	}

	rec, ok, err := f.par.Parse(line)
	if err != nil {
		f.logger.Error("parse failed", "error", err)
		f.drop(filter.StageParser)
		return
	}
	if !ok {
		return
	}

	if !f.applyFilters(filter.StageParser, rec) {
		f.drop(filter.StageParser)
		return
	}

	var rendered []byte
	if f.outFormat != nil {
		rendered, err = f.outFormat.Format(rec)
		if err != nil {
			f.logger.Error("format failed", "error", err)
			f.drop(filter.StageParser)
			return
		}
	} else {
		rendered, err = rec.MarshalJSON()
		if err != nil {
			f.logger.Error("marshal record failed", "error", err)
			f.drop(filter.StageParser)
			return
		}
	}

	end := func() {}
	if f.tracer != nil {
		var spanCtx context.Context
		spanCtx, end = f.tracer.StartSpan(ctx, "flow.process")
		if sc := trace.SpanContextFromContext(spanCtx); sc.IsValid() {
			rec.Set("meta.trace_id", sc.TraceID().String())
			rec.Set("meta.span_id", sc.SpanID().String())
		}
	}

	if err := f.ch.Put(ctx, item{rec: rec, rendered: rendered, spanEnd: end}); err != nil {
		end()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, channel.ErrClosed) {
			f.logger.Error("enqueue failed", "error", err)
		}
	}
}

func (f *Flow) drain(ctx context.Context) {
	defer f.wg.Done()
	for {
		tok, payload, err := f.ch.Get(ctx)
		if err != nil {
			return
		}
		it, ok := payload.(item)
		if !ok {
			continue
		}

		if !f.applyFilters(filter.StageOutput, it.rec) {
			f.drop(filter.StageOutput)
			if ackErr := f.ch.Ack(tok); ackErr != nil {
				f.logger.Error("ack failed", "error", ackErr)
			}
			it.spanEnd()
			continue
		}

		if err := f.out.Write(ctx, it.rendered); err != nil {
			f.logger.Error("write failed", "error", err)
			if nackErr := f.ch.Nack(tok, true); nackErr != nil {
				f.logger.Error("nack failed", "error", nackErr)
			}
			it.spanEnd()
			continue
		}

		if err := f.ch.Ack(tok); err != nil {
			f.logger.Error("ack failed", "error", err)
		}
		if f.metrics != nil {
			f.metrics.RecordWritten(f.name)
		}
		it.spanEnd()
	}
}

// applyFilters evaluates stage's filters in declared (name-lexicographic,
// already-ordered-by-loader) order, short-circuiting on the first
// rejection. A filter runtime error is treated as a rejection: the
// offending record is dropped and the loop continues.
func (f *Flow) applyFilters(stage filter.Stage, rec *record.Record) bool {
	for _, nf := range f.filtersByStage[stage] {
		allow, err := nf.f.Allow(rec)
		if err != nil {
			f.logger.Error("filter failed", "filter", nf.name, "stage", stage, "error", err)
			return false
		}
		if !allow {
			return false
		}
	}
	return true
}

func (f *Flow) drop(stage filter.Stage) {
	if f.metrics != nil {
		f.metrics.RecordDropped(f.name, string(stage))
	}
}
