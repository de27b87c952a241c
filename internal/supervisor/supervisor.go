// Package supervisor owns every flow and the registry of shared
// channels for one running process: it starts them all, awaits a stop
// signal, and stops everything in reverse order. The CLI's run command
// and public/service both drive flows through it.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arrowstream/logflow/internal/channel"
	"github.com/arrowstream/logflow/internal/component/tracer"
	"github.com/arrowstream/logflow/internal/config"
	"github.com/arrowstream/logflow/internal/flow"
	"github.com/arrowstream/logflow/internal/metrics"
)

// sharedChannel refcounts a named channel across every flow that
// references it. The registry owns shared channels and closes them only
// after all referencing flows have stopped.
type sharedChannel struct {
	ch       *channel.Channel
	refcount int
}

// Supervisor owns the flow map and the shared channel registry for one
// running process.
type Supervisor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer

	mu        sync.Mutex
	shared    map[string]*sharedChannel
	flows     []*flow.Flow
	flowChan  map[string]string // flow name -> shared channel name, for Stop's release step
	watchStop chan struct{}
}

// Options bundles the process-scoped collaborators every flow shares.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  tracer.Tracer
}

// New constructs an empty Supervisor ready to have flows built onto it
// via Start.
func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	trc := opts.Tracer
	if trc == nil {
		trc = tracer.New(tracer.NewConfig())
	}
	return &Supervisor{
		logger:   logger,
		metrics:  m,
		tracer:   trc,
		shared:   map[string]*sharedChannel{},
		flowChan: map[string]string{},
	}
}

// Start builds and starts one Flow per FlowConfig in rc, in the order
// they appear (the loader already sorts them by name). Shared channels
// are created lazily on first reference and refcounted; if any flow
// fails to build or start, every flow and channel already started is
// unwound before the error is returned.
func (s *Supervisor) Start(ctx context.Context, rc *config.RuntimeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchStop == nil {
		s.watchStop = make(chan struct{})
	}
	for _, fc := range rc.Flows {
		deps, err := s.resolveChannel(ctx, fc, rc)
		if err != nil {
			s.unwindLocked(ctx)
			return err
		}
		deps.Logger = s.logger
		deps.Metrics = s.metrics
		deps.Tracer = s.tracer

		fl, err := flow.New(fc, deps)
		if err != nil {
			s.unwindLocked(ctx)
			return fmt.Errorf("supervisor: build flow %s: %w", fc.Name, err)
		}
		if err := fl.Start(ctx); err != nil {
			s.unwindLocked(ctx)
			return fmt.Errorf("supervisor: start flow %s: %w", fc.Name, err)
		}
		s.flows = append(s.flows, fl)
		s.logger.Info("flow started", "flow", fc.Name)
		go s.watchFatal(fl, s.watchStop)
	}
	return nil
}

// watchFatal reports a flow whose ingest loop escalated to termination.
// The supervisor only records the event; restart policy belongs to
// whoever owns the process.
func (s *Supervisor) watchFatal(fl *flow.Flow, stop <-chan struct{}) {
	select {
	case err := <-fl.Fatal():
		s.logger.Error("flow terminated", "flow", fl.Name(), "error", err)
	case <-stop:
	}
}

// resolveChannel binds fc's channel reference, if any, to a private
// channel owned by this flow or to a shared channel tracked by the
// registry, creating and starting the latter on first reference.
func (s *Supervisor) resolveChannel(ctx context.Context, fc config.FlowConfig, rc *config.RuntimeConfig) (flow.Deps, error) {
	hooks := channel.Hooks{
		OnRetry:         func() { s.metrics.Retry(channelLabel(fc)) },
		OnPermanentDrop: func() { s.metrics.PermanentDrop(channelLabel(fc)) },
	}

	if fc.Channel == "" {
		cc := rc.ChannelConfigFor("flow." + fc.Name)
		ch, err := channel.New(channel.Config{MaxSize: cc.MaxSize, AckTimeout: cc.AckTimeout, RetryLimit: cc.RetryLimit}, hooks)
		if err != nil {
			return flow.Deps{}, fmt.Errorf("supervisor: private channel for flow %s: %w", fc.Name, err)
		}
		return flow.Deps{Channel: ch, OwnsChannel: true, ChannelName: "flow." + fc.Name}, nil
	}

	sc, ok := s.shared[fc.Channel]
	if !ok {
		cc := rc.ChannelConfigFor(fc.Channel)
		ch, err := channel.New(channel.Config{MaxSize: cc.MaxSize, AckTimeout: cc.AckTimeout, RetryLimit: cc.RetryLimit}, hooks)
		if err != nil {
			return flow.Deps{}, fmt.Errorf("supervisor: shared channel %s: %w", fc.Channel, err)
		}
		if err := ch.Start(ctx); err != nil {
			return flow.Deps{}, fmt.Errorf("supervisor: start shared channel %s: %w", fc.Channel, err)
		}
		sc = &sharedChannel{ch: ch}
		s.shared[fc.Channel] = sc
	}
	sc.refcount++
	s.flowChan[fc.Name] = fc.Channel
	return flow.Deps{Channel: sc.ch, OwnsChannel: false, ChannelName: fc.Channel}, nil
}

func channelLabel(fc config.FlowConfig) string {
	if fc.Channel != "" {
		return fc.Channel
	}
	return "flow." + fc.Name
}

// Run blocks until ctx is cancelled (the caller translates OS signals
// into cancellation — see cmd/logflow), then stops every flow.
func (s *Supervisor) Run(ctx context.Context) error {
	<-ctx.Done()
	return s.Stop(context.Background())
}

// StopFlow stops a single named flow and releases its reference to any
// shared channel, without affecting sibling flows. A shared channel is
// only closed once every flow that referenced it has stopped.
func (s *Supervisor) StopFlow(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, fl := range s.flows {
		if fl.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("supervisor: no running flow named %q", name)
	}
	fl := s.flows[idx]
	s.flows = append(s.flows[:idx], s.flows[idx+1:]...)

	err := fl.Stop(ctx)
	if chName, ok := s.flowChan[name]; ok {
		s.releaseShared(chName)
		delete(s.flowChan, name)
	}
	return err
}

// Stop stops every flow, then releases (and, once unreferenced, closes)
// every shared channel.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unwindLocked(ctx)
}

func (s *Supervisor) unwindLocked(ctx context.Context) error {
	var errs []error
	for i := len(s.flows) - 1; i >= 0; i-- {
		fl := s.flows[i]
		if err := fl.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		if name, ok := s.flowChan[fl.Name()]; ok {
			s.releaseShared(name)
		}
	}
	s.flows = nil
	s.flowChan = map[string]string{}
	if s.watchStop != nil {
		close(s.watchStop)
		s.watchStop = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("supervisor: stop: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Supervisor) releaseShared(name string) {
	sc, ok := s.shared[name]
	if !ok {
		return
	}
	sc.refcount--
	if sc.refcount > 0 {
		return
	}
	if err := sc.ch.Stop(context.Background()); err != nil {
		s.logger.Error("stop shared channel", "channel", name, "error", err)
	}
	delete(s.shared, name)
}

// Flows returns the currently running flows, for observability and
// tests. The returned slice must not be mutated.
func (s *Supervisor) Flows() []*flow.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows
}

// Metrics returns the supervisor's metrics sink.
func (s *Supervisor) Metrics() *metrics.Metrics { return s.metrics }
