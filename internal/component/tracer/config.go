// Copyright 2025 Redpanda Data, Inc.

// Package tracer is an ambient, optional observability collaborator:
// when enabled it wraps each record's ingest-to-drain lifetime in an
// OpenTelemetry span and propagates the span context through the
// record's metadata, purely for operator visibility. It never
// participates in ack/nack decisions.
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	yaml "gopkg.in/yaml.v3"
)

func init() {
	// TODO: I'm so confused, these APIs are a nightmare.
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// Config is the all encompassing configuration struct for all tracer
// types. Plugin carries type-specific options (currently unused by the
// "none" and "otel" built-ins, reserved for future tracer backends).
type Config struct {
	Type   string `json:"type" yaml:"type"`
	Plugin any    `json:"plugin,omitempty" yaml:"plugin,omitempty"`
}

// NewConfig returns a configuration struct fully populated with default
// values: tracing disabled.
func NewConfig() Config {
	return Config{Type: "none"}
}

// FromAny returns a tracer config from a parsed config, yaml node, map,
// or a bare settings string (the form the INI settings.tracer option
// arrives in).
func FromAny(value any) (conf Config, err error) {
	switch t := value.(type) {
	case Config:
		return t, nil
	case string:
		return Config{Type: t}, nil
	case *yaml.Node:
		return fromYAML(t)
	case map[string]any:
		return fromMap(t)
	}
	err = fmt.Errorf("tracer: unexpected value, expected object, got %T", value)
	return
}

func fromMap(value map[string]any) (conf Config, err error) {
	t, ok := value["type"]
	if !ok {
		err = fmt.Errorf("tracer: missing %q field", "type")
		return
	}
	conf.Type, _ = t.(string)
	if p, exists := value[conf.Type]; exists {
		conf.Plugin = p
	} else if p, exists := value["plugin"]; exists {
		conf.Plugin = p
	}
	return
}

func fromYAML(value *yaml.Node) (conf Config, err error) {
	var raw map[string]any
	if err = value.Decode(&raw); err != nil {
		err = fmt.Errorf("tracer: decode yaml: %w", err)
		return
	}
	return fromMap(raw)
}

// Tracer creates spans around a record's journey through a flow.
type Tracer interface {
	// StartSpan begins a span named operation and returns the derived
	// context plus a function that must be called exactly once to end it.
	StartSpan(ctx context.Context, operation string) (context.Context, func())
}

// New builds the Tracer described by conf. Unknown types fall back to
// the no-op tracer rather than failing flow construction, since tracing
// is purely observational.
func New(conf Config) Tracer {
	switch conf.Type {
	case "otel":
		return otelTracer{tr: otel.Tracer("logflow")}
	default:
		return noopTracer{}
	}
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

type otelTracer struct {
	tr trace.Tracer
}

func (o otelTracer) StartSpan(ctx context.Context, operation string) (context.Context, func()) {
	spanCtx, span := o.tr.Start(ctx, operation)
	return spanCtx, func() { span.End() }
}
