// Copyright 2025 Redpanda Data, Inc.

// Package component holds the capability surface and registration
// machinery shared by every component kind (input, parser, filter,
// output, format): a start/stop lifecycle, a generic typed registry
// keyed by component type name, and the lookup/construction errors the
// registry can raise. Kind-specific packages (internal/component/input,
// .../parser, .../filter, .../output, .../format) each instantiate a
// Registry[T] for their own constructor signature and built-ins.
package component

import (
	"context"
	"fmt"
)

// Lifecycle is the capability set every component variant shares: scoped
// acquisition with guaranteed release on every pipeline exit path. Start
// must be idempotent; Stop must release every resource and tolerate being
// called without a prior successful Start.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config is the configuration carried by every component instance: a type
// identifier resolved through a Registry, plus a flat option map decoded
// into the concrete component's typed config struct at construction time.
type Config struct {
	Type    string
	Options map[string]string
}

// TypeSpec is a constructor and a short usage description for one
// registered component type. The Summary and Default fields back the
// `logflow docs` CLI subcommand; they carry no runtime behavior.
type TypeSpec[T any] struct {
	Constructor func(opts map[string]string) (T, error)
	Summary     string
	Default     any
}

// NotFoundError is raised when a (kind, type name) pair does not resolve
// to a registered factory. It is a lookup error: a programmer/operator
// mistake, not a runtime condition the pipeline absorbs.
type NotFoundError struct {
	Kind string
	Type string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("component: no %s registered for type %q", e.Kind, e.Type)
}

// Registry resolves a type name to a TypeSpec for one component kind. The
// zero value is not usable; construct with NewRegistry.
type Registry[T any] struct {
	kind  string
	specs map[string]TypeSpec[T]
}

// NewRegistry creates an empty registry for the named component kind
// ("input", "parser", "filter", "output", "format").
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, specs: make(map[string]TypeSpec[T])}
}

// Register installs a factory under a type name, overwriting any existing
// registration under that name. Built-ins register themselves this way at
// package init; callers may call Register again to override or extend.
func (r *Registry[T]) Register(name string, spec TypeSpec[T]) {
	r.specs[name] = spec
}

// New resolves a type name and invokes its constructor with the given
// option map. Resolution failure raises a *NotFoundError; construction
// failures from the factory itself are wrapped with the kind and type
// name, and errors.Is/errors.As still match the original error.
func (r *Registry[T]) New(name string, opts map[string]string) (T, error) {
	var zero T
	spec, ok := r.specs[name]
	if !ok {
		return zero, &NotFoundError{Kind: r.kind, Type: name}
	}
	v, err := spec.Constructor(opts)
	if err != nil {
		return zero, fmt.Errorf("component: construct %s %q: %w", r.kind, name, err)
	}
	return v, nil
}

// Specs returns every registered (name, TypeSpec) pair, used by the docs
// generator. The returned map must not be mutated.
func (r *Registry[T]) Specs() map[string]TypeSpec[T] {
	return r.specs
}

// Kind returns the component kind this registry resolves.
func (r *Registry[T]) Kind() string {
	return r.kind
}
