// Package filter defines the Filter contract and its registry. Rather
// than one near-identical filter component per matcher kind (boolean,
// numeric, timestamp, ip, regex, ...), there is one parameterised Field
// filter whose operator is a tagged variant, plus a second,
// expression-based filter (Expr) that covers predicates the fixed
// operator set cannot express.
package filter

import (
	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Stage identifies the point in a flow where a filter runs.
type Stage string

const (
	// StageInput applies to the synthetic {raw: line} record before parsing.
	StageInput Stage = "input"
	// StageParser applies to the parsed Record (the default).
	StageParser Stage = "parser"
	// StageOutput applies to the Record immediately before Output.Write.
	StageOutput Stage = "output"
)

// Valid reports whether s is one of the three recognized stages.
func (s Stage) Valid() bool {
	switch s {
	case StageInput, StageParser, StageOutput:
		return true
	}
	return false
}

// Filter is a configurable predicate over a Record. True keeps the
// record; false drops it.
type Filter interface {
	component.Lifecycle

	Allow(rec *record.Record) (bool, error)
}

// Registry resolves filter type names to Filter factories.
var Registry = component.NewRegistry[Filter]("filter")

// New constructs a Filter from a component.Config.
func New(conf component.Config) (Filter, error) {
	return Registry.New(conf.Type, conf.Options)
}
