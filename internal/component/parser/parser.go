// Package parser defines the Parser contract and its registry. Concrete
// formats (syslog RFC 3164, structured field extraction) are out of
// scope; the json and text parsers below are the minimal built-in set
// needed for the pipeline to be self-testing.
package parser

import (
	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Parser converts a raw input line into a structured Record.
type Parser interface {
	component.Lifecycle

	// Parse converts raw to structured. A false ok with a nil error drops
	// the record without error (e.g. a blank line).
	Parse(raw string) (rec *record.Record, ok bool, err error)
}

// Registry resolves parser type names to Parser factories.
var Registry = component.NewRegistry[Parser]("parser")

// New constructs a Parser from a component.Config.
func New(conf component.Config) (Parser, error) {
	return Registry.New(conf.Type, conf.Options)
}
