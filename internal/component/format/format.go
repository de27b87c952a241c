// Package format defines the OutputFormat contract and its registry.
// Concrete encodings beyond the minimal built-in set (structured
// protobuf, CSV, ...) are out of scope.
package format

import (
	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// Format renders a Record into the exact payload handed to Output.Write.
type Format interface {
	component.Lifecycle

	Format(rec *record.Record) ([]byte, error)
}

// Registry resolves format type names to Format factories.
var Registry = component.NewRegistry[Format]("format")

// New constructs a Format from a component.Config.
func New(conf component.Config) (Format, error) {
	return Registry.New(conf.Type, conf.Options)
}
