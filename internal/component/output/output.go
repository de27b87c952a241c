// Package output defines the Output contract and its registry. Concrete
// transports (files, network sinks) are out of scope; the memory output
// below is the minimal built-in needed for self-testing.
package output

import (
	"context"

	"github.com/arrowstream/logflow/internal/component"
)

// Output is the side-effecting sink at the end of a flow. Write failures
// are retryable: the channel nacks and redelivers up to its retry limit.
type Output interface {
	component.Lifecycle

	Write(ctx context.Context, payload []byte) error
}

// Registry resolves output type names to Output factories.
var Registry = component.NewRegistry[Output]("output")

// New constructs an Output from a component.Config.
func New(conf component.Config) (Output, error) {
	return Registry.New(conf.Type, conf.Options)
}
