// Package input defines the InputDriver contract and its registry.
// Concrete transports (TCP/UDP/Unix socket servers, file tailing) are out
// of scope for this module and are described only by the Driver
// interface; the memory driver below exists solely so the pipeline is
// self-testing end to end.
package input

import (
	"context"
	"io"

	"github.com/arrowstream/logflow/internal/component"
)

// Driver produces raw lines for a flow's ingest loop.
type Driver interface {
	component.Lifecycle

	// Read returns the next raw line. A false ok with a nil error means
	// "no data right now" — the ingest loop treats this as a yield point
	// and retries. io.EOF signals permanent exhaustion.
	Read(ctx context.Context) (line string, ok bool, err error)
}

// ErrExhausted is returned by drivers (such as memory) that have a finite
// backlog once it has been fully consumed.
var ErrExhausted = io.EOF

// Registry resolves input type names to Driver factories.
var Registry = component.NewRegistry[Driver]("input")

// New constructs a Driver from a component.Config.
func New(conf component.Config) (Driver, error) {
	return Registry.New(conf.Type, conf.Options)
}
