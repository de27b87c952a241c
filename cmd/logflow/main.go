// Command logflow runs a configuration-driven log processor: one or more
// independent flows, each reading raw records from a source, structuring
// and filtering them, and writing them to a sink, optionally through a
// reliability channel that guarantees at-least-once delivery with
// bounded retries.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/arrowstream/logflow/cmd/logflow/cmd"
)

func main() {
	err := cmd.Execute()
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, cmd.ErrInterrupted):
		os.Exit(130)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
