package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/arrowstream/logflow/internal/component"
	"github.com/arrowstream/logflow/internal/record"
)

// JSON decodes each raw line as a single JSON object.
type JSON struct {
	// SkipInvalid drops lines that fail to parse silently instead of
	// surfacing an error; when false (the default) parse errors
	// propagate so the flow logs and drops the offending record.
	SkipInvalid bool
}

func newJSONFromOptions(opts map[string]string) (Parser, error) {
	return &JSON{SkipInvalid: opts["skip_invalid"] == "true"}, nil
}

func init() {
	Registry.Register("json", component.TypeSpec[Parser]{
		Constructor: newJSONFromOptions,
		Summary:     "Decodes each line as a JSON object into a Record.",
		Default:     JSON{},
	})
}

// Start is a no-op.
func (p *JSON) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (p *JSON) Stop(ctx context.Context) error { return nil }

// Parse decodes raw as JSON. Blank lines are dropped without error.
func (p *JSON) Parse(raw string) (*record.Record, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false, nil
	}
	rec, err := record.FromJSON([]byte(trimmed))
	if err != nil {
		if p.SkipInvalid {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("json parser: %w", err)
	}
	return rec, true, nil
}
